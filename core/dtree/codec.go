package dtree

import (
	"bytes"
	"fmt"

	"github.com/tinylib/msgp/msgp"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// FormatVersion is the version of the msgpack layout written by EncodeMsg.
const FormatVersion = 1

// maxDecodedSurrogates bounds the surrogate slots accepted from a stream.
const maxDecodedSurrogates = 64

// EncodeMsg implements msgp.Encodable. The layout is a header
// [version, depth, n_stats, max_surrogates, n_cat, n_con], the response
// kind, the five node arrays and the four surrogate arrays.
func (t *Tree) EncodeMsg(en *msgp.Writer) error {
	if err := en.WriteArrayHeader(6); err != nil {
		return err
	}
	for _, v := range []int{FormatVersion, t.Depth, t.NumStats, t.MaxSurrogates, t.NumCat, t.NumCon} {
		if err := en.WriteInt(v); err != nil {
			return err
		}
	}
	if err := en.WriteBool(t.Regression); err != nil {
		return err
	}
	if err := writeInts(en, t.FeatureIndices); err != nil {
		return err
	}
	if err := writeFloats(en, t.Thresholds); err != nil {
		return err
	}
	if err := en.WriteArrayHeader(uint32(len(t.IsCategorical))); err != nil {
		return err
	}
	for _, b := range t.IsCategorical {
		if err := en.WriteBool(b); err != nil {
			return err
		}
	}
	if err := writeFloats(en, t.NonNullSplitCount); err != nil {
		return err
	}
	rows, _ := t.Predictions.Dims()
	if err := en.WriteArrayHeader(uint32(rows * t.NumStats)); err != nil {
		return err
	}
	for n := 0; n < rows; n++ {
		for _, v := range t.Predictions.RawRowView(n) {
			if err := en.WriteFloat64(v); err != nil {
				return err
			}
		}
	}
	if err := writeInts(en, t.SurrIndices); err != nil {
		return err
	}
	if err := writeFloats(en, t.SurrThresholds); err != nil {
		return err
	}
	if err := en.WriteArrayHeader(uint32(len(t.SurrStatus))); err != nil {
		return err
	}
	for _, s := range t.SurrStatus {
		if err := en.WriteInt8(int8(s)); err != nil {
			return err
		}
	}
	return writeFloats(en, t.SurrAgreement)
}

// DecodeMsg implements msgp.Decodable. The sizing fields are validated
// against MaxStateBytes before any array is allocated, and the decoded tree
// is checked with Validate.
func (t *Tree) DecodeMsg(dc *msgp.Reader) error {
	sz, err := dc.ReadArrayHeader()
	if err != nil {
		return err
	}
	if sz != 6 {
		return errors.NewShapeError("Tree.DecodeMsg", []int{6}, []int{int(sz)})
	}
	var header [6]int
	for i := range header {
		if header[i], err = dc.ReadInt(); err != nil {
			return err
		}
	}
	version, depth, numStats, maxSurr, numCat, numCon := header[0], header[1], header[2], header[3], header[4], header[5]
	switch {
	case version != FormatVersion:
		return errors.NewValueError("Tree.DecodeMsg", fmt.Sprintf("unsupported format version %d", version))
	case depth < 1 || depth > MaxTreeDepth+1:
		return errors.NewValidationError("tree_depth", "out of range", depth)
	case numStats < 2:
		return errors.NewValidationError("n_stats", "must be at least 2", numStats)
	case maxSurr < 0 || maxSurr > maxDecodedSurrogates:
		return errors.NewValidationError("max_surrogates", "out of range", maxSurr)
	case numCat < 0 || numCon < 0:
		return errors.NewValidationError("n_features", "must be non-negative", numCat+numCon)
	}
	if need := StateBytes(depth, numStats, maxSurr); need > MaxStateBytes {
		return errors.NewSizeLimitError("Tree.DecodeMsg", need, MaxStateBytes)
	}
	regression, err := dc.ReadBool()
	if err != nil {
		return err
	}

	*t = Tree{NumStats: numStats, MaxSurrogates: maxSurr, Regression: regression, NumCat: numCat, NumCon: numCon}
	if err := t.allocate(depth); err != nil {
		return err
	}
	n := t.NumNodes()
	if err := readInts(dc, t.FeatureIndices); err != nil {
		return err
	}
	if err := readFloats(dc, t.Thresholds); err != nil {
		return err
	}
	if err := expectArray(dc, n); err != nil {
		return err
	}
	for i := range t.IsCategorical {
		if t.IsCategorical[i], err = dc.ReadBool(); err != nil {
			return err
		}
	}
	if err := readFloats(dc, t.NonNullSplitCount); err != nil {
		return err
	}
	if err := expectArray(dc, n*numStats); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		row := t.Predictions.RawRowView(i)
		for j := range row {
			if row[j], err = dc.ReadFloat64(); err != nil {
				return err
			}
		}
	}
	if err := readInts(dc, t.SurrIndices); err != nil {
		return err
	}
	if err := readFloats(dc, t.SurrThresholds); err != nil {
		return err
	}
	if err := expectArray(dc, n*maxSurr); err != nil {
		return err
	}
	for i := range t.SurrStatus {
		s, err := dc.ReadInt8()
		if err != nil {
			return err
		}
		t.SurrStatus[i] = SurrogateStatus(s)
	}
	if err := readFloats(dc, t.SurrAgreement); err != nil {
		return err
	}
	return t.Validate()
}

// MarshalBinary encodes the tree with EncodeMsg.
func (t *Tree) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := msgp.Encode(&buf, t); err != nil {
		return nil, errors.Wrap(err, "encode tree")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a tree written by MarshalBinary.
func (t *Tree) UnmarshalBinary(data []byte) error {
	if err := msgp.Decode(bytes.NewReader(data), t); err != nil {
		return errors.Wrap(err, "decode tree")
	}
	return nil
}

// EncodeMsg implements msgp.Encodable so partial buffers can be shipped
// between processes before merging.
func (b *LevelBuffer) EncodeMsg(en *msgp.Writer) error {
	if err := en.WriteArrayHeader(5); err != nil {
		return err
	}
	for _, v := range []int{b.NumCandidates, b.NumStats, int(b.Status)} {
		if err := en.WriteInt(v); err != nil {
			return err
		}
	}
	if err := en.WriteInt64(b.Rows); err != nil {
		return err
	}
	if err := en.WriteString(b.Reason); err != nil {
		return err
	}
	if err := writeInts(en, b.Leaves); err != nil {
		return err
	}
	if err := writeFloats(en, b.LeafStats); err != nil {
		return err
	}
	return writeFloats(en, b.SplitStats)
}

// DecodeMsg implements msgp.Decodable.
func (b *LevelBuffer) DecodeMsg(dc *msgp.Reader) error {
	sz, err := dc.ReadArrayHeader()
	if err != nil {
		return err
	}
	if sz != 5 {
		return errors.NewShapeError("LevelBuffer.DecodeMsg", []int{5}, []int{int(sz)})
	}
	var header [3]int
	for i := range header {
		if header[i], err = dc.ReadInt(); err != nil {
			return err
		}
	}
	rows, err := dc.ReadInt64()
	if err != nil {
		return err
	}
	reason, err := dc.ReadString()
	if err != nil {
		return err
	}
	nLeaves, err := dc.ReadArrayHeader()
	if err != nil {
		return err
	}
	candidates, stats := header[0], header[1]
	if header[2] < int(StatusOK) || header[2] > int(StatusSchema) {
		return errors.NewValidationError("status", "unknown buffer status", header[2])
	}
	if candidates < 0 || stats < 1 {
		return errors.NewShapeError("LevelBuffer.DecodeMsg", []int{int(nLeaves), candidates, stats}, nil)
	}
	if need := LevelBufferBytes(int(nLeaves), candidates, stats); need > MaxStateBytes {
		return errors.NewSizeLimitError("LevelBuffer.DecodeMsg", need, MaxStateBytes)
	}
	leaves := make([]int, nLeaves)
	for i := range leaves {
		if leaves[i], err = dc.ReadInt(); err != nil {
			return err
		}
	}
	out, err := newLevelBuffer(leaves, candidates, stats)
	if err != nil {
		return err
	}
	out.Rows, out.Status, out.Reason = rows, Status(header[2]), reason
	if err := readFloats(dc, out.LeafStats); err != nil {
		return err
	}
	if err := readFloats(dc, out.SplitStats); err != nil {
		return err
	}
	*b = *out
	return nil
}

func writeInts(en *msgp.Writer, v []int) error {
	if err := en.WriteArrayHeader(uint32(len(v))); err != nil {
		return err
	}
	for _, x := range v {
		if err := en.WriteInt(x); err != nil {
			return err
		}
	}
	return nil
}

func writeFloats(en *msgp.Writer, v []float64) error {
	if err := en.WriteArrayHeader(uint32(len(v))); err != nil {
		return err
	}
	for _, x := range v {
		if err := en.WriteFloat64(x); err != nil {
			return err
		}
	}
	return nil
}

// expectArray reads an array header and checks its length.
func expectArray(dc *msgp.Reader, want int) error {
	sz, err := dc.ReadArrayHeader()
	if err != nil {
		return err
	}
	if int(sz) != want {
		return errors.NewDimensionError("DecodeMsg", want, int(sz), 0)
	}
	return nil
}

func readInts(dc *msgp.Reader, dst []int) error {
	if err := expectArray(dc, len(dst)); err != nil {
		return err
	}
	var err error
	for i := range dst {
		if dst[i], err = dc.ReadInt(); err != nil {
			return err
		}
	}
	return nil
}

func readFloats(dc *msgp.Reader, dst []float64) error {
	if err := expectArray(dc, len(dst)); err != nil {
		return err
	}
	var err error
	for i := range dst {
		if dst[i], err = dc.ReadFloat64(); err != nil {
			return err
		}
	}
	return nil
}
