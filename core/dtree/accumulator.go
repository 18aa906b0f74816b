package dtree

import (
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// Status is the health of an accumulation buffer. It only ever gets worse.
type Status int8

const (
	StatusOK Status = iota
	// StatusTerminated marks a data quality problem.
	StatusTerminated
	// StatusSchema marks a row encoded inconsistently with the candidate table.
	StatusSchema
)

// health is the bookkeeping shared by level and surrogate buffers.
type health struct {
	Rows   int64  // Rows offered, including ignored ones
	Status Status // Worst status seen
	Reason string // Reason of the first fault at the worst status
}

func (h *health) fault(f *rowFault) {
	s := StatusTerminated
	if f.schema {
		s = StatusSchema
	}
	if s > h.Status {
		h.Status, h.Reason = s, f.reason
	}
}

func (h *health) merge(o health) {
	h.Rows += o.Rows
	if o.Status > h.Status {
		h.Status, h.Reason = o.Status, o.Reason
	}
}

// Err converts a faulty buffer into the error a round must fail with.
func (h health) Err(op string) error {
	switch h.Status {
	case StatusTerminated:
		return errors.NewTerminatedError(op, h.Reason, h.Rows)
	case StatusSchema:
		return errors.NewModelError(op, h.Reason, errors.ErrSchema)
	}
	return nil
}

// Terminated reports whether the buffer must not be trusted.
func (h health) Terminated() bool { return h.Status != StatusOK }

// LevelBuffer holds the statistics of one accumulation round. Row r of the
// buffer belongs to open leaf Leaves[r]; for each row it stores the leaf
// statistics followed, per candidate, by the left and right branch
// statistics.
type LevelBuffer struct {
	health

	Leaves        []int
	NumCandidates int
	NumStats      int
	LeafStats     []float64 // NumLeaves x NumStats
	SplitStats    []float64 // NumLeaves x NumCandidates x 2 x NumStats
}

// LevelBufferBytes returns the footprint of a buffer with the given shape.
func LevelBufferBytes(leaves, candidates, stats int) int64 {
	return int64(leaves) * int64(1+2*candidates) * int64(stats) * 8
}

func newLevelBuffer(leaves []int, candidates, stats int) (*LevelBuffer, error) {
	if need := LevelBufferBytes(len(leaves), candidates, stats); need > MaxStateBytes {
		return nil, errors.NewSizeLimitError("NewLevelAccumulator", need, MaxStateBytes)
	}
	return &LevelBuffer{
		Leaves:        leaves,
		NumCandidates: candidates,
		NumStats:      stats,
		LeafStats:     make([]float64, len(leaves)*stats),
		SplitStats:    make([]float64, len(leaves)*candidates*2*stats),
	}, nil
}

// NumLeaves returns the number of open leaves covered by the buffer.
func (b *LevelBuffer) NumLeaves() int { return len(b.Leaves) }

// Shape returns (leaves, candidates, stats).
func (b *LevelBuffer) Shape() []int { return []int{len(b.Leaves), b.NumCandidates, b.NumStats} }

// Leaf returns the statistics of buffer row r.
func (b *LevelBuffer) Leaf(r int) []float64 { return b.LeafStats[r*b.NumStats : (r+1)*b.NumStats] }

// Branch returns the statistics of one side (0 left, 1 right) of candidate
// c in buffer row r.
func (b *LevelBuffer) Branch(r, c, side int) []float64 {
	off := ((r*b.NumCandidates+c)*2 + side) * b.NumStats
	return b.SplitStats[off : off+b.NumStats]
}

// Merge adds other into b. Buffers of different shapes never merge.
func (b *LevelBuffer) Merge(other *LevelBuffer) error {
	if !slices.Equal(b.Shape(), other.Shape()) || !slices.Equal(b.Leaves, other.Leaves) ||
		len(b.SplitStats) != len(other.SplitStats) {
		return errors.NewShapeError("LevelBuffer.Merge", b.Shape(), other.Shape())
	}
	floats.Add(b.LeafStats, other.LeafStats)
	floats.Add(b.SplitStats, other.SplitStats)
	b.health.merge(other.health)
	return nil
}

// Clone returns a deep copy.
func (b *LevelBuffer) Clone() *LevelBuffer {
	c := *b
	c.Leaves = slices.Clone(b.Leaves)
	c.LeafStats = slices.Clone(b.LeafStats)
	c.SplitStats = slices.Clone(b.SplitStats)
	return &c
}

// LevelAccumulator gathers, in one pass, the statistics needed to choose a
// split for every open leaf of a tree. Accumulators over disjoint partitions
// combine with Merge in any order.
type LevelAccumulator struct {
	ctx     *TrainContext
	tree    *Tree
	leafRow []int // node -> buffer row, -1 when not open
	buf     *LevelBuffer
	delta   []float64
}

// NewLevelAccumulator prepares an empty accumulator for the open leaves of
// tree. The tree must not change while the accumulator is in use.
func NewLevelAccumulator(ctx *TrainContext, tree *Tree) (*LevelAccumulator, error) {
	if tree.NumStats != ctx.Params.NumStats() {
		return nil, errors.NewShapeError("NewLevelAccumulator", []int{ctx.Params.NumStats()}, []int{tree.NumStats})
	}
	leaves := tree.OpenLeaves()
	buf, err := newLevelBuffer(leaves, ctx.Table.NumCandidates(), tree.NumStats)
	if err != nil {
		return nil, err
	}
	leafRow := make([]int, tree.NumNodes())
	for i := range leafRow {
		leafRow[i] = -1
	}
	for r, n := range leaves {
		leafRow[n] = r
	}
	return &LevelAccumulator{
		ctx:     ctx,
		tree:    tree,
		leafRow: leafRow,
		buf:     buf,
		delta:   make([]float64, tree.NumStats),
	}, nil
}

// Accumulate adds one row. Rows reaching a finished leaf are counted and
// ignored. A faulty row marks the buffer terminated; later rows are ignored.
func (a *LevelAccumulator) Accumulate(row Row) {
	a.buf.Rows++
	if a.buf.Terminated() {
		return
	}
	if f := checkRow(a.ctx, row); f != nil {
		a.buf.fault(f)
		return
	}
	node := a.tree.routeTraining(row.Cat, row.Con)
	if node < 0 || node >= len(a.leafRow) {
		a.buf.fault(&rowFault{reason: "row routed to a non-existing node", schema: true})
		return
	}
	r := a.leafRow[node]
	if r < 0 {
		return
	}

	for i := range a.delta {
		a.delta[i] = 0
	}
	a.ctx.imp.add(a.delta, row.Response, row.Weight)
	floats.Add(a.buf.Leaf(r), a.delta)

	table := a.ctx.Table
	for f, v := range row.Cat {
		if IsNullCat(v) {
			continue
		}
		for l := 0; l < table.Levels(f); l++ {
			floats.Add(a.buf.Branch(r, table.catCandidate(f, l), side(v <= l)), a.delta)
		}
	}
	for f, x := range row.Con {
		if IsNullCon(x) {
			continue
		}
		for b := 0; b < table.NumBins(); b++ {
			floats.Add(a.buf.Branch(r, table.conCandidate(f, b), side(x <= table.Threshold(f, b))), a.delta)
		}
	}
}

func side(left bool) int {
	if left {
		return 0
	}
	return 1
}

// Merge adds the statistics of other into a.
func (a *LevelAccumulator) Merge(other *LevelAccumulator) error {
	return a.buf.Merge(other.buf)
}

// Buffer returns the accumulated statistics.
func (a *LevelAccumulator) Buffer() *LevelBuffer { return a.buf }

// routeTraining walks decided splits only. A row null on a split feature
// follows the majority branch. It returns the reached node, or -1 when the
// walk leaves the allocated tree.
func (t *Tree) routeTraining(cat []int, con []float64) int {
	n := 0
	for n < t.NumNodes() {
		fi := t.FeatureIndices[n]
		if fi == NodeNonExisting {
			return -1
		}
		if fi < 0 {
			return n
		}
		left, ok := t.primaryDecision(n, cat, con)
		if !ok {
			left = t.majorityLeft(n)
		}
		if left {
			n = Left(n)
		} else {
			n = Right(n)
		}
	}
	return -1
}

// primaryDecision evaluates the split of node n. ok is false when the row is
// null on the split feature.
func (t *Tree) primaryDecision(n int, cat []int, con []float64) (left, ok bool) {
	fi := t.FeatureIndices[n]
	if t.IsCategorical[n] {
		v := cat[fi]
		if IsNullCat(v) {
			return false, false
		}
		return float64(v) <= t.Thresholds[n], true
	}
	x := con[fi]
	if IsNullCon(x) {
		return false, false
	}
	return x <= t.Thresholds[n], true
}
