package dtree

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinylib/msgp/msgp"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

func TestTreeCodecRoundTrip(t *testing.T) {
	ctx := surrogateContext(t)
	rows := surrogateRows()
	tree, _ := growTree(t, ctx, rows)
	selectSurrogates(t, ctx, tree, rows)

	data, err := tree.MarshalBinary()
	require.NoError(t, err)

	var decoded Tree
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, tree, &decoded)

	leaf, err := decoded.Search([]int{}, []float64{math.NaN(), 1})
	require.NoError(t, err)
	assert.Equal(t, 2, leaf)
}

func writeHeader(t *testing.T, header ...int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)
	require.NoError(t, w.WriteArrayHeader(uint32(len(header))))
	for _, v := range header {
		require.NoError(t, w.WriteInt(v))
	}
	require.NoError(t, w.WriteBool(false))
	require.NoError(t, w.Flush())
	return buf.Bytes()
}

func TestTreeDecodeValidatesHeaderFirst(t *testing.T) {
	cases := []struct {
		name     string
		header   []int
		sentinel error
	}{
		{"oversized", []int{FormatVersion, 31, 1 << 10, 8, 1, 1}, errors.ErrSizeLimit},
		{"depth", []int{FormatVersion, 0, 3, 0, 1, 1}, errors.ErrInvalidParameter},
		{"stats", []int{FormatVersion, 2, 1, 0, 1, 1}, errors.ErrInvalidParameter},
		{"surrogates", []int{FormatVersion, 2, 3, -1, 1, 1}, errors.ErrInvalidParameter},
		{"header length", []int{FormatVersion, 2, 3, 0, 1}, errors.ErrShapeMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var tree Tree
			err := tree.UnmarshalBinary(writeHeader(t, tc.header...))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.sentinel), "%v", err)
		})
	}

	var tree Tree
	assert.Error(t, tree.UnmarshalBinary(writeHeader(t, 99, 1, 3, 0, 1, 1)))
}

func TestTreeDecodeRejectsTruncatedArrays(t *testing.T) {
	ctx := newContext(t, classParams(2), conTable(t, []float64{2, 4, 6}))
	tree, _ := growTree(t, ctx, twoClassRows())
	data, err := tree.MarshalBinary()
	require.NoError(t, err)

	var decoded Tree
	assert.Error(t, decoded.UnmarshalBinary(data[:len(data)-5]))
}

func TestLevelBufferCodecRoundTrip(t *testing.T) {
	ctx := newContext(t, classParams(2), mixedTable(t))
	tree, err := ctx.NewTree()
	require.NoError(t, err)
	buf := accumulate(t, ctx, tree, integerRows(50, 9))
	buf.Status, buf.Reason = StatusTerminated, "non-finite response"

	var wire bytes.Buffer
	require.NoError(t, msgp.Encode(&wire, buf))
	var decoded LevelBuffer
	require.NoError(t, msgp.Decode(&wire, &decoded))
	assert.Equal(t, buf, &decoded)
}

func TestLevelBufferDecodeRejectsUnknownStatus(t *testing.T) {
	ctx := newContext(t, classParams(2), conTable(t, []float64{2, 4, 6}))
	tree, err := ctx.NewTree()
	require.NoError(t, err)
	buf := accumulate(t, ctx, tree, twoClassRows())

	for _, st := range []Status{-1, StatusSchema + 1} {
		buf.Status = st
		var wire bytes.Buffer
		require.NoError(t, msgp.Encode(&wire, buf))
		var decoded LevelBuffer
		err := msgp.Decode(&wire, &decoded)
		require.Error(t, err, "status %d", st)
		assert.True(t, errors.Is(err, errors.ErrInvalidParameter), "%v", err)
	}
}
