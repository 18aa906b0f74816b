package dtree

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

func mixedTable(t *testing.T) *SplitCandidateTable {
	t.Helper()
	table, err := NewSplitCandidateTable([]int{3}, mat.NewDense(2, 2, []float64{0, 5, -1, 1}))
	require.NoError(t, err)
	return table
}

// integerRows draws rows whose statistics sum exactly in float64.
func integerRows(n int, seed uint64) []Row {
	rng := rand.New(rand.NewPCG(seed, 7))
	rows := make([]Row, n)
	for i := range rows {
		cat := rng.IntN(4) - 1 // includes NullLevel
		con := []float64{float64(rng.IntN(10)), float64(rng.IntN(5) - 2)}
		if rng.IntN(6) == 0 {
			con[1] = math.NaN()
		}
		rows[i] = Row{Cat: []int{cat}, Con: con, Response: float64(rng.IntN(2)), Weight: float64(1 + rng.IntN(2))}
	}
	return rows
}

func TestAccumulateLeafAndBranchStats(t *testing.T) {
	ctx := newContext(t, classParams(2), mixedTable(t))
	tree, err := ctx.NewTree()
	require.NoError(t, err)

	buf := accumulate(t, ctx, tree, []Row{
		{Cat: []int{0}, Con: []float64{3, 0.5}, Response: 1, Weight: 2},
		{Cat: []int{NullLevel}, Con: []float64{6, math.NaN()}, Response: 0, Weight: 1},
	})
	require.False(t, buf.Terminated())
	assert.Equal(t, []int{1, 3 + 2*2, 3}, buf.Shape())
	assert.Equal(t, []float64{1, 2, 2}, buf.Leaf(0))

	table := ctx.Table
	// Level bound 0: the first row goes left, the second is null and skipped.
	assert.Equal(t, []float64{0, 2, 1}, buf.Branch(0, table.catCandidate(0, 0), 0))
	assert.Equal(t, []float64{0, 0, 0}, buf.Branch(0, table.catCandidate(0, 0), 1))
	// x0 <= 5: first row left, second right.
	assert.Equal(t, []float64{0, 2, 1}, buf.Branch(0, table.conCandidate(0, 1), 0))
	assert.Equal(t, []float64{1, 0, 1}, buf.Branch(0, table.conCandidate(0, 1), 1))
	// x1 <= 1: only the first row is non-null.
	assert.Equal(t, []float64{0, 2, 1}, buf.Branch(0, table.conCandidate(1, 1), 0))
	assert.Equal(t, int64(2), buf.Rows)
}

func TestMergeIsAssociativeAndCommutative(t *testing.T) {
	ctx := newContext(t, classParams(2), mixedTable(t))
	tree, err := ctx.NewTree()
	require.NoError(t, err)
	// Split the root first so rows are routed, including null routing.
	require.False(t, round(t, ctx, tree, integerRows(200, 1)))

	rows := integerRows(300, 2)
	part := func(lo, hi int) *LevelBuffer { return accumulate(t, ctx, tree, rows[lo:hi]) }

	ab := part(0, 100)
	require.NoError(t, ab.Merge(part(100, 180)))
	abc := ab.Clone()
	require.NoError(t, abc.Merge(part(180, 300)))

	bc := part(100, 180)
	require.NoError(t, bc.Merge(part(180, 300)))
	aBC := part(0, 100)
	require.NoError(t, aBC.Merge(bc))

	cab := part(180, 300)
	require.NoError(t, cab.Merge(part(0, 100)))
	require.NoError(t, cab.Merge(part(100, 180)))

	whole := part(0, 300)
	assert.Equal(t, whole, abc)
	assert.Equal(t, whole, aBC)
	assert.Equal(t, whole, cab)
}

func TestMergeShapeMismatch(t *testing.T) {
	ctx := newContext(t, classParams(2), mixedTable(t))
	other := newContext(t, classParams(2), conTable(t, []float64{1, 2}))
	tree, err := ctx.NewTree()
	require.NoError(t, err)
	otherTree, err := other.NewTree()
	require.NoError(t, err)

	a := accumulate(t, ctx, tree, nil)
	b := accumulate(t, other, otherTree, nil)
	err = a.Merge(b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrShapeMismatch))

	var shapeErr *errors.ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, []int{1, 7, 3}, shapeErr.Want)
	assert.Equal(t, []int{1, 2, 3}, shapeErr.Got)
}

func TestAccumulateTerminates(t *testing.T) {
	cases := []struct {
		name   string
		row    Row
		schema bool
	}{
		{"nan response", Row{Cat: []int{0}, Con: []float64{1, 1}, Response: math.NaN(), Weight: 1}, false},
		{"infinite response", Row{Cat: []int{0}, Con: []float64{1, 1}, Response: math.Inf(1), Weight: 1}, false},
		{"infinite feature", Row{Cat: []int{0}, Con: []float64{math.Inf(-1), 1}, Response: 0, Weight: 1}, false},
		{"negative weight", Row{Cat: []int{0}, Con: []float64{1, 1}, Response: 0, Weight: -1}, false},
		{"width", Row{Cat: []int{0}, Con: []float64{1}, Response: 0, Weight: 1}, false},
		{"level out of range", Row{Cat: []int{3}, Con: []float64{1, 1}, Response: 0, Weight: 1}, true},
		{"class out of range", Row{Cat: []int{0}, Con: []float64{1, 1}, Response: 2, Weight: 1}, true},
		{"fractional class", Row{Cat: []int{0}, Con: []float64{1, 1}, Response: 0.5, Weight: 1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := newContext(t, classParams(2), mixedTable(t))
			tree, err := ctx.NewTree()
			require.NoError(t, err)

			good := Row{Cat: []int{1}, Con: []float64{2, 0}, Response: 1, Weight: 1}
			buf := accumulate(t, ctx, tree, []Row{good, tc.row, good})
			require.True(t, buf.Terminated())
			assert.Equal(t, int64(3), buf.Rows)
			assert.Equal(t, []float64{0, 1, 1}, buf.Leaf(0), "rows after the fault are ignored")

			err = buf.Err("Accumulate")
			if tc.schema {
				assert.True(t, errors.Is(err, errors.ErrSchema))
			} else {
				assert.True(t, errors.Is(err, errors.ErrTerminated))
			}

			// A terminated buffer still merges and stays terminated.
			clean := accumulate(t, ctx, tree, []Row{good})
			require.NoError(t, clean.Merge(buf))
			assert.True(t, clean.Terminated())
			assert.Equal(t, buf.Reason, clean.Reason)

			_, err = Expand(ctx, tree, clean)
			assert.Error(t, err)
		})
	}
}

func TestAccumulateNullFollowsMajority(t *testing.T) {
	ctx := newContext(t, classParams(2), conTable(t, []float64{2, 4}, []float64{0, 1}))
	tree, err := ctx.NewTree()
	require.NoError(t, err)
	require.NoError(t, tree.Grow())
	tree.FeatureIndices[0] = 0
	tree.Thresholds[0] = 2
	tree.FeatureIndices[1] = InProcessLeaf
	tree.FeatureIndices[2] = InProcessLeaf
	tree.NonNullSplitCount[0], tree.NonNullSplitCount[1] = 3, 5

	buf := accumulate(t, ctx, tree, []Row{conRow(1, math.NaN(), 0)})
	require.Equal(t, []int{1, 2}, buf.Leaves)
	assert.Equal(t, []float64{0, 0, 0}, buf.Leaf(0))
	assert.Equal(t, []float64{0, 1, 1}, buf.Leaf(1))
}

func TestAccumulatorSizeLimit(t *testing.T) {
	levels := make([]int, 200)
	for i := range levels {
		levels[i] = 1 << 20
	}
	table, err := NewSplitCandidateTable(levels, nil)
	require.NoError(t, err)
	ctx := newContext(t, classParams(2), table)
	tree, err := ctx.NewTree()
	require.NoError(t, err)

	_, err = NewLevelAccumulator(ctx, tree)
	assert.True(t, errors.Is(err, errors.ErrSizeLimit))
}
