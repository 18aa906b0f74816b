package dtree

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// surrogateRows splits on x0 <= 2; x1 <= 0.5 agrees with that split on nine
// of the ten rows.
func surrogateRows() []Row {
	var rows []Row
	for i := 0; i < 5; i++ {
		x1 := 0.0
		if i == 4 {
			x1 = 1
		}
		rows = append(rows, conRow(0, 1, x1))
	}
	for i := 0; i < 5; i++ {
		rows = append(rows, conRow(1, 3, 1))
	}
	return rows
}

func surrogateContext(t *testing.T) *TrainContext {
	p := classParams(2)
	p.MaxDepth = 1
	p.MaxSurrogates = 2
	return newContext(t, p, conTable(t, []float64{2}, []float64{0.5}))
}

func TestSurrogateRoutesMissingPrimary(t *testing.T) {
	ctx := surrogateContext(t)
	rows := surrogateRows()
	tree, _ := growTree(t, ctx, rows)
	require.Equal(t, 0, tree.FeatureIndices[0])
	require.Equal(t, 2.0, tree.Thresholds[0])

	acc, err := NewSurrogateAccumulator(ctx, tree, 0)
	require.NoError(t, err)
	for _, r := range rows {
		acc.Accumulate(r)
	}
	agree, disagree := acc.Buffer().Agreement(0, ctx.Table.conCandidate(1, 0))
	assert.Equal(t, 9.0, agree)
	assert.Equal(t, 1.0, disagree)

	require.NoError(t, SelectSurrogates(ctx, tree, acc.Buffer()))
	surr := tree.Surrogates(0)
	require.Len(t, surr, 1)
	assert.Equal(t, Surrogate{Feature: 1, Threshold: 0.5, Status: SurrogateConForward, Agreement: 9}, surr[0])

	// Without the surrogate a tie in non-null counts would send both rows left.
	leaf, err := tree.Search([]int{}, []float64{math.NaN(), 1})
	require.NoError(t, err)
	assert.Equal(t, 2, leaf)
	leaf, err = tree.Search([]int{}, []float64{math.NaN(), 0})
	require.NoError(t, err)
	assert.Equal(t, 1, leaf)

	// Both features null: majority branch.
	leaf, err = tree.Search([]int{}, []float64{math.NaN(), math.NaN()})
	require.NoError(t, err)
	assert.Equal(t, 1, leaf)
}

func TestSurrogatesDoNotChangeNullFreePredictions(t *testing.T) {
	ctx := surrogateContext(t)
	rows := surrogateRows()
	tree, _ := growTree(t, ctx, rows)

	before := make([]int, len(rows))
	for i, r := range rows {
		leaf, err := tree.Search(r.Cat, r.Con)
		require.NoError(t, err)
		before[i] = leaf
	}
	selectSurrogates(t, ctx, tree, rows)
	require.NotEmpty(t, tree.Surrogates(0))
	for i, r := range rows {
		leaf, err := tree.Search(r.Cat, r.Con)
		require.NoError(t, err)
		assert.Equal(t, before[i], leaf)
	}
}

func TestSurrogatesMustBeatMajority(t *testing.T) {
	ctx := surrogateContext(t)
	// x1 agrees with the primary split on four of eight rows, no better than
	// sending everything to the majority branch.
	rows := []Row{
		conRow(0, 1, 0), conRow(0, 1, 0), conRow(0, 1, 1), conRow(0, 1, 1),
		conRow(1, 3, 1), conRow(1, 3, 1), conRow(1, 3, 0), conRow(1, 3, 0),
	}
	tree, _ := growTree(t, ctx, rows)
	require.True(t, tree.IsSplit(0))
	selectSurrogates(t, ctx, tree, rows)

	assert.Empty(t, tree.Surrogates(0))
	for n := range tree.FeatureIndices {
		for _, s := range tree.Surrogates(n) {
			majority := math.Max(tree.NonNullSplitCount[2*n], tree.NonNullSplitCount[2*n+1])
			assert.Greater(t, s.Agreement, majority)
		}
	}
}

func TestSurrogateRankingAndReverse(t *testing.T) {
	p := classParams(2)
	p.MaxDepth = 1
	p.MaxSurrogates = 2
	ctx := newContext(t, p, conTable(t, []float64{2}, []float64{0.5}, []float64{0.5}))
	var rows []Row
	// x1 agrees on 9 rows, x2 is reversed and agrees on all 10.
	for i := 0; i < 5; i++ {
		x1 := 0.0
		if i == 0 {
			x1 = 1
		}
		rows = append(rows, conRow(0, 1, x1, 1), conRow(1, 3, 1, 0))
	}
	tree, _ := growTree(t, ctx, rows)
	selectSurrogates(t, ctx, tree, rows)

	surr := tree.Surrogates(0)
	require.Len(t, surr, 2)
	assert.Equal(t, Surrogate{Feature: 2, Threshold: 0.5, Status: SurrogateConReverse, Agreement: 10}, surr[0])
	assert.Equal(t, Surrogate{Feature: 1, Threshold: 0.5, Status: SurrogateConForward, Agreement: 9}, surr[1])

	leaf, err := tree.Search([]int{}, []float64{math.NaN(), 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 2, leaf, "reverse surrogate sends x2 <= 0.5 right")
}

func TestSurrogateOnDeeperLevel(t *testing.T) {
	p := classParams(2)
	p.MaxSurrogates = 1
	ctx := newContext(t, p, conTable(t, []float64{2, 4}, []float64{2, 4}))
	var rows []Row
	for i := 0; i < 3; i++ {
		rows = append(rows, conRow(0, 1, 1), conRow(1, 3, 3), conRow(0, 5, 5))
	}
	tree, _ := growTree(t, ctx, rows)
	require.GreaterOrEqual(t, tree.EffectiveDepth(), 3)
	selectSurrogates(t, ctx, tree, rows)

	for n := range tree.FeatureIndices {
		if tree.IsSplit(n) {
			assert.Len(t, tree.Surrogates(n), 1, "node %d", n)
		}
	}
	for _, r := range rows {
		want, err := tree.Predict(r.Cat, r.Con)
		require.NoError(t, err)
		got, err := tree.Predict(r.Cat, []float64{math.NaN(), r.Con[1]})
		require.NoError(t, err)
		assert.Equal(t, want, got, "x1 stands in for x0 at every level")
	}
}

func TestSurrogateAccumulatorMergeAndShape(t *testing.T) {
	ctx := surrogateContext(t)
	rows := surrogateRows()
	tree, _ := growTree(t, ctx, rows)

	run := func(rs []Row) *SurrogateAccumulator {
		acc, err := NewSurrogateAccumulator(ctx, tree, 0)
		require.NoError(t, err)
		for _, r := range rs {
			acc.Accumulate(r)
		}
		return acc
	}
	a, b := run(rows[:3]), run(rows[3:])
	require.NoError(t, a.Merge(b))
	assert.Equal(t, run(rows).Buffer(), a.Buffer())

	other := &SurrogateBuffer{Level: 1, NumCandidates: 2}
	assert.True(t, errors.Is(a.Buffer().Merge(other), errors.ErrShapeMismatch))

	_, err := NewSurrogateAccumulator(ctx, tree, 5)
	assert.Error(t, err)
}

func TestInvalidSurrogateStatusIsInvariantViolation(t *testing.T) {
	ctx := surrogateContext(t)
	tree, _ := growTree(t, ctx, surrogateRows())
	tree.SurrStatus[tree.surr(0, 0)] = 3
	tree.SurrIndices[tree.surr(0, 0)] = 1

	_, err := tree.Search([]int{}, []float64{math.NaN(), 0})
	require.Error(t, err)
	assert.True(t, errors.IsInvariantViolation(err))

	// Rows not null on the primary feature never consult surrogates.
	_, err = tree.Search([]int{}, []float64{1, 0})
	assert.NoError(t, err)
}
