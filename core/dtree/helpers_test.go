package dtree

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// conTable builds a table of continuous features sharing nothing but the
// bin count.
func conTable(t *testing.T, thresholds ...[]float64) *SplitCandidateTable {
	t.Helper()
	bins := len(thresholds[0])
	data := make([]float64, 0, len(thresholds)*bins)
	for _, row := range thresholds {
		require.Len(t, row, bins)
		data = append(data, row...)
	}
	table, err := NewSplitCandidateTable(nil, mat.NewDense(len(thresholds), bins, data))
	require.NoError(t, err)
	return table
}

func classParams(k int) Params {
	return Params{Criterion: Gini, NumClasses: k, MinSplit: 2, MinBucket: 1, MaxDepth: 3}
}

func newContext(t *testing.T, p Params, table *SplitCandidateTable) *TrainContext {
	t.Helper()
	ctx, err := NewTrainContext(p, table)
	require.NoError(t, err)
	return ctx
}

func conRow(y float64, xs ...float64) Row {
	return Row{Cat: []int{}, Con: xs, Response: y, Weight: 1}
}

// twoClassRows separates class 0 (x <= 2) from class 1 (x > 2).
func twoClassRows() []Row {
	xs := []float64{1, 1, 2, 2, 3, 3, 5, 5}
	rows := make([]Row, len(xs))
	for i, x := range xs {
		y := 0.0
		if x > 2 {
			y = 1
		}
		rows[i] = conRow(y, x)
	}
	return rows
}

// accumulate runs one level pass over rows with a single accumulator.
func accumulate(t *testing.T, ctx *TrainContext, tree *Tree, rows []Row) *LevelBuffer {
	t.Helper()
	acc, err := NewLevelAccumulator(ctx, tree)
	require.NoError(t, err)
	for _, r := range rows {
		acc.Accumulate(r)
	}
	return acc.Buffer()
}

// round runs one accumulate and expand step.
func round(t *testing.T, ctx *TrainContext, tree *Tree, rows []Row) bool {
	t.Helper()
	done, err := Expand(ctx, tree, accumulate(t, ctx, tree, rows))
	require.NoError(t, err)
	return done
}

// growTree trains a full tree and returns it with the number of rounds.
func growTree(t *testing.T, ctx *TrainContext, rows []Row) (*Tree, int) {
	t.Helper()
	tree, err := ctx.NewTree()
	require.NoError(t, err)
	rounds := 0
	for {
		rounds++
		require.Less(t, rounds, 64, "training did not terminate")
		if round(t, ctx, tree, rows) {
			return tree, rounds
		}
	}
}

// selectSurrogates runs every surrogate level of a grown tree.
func selectSurrogates(t *testing.T, ctx *TrainContext, tree *Tree, rows []Row) {
	t.Helper()
	for level := 0; level < tree.EffectiveDepth()-1; level++ {
		acc, err := NewSurrogateAccumulator(ctx, tree, level)
		require.NoError(t, err)
		for _, r := range rows {
			acc.Accumulate(r)
		}
		require.NoError(t, SelectSurrogates(ctx, tree, acc.Buffer()))
	}
}

// gini returns the Gini impurity of class weights.
func gini(w ...float64) float64 {
	var total float64
	for _, v := range w {
		total += v
	}
	g := 1.0
	for _, v := range w {
		g -= (v / total) * (v / total)
	}
	return g
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
