package tree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/madlib/archived-madlib-sub001/binning"
	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/dataset"
)

func TestRegressorFitPredict(t *testing.T) {
	X, y := stepData(40, 10, 30)
	reg := NewDecisionTreeRegressor(WithMinSplit(2), WithMinBucket(1), WithBins(4))
	require.NoError(t, reg.Fit(X, y))

	assert.Equal(t, 2, reg.GetNLeaves())
	assert.InDelta(t, 1, reg.Score(X, y), 1e-12)

	pred, err := reg.Predict(mat.NewDense(2, 2, []float64{3, 0, 33, 0}))
	require.NoError(t, err)
	assert.InDelta(t, 10, pred.At(0, 0), 1e-12)
	assert.InDelta(t, 30, pred.At(1, 0), 1e-12)
	assert.Equal(t, "mse", reg.GetParams()["criterion"])
}

func TestRegressorMaxDepthZeroIsRootOnly(t *testing.T) {
	X, y := stepData(40, 10, 30)
	reg := NewDecisionTreeRegressor(WithMaxDepth(0))
	require.NoError(t, reg.Fit(X, y))
	assert.Equal(t, 1, reg.GetNLeaves())

	pred, err := reg.Predict(mat.NewDense(1, 2, []float64{0, 0}))
	require.NoError(t, err)
	assert.InDelta(t, 20, pred.At(0, 0), 1e-12)
}

func TestRegressorFitSource(t *testing.T) {
	rows := make([]dtree.Row, 60)
	for i := range rows {
		level := i % 3
		rows[i] = dtree.Row{
			Cat:      []int{level},
			Con:      []float64{float64(i)},
			Response: float64(level * 10),
			Weight:   1,
		}
	}
	col := make([]float64, len(rows))
	for i, r := range rows {
		col[i] = r.Con[0]
	}
	splits, err := binning.ConSplits([][]float64{col}, 10)
	require.NoError(t, err)
	table, err := dtree.NewSplitCandidateTable([]int{3}, splits)
	require.NoError(t, err)

	reg := NewDecisionTreeRegressor(WithMinSplit(2), WithMinBucket(1), WithWorkers(3))
	require.NoError(t, reg.FitSource(context.Background(), dataset.NewMemorySource(rows), table))
	assert.Equal(t, 3, reg.GetNLeaves())

	// Categorical features come first in prediction matrices.
	pred, err := reg.Predict(mat.NewDense(3, 2, []float64{0, 7, 1, 7, 2, 7}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 10, 20}, mat.Col(nil, 0, pred))

	imp := reg.FeatureImportances()
	assert.InDelta(t, 1, imp[0], 1e-12)
}

func TestRegressorCancelled(t *testing.T) {
	X, y := stepData(40, 10, 30)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewDecisionTreeRegressor().FitContext(ctx, X, y)
	assert.ErrorIs(t, err, context.Canceled)
}
