package tree

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

func TestClassifierFitPredict(t *testing.T) {
	X, y := stepData(40, 3, 7)
	clf := NewDecisionTreeClassifier(WithMinSplit(2), WithMinBucket(1), WithBins(4))
	require.NoError(t, clf.Fit(X, y))

	assert.Equal(t, []float64{3, 7}, clf.Classes())
	assert.Equal(t, 2, clf.GetNLeaves())
	assert.Equal(t, 2, clf.GetDepth())
	assert.Equal(t, 1.0, clf.Score(X, y))

	test := mat.NewDense(2, 2, []float64{5, 1, 35, 1})
	pred, err := clf.Predict(test)
	require.NoError(t, err)
	assert.Equal(t, 3.0, pred.At(0, 0))
	assert.Equal(t, 7.0, pred.At(1, 0))

	proba, err := clf.PredictProba(test)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, mat.Row(nil, 0, proba))
	assert.Equal(t, []float64{0, 1}, mat.Row(nil, 1, proba))

	imp := clf.FeatureImportances()
	assert.InDelta(t, 1, imp[0], 1e-12)
	assert.Zero(t, imp[1])

	leaves, err := clf.Apply(test)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, leaves)
}

func TestClassifierCategorical(t *testing.T) {
	n := 30
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i%3))
		if i%3 == 2 {
			y.Set(i, 0, 1)
		}
	}
	clf := NewDecisionTreeClassifier(WithCategorical(0), WithMinSplit(2), WithMinBucket(1))
	require.NoError(t, clf.Fit(X, y))
	assert.True(t, clf.Tree().IsCategorical[0])

	pred, err := clf.Predict(mat.NewDense(3, 1, []float64{0, 2, math.NaN()}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0}, mat.Col(nil, 0, pred))

	X.Set(0, 0, 0.5)
	err = NewDecisionTreeClassifier(WithCategorical(0)).Fit(X, y)
	assert.Error(t, err)
}

func TestClassifierErrors(t *testing.T) {
	clf := NewDecisionTreeClassifier()
	_, err := clf.Predict(mat.NewDense(1, 2, nil))
	assert.True(t, errors.Is(err, errors.ErrNotFitted))
	assert.Nil(t, clf.FeatureImportances())

	X, y := stepData(10, 0, 1)
	err = clf.Fit(X, mat.NewDense(9, 1, nil))
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))

	y.Set(0, 0, math.NaN())
	assert.Error(t, clf.Fit(X, y))

	y.Set(0, 0, 0)
	bad := NewDecisionTreeClassifier(WithCriterion("mse"))
	assert.Error(t, bad.Fit(X, y))

	fitted := NewDecisionTreeClassifier(WithMinSplit(2), WithMinBucket(1))
	require.NoError(t, fitted.Fit(X, y))
	_, err = fitted.Predict(mat.NewDense(1, 3, nil))
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))
}

func TestClassifierParams(t *testing.T) {
	clf := NewDecisionTreeClassifier(WithMaxDepth(4), WithCP(0.01))
	params := clf.GetParams()
	assert.Equal(t, "gini", params["criterion"])
	assert.Equal(t, 4, params["max_depth"])
	assert.Equal(t, 0.01, params["cp"])

	require.NoError(t, clf.SetParams(map[string]interface{}{"criterion": "entropy", "n_folds": 5}))
	assert.Equal(t, "entropy", clf.GetParams()["criterion"])
	assert.Equal(t, 5, clf.GetParams()["n_folds"])

	err := clf.SetParams(map[string]interface{}{"learning_rate": 0.1})
	assert.True(t, errors.Is(err, errors.ErrInvalidParameter))

	// A value of the wrong type is reported, not panicked on.
	assert.Error(t, clf.SetParams(map[string]interface{}{"max_depth": "deep"}))
}

func TestClassifierCrossValidation(t *testing.T) {
	X, y := noisyData(200)
	clf := NewDecisionTreeClassifier(WithMinSplit(2), WithMinBucket(1), WithMaxDepth(6), WithFolds(5), WithBins(20))
	require.NoError(t, clf.Fit(X, y))

	table := clf.ComplexityTable()
	require.NotEmpty(t, table)
	assert.Zero(t, table[len(table)-1].CP)
	for i := 1; i < len(table); i++ {
		assert.LessOrEqual(t, table[i].CP, table[i-1].CP)
		assert.GreaterOrEqual(t, table[i].NumSplits, table[i-1].NumSplits)
	}
	for _, p := range table {
		assert.GreaterOrEqual(t, p.XError, 0.0)
		assert.GreaterOrEqual(t, p.XStd, 0.0)
	}

	found := false
	for _, p := range table {
		if p.NumSplits == clf.Tree().NumSplits() {
			found = true
		}
	}
	assert.True(t, found, "the selected tree is one of the candidate subtrees")
	assert.Greater(t, clf.Score(X, y), 0.8)
}

func TestClassifierSetTree(t *testing.T) {
	clf := NewDecisionTreeClassifier()
	require.NoError(t, clf.SetTree(handTree(t)))
	assert.Equal(t, []float64{0, 1}, clf.Classes())

	pred, err := clf.Predict(mat.NewDense(3, 1, []float64{1, 3, 5}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1}, mat.Col(nil, 0, pred))

	res, err := clf.Prune(0.3)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NumSplits)

	reg := NewDecisionTreeRegressor()
	assert.Error(t, reg.SetTree(handTree(t)))
}

func TestApplyLargeBatch(t *testing.T) {
	X, y := stepData(2000, 0, 1)
	clf := NewDecisionTreeClassifier(WithMinSplit(2), WithMinBucket(1), WithMaxDepth(3))
	require.NoError(t, clf.Fit(X, y))

	leaves, err := clf.Apply(X)
	require.NoError(t, err)
	require.Len(t, leaves, 2000)
	tr := clf.Tree()
	for i := 0; i < 2000; i += 97 {
		want, err := tr.Search([]int{}, []float64{X.At(i, 0), X.At(i, 1)})
		require.NoError(t, err)
		assert.Equal(t, want, leaves[i], "row %d", i)
	}

	// Break the right branch: the lowest row routed there is reported.
	require.Equal(t, 0, tr.FeatureIndices[0])
	first := int(math.Floor(tr.Thresholds[0])) + 1
	tr.FeatureIndices[2] = dtree.NodeNonExisting
	_, err = clf.Apply(X)
	require.Error(t, err)
	assert.True(t, errors.IsInvariantViolation(err))
	assert.Contains(t, err.Error(), fmt.Sprintf("row %d", first))
}
