package tree

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/dataset"
	"github.com/madlib/archived-madlib-sub001/metrics"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// DecisionTreeRegressor predicts the weighted mean response of the leaf a
// row reaches.
type DecisionTreeRegressor struct {
	estimator
}

// NewDecisionTreeRegressor creates a regressor splitting on squared error.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	return &DecisionTreeRegressor{estimator: newEstimator("DecisionTreeRegressor", "mse", opts)}
}

// Fit trains the regressor on X and the responses in column vector y.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")
	return dt.FitContext(context.Background(), X, y)
}

// FitContext is Fit with a context.
func (dt *DecisionTreeRegressor) FitContext(ctx context.Context, X, y mat.Matrix) error {
	nSamples, _ := X.Dims()
	src, err := dataset.FromMatrix(X, y, dt.catCols, nil)
	if err != nil {
		return err
	}
	table, err := dt.candidates(X)
	if err != nil {
		return err
	}
	p, err := dt.params(true, 0)
	if err != nil {
		return err
	}
	return dt.fit(ctx, src, table, p, nSamples)
}

// FitSource trains the regressor from a row source. Matrices passed to
// Predict afterwards hold the categorical features first.
func (dt *DecisionTreeRegressor) FitSource(ctx context.Context, src dataset.Source, table *dtree.SplitCandidateTable) error {
	dt.catCols = seq(table.NumCat())
	p, err := dt.params(true, 0)
	if err != nil {
		return err
	}
	return dt.fit(ctx, src, table, p, 0)
}

// SetTree installs a previously trained regression tree.
func (dt *DecisionTreeRegressor) SetTree(tree *dtree.Tree) error {
	if !tree.Regression {
		return errors.NewValueError("DecisionTreeRegressor.SetTree", "tree is a classification tree")
	}
	dt.install(tree)
	return nil
}

// Predict returns the predicted response of every row of X.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Predict")
	leaves, err := dt.leaves(X, "Predict")
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(leaves), 1, nil)
	for i, n := range leaves {
		out.Set(i, 0, dt.tree.Response(n))
	}
	return out, nil
}

// Score returns the coefficient of determination R² of the prediction.
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	r2, err := metrics.R2Score(column(y), column(pred))
	if err != nil {
		return 0
	}
	return r2
}
