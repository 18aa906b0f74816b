package tree

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/dataset"
	"github.com/madlib/archived-madlib-sub001/metrics"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// DecisionTreeClassifier predicts a class label by majority vote in the
// leaf a row reaches.
type DecisionTreeClassifier struct {
	estimator

	classes []float64 // Unique class labels, sorted
}

// NewDecisionTreeClassifier creates a classifier using the Gini index by
// default.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	return &DecisionTreeClassifier{estimator: newEstimator("DecisionTreeClassifier", "gini", opts)}
}

// Fit trains the classifier on X and the labels in column vector y.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")
	return dt.FitContext(context.Background(), X, y)
}

// FitContext is Fit with a context.
func (dt *DecisionTreeClassifier) FitContext(ctx context.Context, X, y mat.Matrix) error {
	nSamples, _ := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples != yRows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", 1, yCols, 1)
	}

	for i := 0; i < nSamples; i++ {
		if v := y.At(i, 0); math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NewValueError("DecisionTreeClassifier.Fit", fmt.Sprintf("label of row %d is not finite", i))
		}
	}
	dt.extractClasses(y)
	ids := mat.NewVecDense(nSamples, nil)
	for i := 0; i < nSamples; i++ {
		ids.SetVec(i, float64(dt.classIndex(y.At(i, 0))))
	}

	src, err := dataset.FromMatrix(X, ids, dt.catCols, nil)
	if err != nil {
		return err
	}
	table, err := dt.candidates(X)
	if err != nil {
		return err
	}
	p, err := dt.params(false, len(dt.classes))
	if err != nil {
		return err
	}
	return dt.fit(ctx, src, table, p, nSamples)
}

// FitSource trains the classifier from a row source whose responses are
// class ids in [0, nClasses). Matrices passed to Predict afterwards hold the
// categorical features first, then the continuous ones.
func (dt *DecisionTreeClassifier) FitSource(ctx context.Context, src dataset.Source, table *dtree.SplitCandidateTable, nClasses int) error {
	dt.classes = make([]float64, nClasses)
	for k := range dt.classes {
		dt.classes[k] = float64(k)
	}
	dt.catCols = seq(table.NumCat())
	p, err := dt.params(false, nClasses)
	if err != nil {
		return err
	}
	return dt.fit(ctx, src, table, p, 0)
}

// SetTree installs a previously trained tree, for instance one loaded from
// a store. Class labels are the class ids.
func (dt *DecisionTreeClassifier) SetTree(tree *dtree.Tree) error {
	if tree.Regression {
		return errors.NewValueError("DecisionTreeClassifier.SetTree", "tree is a regression tree")
	}
	dt.classes = make([]float64, tree.NumClasses())
	for k := range dt.classes {
		dt.classes[k] = float64(k)
	}
	dt.install(tree)
	return nil
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// extractClasses identifies unique class labels
func (dt *DecisionTreeClassifier) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	seen := make(map[float64]bool)
	dt.classes = dt.classes[:0]
	for i := 0; i < rows; i++ {
		label := y.At(i, 0)
		if !seen[label] {
			seen[label] = true
			dt.classes = append(dt.classes, label)
		}
	}
	sort.Float64s(dt.classes)
}

func (dt *DecisionTreeClassifier) classIndex(label float64) int {
	return sort.SearchFloat64s(dt.classes, label)
}

// Classes returns the class labels in the order of PredictProba columns.
func (dt *DecisionTreeClassifier) Classes() []float64 {
	return append([]float64(nil), dt.classes...)
}

// Predict returns the predicted label of every row of X.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Predict")
	leaves, err := dt.leaves(X, "Predict")
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(leaves), 1, nil)
	for i, n := range leaves {
		out.Set(i, 0, dt.classes[int(dt.tree.Response(n))])
	}
	return out, nil
}

// PredictProba returns the class distribution of the leaf each row reaches.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.PredictProba")
	leaves, err := dt.leaves(X, "PredictProba")
	if err != nil {
		return nil, err
	}
	k := len(dt.classes)
	out := mat.NewDense(len(leaves), k, nil)
	for i, n := range leaves {
		stats := dt.tree.Stats(n)
		var total float64
		for c := 0; c < k; c++ {
			total += stats[c]
		}
		if total == 0 {
			continue
		}
		for c := 0; c < k; c++ {
			out.Set(i, c, stats[c]/total)
		}
	}
	return out, nil
}

// Score returns the mean accuracy on the given test data
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	acc, err := metrics.Accuracy(column(y), column(pred))
	if err != nil {
		return 0
	}
	return acc
}
