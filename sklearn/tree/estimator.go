// Package tree provides CART decision tree estimators in the style of
// scikit-learn. Trees are grown level by level from streamed rows, so the
// same estimator trains from an in-memory matrix or from any
// dataset.Source such as a database table:
//
//	clf := tree.NewDecisionTreeClassifier(tree.WithMaxDepth(5), tree.WithFolds(10))
//	if err := clf.Fit(X, y); err != nil {
//		return err
//	}
//	pred, err := clf.Predict(Xtest)
package tree

import (
	"context"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/madlib/archived-madlib-sub001/binning"
	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/core/model"
	"github.com/madlib/archived-madlib-sub001/core/parallel"
	"github.com/madlib/archived-madlib-sub001/dataset"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// estimator holds what both tree estimators share: hyperparameters, the
// fitted tree and the layout of the training matrix.
type estimator struct {
	State *model.StateManager

	// Hyperparameters
	criterion      string  // "gini", "entropy", "misclass" or "mse"
	maxDepth       int     // Maximum depth of a node, the root being at depth 0
	minSplit       int     // Minimum rows for a node to be split
	minBucket      int     // Minimum rows in each child of a split
	maxSurrogates  int     // Surrogate splits kept per node
	randomFeatures int     // Features sampled per node (0 = all)
	seed           uint64  // Seed of the feature sampler
	workers        int     // Concurrent accumulators per pass (0 = GOMAXPROCS)
	cp             float64 // Complexity parameter applied after growth
	folds          int     // Cross-validation folds for choosing cp (0 = off)
	oneSE          bool    // Use the one standard error rule when cross-validating
	nBins          int     // Intervals per continuous feature
	catCols        []int   // Columns of X holding categorical level codes

	// Fitted state
	tree  *dtree.Tree
	table *dtree.SplitCandidateTable
	path  []PathPoint
	name  string
}

// Option configures a DecisionTreeClassifier or DecisionTreeRegressor.
type Option func(*estimator)

func newEstimator(name, criterion string, opts []Option) estimator {
	d := dtree.DefaultParams()
	e := estimator{
		State:     model.NewStateManager(),
		criterion: criterion,
		maxDepth:  d.MaxDepth,
		minSplit:  d.MinSplit,
		minBucket: d.MinBucket,
		nBins:     binning.DefaultBins,
		name:      name,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// WithCriterion sets the impurity criterion: "gini", "entropy" or
// "misclass" for classification, "mse" for regression.
func WithCriterion(criterion string) Option {
	return func(e *estimator) { e.criterion = criterion }
}

// WithMaxDepth sets the maximum node depth.
func WithMaxDepth(depth int) Option {
	return func(e *estimator) { e.maxDepth = depth }
}

// WithMinSplit sets the minimum number of rows a node needs to be split.
func WithMinSplit(n int) Option {
	return func(e *estimator) { e.minSplit = n }
}

// WithMinBucket sets the minimum number of rows in each child.
func WithMinBucket(n int) Option {
	return func(e *estimator) { e.minBucket = n }
}

// WithMaxSurrogates sets the number of surrogate splits kept per node.
func WithMaxSurrogates(n int) Option {
	return func(e *estimator) { e.maxSurrogates = n }
}

// WithRandomFeatures makes every node choose its split among n randomly
// drawn features.
func WithRandomFeatures(n int) Option {
	return func(e *estimator) { e.randomFeatures = n }
}

// WithSeed seeds the feature sampler.
func WithSeed(seed uint64) Option {
	return func(e *estimator) { e.seed = seed }
}

// WithWorkers sets the number of concurrent accumulators.
func WithWorkers(n int) Option {
	return func(e *estimator) { e.workers = n }
}

// WithCP prunes the grown tree with complexity parameter cp.
func WithCP(cp float64) Option {
	return func(e *estimator) { e.cp = cp }
}

// WithFolds chooses cp by k-fold cross-validation.
func WithFolds(k int) Option {
	return func(e *estimator) { e.folds = k }
}

// WithOneSE applies the one standard error rule to cross-validation.
func WithOneSE(on bool) Option {
	return func(e *estimator) { e.oneSE = on }
}

// WithBins sets the number of intervals each continuous feature is cut into.
func WithBins(n int) Option {
	return func(e *estimator) { e.nBins = n }
}

// WithCategorical marks columns of X as categorical. Their values must be
// integer level codes; negative or NaN values are missing.
func WithCategorical(cols ...int) Option {
	return func(e *estimator) { e.catCols = append([]int(nil), cols...) }
}

func (e *estimator) params(regression bool, nClasses int) (dtree.Params, error) {
	criterion, err := dtree.ParseCriterion(e.criterion)
	if err != nil {
		return dtree.Params{}, err
	}
	return dtree.Params{
		Regression:        regression,
		Criterion:         criterion,
		NumClasses:        nClasses,
		MinSplit:          e.minSplit,
		MinBucket:         e.minBucket,
		MaxDepth:          e.maxDepth,
		MaxSurrogates:     e.maxSurrogates,
		NumRandomFeatures: e.randomFeatures,
		Seed:              e.seed,
	}, nil
}

func (e *estimator) trainer(p dtree.Params) *Trainer {
	return &Trainer{
		Params:  p,
		Workers: e.workers,
		CP:      e.cp,
		Folds:   e.folds,
		OneSE:   e.oneSE,
		Name:    e.name,
	}
}

// candidates builds the split candidate table of a training matrix.
func (e *estimator) candidates(X mat.Matrix) (*dtree.SplitCandidateTable, error) {
	rows, cols := X.Dims()
	levels := make([]int, len(e.catCols))
	for j, c := range e.catCols {
		if c < 0 || c >= cols {
			return nil, errors.NewValidationError("categorical", "column out of range", c)
		}
		levels[j] = 1
		for i := 0; i < rows; i++ {
			v := X.At(i, c)
			if math.IsNaN(v) || v < 0 {
				continue
			}
			if v != math.Trunc(v) {
				return nil, errors.NewValueError(e.name+".Fit", fmt.Sprintf("column %d holds non-integer level %v", c, v))
			}
			levels[j] = max(levels[j], int(v)+1)
		}
	}
	conCols := dataset.ConColumns(cols, e.catCols)
	var splits *mat.Dense
	if len(conCols) > 0 {
		var err error
		splits, err = binning.ConSplits(binning.Columns(X, conCols), e.nBins)
		if err != nil {
			return nil, err
		}
	}
	return dtree.NewSplitCandidateTable(levels, splits)
}

func (e *estimator) fit(ctx context.Context, src dataset.Source, table *dtree.SplitCandidateTable, p dtree.Params, nSamples int) error {
	tree, path, err := e.trainer(p).Train(ctx, src, table)
	if err != nil {
		return err
	}
	e.tree, e.table, e.path = tree, table, path
	e.State.SetDimensions(table.NumFeatures(), nSamples)
	e.State.SetFitted()
	return nil
}

// install makes tree the fitted tree of e. Only the categorical layout of
// the tree is known, so categorical features come first.
func (e *estimator) install(tree *dtree.Tree) {
	e.tree, e.table, e.path = tree, nil, nil
	e.catCols = seq(tree.NumCat)
	e.State.SetDimensions(tree.NumCat+tree.NumCon, 0)
	e.State.SetFitted()
}

// column copies the first column of m.
func column(m mat.Matrix) *mat.VecDense {
	r, _ := m.Dims()
	if r == 0 {
		return nil
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, m))
}

// split separates the categorical and continuous values of row i of X.
func (e *estimator) split(X mat.Matrix, i int, conCols []int) ([]int, []float64) {
	cat := make([]int, len(e.catCols))
	for j, c := range e.catCols {
		v := X.At(i, c)
		if math.IsNaN(v) || v < 0 {
			cat[j] = dtree.NullLevel
			continue
		}
		cat[j] = int(v)
	}
	con := make([]float64, len(conCols))
	for j, c := range conCols {
		con[j] = X.At(i, c)
	}
	return cat, con
}

// leaves routes every row of X to its leaf.
func (e *estimator) leaves(X mat.Matrix, method string) ([]int, error) {
	if !e.State.IsFitted() {
		return nil, errors.NewNotFittedError(e.name, method)
	}
	rows, cols := X.Dims()
	nFeatures, _ := e.State.Dimensions()
	if cols != nFeatures {
		return nil, errors.NewDimensionError(e.name+"."+method, nFeatures, cols, 1)
	}
	conCols := dataset.ConColumns(cols, e.catCols)
	out := make([]int, rows)

	// Each range stops at its first failure; the lowest failing row wins.
	var mu sync.Mutex
	badRow, firstErr := rows, error(nil)
	parallel.ParallelizeWithThreshold(rows, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			cat, con := e.split(X, i, conCols)
			leaf, err := e.tree.Search(cat, con)
			if err != nil {
				mu.Lock()
				if i < badRow {
					badRow, firstErr = i, err
				}
				mu.Unlock()
				return
			}
			out[i] = leaf
		}
	})
	if firstErr != nil {
		return nil, errors.Wrapf(firstErr, "row %d", badRow)
	}
	return out, nil
}

// parallelThreshold is the row count from which leaves are searched in
// parallel.
const parallelThreshold = 1000

// Apply returns the index of the leaf each row of X falls in.
func (e *estimator) Apply(X mat.Matrix) ([]int, error) {
	return e.leaves(X, "Apply")
}

// Tree returns the fitted tree.
func (e *estimator) Tree() *dtree.Tree { return e.tree }

// ComplexityTable returns the cross-validated cost-complexity table, or nil
// when cross-validation was not requested.
func (e *estimator) ComplexityTable() []PathPoint { return e.path }

// ComplexityPath returns the complexity parameters at which the fitted
// tree loses splits, largest first.
func (e *estimator) ComplexityPath() ([]float64, error) {
	if !e.State.IsFitted() {
		return nil, errors.NewNotFittedError(e.name, "ComplexityPath")
	}
	return dtree.ComplexityPath(e.tree)
}

// Prune prunes the fitted tree in place with complexity parameter alpha.
func (e *estimator) Prune(alpha float64) (dtree.PruneResult, error) {
	if !e.State.IsFitted() {
		return dtree.PruneResult{}, errors.NewNotFittedError(e.name, "Prune")
	}
	return prune(e.tree, alpha, e.name)
}

// FeatureImportances returns the impurity-reduction importance of every
// column of the training matrix, summing to 1 when the tree has a split.
func (e *estimator) FeatureImportances() []float64 {
	if !e.State.IsFitted() {
		return nil
	}
	imp := dtree.FeatureImportance(e.tree)
	nFeatures, _ := e.State.Dimensions()
	out := make([]float64, nFeatures)
	for j, c := range e.catCols {
		out[c] = imp.Cat[j]
	}
	for j, c := range dataset.ConColumns(nFeatures, e.catCols) {
		out[c] = imp.Con[j]
	}
	if total := floats.Sum(out); total > 0 {
		floats.Scale(1/total, out)
	}
	return out
}

// GetDepth returns the number of levels of the fitted tree.
func (e *estimator) GetDepth() int {
	if e.tree == nil {
		return 0
	}
	return e.tree.EffectiveDepth()
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (e *estimator) GetNLeaves() int {
	if e.tree == nil {
		return 0
	}
	return e.tree.NumLeaves()
}

// GetParams returns the model hyperparameters
func (e *estimator) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         e.criterion,
		"max_depth":         e.maxDepth,
		"min_split":         e.minSplit,
		"min_bucket":        e.minBucket,
		"max_surrogates":    e.maxSurrogates,
		"n_random_features": e.randomFeatures,
		"random_state":      e.seed,
		"n_jobs":            e.workers,
		"cp":                e.cp,
		"n_folds":           e.folds,
		"one_se":            e.oneSE,
		"n_bins":            e.nBins,
		"categorical":       append([]int(nil), e.catCols...),
	}
}

// SetParams sets the model hyperparameters
func (e *estimator) SetParams(params map[string]interface{}) (err error) {
	defer errors.Recover(&err, e.name+".SetParams")
	for key, value := range params {
		switch key {
		case "criterion":
			e.criterion = value.(string)
		case "max_depth":
			e.maxDepth = value.(int)
		case "min_split":
			e.minSplit = value.(int)
		case "min_bucket":
			e.minBucket = value.(int)
		case "max_surrogates":
			e.maxSurrogates = value.(int)
		case "n_random_features":
			e.randomFeatures = value.(int)
		case "random_state":
			e.seed = value.(uint64)
		case "n_jobs":
			e.workers = value.(int)
		case "cp":
			e.cp = value.(float64)
		case "n_folds":
			e.folds = value.(int)
		case "one_se":
			e.oneSE = value.(bool)
		case "n_bins":
			e.nBins = value.(int)
		case "categorical":
			e.catCols = append([]int(nil), value.([]int)...)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}
