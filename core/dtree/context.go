package dtree

import (
	"math/rand/v2"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// Params controls tree growth.
type Params struct {
	Regression        bool      // Regression (variance) instead of classification
	Criterion         Criterion // Impurity measure; MSE is forced for regression
	NumClasses        int       // Number of classes, classification only
	MinSplit          int       // Minimum rows in a leaf for it to be split
	MinBucket         int       // Minimum rows in each branch of a split
	MaxDepth          int       // Maximum node depth, root is depth 0
	MaxSurrogates     int       // Surrogate slots per node
	NumRandomFeatures int       // Features sampled per leaf, 0 uses all
	Seed              uint64    // Seed of the feature sampler
}

// DefaultParams returns the conventional CART defaults.
func DefaultParams() Params {
	return Params{
		Criterion: Gini,
		MinSplit:  20,
		MinBucket: 7,
		MaxDepth:  7,
	}
}

// MaxTreeDepth bounds Params.MaxDepth. Deeper trees cannot be allocated
// within MaxStateBytes even before statistics are counted.
const MaxTreeDepth = 30

// Validate checks the parameters against the candidate table.
func (p Params) Validate(table *SplitCandidateTable) error {
	switch {
	case p.MinSplit < 1:
		return errors.NewValidationError("min_split", "must be at least 1", p.MinSplit)
	case p.MinBucket < 1:
		return errors.NewValidationError("min_bucket", "must be at least 1", p.MinBucket)
	case p.MaxDepth < 0 || p.MaxDepth > MaxTreeDepth:
		return errors.NewValidationError("max_depth", "must be in [0, 30]", p.MaxDepth)
	case p.MaxSurrogates < 0:
		return errors.NewValidationError("max_surrogates", "must be non-negative", p.MaxSurrogates)
	case p.NumRandomFeatures < 0:
		return errors.NewValidationError("n_random_features", "must be non-negative", p.NumRandomFeatures)
	}
	if !p.Regression {
		if p.NumClasses < 2 {
			return errors.NewValidationError("n_classes", "classification needs at least 2 classes", p.NumClasses)
		}
		if p.Criterion == MSE {
			return errors.NewValidationError("criterion", "mse is a regression criterion", p.Criterion.String())
		}
	}
	if table != nil && p.NumRandomFeatures > table.NumFeatures() {
		return errors.NewValidationError("n_random_features", "exceeds the number of features", p.NumRandomFeatures)
	}
	return nil
}

// NumStats returns the width of a statistics vector.
func (p Params) NumStats() int {
	if p.Regression {
		return 4
	}
	return p.NumClasses + 1
}

// TrainContext carries everything a training round needs besides the tree
// and the data. One context is shared by all rounds of a fit; it is read-only
// except for the feature sampler, which is only used by Expand.
type TrainContext struct {
	Params Params
	Table  *SplitCandidateTable

	imp impurity
	rng *rand.Rand
}

// NewTrainContext validates the parameters and resolves the impurity
// strategy.
func NewTrainContext(params Params, table *SplitCandidateTable) (*TrainContext, error) {
	if table == nil {
		return nil, errors.NewValueError("NewTrainContext", "nil candidate table")
	}
	if params.Regression {
		params.Criterion = MSE
		params.NumClasses = 0
	}
	if err := params.Validate(table); err != nil {
		return nil, err
	}
	return &TrainContext{
		Params: params,
		Table:  table,
		imp:    newImpurity(params),
		rng:    rand.New(rand.NewPCG(params.Seed, params.Seed^0x9e3779b97f4a7c15)),
	}, nil
}

// NewTree returns an empty tree shaped for this context.
func (c *TrainContext) NewTree() (*Tree, error) {
	return New(c.Params.Regression, c.Params.NumStats(), c.Params.MaxSurrogates, c.Table.NumCat(), c.Table.NumCon())
}

// sampleFeatures returns the feature mask for one leaf, categorical features
// first. A nil mask selects every feature.
func (c *TrainContext) sampleFeatures() []bool {
	n := c.Table.NumFeatures()
	k := c.Params.NumRandomFeatures
	if k == 0 || k >= n {
		return nil
	}
	mask := make([]bool, n)
	for _, f := range c.rng.Perm(n)[:k] {
		mask[f] = true
	}
	return mask
}
