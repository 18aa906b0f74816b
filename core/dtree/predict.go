package dtree

import (
	"math"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// Search returns the leaf reached by a row. A row null on a split feature is
// routed by the first applicable surrogate, and by the majority branch when
// no surrogate applies.
func (t *Tree) Search(cat []int, con []float64) (int, error) {
	if len(cat) != t.NumCat {
		return -1, errors.NewDimensionError("Tree.Search", t.NumCat, len(cat), 1)
	}
	if len(con) != t.NumCon {
		return -1, errors.NewDimensionError("Tree.Search", t.NumCon, len(con), 2)
	}
	n := 0
	for {
		if n >= t.NumNodes() {
			return -1, errors.NewInvariantViolation("search left the tree below node %d", Parent(n))
		}
		switch fi := t.FeatureIndices[n]; {
		case fi == NodeNonExisting:
			return -1, errors.NewInvariantViolation("search reached non-existing node %d", n)
		case fi < 0:
			return n, nil
		}
		left, err := t.goesLeft(n, cat, con)
		if err != nil {
			return -1, err
		}
		if left {
			n = Left(n)
		} else {
			n = Right(n)
		}
	}
}

// goesLeft decides the branch of split n for one row.
func (t *Tree) goesLeft(n int, cat []int, con []float64) (bool, error) {
	if left, ok := t.primaryDecision(n, cat, con); ok {
		return left, nil
	}
	for k := 0; k < t.MaxSurrogates; k++ {
		i := t.surr(n, k)
		status := t.SurrStatus[i]
		if status == SurrogateEmpty {
			break
		}
		left, ok, err := t.surrogateDecision(i, cat, con)
		if err != nil {
			return false, err
		}
		if ok {
			return left, nil
		}
	}
	return t.majorityLeft(n), nil
}

func (t *Tree) surrogateDecision(i int, cat []int, con []float64) (left, ok bool, err error) {
	f := t.SurrIndices[i]
	status := t.SurrStatus[i]
	switch status {
	case SurrogateCatForward, SurrogateCatReverse:
		if f < 0 || f >= len(cat) {
			return false, false, errors.NewInvariantViolation("surrogate uses categorical feature %d of %d", f, len(cat))
		}
		v := cat[f]
		if IsNullCat(v) {
			return false, false, nil
		}
		left = float64(v) <= t.SurrThresholds[i]
	case SurrogateConForward, SurrogateConReverse:
		if f < 0 || f >= len(con) {
			return false, false, errors.NewInvariantViolation("surrogate uses continuous feature %d of %d", f, len(con))
		}
		x := con[f]
		if IsNullCon(x) {
			return false, false, nil
		}
		left = x <= t.SurrThresholds[i]
	default:
		return false, false, errors.NewInvariantViolation("unknown surrogate status %d", status)
	}
	if status < 0 {
		left = !left
	}
	return left, true, nil
}

// Predict returns the response of the leaf reached by a row.
func (t *Tree) Predict(cat []int, con []float64) (float64, error) {
	n, err := t.Search(cat, con)
	if err != nil {
		return t.unknown(), err
	}
	return t.Response(n), nil
}

// PredictProba returns the normalized class weights of the leaf reached by a
// row. It is only meaningful for classification trees.
func (t *Tree) PredictProba(cat []int, con []float64) ([]float64, error) {
	if t.Regression {
		return nil, errors.NewValueError("Tree.PredictProba", "regression trees have no class distribution")
	}
	n, err := t.Search(cat, con)
	if err != nil {
		return nil, err
	}
	stats := t.Stats(n)
	k := t.NumClasses()
	proba := make([]float64, k)
	var total float64
	for _, v := range stats[:k] {
		total += v
	}
	for i := range proba {
		if total > 0 {
			proba[i] = stats[i] / total
		}
	}
	return proba, nil
}

// unknown is the prediction reported for a row that cannot be routed.
func (t *Tree) unknown() float64 {
	if t.Regression {
		return math.NaN()
	}
	return -1
}

// PredictBatch predicts every row. A malformed row yields NaN for
// regression or -1 for classification without aborting the batch; bad counts
// such rows. Invariant violations abort the batch.
func (t *Tree) PredictBatch(rows []Row) (out []float64, bad int, err error) {
	out = make([]float64, len(rows))
	for i, row := range rows {
		v, perr := t.Predict(row.Cat, row.Con)
		if perr != nil {
			if errors.IsInvariantViolation(perr) {
				return nil, 0, perr
			}
			bad++
		}
		out[i] = v
	}
	return out, bad, nil
}
