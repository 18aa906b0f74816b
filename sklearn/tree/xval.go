package tree

import (
	"context"
	"math"

	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/dataset"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
	"github.com/madlib/archived-madlib-sub001/pkg/log"
)

// PathPoint is one row of a cost-complexity table. The tree pruned at CP
// has NumSplits splits; RelError is its training risk relative to the root
// and XError, XStd its cross-validated risk and standard error on the same
// scale.
type PathPoint struct {
	CP        float64 `json:"cp" csv:"cp"`
	NumSplits int     `json:"n_splits" csv:"n_splits"`
	RelError  float64 `json:"rel_error" csv:"rel_error"`
	XError    float64 `json:"xerror" csv:"xerror"`
	XStd      float64 `json:"xstd" csv:"xstd"`
}

// treeRisk sums the risk of the leaves of tree.
func treeRisk(tree *dtree.Tree) float64 {
	var risk float64
	for n := 0; n < tree.NumNodes(); n++ {
		if tree.IsLeaf(n) {
			risk += tree.Risk(n)
		}
	}
	return risk
}

// candidateCPs returns the breakpoints of tree, largest first and ending
// with 0, and the values each fold tree is pruned at: the geometric mean of
// the interval over which a breakpoint's subtree is optimal.
func candidateCPs(tree *dtree.Tree) (cps, eval []float64, err error) {
	path, err := dtree.ComplexityPath(tree)
	if err != nil {
		return nil, nil, err
	}
	cps = path
	if len(cps) == 0 || cps[len(cps)-1] != 0 {
		cps = append(cps, 0)
	}
	eval = make([]float64, len(cps))
	upper := 1.0
	for i, cp := range cps {
		eval[i] = math.Sqrt(cp * upper)
		upper = cp
	}
	return cps, eval, nil
}

// CrossValidate grows the full tree on src, then regrows it k times with
// one fold held out and scores every candidate subtree on the held-out
// rows. It returns the unpruned full tree and its cost-complexity table.
func (tr *Trainer) CrossValidate(ctx context.Context, src dataset.Source, table *dtree.SplitCandidateTable) (*dtree.Tree, []PathPoint, error) {
	full, _, err := tr.Grow(ctx, src, table)
	if err != nil {
		return nil, nil, err
	}
	cps, eval, err := candidateCPs(full)
	if err != nil {
		return nil, nil, err
	}
	rootRisk := full.Risk(0)

	points := make([]PathPoint, len(cps))
	for i, cp := range cps {
		pruned := full.Clone()
		res, err := dtree.Prune(pruned, cp)
		if err != nil {
			return nil, nil, err
		}
		points[i] = PathPoint{CP: cp, NumSplits: res.NumSplits, RelError: ratio(treeRisk(pruned), rootRisk)}
	}

	train, holdout, err := dataset.Folds(src, tr.Folds)
	if err != nil {
		return nil, nil, err
	}
	sum := make([]float64, len(cps))
	sumSq := make([]float64, len(cps))
	var rows float64
	for k := range train {
		fold := *tr
		fold.Name = tr.Name + "/xval"
		foldTree, _, err := fold.Grow(ctx, train[k], table)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "fold %d", k)
		}
		subtrees := make([]*dtree.Tree, len(eval))
		for i, cp := range eval {
			subtrees[i] = foldTree.Clone()
			if _, err := dtree.Prune(subtrees[i], cp); err != nil {
				return nil, nil, err
			}
		}
		err = holdout[k].Scan(ctx, func(r dtree.Row) error {
			rows++
			for i, sub := range subtrees {
				e, err := rowRisk(sub, r)
				if err != nil {
					return err
				}
				sum[i] += e
				sumSq[i] += e * e
			}
			return nil
		})
		if err != nil {
			return nil, nil, errors.Wrapf(err, "scoring fold %d", k)
		}
	}

	for i := range points {
		points[i].XError = ratio(sum[i], rootRisk)
		if rows > 0 {
			v := math.Max(0, sumSq[i]-sum[i]*sum[i]/rows)
			points[i].XStd = ratio(math.Sqrt(v), rootRisk)
		}
	}
	log.GetLoggerWithName("trainer").Info("Cross-validation completed",
		log.ModelNameKey, tr.Name,
		log.PhaseKey, log.PhaseValidation,
		"folds", tr.Folds,
		"candidates", len(points),
	)
	return full, points, nil
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// rowRisk is the weighted loss of one held-out row: squared error for
// regression, misclassification for classification.
func rowRisk(tree *dtree.Tree, r dtree.Row) (float64, error) {
	pred, err := tree.Predict(r.Cat, r.Con)
	if err != nil {
		return 0, err
	}
	if tree.Regression {
		d := r.Response - pred
		return r.Weight * d * d, nil
	}
	if pred != r.Response {
		return r.Weight, nil
	}
	return 0, nil
}

// SelectCP picks the complexity parameter with the lowest cross-validated
// error, preferring the smaller tree on ties. With oneSE it picks the
// smallest tree whose error is within one standard error of the minimum.
func SelectCP(points []PathPoint, oneSE bool) float64 {
	if len(points) == 0 {
		return 0
	}
	best := 0
	for i, p := range points {
		if p.XError < points[best].XError {
			best = i
		}
	}
	if oneSE {
		limit := points[best].XError + points[best].XStd
		for i, p := range points {
			if p.XError <= limit {
				return points[i].CP
			}
		}
	}
	return points[best].CP
}
