package dtree

import (
	"math"
	"sort"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// PruneResult summarizes a pruned tree.
type PruneResult struct {
	Depth     int // Effective depth after pruning
	NumSplits int
}

// Prune collapses, in place, every subtree whose risk reduction per split
// does not exceed alpha times the root risk. The result is the optimal
// cost-complexity subtree for alpha. Alpha <= 0 leaves the tree unchanged
// and alpha >= 1 collapses it to its root.
func Prune(tree *Tree, alpha float64) (PruneResult, error) {
	if math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		return PruneResult{}, errors.NewValidationError("alpha", "must be finite", alpha)
	}
	if alpha > 0 {
		budget := alpha * tree.Risk(0)
		pruneNode(tree, 0, budget)
	}
	return PruneResult{Depth: tree.EffectiveDepth(), NumSplits: tree.NumSplits()}, nil
}

// pruneNode prunes the subtree of n and returns its accumulated risk and
// split count afterwards.
func pruneNode(t *Tree, n int, budget float64) (risk float64, splits int) {
	own := t.Risk(n)
	if !t.IsSplit(n) {
		return own, 0
	}
	if withinBudget(own, budget) {
		t.collapse(n)
		return own, 0
	}
	lr, ls := pruneNode(t, Left(n), budget)
	rr, rs := pruneNode(t, Right(n), budget)
	complexity := (own - (lr + rr)) / float64(1+ls+rs)
	if withinBudget(complexity, budget) {
		t.collapse(n)
		return own, 0
	}
	return lr + rr, 1 + ls + rs
}

// withinBudget compares with a relative tolerance so that pruning at a
// breakpoint reported by ComplexityPath, which went through a division by
// the root risk, removes the split it names.
func withinBudget(v, budget float64) bool {
	return v <= budget*(1+1e-9)
}

// ComplexityPath returns the complexity parameters at which the tree loses
// splits, relative to the root risk, in descending order. A node's value is
// capped by the smallest value on its path from the root.
func ComplexityPath(tree *Tree) ([]float64, error) {
	if tree.FeatureIndices[0] == NodeNonExisting {
		return nil, errors.NewInvariantViolation("tree has no root")
	}
	root := tree.Risk(0)
	if !tree.IsSplit(0) || root <= 0 {
		return nil, nil
	}
	cps := make([]float64, tree.NumNodes())
	nodeComplexity(tree, 0, cps)

	var path []float64
	var walk func(n int, limit float64)
	walk = func(n int, limit float64) {
		if !tree.IsSplit(n) {
			return
		}
		cp := math.Min(cps[n], limit)
		path = append(path, cp/root)
		walk(Left(n), cp)
		walk(Right(n), cp)
	}
	walk(0, math.Inf(1))

	sort.Sort(sort.Reverse(sort.Float64Slice(path)))
	out := path[:0]
	for _, v := range path {
		if len(out) == 0 || out[len(out)-1]-v > 1e-12*math.Max(1, math.Abs(v)) {
			out = append(out, v)
		}
	}
	return out, nil
}

// nodeComplexity fills cps with the complexity of every split, taking into
// account that a child collapses first when its own complexity is smaller.
// It returns the accumulated risk and split count of n.
func nodeComplexity(t *Tree, n int, cps []float64) (risk float64, splits int) {
	own := t.Risk(n)
	if !t.IsSplit(n) {
		return own, 0
	}
	l, r := Left(n), Right(n)
	lr, ls := nodeComplexity(t, l, cps)
	rr, rs := nodeComplexity(t, r, cps)
	cp := func() float64 { return (own - (lr + rr)) / float64(1+ls+rs) }

	lSplit, rSplit := t.IsSplit(l), t.IsSplit(r)
	switch {
	case lSplit && rSplit:
		if cps[r] > cps[l] {
			if cp() > cps[l] {
				lr, ls = t.Risk(l), 0
				if cp() > cps[r] {
					rr, rs = t.Risk(r), 0
				}
			}
		} else if cp() > cps[r] {
			rr, rs = t.Risk(r), 0
			if cp() > cps[l] {
				lr, ls = t.Risk(l), 0
			}
		}
	case lSplit:
		if cp() > cps[l] {
			lr, ls = t.Risk(l), 0
		}
	case rSplit:
		if cp() > cps[r] {
			rr, rs = t.Risk(r), 0
		}
	}
	cps[n] = cp()
	return lr + rr, 1 + ls + rs
}
