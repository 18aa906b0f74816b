package dtree

import (
	"slices"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// gainEpsilon is the smallest impurity reduction accepted as a split.
const gainEpsilon = 1e-10

// SplitDecision is the best candidate found for one open leaf.
type SplitDecision struct {
	Node        int
	Categorical bool
	Feature     int
	Bin         int
	Threshold   float64
	Gain        float64
	Left, Right []float64 // Branch statistics of non-null rows
}

// BestSplit scores every candidate of buffer row r and returns the winner.
// Candidates are visited categorical features first, then by feature index,
// then by level or bin; only a strictly greater gain replaces the current
// best. ok is false when no candidate satisfies min_bucket with a positive
// gain. mask restricts the features considered, nil meaning all.
func BestSplit(ctx *TrainContext, buf *LevelBuffer, r int, mask []bool) (best SplitDecision, ok bool) {
	table := ctx.Table
	imp := ctx.imp
	minBucket := float64(ctx.Params.MinBucket)
	parent := make([]float64, buf.NumStats)
	best.Node = buf.Leaves[r]

	consider := func(c int, cand candidate) {
		left, right := buf.Branch(r, c, 0), buf.Branch(r, c, 1)
		if count(left) < minBucket || count(right) < minBucket {
			return
		}
		wl, wr := imp.weight(left), imp.weight(right)
		if wl+wr <= 0 {
			return
		}
		for i := range parent {
			parent[i] = left[i] + right[i]
		}
		gain := imp.impurity(parent) - (wl*imp.impurity(left)+wr*imp.impurity(right))/(wl+wr)
		if gain <= gainEpsilon || (ok && gain <= best.Gain) {
			return
		}
		best = SplitDecision{
			Node:        buf.Leaves[r],
			Categorical: cand.categorical,
			Feature:     cand.feature,
			Bin:         cand.bin,
			Threshold:   cand.threshold,
			Gain:        gain,
			Left:        left,
			Right:       right,
		}
		ok = true
	}

	for f := 0; f < table.NumCat(); f++ {
		if mask != nil && !mask[f] {
			continue
		}
		for l := 0; l < table.Levels(f); l++ {
			consider(table.catCandidate(f, l), candidate{categorical: true, feature: f, bin: l, threshold: float64(l)})
		}
	}
	for f := 0; f < table.NumCon(); f++ {
		if mask != nil && !mask[table.NumCat()+f] {
			continue
		}
		for b := 0; b < table.NumBins(); b++ {
			consider(table.conCandidate(f, b), candidate{feature: f, bin: b, threshold: table.Threshold(f, b)})
		}
	}
	return best, ok
}

// Expand chooses the best split of every open leaf from a fully merged
// buffer and materializes the next level of the tree. It reports done when
// no leaf split, when the new level reached max_depth, or when the tree
// cannot grow within MaxStateBytes.
func Expand(ctx *TrainContext, tree *Tree, buf *LevelBuffer) (done bool, err error) {
	if err := buf.Err("Expand"); err != nil {
		return false, err
	}
	open := tree.OpenLeaves()
	want := []int{len(open), ctx.Table.NumCandidates(), tree.NumStats}
	if !slices.Equal(want, buf.Shape()) || !slices.Equal(open, buf.Leaves) {
		return false, errors.NewShapeError("Expand", want, buf.Shape())
	}

	p := ctx.Params
	var splits []SplitDecision
	for r, n := range open {
		stats := buf.Leaf(r)
		// The accumulated leaf statistics replace the estimate written by the
		// previous round.
		copy(tree.Stats(n), stats)
		if count(stats) < float64(p.MinSplit) || DepthOf(n) >= p.MaxDepth || ctx.imp.pure(stats) {
			tree.FeatureIndices[n] = FinishedLeaf
			continue
		}
		d, ok := BestSplit(ctx, buf, r, ctx.sampleFeatures())
		if !ok {
			tree.FeatureIndices[n] = FinishedLeaf
			continue
		}
		splits = append(splits, d)
	}
	if len(splits) == 0 {
		return true, nil
	}

	if need := Right(splits[len(splits)-1].Node); need >= tree.NumNodes() {
		if err := tree.Grow(); err != nil {
			if !errors.Is(err, errors.ErrSizeLimit) {
				return false, err
			}
			errors.Warn(errors.NewWarning("Expand", err.Error()))
			for _, d := range splits {
				tree.FeatureIndices[d.Node] = FinishedLeaf
			}
			return true, nil
		}
	}

	childDepth := 0
	for _, d := range splits {
		applySplit(ctx, tree, d)
		childDepth = DepthOf(Left(d.Node))
	}
	return childDepth >= p.MaxDepth, nil
}

// applySplit writes decision d into the tree and creates both children.
// Rows null on the split feature join the majority branch.
func applySplit(ctx *TrainContext, tree *Tree, d SplitDecision) {
	n := d.Node
	tree.FeatureIndices[n] = d.Feature
	tree.IsCategorical[n] = d.Categorical
	tree.Thresholds[n] = d.Threshold
	tree.NonNullSplitCount[2*n] = count(d.Left)
	tree.NonNullSplitCount[2*n+1] = count(d.Right)

	l, r := Left(n), Right(n)
	copy(tree.Stats(l), d.Left)
	copy(tree.Stats(r), d.Right)

	leaf := tree.Stats(n)
	if nulls := count(leaf) - count(d.Left) - count(d.Right); nulls > 0 {
		majority := tree.Stats(r)
		if tree.majorityLeft(n) {
			majority = tree.Stats(l)
		}
		for i := range majority {
			majority[i] += leaf[i] - d.Left[i] - d.Right[i]
		}
	}

	p := ctx.Params
	for _, c := range []int{l, r} {
		stats := tree.Stats(c)
		if count(stats) < float64(p.MinSplit) || DepthOf(c) >= p.MaxDepth || ctx.imp.pure(stats) {
			tree.FeatureIndices[c] = FinishedLeaf
		} else {
			tree.FeatureIndices[c] = InProcessLeaf
		}
	}
}
