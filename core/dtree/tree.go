// Package dtree implements CART decision tree induction over data that is
// only reachable through mergeable aggregation passes.
//
// A Tree is a complete binary tree stored level by level in parallel arrays.
// Growing a tree alternates two steps until Expand reports done:
//
//	acc, _ := dtree.NewLevelAccumulator(ctx, tree) // one per worker
//	for row := range partition { acc.Accumulate(row) }
//	acc.Merge(other)                               // any order
//	done, err := dtree.Expand(ctx, tree, acc.Buffer())
//
// Surrogate splits are then discovered one level of internal nodes at a
// time with SurrogateAccumulator and SelectSurrogates, and the finished tree
// can be pruned in memory with Prune.
package dtree

import (
	"fmt"
	"math/bits"

	"gonum.org/v1/gonum/mat"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// Node sentinels stored in Tree.FeatureIndices. Non-negative values are
// split feature indices within their kind.
const (
	FinishedLeaf    = -1
	InProcessLeaf   = -2
	NodeNonExisting = -3
)

// MaxStateBytes is the largest single state the engine will allocate.
const MaxStateBytes int64 = 1 << 30

// SurrogateStatus encodes the kind and direction of a surrogate split.
type SurrogateStatus int8

const (
	SurrogateEmpty      SurrogateStatus = 0
	SurrogateCatForward SurrogateStatus = 1
	SurrogateCatReverse SurrogateStatus = -1
	SurrogateConForward SurrogateStatus = 2
	SurrogateConReverse SurrogateStatus = -2
)

const surrogateStatusAbsolute = 2

// Tree is an array-encoded complete binary tree. Node i has children 2i+1
// and 2i+2. Depth counts stored levels, so a tree of depth d has 2^d-1 slots.
type Tree struct {
	Depth         int  // Stored levels
	NumStats      int  // Width of a statistics vector
	MaxSurrogates int  // Surrogate slots per node
	Regression    bool // Response kind
	NumCat        int  // Categorical features expected at prediction
	NumCon        int  // Continuous features expected at prediction

	FeatureIndices    []int
	Thresholds        []float64
	IsCategorical     []bool
	NonNullSplitCount []float64  // Two per node: left, right
	Predictions       *mat.Dense // Nodes x NumStats

	SurrIndices    []int             // Nodes x MaxSurrogates
	SurrThresholds []float64         // Nodes x MaxSurrogates
	SurrStatus     []SurrogateStatus // Nodes x MaxSurrogates
	SurrAgreement  []float64         // Nodes x MaxSurrogates
}

// New returns a tree with a single InProcessLeaf root.
func New(regression bool, numStats, maxSurrogates, numCat, numCon int) (*Tree, error) {
	if numStats < 2 {
		return nil, errors.NewValidationError("n_stats", "must be at least 2", numStats)
	}
	if maxSurrogates < 0 {
		return nil, errors.NewValidationError("max_surrogates", "must be non-negative", maxSurrogates)
	}
	t := &Tree{
		NumStats:      numStats,
		MaxSurrogates: maxSurrogates,
		Regression:    regression,
		NumCat:        numCat,
		NumCon:        numCon,
	}
	if err := t.allocate(1); err != nil {
		return nil, err
	}
	t.FeatureIndices[0] = InProcessLeaf
	return t, nil
}

// NodesAtDepth returns the slot count of a tree with the given depth.
func NodesAtDepth(depth int) int { return 1<<depth - 1 }

// StateBytes returns the memory footprint of a tree with the given shape.
func StateBytes(depth, numStats, maxSurrogates int) int64 {
	if depth >= 62 {
		return 1 << 62
	}
	nodes := int64(NodesAtDepth(depth))
	perNode := int64(8+8+1+16+8*numStats) + int64(maxSurrogates)*(8+8+1+8)
	return nodes * perNode
}

// allocate resizes every array to depth levels, keeping existing content.
func (t *Tree) allocate(depth int) error {
	if need := StateBytes(depth, t.NumStats, t.MaxSurrogates); need > MaxStateBytes {
		return errors.NewSizeLimitError("Tree.Grow", need, MaxStateBytes)
	}
	old := t.NumNodes()
	n := NodesAtDepth(depth)
	m := t.MaxSurrogates

	t.FeatureIndices = growInts(t.FeatureIndices, n, NodeNonExisting)
	t.Thresholds = append(t.Thresholds, make([]float64, n-old)...)
	t.IsCategorical = append(t.IsCategorical, make([]bool, n-old)...)
	t.NonNullSplitCount = append(t.NonNullSplitCount, make([]float64, 2*(n-old))...)
	t.SurrIndices = growInts(t.SurrIndices, n*m, -1)
	t.SurrThresholds = append(t.SurrThresholds, make([]float64, (n-old)*m)...)
	t.SurrStatus = append(t.SurrStatus, make([]SurrogateStatus, (n-old)*m)...)
	t.SurrAgreement = append(t.SurrAgreement, make([]float64, (n-old)*m)...)

	preds := mat.NewDense(n, t.NumStats, nil)
	if t.Predictions != nil {
		preds.Slice(0, old, 0, t.NumStats).(*mat.Dense).Copy(t.Predictions)
	}
	t.Predictions = preds
	t.Depth = depth
	return nil
}

func growInts(s []int, n, fill int) []int {
	for len(s) < n {
		s = append(s, fill)
	}
	return s
}

// Grow adds one level of NodeNonExisting slots.
func (t *Tree) Grow() error { return t.allocate(t.Depth + 1) }

// NumNodes returns the number of slots.
func (t *Tree) NumNodes() int { return len(t.FeatureIndices) }

// Left returns the left child index of node i.
func Left(i int) int { return 2*i + 1 }

// Right returns the right child index of node i.
func Right(i int) int { return 2*i + 2 }

// Parent returns the parent index of node i > 0.
func Parent(i int) int { return (i - 1) / 2 }

// DepthOf returns the depth of node i, the root being depth 0.
func DepthOf(i int) int { return bits.Len(uint(i+1)) - 1 }

// IsSplit reports whether node n is an internal node.
func (t *Tree) IsSplit(n int) bool { return n < t.NumNodes() && t.FeatureIndices[n] >= 0 }

// IsLeaf reports whether node n is an existing leaf, finished or not.
func (t *Tree) IsLeaf(n int) bool {
	if n >= t.NumNodes() {
		return false
	}
	fi := t.FeatureIndices[n]
	return fi == FinishedLeaf || fi == InProcessLeaf
}

// Exists reports whether node n holds a split or a leaf.
func (t *Tree) Exists(n int) bool { return n < t.NumNodes() && t.FeatureIndices[n] != NodeNonExisting }

// Stats returns the statistics row of node n. The slice aliases the tree.
func (t *Tree) Stats(n int) []float64 { return t.Predictions.RawRowView(n) }

// Count returns the unweighted row count of node n.
func (t *Tree) Count(n int) float64 { return count(t.Stats(n)) }

// Risk returns the resubstitution risk of node n.
func (t *Tree) Risk(n int) float64 { return riskOf(t.Regression, t.Stats(n)) }

// Distribution returns a copy of the statistics of node n.
func (t *Tree) Distribution(n int) []float64 { return append([]float64(nil), t.Stats(n)...) }

// Response returns the mean response (regression) or arg-max class id
// (classification) of node n.
func (t *Tree) Response(n int) float64 { return responseOf(t.Regression, t.Stats(n)) }

// NumClasses returns the class count of a classification tree, zero for
// regression.
func (t *Tree) NumClasses() int {
	if t.Regression {
		return 0
	}
	return t.NumStats - 1
}

// majorityLeft reports whether the left branch of split n received at least
// as many non-null rows as the right branch.
func (t *Tree) majorityLeft(n int) bool {
	return t.NonNullSplitCount[2*n] >= t.NonNullSplitCount[2*n+1]
}

// OpenLeaves returns the InProcessLeaf nodes in index order.
func (t *Tree) OpenLeaves() []int {
	var open []int
	for n, fi := range t.FeatureIndices {
		if fi == InProcessLeaf {
			open = append(open, n)
		}
	}
	return open
}

// NumLeaves returns the number of existing leaves.
func (t *Tree) NumLeaves() int {
	leaves := 0
	for n := range t.FeatureIndices {
		if t.IsLeaf(n) {
			leaves++
		}
	}
	return leaves
}

// NumSplits returns the number of internal nodes.
func (t *Tree) NumSplits() int {
	splits := 0
	for _, fi := range t.FeatureIndices {
		if fi >= 0 {
			splits++
		}
	}
	return splits
}

// EffectiveDepth returns the number of levels that hold existing nodes.
func (t *Tree) EffectiveDepth() int {
	for n := t.NumNodes() - 1; n >= 0; n-- {
		if t.Exists(n) {
			return DepthOf(n) + 1
		}
	}
	return 0
}

// surr returns the flat index of surrogate slot k of node n.
func (t *Tree) surr(n, k int) int { return n*t.MaxSurrogates + k }

// Surrogate describes one ranked fallback split of a node.
type Surrogate struct {
	Feature   int
	Threshold float64
	Status    SurrogateStatus
	Agreement float64
}

// Surrogates returns the filled surrogate slots of node n in rank order.
func (t *Tree) Surrogates(n int) []Surrogate {
	var out []Surrogate
	for k := 0; k < t.MaxSurrogates; k++ {
		i := t.surr(n, k)
		if t.SurrStatus[i] == SurrogateEmpty {
			break
		}
		out = append(out, Surrogate{
			Feature:   t.SurrIndices[i],
			Threshold: t.SurrThresholds[i],
			Status:    t.SurrStatus[i],
			Agreement: t.SurrAgreement[i],
		})
	}
	return out
}

// clearNode resets node n to the given sentinel and zeroes its payload.
func (t *Tree) clearNode(n, sentinel int, keepStats bool) {
	t.FeatureIndices[n] = sentinel
	t.Thresholds[n] = 0
	t.IsCategorical[n] = false
	t.NonNullSplitCount[2*n] = 0
	t.NonNullSplitCount[2*n+1] = 0
	for k := 0; k < t.MaxSurrogates; k++ {
		i := t.surr(n, k)
		t.SurrIndices[i] = -1
		t.SurrThresholds[i] = 0
		t.SurrStatus[i] = SurrogateEmpty
		t.SurrAgreement[i] = 0
	}
	if !keepStats {
		stats := t.Stats(n)
		for j := range stats {
			stats[j] = 0
		}
	}
}

// collapse turns node n into a FinishedLeaf and removes its subtree.
func (t *Tree) collapse(n int) {
	t.clearNode(n, FinishedLeaf, true)
	t.removeSubtree(Left(n))
	t.removeSubtree(Right(n))
}

func (t *Tree) removeSubtree(n int) {
	if n >= t.NumNodes() || t.FeatureIndices[n] == NodeNonExisting {
		return
	}
	t.removeSubtree(Left(n))
	t.removeSubtree(Right(n))
	t.clearNode(n, NodeNonExisting, false)
}

// Clone returns a deep copy.
func (t *Tree) Clone() *Tree {
	c := *t
	c.FeatureIndices = append([]int(nil), t.FeatureIndices...)
	c.Thresholds = append([]float64(nil), t.Thresholds...)
	c.IsCategorical = append([]bool(nil), t.IsCategorical...)
	c.NonNullSplitCount = append([]float64(nil), t.NonNullSplitCount...)
	c.Predictions = mat.DenseCopyOf(t.Predictions)
	c.SurrIndices = append([]int(nil), t.SurrIndices...)
	c.SurrThresholds = append([]float64(nil), t.SurrThresholds...)
	c.SurrStatus = append([]SurrogateStatus(nil), t.SurrStatus...)
	c.SurrAgreement = append([]float64(nil), t.SurrAgreement...)
	return &c
}

// Validate checks the structural invariants of the tree. Violations are
// reported as invariant violations.
func (t *Tree) Validate() error {
	n := NodesAtDepth(t.Depth)
	m := t.MaxSurrogates
	if t.Depth < 1 || len(t.FeatureIndices) != n || len(t.Thresholds) != n || len(t.IsCategorical) != n ||
		len(t.NonNullSplitCount) != 2*n || len(t.SurrIndices) != n*m || len(t.SurrThresholds) != n*m ||
		len(t.SurrStatus) != n*m || len(t.SurrAgreement) != n*m || t.Predictions == nil {
		return errors.NewInvariantViolation("tree arrays do not match depth %d", t.Depth)
	}
	if r, c := t.Predictions.Dims(); r != n || c != t.NumStats {
		return errors.NewInvariantViolation("predictions are %dx%d, want %dx%d", r, c, n, t.NumStats)
	}
	if t.FeatureIndices[0] == NodeNonExisting {
		return errors.NewInvariantViolation("root does not exist")
	}
	for i, fi := range t.FeatureIndices {
		switch {
		case fi < NodeNonExisting:
			return errors.NewInvariantViolation("node %d has unknown sentinel %d", i, fi)
		case fi == NodeNonExisting:
			if i > 0 && t.IsSplit(Parent(i)) {
				return errors.NewInvariantViolation("child %d of split %d does not exist", i, Parent(i))
			}
			continue
		}
		if i > 0 && !t.IsSplit(Parent(i)) {
			return errors.NewInvariantViolation("node %d has no split parent", i)
		}
		if fi < 0 {
			continue
		}
		if Right(i) >= n {
			return errors.NewInvariantViolation("split %d has no allocated children", i)
		}
		limit := t.NumCon
		if t.IsCategorical[i] {
			limit = t.NumCat
		}
		if fi >= limit {
			return errors.NewInvariantViolation("split %d uses feature %d of %d", i, fi, limit)
		}
		if nonnull := t.NonNullSplitCount[2*i] + t.NonNullSplitCount[2*i+1]; t.Count(i) < nonnull {
			return errors.NewInvariantViolation("split %d counts %v rows but branches hold %v", i, t.Count(i), nonnull)
		}
		for k := 0; k < m; k++ {
			if s := t.SurrStatus[t.surr(i, k)]; s < -surrogateStatusAbsolute || s > surrogateStatusAbsolute {
				return errors.NewInvariantViolation("split %d has surrogate status %d", i, s)
			}
		}
	}
	return nil
}

func (t *Tree) String() string {
	return fmt.Sprintf("Tree(depth=%d, splits=%d, leaves=%d)", t.EffectiveDepth(), t.NumSplits(), t.NumLeaves())
}
