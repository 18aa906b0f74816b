package dtree

import (
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// SurrogateBuffer holds agreement counts for the split nodes of one level.
// For node row r and candidate c it stores the number of rows whose
// candidate decision agrees with the primary decision, then the number that
// disagree. Rows null on the primary or on the candidate feature are not
// counted.
type SurrogateBuffer struct {
	health

	Level         int
	Nodes         []int
	NumCandidates int
	Counts        []float64 // len(Nodes) x NumCandidates x 2
}

// Shape returns (nodes, candidates).
func (b *SurrogateBuffer) Shape() []int { return []int{len(b.Nodes), b.NumCandidates} }

// Agreement returns the agree and disagree counts of candidate c at node row r.
func (b *SurrogateBuffer) Agreement(r, c int) (agree, disagree float64) {
	off := (r*b.NumCandidates + c) * 2
	return b.Counts[off], b.Counts[off+1]
}

// Merge adds other into b.
func (b *SurrogateBuffer) Merge(other *SurrogateBuffer) error {
	if b.Level != other.Level || !slices.Equal(b.Shape(), other.Shape()) || !slices.Equal(b.Nodes, other.Nodes) ||
		len(b.Counts) != len(other.Counts) {
		return errors.NewShapeError("SurrogateBuffer.Merge", append(b.Shape(), b.Level), append(other.Shape(), other.Level))
	}
	floats.Add(b.Counts, other.Counts)
	b.health.merge(other.health)
	return nil
}

// SurrogateAccumulator counts, for every split node at one level, how often
// each candidate split sends rows the same way as the primary split.
type SurrogateAccumulator struct {
	ctx     *TrainContext
	tree    *Tree
	nodeRow map[int]int
	buf     *SurrogateBuffer
}

// NewSurrogateAccumulator prepares an accumulator for the split nodes at
// depth level. Surrogates of shallower levels must already be selected.
func NewSurrogateAccumulator(ctx *TrainContext, tree *Tree, level int) (*SurrogateAccumulator, error) {
	if level < 0 || level >= tree.Depth {
		return nil, errors.NewValueError("NewSurrogateAccumulator", "level outside the tree")
	}
	first, last := NodesAtDepth(level), NodesAtDepth(level+1)
	var nodes []int
	nodeRow := make(map[int]int)
	for n := first; n < last; n++ {
		if tree.IsSplit(n) {
			nodeRow[n] = len(nodes)
			nodes = append(nodes, n)
		}
	}
	nc := ctx.Table.NumCandidates()
	if need := int64(len(nodes)) * int64(nc) * 2 * 8; need > MaxStateBytes {
		return nil, errors.NewSizeLimitError("NewSurrogateAccumulator", need, MaxStateBytes)
	}
	return &SurrogateAccumulator{
		ctx:     ctx,
		tree:    tree,
		nodeRow: nodeRow,
		buf: &SurrogateBuffer{
			Level:         level,
			Nodes:         nodes,
			NumCandidates: nc,
			Counts:        make([]float64, len(nodes)*nc*2),
		},
	}, nil
}

// Accumulate adds one row.
func (a *SurrogateAccumulator) Accumulate(row Row) {
	a.buf.Rows++
	if a.buf.Terminated() || len(a.buf.Nodes) == 0 {
		return
	}
	if f := checkRow(a.ctx, row); f != nil {
		a.buf.fault(f)
		return
	}
	n, err := a.tree.routeToDepth(row.Cat, row.Con, a.buf.Level)
	if err != nil {
		a.buf.fault(&rowFault{reason: err.Error(), schema: true})
		return
	}
	r, ok := a.nodeRow[n]
	if !ok {
		return
	}
	primary, ok := a.tree.primaryDecision(n, row.Cat, row.Con)
	if !ok {
		return
	}

	table := a.ctx.Table
	counts := a.buf.Counts
	for f, v := range row.Cat {
		if IsNullCat(v) {
			continue
		}
		for l := 0; l < table.Levels(f); l++ {
			off := (r*a.buf.NumCandidates + table.catCandidate(f, l)) * 2
			counts[off+side((v <= l) == primary)]++
		}
	}
	for f, x := range row.Con {
		if IsNullCon(x) {
			continue
		}
		for b := 0; b < table.NumBins(); b++ {
			off := (r*a.buf.NumCandidates + table.conCandidate(f, b)) * 2
			counts[off+side((x <= table.Threshold(f, b)) == primary)]++
		}
	}
}

// Merge adds the counts of other into a.
func (a *SurrogateAccumulator) Merge(other *SurrogateAccumulator) error {
	return a.buf.Merge(other.buf)
}

// Buffer returns the accumulated counts.
func (a *SurrogateAccumulator) Buffer() *SurrogateBuffer { return a.buf }

// routeToDepth walks the tree with primary splits and selected surrogates
// and stops at the first leaf or at depth level.
func (t *Tree) routeToDepth(cat []int, con []float64, level int) (int, error) {
	n := 0
	for DepthOf(n) < level && t.IsSplit(n) {
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
	return n, nil
}

type rankedSurrogate struct {
	candidate int
	status    SurrogateStatus
	count     float64
	order     int
}

// SelectSurrogates ranks the candidates of every node in buf and stores at
// most MaxSurrogates of them in the tree. A surrogate must use a feature
// other than the primary one and must agree with the primary split on more
// rows than sending every row to the majority branch would.
func SelectSurrogates(ctx *TrainContext, tree *Tree, buf *SurrogateBuffer) error {
	if err := buf.Err("SelectSurrogates"); err != nil {
		return err
	}
	if buf.NumCandidates != ctx.Table.NumCandidates() {
		return errors.NewShapeError("SelectSurrogates", []int{len(buf.Nodes), ctx.Table.NumCandidates()}, buf.Shape())
	}
	m := tree.MaxSurrogates
	table := ctx.Table
	for r, n := range buf.Nodes {
		if !tree.IsSplit(n) || DepthOf(n) != buf.Level {
			return errors.NewInvariantViolation("node %d is not a split at level %d", n, buf.Level)
		}
		for k := 0; k < m; k++ {
			i := tree.surr(n, k)
			tree.SurrIndices[i], tree.SurrThresholds[i], tree.SurrStatus[i], tree.SurrAgreement[i] = -1, 0, SurrogateEmpty, 0
		}
		if m == 0 {
			continue
		}
		majority := max(tree.NonNullSplitCount[2*n], tree.NonNullSplitCount[2*n+1])

		var ranked []rankedSurrogate
		for c := 0; c < buf.NumCandidates; c++ {
			cand := table.describe(c)
			if cand.categorical == tree.IsCategorical[n] && cand.feature == tree.FeatureIndices[n] {
				continue
			}
			forward, reverse := SurrogateConForward, SurrogateConReverse
			if cand.categorical {
				forward, reverse = SurrogateCatForward, SurrogateCatReverse
			}
			agree, disagree := buf.Agreement(r, c)
			if agree > majority {
				ranked = append(ranked, rankedSurrogate{candidate: c, status: forward, count: agree, order: 2 * c})
			}
			if disagree > majority {
				ranked = append(ranked, rankedSurrogate{candidate: c, status: reverse, count: disagree, order: 2*c + 1})
			}
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			if ranked[i].count != ranked[j].count {
				return ranked[i].count > ranked[j].count
			}
			return ranked[i].order < ranked[j].order
		})
		for k, s := range ranked[:min(m, len(ranked))] {
			cand := table.describe(s.candidate)
			i := tree.surr(n, k)
			tree.SurrIndices[i] = cand.feature
			tree.SurrThresholds[i] = cand.threshold
			tree.SurrStatus[i] = s.status
			tree.SurrAgreement[i] = s.count
		}
	}
	return nil
}
