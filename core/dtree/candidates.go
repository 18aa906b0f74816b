package dtree

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// SplitCandidateTable lists every split the accumulator evaluates: for a
// categorical feature with L levels the candidates "levels 0..l go left" for
// l in [0, L), and for a continuous feature one candidate "x <= t" per
// ordered threshold t. The table is immutable once built.
type SplitCandidateTable struct {
	catLevels  []int
	conSplits  *mat.Dense // nCon x nBins, rows ascending
	nBins      int
	catOffsets []int
	catTotal   int
}

// NewSplitCandidateTable validates and indexes the candidate table.
// conSplits may be nil when there are no continuous features.
func NewSplitCandidateTable(catLevels []int, conSplits *mat.Dense) (*SplitCandidateTable, error) {
	t := &SplitCandidateTable{
		catLevels:  append([]int(nil), catLevels...),
		catOffsets: make([]int, len(catLevels)),
	}
	for f, l := range catLevels {
		if l < 1 {
			return nil, errors.NewValidationError(fmt.Sprintf("cat_levels[%d]", f), "must be at least 1", l)
		}
		t.catOffsets[f] = t.catTotal
		t.catTotal += l
	}
	if conSplits != nil {
		r, c := conSplits.Dims()
		for f := 0; f < r; f++ {
			prev := math.Inf(-1)
			for b := 0; b < c; b++ {
				v := conSplits.At(f, b)
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return nil, errors.NewValidationError(fmt.Sprintf("con_splits[%d][%d]", f, b), "must be finite", v)
				}
				if v < prev {
					return nil, errors.NewValidationError(fmt.Sprintf("con_splits[%d]", f), "thresholds must be ascending", v)
				}
				prev = v
			}
		}
		t.conSplits = mat.DenseCopyOf(conSplits)
		t.nBins = c
	}
	if t.NumCat()+t.NumCon() == 0 {
		return nil, errors.NewValueError("NewSplitCandidateTable", "no features")
	}
	return t, nil
}

// NumCat returns the number of categorical features.
func (t *SplitCandidateTable) NumCat() int { return len(t.catLevels) }

// NumCon returns the number of continuous features.
func (t *SplitCandidateTable) NumCon() int {
	if t.conSplits == nil {
		return 0
	}
	r, _ := t.conSplits.Dims()
	return r
}

// NumFeatures returns NumCat() + NumCon().
func (t *SplitCandidateTable) NumFeatures() int { return t.NumCat() + t.NumCon() }

// NumBins returns the number of thresholds per continuous feature.
func (t *SplitCandidateTable) NumBins() int { return t.nBins }

// Levels returns the level count of categorical feature f.
func (t *SplitCandidateTable) Levels(f int) int { return t.catLevels[f] }

// CatLevels returns a copy of the per-feature level counts.
func (t *SplitCandidateTable) CatLevels() []int { return append([]int(nil), t.catLevels...) }

// Threshold returns threshold b of continuous feature f.
func (t *SplitCandidateTable) Threshold(f, b int) float64 { return t.conSplits.At(f, b) }

// NumCandidates returns the total number of split candidates.
func (t *SplitCandidateTable) NumCandidates() int { return t.catTotal + t.NumCon()*t.nBins }

func (t *SplitCandidateTable) catCandidate(f, level int) int { return t.catOffsets[f] + level }

func (t *SplitCandidateTable) conCandidate(f, bin int) int { return t.catTotal + f*t.nBins + bin }

// candidate describes one entry of the table.
type candidate struct {
	categorical bool
	feature     int
	bin         int // level bound for categorical candidates
	threshold   float64
}

// describe maps a flat candidate index back to its feature and threshold.
func (t *SplitCandidateTable) describe(c int) candidate {
	if c < t.catTotal {
		f := 0
		for f+1 < len(t.catOffsets) && t.catOffsets[f+1] <= c {
			f++
		}
		level := c - t.catOffsets[f]
		return candidate{categorical: true, feature: f, bin: level, threshold: float64(level)}
	}
	c -= t.catTotal
	f, b := c/t.nBins, c%t.nBins
	return candidate{feature: f, bin: b, threshold: t.conSplits.At(f, b)}
}
