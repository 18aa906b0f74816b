package binning

import (
	"fmt"
	"sort"
	"strings"

	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/core/model"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// LevelEncoder maps the string values of categorical columns to the dense
// level codes 0..L-1 the tree works with. Missing and unseen values encode
// to dtree.NullLevel.
type LevelEncoder struct {
	State *model.StateManager

	// Categories holds the levels of each feature in code order.
	Categories [][]string

	// CategoryToIdx maps each level to its code.
	CategoryToIdx []map[string]int

	// NFeatures is the number of categorical columns.
	NFeatures int

	// NullTokens lists the values read as missing.
	NullTokens map[string]bool
}

// NewLevelEncoder returns an encoder treating the empty string and the
// given tokens as missing.
//
//	enc := binning.NewLevelEncoder("NULL", "NA")
//	err := enc.Fit(data)
//	codes := enc.Encode(row)
func NewLevelEncoder(nullTokens ...string) *LevelEncoder {
	tokens := map[string]bool{"": true}
	for _, t := range nullTokens {
		tokens[t] = true
	}
	return &LevelEncoder{State: model.NewStateManager(), NullTokens: tokens}
}

// IsNull reports whether v is a missing value.
func (e *LevelEncoder) IsNull(v string) bool {
	return e.NullTokens[strings.TrimSpace(v)]
}

// Fit learns the levels of every column, in lexical order.
func (e *LevelEncoder) Fit(data [][]string) (err error) {
	defer errors.Recover(&err, "LevelEncoder.Fit")
	return e.fit(data, nil, false, 0)
}

// FitOrdered learns the levels of every column ordered by the mean response
// of the rows holding them. For a regression or a binary response this
// ordering lets the "levels 0..l go left" candidates reach the optimal
// partition of the levels. For more classes levels are ordered by
// decreasing frequency.
func (e *LevelEncoder) FitOrdered(data [][]string, y []float64, regression bool, nClasses int) (err error) {
	defer errors.Recover(&err, "LevelEncoder.FitOrdered")
	if len(y) != len(data) {
		return errors.NewDimensionError("LevelEncoder.FitOrdered", len(data), len(y), 0)
	}
	return e.fit(data, y, regression, nClasses)
}

func (e *LevelEncoder) fit(data [][]string, y []float64, regression bool, nClasses int) error {
	if len(data) == 0 {
		return errors.NewModelError("LevelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	nFeatures := len(data[0])
	for i, row := range data {
		if len(row) != nFeatures {
			return errors.NewDimensionError("LevelEncoder.Fit", nFeatures, len(row), i)
		}
	}

	e.NFeatures = nFeatures
	e.Categories = make([][]string, nFeatures)
	e.CategoryToIdx = make([]map[string]int, nFeatures)

	for j := 0; j < nFeatures; j++ {
		type levelStats struct {
			count int
			sum   float64
		}
		seen := make(map[string]*levelStats)
		for i, row := range data {
			v := strings.TrimSpace(row[j])
			if e.NullTokens[v] {
				continue
			}
			s, ok := seen[v]
			if !ok {
				s = &levelStats{}
				seen[v] = s
			}
			s.count++
			if y != nil {
				s.sum += y[i]
			}
		}

		categories := make([]string, 0, len(seen))
		for v := range seen {
			categories = append(categories, v)
		}
		sort.Strings(categories)
		switch {
		case y == nil:
		case regression || nClasses == 2:
			sort.SliceStable(categories, func(a, b int) bool {
				sa, sb := seen[categories[a]], seen[categories[b]]
				return sa.sum/float64(sa.count) < sb.sum/float64(sb.count)
			})
		default:
			sort.SliceStable(categories, func(a, b int) bool {
				return seen[categories[a]].count > seen[categories[b]].count
			})
		}

		e.Categories[j] = categories
		idx := make(map[string]int, len(categories))
		for code, v := range categories {
			idx[v] = code
		}
		e.CategoryToIdx[j] = idx
	}

	e.State.SetDimensions(nFeatures, len(data))
	e.State.SetFitted()
	return nil
}

// Levels returns the level count of each feature. A feature that only held
// missing values still gets one level so that tables stay valid.
func (e *LevelEncoder) Levels() []int {
	levels := make([]int, e.NFeatures)
	for j, c := range e.Categories {
		levels[j] = max(1, len(c))
	}
	return levels
}

// Encode converts one row of categorical values to level codes.
func (e *LevelEncoder) Encode(row []string) ([]int, error) {
	if !e.State.IsFitted() {
		return nil, errors.NewNotFittedError("LevelEncoder", "Encode")
	}
	if len(row) != e.NFeatures {
		return nil, errors.NewDimensionError("LevelEncoder.Encode", e.NFeatures, len(row), 1)
	}
	codes := make([]int, len(row))
	for j, v := range row {
		code, ok := e.CategoryToIdx[j][strings.TrimSpace(v)]
		if !ok {
			code = dtree.NullLevel
		}
		codes[j] = code
	}
	return codes, nil
}

// Decode returns the level name of code on feature j, or "" for a null code.
func (e *LevelEncoder) Decode(j, code int) string {
	if dtree.IsNullCat(code) || j >= len(e.Categories) || code >= len(e.Categories[j]) {
		return ""
	}
	return e.Categories[j][code]
}

// FromLevels builds a fitted encoder from level to code maps, one per
// feature, such as those read from a database. Codes must be dense.
func FromLevels(levels []map[string]int, nullTokens ...string) (*LevelEncoder, error) {
	e := NewLevelEncoder(nullTokens...)
	e.NFeatures = len(levels)
	e.Categories = make([][]string, len(levels))
	e.CategoryToIdx = make([]map[string]int, len(levels))
	for j, m := range levels {
		categories := make([]string, len(m))
		idx := make(map[string]int, len(m))
		filled := make([]bool, len(m))
		for v, code := range m {
			if code < 0 || code >= len(m) || filled[code] {
				return nil, errors.NewValueError("FromLevels", fmt.Sprintf("feature %d has a non-dense code %d", j, code))
			}
			filled[code] = true
			categories[code] = v
			idx[v] = code
		}
		e.Categories[j] = categories
		e.CategoryToIdx[j] = idx
	}
	e.State.SetDimensions(len(levels), 0)
	e.State.SetFitted()
	return e, nil
}
