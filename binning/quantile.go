// Package binning computes the split candidates a tree is grown from:
// continuous thresholds taken at sample quantiles, and integer level codes
// for categorical columns.
package binning

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// DefaultBins is the number of intervals each continuous feature is cut
// into when no count is configured.
const DefaultBins = 20

// Quantiles returns nBins-1 ascending thresholds cutting values into nBins
// intervals of roughly equal mass. NaN values are ignored.
func Quantiles(values []float64, nBins int) ([]float64, error) {
	if nBins < 2 {
		return nil, errors.NewValidationError("n_bins", "must be at least 2", nBins)
	}
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return nil, errors.NewModelError("Quantiles", "no non-null values", errors.ErrEmptyData)
	}
	sort.Float64s(sorted)

	out := make([]float64, nBins-1)
	for i := range out {
		p := float64(i+1) / float64(nBins)
		out[i] = stat.Quantile(p, stat.Empirical, sorted, nil)
	}
	return out, nil
}

// ConSplits computes the threshold matrix for a set of continuous columns,
// one row per column.
func ConSplits(columns [][]float64, nBins int) (*mat.Dense, error) {
	if len(columns) == 0 {
		return nil, nil
	}
	if nBins < 2 {
		return nil, errors.NewValidationError("n_bins", "must be at least 2", nBins)
	}
	splits := mat.NewDense(len(columns), nBins-1, nil)
	for f, col := range columns {
		q, err := Quantiles(col, nBins)
		if err != nil {
			return nil, errors.Wrapf(err, "continuous feature %d", f)
		}
		splits.SetRow(f, q)
	}
	return splits, nil
}

// Columns extracts the given columns of X.
func Columns(X mat.Matrix, cols []int) [][]float64 {
	r, _ := X.Dims()
	out := make([][]float64, len(cols))
	for i, c := range cols {
		col := make([]float64, r)
		mat.Col(col, c, X)
		out[i] = col
	}
	return out
}
