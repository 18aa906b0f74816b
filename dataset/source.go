// Package dataset defines the row streams a tree is trained from.
//
// A Source delivers dtree.Row values one at a time. Sources that can be read
// concurrently also implement Partitioner, which lets the aggregate package
// give every worker its own disjoint slice of the data.
package dataset

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/core/parallel"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// Source streams training rows. Scan calls fn once per row and stops at the
// first error fn returns. Rows passed to fn must not be modified.
type Source interface {
	Scan(ctx context.Context, fn func(dtree.Row) error) error
}

// Partitioner is implemented by sources that can be split into disjoint
// parts scanned concurrently. Together the parts hold every row exactly once.
type Partitioner interface {
	Partitions(n int) []Source
}

// MemorySource is a Source over rows held in memory.
type MemorySource struct {
	Rows []dtree.Row
}

// NewMemorySource returns a source over rows.
func NewMemorySource(rows []dtree.Row) *MemorySource {
	return &MemorySource{Rows: rows}
}

// Scan implements Source.
func (m *MemorySource) Scan(ctx context.Context, fn func(dtree.Row) error) error {
	for i, row := range m.Rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

// Partitions implements Partitioner with contiguous chunks.
func (m *MemorySource) Partitions(n int) []Source {
	ranges := parallel.Split(len(m.Rows), n)
	parts := make([]Source, len(ranges))
	for i, r := range ranges {
		parts[i] = &MemorySource{Rows: m.Rows[r.Start:r.End]}
	}
	return parts
}

// Len returns the number of rows.
func (m *MemorySource) Len() int { return len(m.Rows) }

// FromMatrix converts a feature matrix and response vector into rows. The
// columns listed in catCols hold integer level codes and become the
// categorical features, in the order given; the remaining columns become the
// continuous features in column order. NaN marks a missing value in either
// kind. w holds row weights and may be nil for unit weights.
func FromMatrix(X, y mat.Matrix, catCols []int, w []float64) (*MemorySource, error) {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.NewModelError("FromMatrix", "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != rows {
		return nil, errors.NewDimensionError("FromMatrix", rows, yRows, 0)
	}
	if yCols != 1 {
		return nil, errors.NewDimensionError("FromMatrix", 1, yCols, 1)
	}
	if w != nil && len(w) != rows {
		return nil, errors.NewDimensionError("FromMatrix", rows, len(w), 0)
	}

	isCat := make([]bool, cols)
	for _, c := range catCols {
		if c < 0 || c >= cols {
			return nil, errors.NewValidationError("cat_cols", "column out of range", c)
		}
		if isCat[c] {
			return nil, errors.NewValidationError("cat_cols", "duplicate column", c)
		}
		isCat[c] = true
	}
	conCols := ConColumns(cols, catCols)

	out := make([]dtree.Row, rows)
	for i := range out {
		row := dtree.Row{
			Cat:      make([]int, len(catCols)),
			Con:      make([]float64, len(conCols)),
			Response: y.At(i, 0),
			Weight:   1,
		}
		if w != nil {
			row.Weight = w[i]
		}
		for j, c := range catCols {
			v := X.At(i, c)
			if math.IsNaN(v) || v < 0 {
				row.Cat[j] = dtree.NullLevel
				continue
			}
			row.Cat[j] = int(v)
		}
		for j, c := range conCols {
			row.Con[j] = X.At(i, c)
		}
		out[i] = row
	}
	return &MemorySource{Rows: out}, nil
}

// ConColumns returns the columns of a width-cols matrix that are not listed
// in catCols, in increasing order.
func ConColumns(cols int, catCols []int) []int {
	skip := make(map[int]bool, len(catCols))
	for _, c := range catCols {
		skip[c] = true
	}
	con := make([]int, 0, cols-len(catCols))
	for c := 0; c < cols; c++ {
		if !skip[c] {
			con = append(con, c)
		}
	}
	return con
}

// Collect reads every row of src into memory.
func Collect(ctx context.Context, src Source) ([]dtree.Row, error) {
	var rows []dtree.Row
	err := src.Scan(ctx, func(r dtree.Row) error {
		rows = append(rows, r)
		return nil
	})
	return rows, err
}
