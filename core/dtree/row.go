package dtree

import (
	"fmt"
	"math"
)

// NullLevel is the categorical encoding of a missing value. Any negative
// level is treated as null.
const NullLevel = -1

// Row is one training or prediction record.
type Row struct {
	Cat      []int     // Categorical level codes, NullLevel when missing
	Con      []float64 // Continuous values, NaN when missing
	Response float64   // Regression target or class id
	Weight   float64   // Row weight, 1 for unweighted data
}

// IsNullCat reports whether a categorical code is missing.
func IsNullCat(v int) bool { return v < 0 }

// IsNullCon reports whether a continuous value is missing.
func IsNullCon(v float64) bool { return math.IsNaN(v) }

// rowFault describes why a row could not be used. schema faults come from
// an upstream encoding problem, the rest are data quality problems.
type rowFault struct {
	reason string
	schema bool
}

// checkRow validates a training row against the candidate table and
// parameters. It returns nil when the row is usable.
func checkRow(ctx *TrainContext, row Row) *rowFault {
	table := ctx.Table
	if len(row.Cat) != table.NumCat() || len(row.Con) != table.NumCon() {
		return &rowFault{reason: fmt.Sprintf("row has %d categorical and %d continuous values, want %d and %d",
			len(row.Cat), len(row.Con), table.NumCat(), table.NumCon())}
	}
	if math.IsNaN(row.Response) || math.IsInf(row.Response, 0) {
		return &rowFault{reason: "non-finite response"}
	}
	if math.IsNaN(row.Weight) || math.IsInf(row.Weight, 0) || row.Weight < 0 {
		return &rowFault{reason: "negative or non-finite weight"}
	}
	for f, v := range row.Con {
		if math.IsInf(v, 0) {
			return &rowFault{reason: fmt.Sprintf("infinite value in continuous feature %d", f)}
		}
	}
	for f, v := range row.Cat {
		if v >= table.Levels(f) {
			return &rowFault{reason: fmt.Sprintf("level %d out of range for categorical feature %d", v, f), schema: true}
		}
	}
	if !ctx.Params.Regression {
		k := ctx.Params.NumClasses
		if row.Response != math.Trunc(row.Response) || row.Response < 0 || int(row.Response) >= k {
			return &rowFault{reason: fmt.Sprintf("class id %v out of range [0, %d)", row.Response, k), schema: true}
		}
	}
	return nil
}
