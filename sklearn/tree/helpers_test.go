package tree

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/madlib/archived-madlib-sub001/core/dtree"
)

// stepData returns n rows with x = i in column 0 and i%5 in column 1. Rows
// below n/2 get label lo, the rest hi.
func stepData(n int, lo, hi float64) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%5))
		label := lo
		if i >= n/2 {
			label = hi
		}
		y.Set(i, 0, label)
	}
	return X, y
}

// noisyData is a two-class problem in one feature with every tenth label
// flipped.
func noisyData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		label := float64((i / 50) % 2)
		if i%10 == 0 {
			label = 1 - label
		}
		y.Set(i, 0, label)
	}
	return X, y
}

// handTree is the classification tree
//
//	0 [6 4]
//	├── 1 [6 1]
//	│   ├── 3 [6 0]
//	│   └── 4 [0 1]
//	└── 2 [0 3]
//
// whose pruning breakpoints are 0.75 and 0.25.
func handTree(t *testing.T) *dtree.Tree {
	t.Helper()
	tree, err := FromJSON(handJSON())
	require.NoError(t, err)
	return tree
}

func handJSON() TreeJSON {
	return TreeJSON{
		Depth:    3,
		NumStats: 3,
		NumCon:   1,
		Nodes: []NodeJSON{
			{ID: 0, Feature: 0, Threshold: 4, NonNull: [2]float64{7, 3}, Stats: []float64{6, 4, 10}},
			{ID: 1, Feature: 0, Threshold: 2, NonNull: [2]float64{6, 1}, Stats: []float64{6, 1, 7}},
			{ID: 2, Feature: dtree.FinishedLeaf, Stats: []float64{0, 3, 3}},
			{ID: 3, Feature: dtree.FinishedLeaf, Stats: []float64{6, 0, 6}},
			{ID: 4, Feature: dtree.FinishedLeaf, Stats: []float64{0, 1, 1}},
		},
	}
}
