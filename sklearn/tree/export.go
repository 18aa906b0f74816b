package tree

import (
	"io"
	"math"

	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/core/model"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// NodeJSON is one existing node of an exported tree. Feature holds the
// split feature index or a dtree leaf sentinel.
type NodeJSON struct {
	ID          int             `json:"id"`
	Feature     int             `json:"feature"`
	Categorical bool            `json:"categorical,omitempty"`
	Threshold   float64         `json:"threshold"`
	NonNull     [2]float64      `json:"nonnull_split_count"`
	Stats       []float64       `json:"stats"`
	Response    *float64        `json:"response,omitempty"`
	Surrogates  []SurrogateJSON `json:"surrogates,omitempty"`
}

// SurrogateJSON is one surrogate split of a node.
type SurrogateJSON struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Status    int     `json:"status"`
	Agreement float64 `json:"agreement"`
}

// TreeJSON is the exported form of a tree.
type TreeJSON struct {
	Depth         int         `json:"tree_depth"`
	NumStats      int         `json:"n_stats"`
	MaxSurrogates int         `json:"max_surrogates"`
	Regression    bool        `json:"regression"`
	NumCat        int         `json:"n_cat"`
	NumCon        int         `json:"n_con"`
	Nodes         []NodeJSON  `json:"nodes"`
	CPTable       []PathPoint `json:"cp_table,omitempty"`
}

// ToJSON converts tree to its exported form.
func ToJSON(tree *dtree.Tree) TreeJSON {
	out := TreeJSON{
		Depth:         tree.Depth,
		NumStats:      tree.NumStats,
		MaxSurrogates: tree.MaxSurrogates,
		Regression:    tree.Regression,
		NumCat:        tree.NumCat,
		NumCon:        tree.NumCon,
	}
	for n := 0; n < tree.NumNodes(); n++ {
		if !tree.Exists(n) {
			continue
		}
		node := NodeJSON{
			ID:          n,
			Feature:     tree.FeatureIndices[n],
			Categorical: tree.IsCategorical[n],
			Threshold:   tree.Thresholds[n],
			NonNull:     [2]float64{tree.NonNullSplitCount[2*n], tree.NonNullSplitCount[2*n+1]},
			Stats:       tree.Distribution(n),
		}
		if r := tree.Response(n); !math.IsNaN(r) {
			node.Response = &r
		}
		for _, s := range tree.Surrogates(n) {
			node.Surrogates = append(node.Surrogates, SurrogateJSON{
				Feature:   s.Feature,
				Threshold: s.Threshold,
				Status:    int(s.Status),
				Agreement: s.Agreement,
			})
		}
		out.Nodes = append(out.Nodes, node)
	}
	return out
}

// FromJSON rebuilds a tree and validates it.
func FromJSON(in TreeJSON) (*dtree.Tree, error) {
	if in.Depth < 1 || in.Depth > dtree.MaxTreeDepth {
		return nil, errors.NewValidationError("tree_depth", "out of range", in.Depth)
	}
	tree, err := dtree.New(in.Regression, in.NumStats, in.MaxSurrogates, in.NumCat, in.NumCon)
	if err != nil {
		return nil, err
	}
	tree.FeatureIndices[0] = dtree.NodeNonExisting
	for tree.Depth < in.Depth {
		if err := tree.Grow(); err != nil {
			return nil, err
		}
	}
	for _, node := range in.Nodes {
		n := node.ID
		if n < 0 || n >= tree.NumNodes() {
			return nil, errors.NewValueError("FromJSON", "node id outside the tree")
		}
		if len(node.Stats) != in.NumStats {
			return nil, errors.NewDimensionError("FromJSON", in.NumStats, len(node.Stats), 1)
		}
		if len(node.Surrogates) > in.MaxSurrogates {
			return nil, errors.NewValueError("FromJSON", "too many surrogates")
		}
		tree.FeatureIndices[n] = node.Feature
		tree.IsCategorical[n] = node.Categorical
		tree.Thresholds[n] = node.Threshold
		tree.NonNullSplitCount[2*n] = node.NonNull[0]
		tree.NonNullSplitCount[2*n+1] = node.NonNull[1]
		copy(tree.Stats(n), node.Stats)
		for k, s := range node.Surrogates {
			i := n*in.MaxSurrogates + k
			tree.SurrIndices[i] = s.Feature
			tree.SurrThresholds[i] = s.Threshold
			tree.SurrStatus[i] = dtree.SurrogateStatus(s.Status)
			tree.SurrAgreement[i] = s.Agreement
		}
	}
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	return tree, nil
}

// ExportJSON writes the fitted tree in a versioned JSON envelope.
func (e *estimator) ExportJSON(w io.Writer) error {
	if !e.State.IsFitted() {
		return errors.NewNotFittedError(e.name, "ExportJSON")
	}
	doc := ToJSON(e.tree)
	doc.CPTable = e.path
	return model.ExportModel(e.name, doc, w)
}

// ImportJSON reads a tree exported by an estimator named modelName.
func ImportJSON(modelName string, r io.Reader) (*dtree.Tree, []PathPoint, error) {
	var doc TreeJSON
	if err := model.ImportModel(modelName, r, &doc); err != nil {
		return nil, nil, err
	}
	tree, err := FromJSON(doc)
	if err != nil {
		return nil, nil, err
	}
	return tree, doc.CPTable, nil
}
