package dtree

// Importance holds one score per feature, split by kind.
type Importance struct {
	Cat []float64
	Con []float64
}

// Total returns the sum of all scores.
func (imp Importance) Total() float64 {
	var s float64
	for _, v := range imp.Cat {
		s += v
	}
	for _, v := range imp.Con {
		s += v
	}
	return s
}

func (imp Importance) scale(to float64) Importance {
	total := imp.Total()
	if total <= 0 {
		return imp
	}
	for i := range imp.Cat {
		imp.Cat[i] *= to / total
	}
	for i := range imp.Con {
		imp.Con[i] *= to / total
	}
	return imp
}

func (imp Importance) credit(categorical bool, f int, v float64) {
	if categorical {
		imp.Cat[f] += v
	} else {
		imp.Con[f] += v
	}
}

// FeatureImportance credits every split's impurity reduction to its primary
// feature. Scores are normalized to sum to 100.
func FeatureImportance(tree *Tree) Importance {
	imp := Importance{Cat: make([]float64, tree.NumCat), Con: make([]float64, tree.NumCon)}
	for n := range tree.FeatureIndices {
		if !tree.IsSplit(n) {
			continue
		}
		imp.credit(tree.IsCategorical[n], tree.FeatureIndices[n], splitImprovement(tree, n))
	}
	return imp.scale(100)
}

// SurrogateImportance credits every split's impurity reduction to its
// surrogates, weighted by the share of non-null rows each one agrees on.
// Scores are normalized to sum to 100.
func SurrogateImportance(tree *Tree) Importance {
	imp := Importance{Cat: make([]float64, tree.NumCat), Con: make([]float64, tree.NumCon)}
	for n := range tree.FeatureIndices {
		if !tree.IsSplit(n) {
			continue
		}
		nonnull := tree.NonNullSplitCount[2*n] + tree.NonNullSplitCount[2*n+1]
		if nonnull <= 0 {
			continue
		}
		gain := splitImprovement(tree, n)
		for _, s := range tree.Surrogates(n) {
			categorical := s.Status == SurrogateCatForward || s.Status == SurrogateCatReverse
			imp.credit(categorical, s.Feature, gain*s.Agreement/nonnull)
		}
	}
	return imp.scale(100)
}

// splitImprovement is the weighted impurity reduction of split n: the drop
// in squared error for regression and in weighted Gini for classification.
func splitImprovement(tree *Tree, n int) float64 {
	node := weightedImpurity(tree, n)
	d := node - weightedImpurity(tree, Left(n)) - weightedImpurity(tree, Right(n))
	if d < 0 {
		return 0
	}
	return d
}

func weightedImpurity(tree *Tree, n int) float64 {
	stats := tree.Stats(n)
	if tree.Regression {
		return regressionRisk(stats)
	}
	c := classImpurity{k: tree.NumClasses(), kind: Gini}
	return c.weight(stats) * c.impurity(stats)
}
