package dtree

import (
	"fmt"
	"math"
	"strings"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// Criterion selects the impurity measure used to score splits.
type Criterion int

const (
	// Gini impurity, the default for classification.
	Gini Criterion = iota
	// Entropy (information gain), base 2.
	Entropy
	// Misclassification rate.
	Misclass
	// MSE is the weighted variance, the only regression criterion.
	MSE
)

func (c Criterion) String() string {
	switch c {
	case Gini:
		return "gini"
	case Entropy:
		return "entropy"
	case Misclass:
		return "misclass"
	case MSE:
		return "mse"
	default:
		return fmt.Sprintf("Criterion(%d)", int(c))
	}
}

// ParseCriterion maps a criterion name to a Criterion. The empty string
// selects Gini.
func ParseCriterion(name string) (Criterion, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gini", "":
		return Gini, nil
	case "entropy", "cross-entropy", "information":
		return Entropy, nil
	case "misclass", "misclassification":
		return Misclass, nil
	case "mse", "variance", "squared_error":
		return MSE, nil
	}
	return Gini, errors.NewValidationError("criterion", "must be one of gini, entropy, misclass, mse", name)
}

// impurity is the per-problem strategy resolved once from the parameters.
// Every method receives a statistics vector in the layout of the problem.
type impurity interface {
	width() int
	// add accumulates one row into stats.
	add(stats []float64, y, w float64)
	impurity(stats []float64) float64
	weight(stats []float64) float64
	pure(stats []float64) bool
}

func newImpurity(p Params) impurity {
	if p.Regression {
		return varianceImpurity{}
	}
	return classImpurity{k: p.NumClasses, kind: p.Criterion}
}

// count returns the unweighted row count, stored in the last slot of every
// statistics vector.
func count(stats []float64) float64 { return stats[len(stats)-1] }

// Regression statistics: [Σw, Σw·y, Σw·y², n].
type varianceImpurity struct{}

func (varianceImpurity) width() int { return 4 }

func (varianceImpurity) add(stats []float64, y, w float64) {
	stats[0] += w
	stats[1] += w * y
	stats[2] += w * y * y
	stats[3]++
}

func (varianceImpurity) weight(stats []float64) float64 { return stats[0] }

func (varianceImpurity) impurity(stats []float64) float64 {
	if stats[0] <= 0 {
		return 0
	}
	mean := stats[1] / stats[0]
	v := stats[2]/stats[0] - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

func (varianceImpurity) pure(stats []float64) bool {
	return regressionRisk(stats) <= purityTolerance*(math.Abs(stats[2])+1)
}

// Classification statistics: [w_0 … w_{k-1}, n].
type classImpurity struct {
	k    int
	kind Criterion
}

func (c classImpurity) width() int { return c.k + 1 }

func (c classImpurity) add(stats []float64, y, w float64) {
	stats[int(y)] += w
	stats[c.k]++
}

func (c classImpurity) weight(stats []float64) float64 {
	var total float64
	for _, v := range stats[:c.k] {
		total += v
	}
	return total
}

func (c classImpurity) impurity(stats []float64) float64 {
	total := c.weight(stats)
	if total <= 0 {
		return 0
	}
	switch c.kind {
	case Entropy:
		var h float64
		for _, v := range stats[:c.k] {
			if v > 0 {
				p := v / total
				h -= p * math.Log2(p)
			}
		}
		return h
	case Misclass:
		return 1 - maxOf(stats[:c.k])/total
	default:
		g := 1.0
		for _, v := range stats[:c.k] {
			p := v / total
			g -= p * p
		}
		return g
	}
}

func (c classImpurity) pure(stats []float64) bool {
	nonzero := 0
	for _, v := range stats[:c.k] {
		if v > 0 {
			nonzero++
		}
	}
	return nonzero <= 1
}

// purityTolerance bounds the residual variance treated as zero.
const purityTolerance = 1e-12

// regressionRisk is the weighted sum of squared errors around the mean.
func regressionRisk(stats []float64) float64 {
	if stats[0] <= 0 {
		return 0
	}
	r := stats[2] - stats[1]*stats[1]/stats[0]
	if r < 0 {
		return 0
	}
	return r
}

// classificationRisk is the weight not belonging to the majority class.
func classificationRisk(stats []float64) float64 {
	k := len(stats) - 1
	var total float64
	for _, v := range stats[:k] {
		total += v
	}
	return total - maxOf(stats[:k])
}

// riskOf returns the resubstitution risk of a statistics vector.
func riskOf(regression bool, stats []float64) float64 {
	if regression {
		return regressionRisk(stats)
	}
	return classificationRisk(stats)
}

// responseOf returns the weighted mean for regression and the arg-max class
// for classification. Ties resolve to the lowest class id.
func responseOf(regression bool, stats []float64) float64 {
	if regression {
		if stats[0] <= 0 {
			return math.NaN()
		}
		return stats[1] / stats[0]
	}
	best := 0
	for i, v := range stats[:len(stats)-1] {
		if v > stats[best] {
			best = i
		}
	}
	return float64(best)
}

func maxOf(v []float64) float64 {
	m := math.Inf(-1)
	for _, x := range v {
		if x > m {
			m = x
		}
	}
	return m
}
