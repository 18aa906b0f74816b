package metrics

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// ClassificationError returns the share of rows whose predicted label
// differs from the true label.
//
// Example:
//
//	yTrue := mat.NewVecDense(5, []float64{0, 1, 2, 1, 0})
//	yPred := mat.NewVecDense(5, []float64{0, 1, 1, 1, 0})
//	rate, _ := metrics.ClassificationError(yTrue, yPred) // 0.2
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("ClassificationError", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	wrong := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) != yPred.AtVec(i) {
			wrong++
		}
	}
	return float64(wrong) / float64(n), nil
}

// Accuracy returns the share of correct predictions.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	rate, err := ClassificationError(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - rate, nil
}

// ConfusionMatrix counts rows by true class (row) and predicted class
// (column). Labels must be class ids in [0, k).
func ConfusionMatrix(yTrue, yPred *mat.VecDense, k int) (*mat.Dense, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, errors.NewValidationError("k", "must be positive", k)
	}
	cm := mat.NewDense(k, k, nil)
	for i := 0; i < n; i++ {
		t, p := int(yTrue.AtVec(i)), int(yPred.AtVec(i))
		if t < 0 || t >= k || p < 0 || p >= k {
			return nil, errors.NewValueError("ConfusionMatrix", "label outside [0, k)")
		}
		cm.Set(t, p, cm.At(t, p)+1)
	}
	return cm, nil
}

// AUC returns the area under the ROC curve of score for binary labels
// (1 positive, anything else negative). Tied scores count one half.
func AUC(yTrue, score *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, score)
	if err != nil {
		return 0, err
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return score.AtVec(idx[a]) < score.AtVec(idx[b]) })

	// Mann-Whitney: sum of the average ranks of the positives.
	var rankSum, pos float64
	for i := 0; i < n; {
		j := i
		for j < n && score.AtVec(idx[j]) == score.AtVec(idx[i]) {
			j++
		}
		rank := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			if yTrue.AtVec(idx[k]) == 1 {
				rankSum += rank
				pos++
			}
		}
		i = j
	}
	neg := float64(n) - pos
	if pos == 0 || neg == 0 {
		return 0, errors.NewValueError("AUC", "need both positive and negative labels")
	}
	return (rankSum - pos*(pos+1)/2) / (pos * neg), nil
}
