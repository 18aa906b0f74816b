package main

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/madlib/archived-madlib-sub001/config"
	"github.com/madlib/archived-madlib-sub001/metrics"
)

// evaluation collects the responses of scored records that carry the
// response column, next to what the tree predicted for them.
type evaluation struct {
	truth []float64
	pred  []float64
	score []float64 // probability of class 1, classification only
}

func (ev *evaluation) add(truth, pred, score float64) {
	ev.truth = append(ev.truth, truth)
	ev.pred = append(ev.pred, pred)
	ev.score = append(ev.score, score)
}

// report writes the metrics of the evaluated records to w. Nothing is
// written when no record carried a response.
func (ev *evaluation) report(w io.Writer, meta *modelMeta) error {
	n := len(ev.truth)
	if n == 0 {
		return nil
	}
	truth := mat.NewVecDense(n, ev.truth)
	pred := mat.NewVecDense(n, ev.pred)
	fmt.Fprintf(w, "evaluated: %d\n", n)

	if meta.Task == config.Regression {
		mse, err := metrics.MSE(truth, pred)
		if err != nil {
			return err
		}
		rmse, err := metrics.RMSE(truth, pred)
		if err != nil {
			return err
		}
		mae, err := metrics.MAE(truth, pred)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "mse: %g\nrmse: %g\nmae: %g\n", mse, rmse, mae)
		// R² is undefined for a constant response.
		if r2, err := metrics.R2Score(truth, pred); err == nil {
			fmt.Fprintf(w, "r2: %g\n", r2)
		}
		return nil
	}

	rate, err := metrics.ClassificationError(truth, pred)
	if err != nil {
		return err
	}
	acc, err := metrics.Accuracy(truth, pred)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "accuracy: %g\nerror: %g\n", acc, rate)
	k := meta.Encoding.NumClasses()
	if k == 2 {
		if auc, err := metrics.AUC(truth, mat.NewVecDense(n, ev.score)); err == nil {
			fmt.Fprintf(w, "auc: %g\n", auc)
		}
	}
	cm, err := metrics.ConfusionMatrix(truth, pred, k)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "confusion (rows true, columns predicted):")
	for i := 0; i < k; i++ {
		fmt.Fprintf(w, "  %s:", meta.Encoding.ClassName(i))
		for j := 0; j < k; j++ {
			fmt.Fprintf(w, " %g", cm.At(i, j))
		}
		fmt.Fprintln(w)
	}
	return nil
}
