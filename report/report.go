// Package report renders cross-validation diagnostics of a pruned tree.
package report

import (
	"image/color"
	"io"
	"math"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
	"github.com/madlib/archived-madlib-sub001/sklearn/tree"
)

// errorPoints carries cross-validated errors with their standard errors.
type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

// ComplexityPlot builds the plot of relative training and cross-validated
// error against the size of the tree, one point per complexity parameter.
// The dashed line is one standard error above the minimum cross-validated
// error.
func ComplexityPlot(points []tree.PathPoint) (*plot.Plot, error) {
	if len(points) == 0 {
		return nil, errors.NewModelError("ComplexityPlot", "no complexity table", errors.ErrEmptyData)
	}
	rel := make(plotter.XYs, len(points))
	xerr := errorPoints{XYs: make(plotter.XYs, len(points)), YErrors: make(plotter.YErrors, len(points))}
	best := 0
	for i, pt := range points {
		size := float64(pt.NumSplits + 1)
		rel[i].X, rel[i].Y = size, pt.RelError
		xerr.XYs[i].X, xerr.XYs[i].Y = size, pt.XError
		xerr.YErrors[i].Low, xerr.YErrors[i].High = pt.XStd, pt.XStd
		if pt.XError < points[best].XError {
			best = i
		}
	}

	p := plot.New()
	p.Title.Text = "Cost-complexity pruning"
	p.X.Label.Text = "Size of tree (leaves)"
	p.Y.Label.Text = "Relative error"

	relLine, relPoints, err := plotter.NewLinePoints(rel)
	if err != nil {
		return nil, err
	}
	relLine.Color = color.RGBA{B: 200, A: 255}
	relPoints.Color = relLine.Color
	p.Add(relLine, relPoints)
	p.Legend.Add("training", relLine, relPoints)

	xLine, xPoints, err := plotter.NewLinePoints(xerr.XYs)
	if err != nil {
		return nil, err
	}
	xLine.Color = color.RGBA{R: 200, A: 255}
	xPoints.Color = xLine.Color
	bars, err := plotter.NewYErrorBars(xerr)
	if err != nil {
		return nil, err
	}
	p.Add(xLine, xPoints, bars)
	p.Legend.Add("cross-validated", xLine, xPoints)

	minX, maxX := math.Inf(1), math.Inf(-1)
	for _, pt := range rel {
		minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
	}
	limit := points[best].XError + points[best].XStd
	se, err := plotter.NewLine(plotter.XYs{{X: minX, Y: limit}, {X: maxX, Y: limit}})
	if err != nil {
		return nil, err
	}
	se.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(se)
	return p, nil
}

// PlotComplexityPath saves the complexity plot of points to path. The
// image format follows the file extension.
func PlotComplexityPath(points []tree.PathPoint, path string) error {
	p, err := ComplexityPlot(points)
	if err != nil {
		return err
	}
	return errors.Wrapf(p.Save(6*vg.Inch, 4*vg.Inch, path), "saving %s", path)
}

// WriteComplexityTable writes points as CSV with a header line.
func WriteComplexityTable(w io.Writer, points []tree.PathPoint) error {
	return errors.Wrap(gocsv.Marshal(points, w), "writing complexity table")
}
