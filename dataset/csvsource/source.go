// Package csvsource reads training and scoring rows from CSV files with a
// header line.
package csvsource

import (
	"context"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/madlib/archived-madlib-sub001/binning"
	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/dataset"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// Schema names the columns of a CSV file that feed a tree.
type Schema struct {
	Cat      []string
	Con      []string
	Response string
	Weight   string

	// Classify reads the response as a class label.
	Classify bool

	// NullTokens are read as missing in addition to the empty string.
	NullTokens []string
}

// Encoding holds the level codes learned from training records. It is
// saved next to a model so that scoring data is encoded the same way.
type Encoding struct {
	Schema  Schema
	Levels  *binning.LevelEncoder
	Classes *binning.LevelEncoder
}

// Read parses every record of r into a column to value map.
func Read(r io.Reader) ([]map[string]string, error) {
	records, err := gocsv.CSVToMaps(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}
	return records, nil
}

// ReadFile parses the CSV file at path.
func ReadFile(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return Read(f)
}

func column(records []map[string]string, name string) ([]string, error) {
	out := make([]string, len(records))
	for i, rec := range records {
		v, ok := rec[name]
		if !ok {
			return nil, errors.NewValueError("csvsource", "missing column "+strconv.Quote(name))
		}
		out[i] = v
	}
	return out, nil
}

// Fit learns the level codes of the categorical columns and, for a
// classification schema, of the response. Levels are ordered by mean
// response when the response is numeric or binary.
func (s Schema) Fit(records []map[string]string) (*Encoding, error) {
	if len(records) == 0 {
		return nil, errors.NewModelError("Schema.Fit", "no records", errors.ErrEmptyData)
	}
	enc := &Encoding{Schema: s}

	responses, err := column(records, s.Response)
	if err != nil {
		return nil, err
	}
	var y []float64
	if s.Classify {
		enc.Classes = binning.NewLevelEncoder(s.NullTokens...)
		labels := make([][]string, len(responses))
		for i, v := range responses {
			labels[i] = []string{v}
		}
		if err := enc.Classes.Fit(labels); err != nil {
			return nil, err
		}
		y = make([]float64, len(responses))
		for i, v := range responses {
			y[i] = enc.class(v)
		}
	} else {
		y = make([]float64, len(responses))
		for i, v := range responses {
			y[i] = enc.number(v)
		}
	}

	enc.Levels = binning.NewLevelEncoder(s.NullTokens...)
	if len(s.Cat) == 0 {
		enc.Levels.State.SetFitted()
		return enc, nil
	}
	data := make([][]string, len(records))
	for i := range data {
		data[i] = make([]string, len(s.Cat))
	}
	for j, name := range s.Cat {
		col, err := column(records, name)
		if err != nil {
			return nil, err
		}
		for i, v := range col {
			data[i][j] = v
		}
	}
	// Mean ordering needs a finite response on every row.
	ordered := true
	for _, v := range y {
		if math.IsNaN(v) {
			ordered = false
			break
		}
	}
	if ordered {
		err = enc.Levels.FitOrdered(data, y, !s.Classify, enc.NumClasses())
	} else {
		err = enc.Levels.Fit(data)
	}
	if err != nil {
		return nil, err
	}
	return enc, nil
}

// NewEncoding builds an encoding from level maps learned elsewhere, for
// instance read from a database table. classes is nil for regression.
func NewEncoding(s Schema, levels []map[string]int, classes map[string]int) (*Encoding, error) {
	if len(levels) != len(s.Cat) {
		return nil, errors.NewDimensionError("NewEncoding", len(s.Cat), len(levels), 0)
	}
	enc := &Encoding{Schema: s}
	var err error
	if enc.Levels, err = binning.FromLevels(levels, s.NullTokens...); err != nil {
		return nil, err
	}
	if s.Classify {
		if enc.Classes, err = binning.FromLevels([]map[string]int{classes}, s.NullTokens...); err != nil {
			return nil, err
		}
	}
	return enc, nil
}

// NumClasses returns the number of response classes, or 0 for regression.
func (e *Encoding) NumClasses() int {
	if e.Classes == nil {
		return 0
	}
	return len(e.Classes.Categories[0])
}

// ClassName returns the label of class id.
func (e *Encoding) ClassName(id int) string {
	if e.Classes == nil {
		return strconv.Itoa(id)
	}
	return e.Classes.Decode(0, id)
}

func (e *Encoding) class(v string) float64 {
	code, ok := e.Classes.CategoryToIdx[0][strings.TrimSpace(v)]
	if !ok {
		return math.NaN()
	}
	return float64(code)
}

func (e *Encoding) number(v string) float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return math.NaN()
	}
	for _, t := range e.Schema.NullTokens {
		if v == t {
			return math.NaN()
		}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// Features encodes the feature columns of one record.
func (e *Encoding) Features(rec map[string]string) ([]int, []float64, error) {
	catValues := make([]string, len(e.Schema.Cat))
	for j, name := range e.Schema.Cat {
		v, ok := rec[name]
		if !ok {
			return nil, nil, errors.NewValueError("Encoding.Features", "missing column "+strconv.Quote(name))
		}
		catValues[j] = v
	}
	cat, err := e.Levels.Encode(catValues)
	if err != nil {
		return nil, nil, err
	}
	con := make([]float64, len(e.Schema.Con))
	for j, name := range e.Schema.Con {
		v, ok := rec[name]
		if !ok {
			return nil, nil, errors.NewValueError("Encoding.Features", "missing column "+strconv.Quote(name))
		}
		con[j] = e.number(v)
	}
	return cat, con, nil
}

// Row encodes one training record.
func (e *Encoding) Row(rec map[string]string) (dtree.Row, error) {
	cat, con, err := e.Features(rec)
	if err != nil {
		return dtree.Row{}, err
	}
	row := dtree.Row{Cat: cat, Con: con, Weight: 1}
	if e.Classes != nil {
		row.Response = e.class(rec[e.Schema.Response])
	} else {
		row.Response = e.number(rec[e.Schema.Response])
	}
	if e.Schema.Weight != "" {
		row.Weight = e.number(rec[e.Schema.Weight])
	}
	return row, nil
}

// Response encodes the response of a scoring record. It reports false when
// the record has no response column or its value is missing or unknown.
func (e *Encoding) Response(rec map[string]string) (float64, bool) {
	v, ok := rec[e.Schema.Response]
	if !ok {
		return 0, false
	}
	var y float64
	if e.Classes != nil {
		y = e.class(v)
	} else {
		y = e.number(v)
	}
	return y, !math.IsNaN(y)
}

// Source encodes every record into an in-memory source.
func (e *Encoding) Source(records []map[string]string) (*dataset.MemorySource, error) {
	rows := make([]dtree.Row, len(records))
	for i, rec := range records {
		row, err := e.Row(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", i+1)
		}
		rows[i] = row
	}
	return dataset.NewMemorySource(rows), nil
}

// Candidates builds the split candidate table for the encoded records.
func (e *Encoding) Candidates(ctx context.Context, src dataset.Source, nBins int) (*dtree.SplitCandidateTable, error) {
	columns := make([][]float64, len(e.Schema.Con))
	err := src.Scan(ctx, func(r dtree.Row) error {
		for j, v := range r.Con {
			columns[j] = append(columns[j], v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	splits, err := binning.ConSplits(columns, nBins)
	if err != nil {
		return nil, err
	}
	return dtree.NewSplitCandidateTable(e.Levels.Levels(), splits)
}

// Prediction is one output line of a scoring run.
type Prediction struct {
	Row        int    `csv:"row"`
	Prediction string `csv:"prediction"`
}

// WritePredictions writes predictions as CSV with a header line.
func WritePredictions(w io.Writer, preds []Prediction) error {
	return errors.Wrap(gocsv.Marshal(&preds, w), "writing predictions")
}
