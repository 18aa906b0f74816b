// Package sqlsource streams training rows out of a table of a SQL database,
// so trees can be grown where the data lives. The sqlite3 and postgres
// drivers are registered by this package.
package sqlsource

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	// Database drivers
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/madlib/archived-madlib-sub001/binning"
	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/dataset"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// Source reads rows from Table. Categorical columns are read as text and
// mapped to codes through Levels; values missing from a map and SQL NULLs
// become dtree.NullLevel. Continuous NULLs become NaN.
//
// When Classes is set the response column is read as text and mapped to a
// class id; otherwise it is read as a number.
type Source struct {
	DB         *sql.DB
	Table      string
	CatColumns []string
	ConColumns []string
	Response   string

	// Weight names an optional weight column.
	Weight string

	// Where is an optional filter appended to every query.
	Where string

	// PartitionKey names an integer column used to split the table into
	// disjoint parts by key modulo the part count.
	PartitionKey string

	Levels  []map[string]int
	Classes map[string]int
}

var (
	_ dataset.Partitioner = (*Source)(nil)
	_ dataset.Folder      = (*Source)(nil)
)

// Open opens a database handle for driver "sqlite3" or "postgres".
func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case "sqlite3", "postgres":
	default:
		return nil, errors.NewValidationError("driver", "must be sqlite3 or postgres", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s database", driver)
	}
	return db, nil
}

func quote(ident string) (string, error) {
	if ident == "" || strings.ContainsAny(ident, `"`+"\x00") {
		return "", errors.NewValidationError("column", "invalid identifier", ident)
	}
	return `"` + ident + `"`, nil
}

func (s *Source) columns() []string {
	cols := make([]string, 0, len(s.CatColumns)+len(s.ConColumns)+2)
	cols = append(cols, s.CatColumns...)
	cols = append(cols, s.ConColumns...)
	cols = append(cols, s.Response)
	if s.Weight != "" {
		cols = append(cols, s.Weight)
	}
	return cols
}

func (s *Source) query() (string, error) {
	var buf bytes.Buffer
	buf.WriteString("SELECT ")
	for i, c := range s.columns() {
		q, err := quote(c)
		if err != nil {
			return "", err
		}
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(q)
	}
	table, err := quote(s.Table)
	if err != nil {
		return "", err
	}
	buf.WriteString(" FROM ")
	buf.WriteString(table)
	if s.Where != "" {
		buf.WriteString(" WHERE ")
		buf.WriteString(s.Where)
	}
	return buf.String(), nil
}

// Scan implements dataset.Source with a single SELECT over the table.
func (s *Source) Scan(ctx context.Context, fn func(dtree.Row) error) error {
	if s.Levels != nil && len(s.Levels) != len(s.CatColumns) {
		return errors.NewDimensionError("sqlsource.Scan", len(s.CatColumns), len(s.Levels), 0)
	}
	q, err := s.query()
	if err != nil {
		return err
	}
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return errors.Wrapf(err, "querying %s", s.Table)
	}
	defer rows.Close()

	cat := make([]sql.NullString, len(s.CatColumns))
	con := make([]sql.NullFloat64, len(s.ConColumns))
	var textResponse sql.NullString
	var response, weight sql.NullFloat64
	dest := make([]interface{}, 0, len(cat)+len(con)+2)
	for i := range cat {
		dest = append(dest, &cat[i])
	}
	for i := range con {
		dest = append(dest, &con[i])
	}
	if s.Classes != nil {
		dest = append(dest, &textResponse)
	} else {
		dest = append(dest, &response)
	}
	if s.Weight != "" {
		dest = append(dest, &weight)
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return errors.Wrapf(err, "scanning %s", s.Table)
		}
		row := dtree.Row{
			Cat:      make([]int, len(cat)),
			Con:      make([]float64, len(con)),
			Response: math.NaN(),
			Weight:   1,
		}
		for i, v := range cat {
			row.Cat[i] = s.level(i, v)
		}
		for i, v := range con {
			row.Con[i] = math.NaN()
			if v.Valid {
				row.Con[i] = v.Float64
			}
		}
		if s.Classes != nil {
			if id, ok := s.Classes[textResponse.String]; ok && textResponse.Valid {
				row.Response = float64(id)
			}
		} else if response.Valid {
			row.Response = response.Float64
		}
		if s.Weight != "" {
			row.Weight = math.NaN()
			if weight.Valid {
				row.Weight = weight.Float64
			}
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return errors.Wrapf(rows.Err(), "reading %s", s.Table)
}

func (s *Source) level(i int, v sql.NullString) int {
	if !v.Valid {
		return dtree.NullLevel
	}
	if s.Levels == nil {
		return dtree.NullLevel
	}
	code, ok := s.Levels[i][v.String]
	if !ok {
		return dtree.NullLevel
	}
	return code
}

// Partitions implements dataset.Partitioner. Without a PartitionKey the
// source is returned whole.
func (s *Source) Partitions(n int) []dataset.Source {
	if s.PartitionKey == "" || n <= 1 {
		return []dataset.Source{s}
	}
	key, err := quote(s.PartitionKey)
	if err != nil {
		return []dataset.Source{s}
	}
	parts := make([]dataset.Source, n)
	for i := range parts {
		part := *s
		pred := fmt.Sprintf("ABS(%s) %% %d = %d", key, n, i)
		if s.Where != "" {
			pred = "(" + s.Where + ") AND " + pred
		}
		part.Where = pred
		part.PartitionKey = ""
		parts[i] = &part
	}
	return parts
}

// Fold implements dataset.Folder. Rows are assigned to folds by
// PartitionKey modulo k, so a row lands in the same fold on every scan
// whatever order the database returns it in. Rows with a NULL key belong to
// no fold. Without a PartitionKey it reports false.
func (s *Source) Fold(k, index int, holdout bool) (dataset.Source, bool) {
	if s.PartitionKey == "" || k < 2 {
		return nil, false
	}
	key, err := quote(s.PartitionKey)
	if err != nil {
		return nil, false
	}
	op := "<>"
	if holdout {
		op = "="
	}
	pred := fmt.Sprintf("ABS(%s) %% %d %s %d", key, k, op, index)
	if s.Where != "" {
		pred = "(" + s.Where + ") AND " + pred
	}
	fold := *s
	fold.Where = pred
	return &fold, true
}

// Distinct returns the distinct non-null values of column, sorted.
func (s *Source) Distinct(ctx context.Context, column string) ([]string, error) {
	col, err := quote(column)
	if err != nil {
		return nil, err
	}
	table, err := quote(s.Table)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL", col, table, col)
	if s.Where != "" {
		q += " AND (" + s.Where + ")"
	}
	q += " ORDER BY 1"
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, errors.Wrapf(err, "listing values of %s", column)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrapf(err, "listing values of %s", column)
		}
		out = append(out, v)
	}
	return out, errors.Wrapf(rows.Err(), "listing values of %s", column)
}

// Sample returns up to limit non-null values of a numeric column drawn in
// random order, so clustered tables still yield representative quantiles.
// A limit of zero reads the whole column.
func (s *Source) Sample(ctx context.Context, column string, limit int) ([]float64, error) {
	col, err := quote(column)
	if err != nil {
		return nil, err
	}
	table, err := quote(s.Table)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL", col, table, col)
	if s.Where != "" {
		q += " AND (" + s.Where + ")"
	}
	if limit > 0 {
		q += fmt.Sprintf(" ORDER BY RANDOM() LIMIT %d", limit)
	}
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, errors.Wrapf(err, "sampling %s", column)
	}
	defer rows.Close()
	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrapf(err, "sampling %s", column)
		}
		out = append(out, v)
	}
	return out, errors.Wrapf(rows.Err(), "sampling %s", column)
}

// LoadLevels fills Levels from the distinct values of every categorical
// column, and Classes from the response column when classify is set.
func (s *Source) LoadLevels(ctx context.Context, classify bool) error {
	s.Levels = make([]map[string]int, len(s.CatColumns))
	for i, c := range s.CatColumns {
		values, err := s.Distinct(ctx, c)
		if err != nil {
			return err
		}
		s.Levels[i] = indexOf(values)
	}
	if classify {
		values, err := s.Distinct(ctx, s.Response)
		if err != nil {
			return err
		}
		s.Classes = indexOf(values)
	}
	return nil
}

func indexOf(values []string) map[string]int {
	m := make(map[string]int, len(values))
	for i, v := range values {
		m[v] = i
	}
	return m
}

// Candidates builds the split candidate table of the source: level counts
// from Levels and quantile thresholds from a sample of every continuous
// column. LoadLevels must have been called when there are categorical
// columns.
func (s *Source) Candidates(ctx context.Context, nBins, sampleLimit int) (*dtree.SplitCandidateTable, error) {
	if len(s.Levels) != len(s.CatColumns) {
		return nil, errors.NewValueError("sqlsource.Candidates", "levels not loaded")
	}
	levels := make([]int, len(s.Levels))
	for i, m := range s.Levels {
		levels[i] = max(1, len(m))
	}
	columns := make([][]float64, len(s.ConColumns))
	for i, c := range s.ConColumns {
		sample, err := s.Sample(ctx, c, sampleLimit)
		if err != nil {
			return nil, err
		}
		columns[i] = sample
	}
	splits, err := binning.ConSplits(columns, nBins)
	if err != nil {
		return nil, err
	}
	return dtree.NewSplitCandidateTable(levels, splits)
}

// NumClasses returns the number of response classes loaded.
func (s *Source) NumClasses() int { return len(s.Classes) }
