package store

import (
	"context"
	"database/sql"
	"fmt"

	// Database drivers
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// SQL keeps blobs in a two-column table of the training database. Driver
// must be "sqlite3" or "postgres"; it selects the placeholder syntax and
// the blob column type.
type SQL struct {
	db     *sql.DB
	table  string
	driver string
}

// NewSQL creates table if it does not exist and returns a backend on it.
func NewSQL(ctx context.Context, db *sql.DB, driver, table string) (*SQL, error) {
	blobType := "BLOB"
	switch driver {
	case "sqlite3":
	case "postgres":
		blobType = "BYTEA"
	default:
		return nil, errors.NewValidationError("driver", "must be sqlite3 or postgres", driver)
	}
	if table == "" {
		table = "models"
	}
	s := &SQL{db: db, table: table, driver: driver}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, data %s NOT NULL)`, s.quoted(), blobType)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return nil, errors.Wrapf(err, "creating table %s", table)
	}
	return s, nil
}

func (s *SQL) quoted() string { return `"` + s.table + `"` }

func (s *SQL) arg(i int) string {
	if s.driver == "postgres" {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// PutBlob implements Blobs.
func (s *SQL) PutBlob(ctx context.Context, key string, value []byte) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (name, data) VALUES (%s, %s) ON CONFLICT (name) DO UPDATE SET data = excluded.data`,
		s.quoted(), s.arg(1), s.arg(2))
	_, err := s.db.ExecContext(ctx, stmt, key, value)
	return errors.Wrapf(err, "writing %s", key)
}

// GetBlob implements Blobs.
func (s *SQL) GetBlob(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	q := fmt.Sprintf(`SELECT data FROM %s WHERE name = %s`, s.quoted(), s.arg(1))
	err := s.db.QueryRowContext(ctx, q, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", key)
	}
	return value, nil
}

// DeleteBlob implements Blobs.
func (s *SQL) DeleteBlob(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE name = %s`, s.quoted(), s.arg(1)), key)
	if err != nil {
		return errors.Wrapf(err, "deleting %s", key)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Keys implements Blobs.
func (s *SQL) Keys(ctx context.Context, prefix string) ([]string, error) {
	q := fmt.Sprintf(`SELECT name FROM %s WHERE substr(name, 1, %d) = %s ORDER BY name`, s.quoted(), len(prefix), s.arg(1))
	rows, err := s.db.QueryContext(ctx, q, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "listing keys")
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(err, "listing keys")
		}
		keys = append(keys, k)
	}
	return keys, errors.Wrap(rows.Err(), "listing keys")
}

// Close implements Blobs. The database handle belongs to the caller and is
// left open.
func (s *SQL) Close() error { return nil }
