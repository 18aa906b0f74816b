package store

import (
	"context"
	"database/sql"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
	"github.com/madlib/archived-madlib-sub001/pkg/log"
)

// Options selects and configures a backend.
type Options struct {
	// Kind is one of "leveldb", "memory", "redis" or "sql".
	Kind string `yaml:"kind"`

	// Path is the leveldb directory.
	Path string `yaml:"path"`

	// Addr, Password, DB and Prefix configure redis.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`

	// Driver, DSN and Table configure the sql backend.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`

	// CacheSize enables an LRU of decoded trees when positive.
	CacheSize int `yaml:"cache_size"`
}

// Open returns the Store described by opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		b   Blobs
		err error
	)
	switch opts.Kind {
	case "leveldb":
		b, err = OpenLevelDB(opts.Path)
	case "memory", "":
		b, err = MemLevelDB()
	case "redis":
		b, err = NewRedis(opts.Addr, opts.Password, opts.DB, opts.Prefix)
	case "sql":
		b, err = openSQL(ctx, opts)
	default:
		return nil, errors.NewValidationError("store.kind", "unknown backend", opts.Kind)
	}
	if err != nil {
		return nil, err
	}
	log.GetLoggerWithName("store").Debug("Store opened", log.StoreKey, opts.Kind)

	s := New(b)
	if opts.CacheSize > 0 {
		cached, err := NewCached(s, opts.CacheSize)
		if err != nil {
			s.Close()
			return nil, err
		}
		return cached, nil
	}
	return s, nil
}

type sqlBlobs struct {
	*SQL
	db *sql.DB
}

func (s sqlBlobs) Close() error { return s.db.Close() }

func openSQL(ctx context.Context, opts Options) (Blobs, error) {
	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s database", opts.Driver)
	}
	if opts.Driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	backend, err := NewSQL(ctx, db, opts.Driver, opts.Table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return sqlBlobs{SQL: backend, db: db}, nil
}
