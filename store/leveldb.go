package store

import (
	"context"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// LevelDB keeps blobs in a LevelDB database.
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens or creates the database at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %s", path)
	}
	return &LevelDB{db: db}, nil
}

// MemLevelDB returns a LevelDB held in memory.
func MemLevelDB() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening in-memory leveldb")
	}
	return &LevelDB{db: db}, nil
}

// PutBlob implements Blobs.
func (l *LevelDB) PutBlob(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Wrapf(l.db.Put([]byte(key), value, nil), "writing %s", key)
}

// GetBlob implements Blobs.
func (l *LevelDB) GetBlob(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, err := l.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", key)
	}
	return value, nil
}

// DeleteBlob implements Blobs.
func (l *LevelDB) DeleteBlob(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ok, err := l.db.Has([]byte(key), nil)
	if err != nil {
		return errors.Wrapf(err, "reading %s", key)
	}
	if !ok {
		return ErrNotFound
	}
	return errors.Wrapf(l.db.Delete([]byte(key), nil), "deleting %s", key)
}

// Keys implements Blobs.
func (l *LevelDB) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	iter := l.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	return keys, errors.Wrap(iter.Error(), "listing keys")
}

// Close implements Blobs.
func (l *LevelDB) Close() error { return l.db.Close() }
