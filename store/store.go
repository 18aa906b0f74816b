// Package store persists trained trees by name. Trees are written in the
// msgpack layout of core/dtree and compressed with snappy; every backend
// stores the resulting blobs under string keys.
package store

import (
	"bytes"
	"context"
	"sort"
	"strings"

	"github.com/golang/snappy"

	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/core/model"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// ErrNotFound is returned when no model is stored under a name.
var ErrNotFound = errors.New("model not found")

const (
	treePrefix = "tree/"
	metaPrefix = "meta/"
)

// Store saves and loads trees, plus an optional metadata value per tree.
type Store interface {
	Put(ctx context.Context, name string, tree *dtree.Tree) error
	Get(ctx context.Context, name string) (*dtree.Tree, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)

	// PutMeta and GetMeta store a gob-encoded value next to a tree.
	PutMeta(ctx context.Context, name string, v interface{}) error
	GetMeta(ctx context.Context, name string, v interface{}) error

	Close() error
}

// Blobs is a key-value backend. Get returns ErrNotFound for missing keys.
type Blobs interface {
	PutBlob(ctx context.Context, key string, value []byte) error
	GetBlob(ctx context.Context, key string) ([]byte, error)
	DeleteBlob(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// blobStore implements Store on any Blobs backend.
type blobStore struct {
	b Blobs
}

// New returns a Store on top of b.
func New(b Blobs) Store {
	return &blobStore{b: b}
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\x00") {
		return errors.NewValidationError("name", "must be non-empty without '/'", name)
	}
	return nil
}

func (s *blobStore) Put(ctx context.Context, name string, tree *dtree.Tree) error {
	if err := checkName(name); err != nil {
		return err
	}
	data, err := tree.MarshalBinary()
	if err != nil {
		return err
	}
	return s.b.PutBlob(ctx, treePrefix+name, snappy.Encode(nil, data))
}

func (s *blobStore) Get(ctx context.Context, name string) (*dtree.Tree, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	blob, err := s.b.GetBlob(ctx, treePrefix+name)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", name)
	}
	data, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, errors.Wrapf(err, "decompressing %s", name)
	}
	var tree dtree.Tree
	if err := tree.UnmarshalBinary(data); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", name)
	}
	return &tree, nil
}

func (s *blobStore) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := s.b.DeleteBlob(ctx, treePrefix+name); err != nil {
		return err
	}
	err := s.b.DeleteBlob(ctx, metaPrefix+name)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (s *blobStore) List(ctx context.Context) ([]string, error) {
	keys, err := s.b.Keys(ctx, treePrefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = strings.TrimPrefix(k, treePrefix)
	}
	sort.Strings(names)
	return names, nil
}

func (s *blobStore) PutMeta(ctx context.Context, name string, v interface{}) error {
	if err := checkName(name); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := model.SaveModelToWriter(v, &buf); err != nil {
		return err
	}
	return s.b.PutBlob(ctx, metaPrefix+name, snappy.Encode(nil, buf.Bytes()))
}

func (s *blobStore) GetMeta(ctx context.Context, name string, v interface{}) error {
	if err := checkName(name); err != nil {
		return err
	}
	blob, err := s.b.GetBlob(ctx, metaPrefix+name)
	if err != nil {
		return errors.Wrapf(err, "loading metadata of %s", name)
	}
	data, err := snappy.Decode(nil, blob)
	if err != nil {
		return errors.Wrapf(err, "decompressing metadata of %s", name)
	}
	return model.LoadModelFromReader(v, bytes.NewReader(data))
}

func (s *blobStore) Close() error { return s.b.Close() }
