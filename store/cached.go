package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru"

	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// Cached keeps the most recently used decoded trees in memory in front of
// another Store. Trees returned by Get are shared and must not be modified.
type Cached struct {
	Store
	cache *lru.Cache
}

// NewCached wraps s with an LRU cache of size trees.
func NewCached(s Store, size int) (*Cached, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "creating tree cache")
	}
	return &Cached{Store: s, cache: cache}, nil
}

// Put writes through and caches tree.
func (c *Cached) Put(ctx context.Context, name string, tree *dtree.Tree) error {
	if err := c.Store.Put(ctx, name, tree); err != nil {
		return err
	}
	c.cache.Add(name, tree.Clone())
	return nil
}

// Get serves name from the cache when possible.
func (c *Cached) Get(ctx context.Context, name string) (*dtree.Tree, error) {
	if v, ok := c.cache.Get(name); ok {
		return v.(*dtree.Tree), nil
	}
	tree, err := c.Store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	c.cache.Add(name, tree)
	return tree, nil
}

// Delete removes name from the cache and the underlying store.
func (c *Cached) Delete(ctx context.Context, name string) error {
	c.cache.Remove(name)
	return c.Store.Delete(ctx, name)
}

// Len returns the number of cached trees.
func (c *Cached) Len() int { return c.cache.Len() }
