package store

import (
	"context"

	"gopkg.in/redis.v5"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// Redis keeps blobs in a Redis server under a key prefix.
type Redis struct {
	rc     *redis.Client
	prefix string
}

// NewRedis connects to the server at addr. Every key is stored under
// prefix.
func NewRedis(addr, password string, db int, prefix string) (*Redis, error) {
	rc := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rc.Ping().Err(); err != nil {
		rc.Close()
		return nil, errors.Wrapf(err, "connecting to redis at %s", addr)
	}
	return &Redis{rc: rc, prefix: prefix}, nil
}

// PutBlob implements Blobs.
func (r *Redis) PutBlob(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Wrapf(r.rc.Set(r.prefix+key, value, 0).Err(), "writing %s", key)
}

// GetBlob implements Blobs.
func (r *Redis) GetBlob(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, err := r.rc.Get(r.prefix + key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", key)
	}
	return value, nil
}

// DeleteBlob implements Blobs.
func (r *Redis) DeleteBlob(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := r.rc.Del(r.prefix + key).Result()
	if err != nil {
		return errors.Wrapf(err, "deleting %s", key)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Keys implements Blobs.
func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	iter := r.rc.Scan(0, r.prefix+prefix+"*", 100).Iterator()
	for iter.Next() {
		keys = append(keys, iter.Val()[len(r.prefix):])
	}
	return keys, errors.Wrap(iter.Err(), "listing keys")
}

// Close implements Blobs.
func (r *Redis) Close() error { return r.rc.Close() }
