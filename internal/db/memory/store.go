// Package memory is an in-process db.Store for local runs and tests.
// Values live until the process exits or the key is deleted.
package memory

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/kailas-cloud/kfsearch/internal/db"
)

var _ db.Store = (*Store)(nil)

// Store implements db.Store on top of go-cache.
type Store struct {
	cache  *cache.Cache
	closed atomic.Bool
}

// NewStore creates an empty store. Entries never expire.
func NewStore() *Store {
	return &Store{cache: cache.New(cache.NoExpiration, 0)}
}

// Ping reports ErrClosed after Close.
func (s *Store) Ping(_ context.Context) error {
	if s.closed.Load() {
		return &db.Error{Op: db.OpPing, Err: db.ErrClosed}
	}
	return nil
}

// WaitForReady returns immediately; the store is ready once constructed.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}

// Close marks the store closed and drops all values.
func (s *Store) Close() {
	s.closed.Store(true)
	s.cache.Flush()
}

// Get returns a copy of the stored value.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, &db.Error{Op: db.OpGet, Err: db.ErrClosed}
	}
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	data := v.([]byte)
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Set stores a copy of value.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if s.closed.Load() {
		return &db.Error{Op: db.OpSet, Err: db.ErrClosed}
	}
	data := make([]byte, len(value))
	copy(data, value)
	s.cache.Set(key, data, cache.NoExpiration)
	return nil
}

// Del removes key if present.
func (s *Store) Del(_ context.Context, key string) error {
	if s.closed.Load() {
		return &db.Error{Op: db.OpDel, Err: db.ErrClosed}
	}
	s.cache.Delete(key)
	return nil
}
