package voom

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// MemoryCache keeps manifest contents for the life of the process. It suits
// one-shot runs and tests; use boltcache to keep them between runs.
type MemoryCache struct {
	entries sync.Map // CacheKey -> []byte
	hits    atomic.Int64
}

func NewMemoryCache() *MemoryCache { return &MemoryCache{} }

func (c *MemoryCache) Get(_ context.Context, repo, sha, path string) ([]byte, bool, error) {
	v, ok := c.entries.Load(CacheKey(repo, sha, path))
	if !ok {
		return nil, false, nil
	}
	c.hits.Add(1)
	return cloneBytes(v.([]byte)), true, nil
}

func (c *MemoryCache) Put(_ context.Context, repo, sha, path string, content []byte) error {
	c.entries.Store(CacheKey(repo, sha, path), cloneBytes(content))
	return nil
}

// Hits counts the Get calls answered from memory since the last Clear.
func (c *MemoryCache) Hits() int { return int(c.hits.Load()) }

func (c *MemoryCache) Len() int {
	n := 0
	c.entries.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// Clear drops every entry and resets Hits.
func (c *MemoryCache) Clear() {
	c.entries.Clear()
	c.hits.Store(0)
}

func cloneBytes(b []byte) []byte { return append([]byte(nil), b...) }

// CacheFuncs adapts plain functions to [ManifestCache]. A nil GetFunc
// misses and a nil PutFunc discards.
type CacheFuncs struct {
	GetFunc func(ctx context.Context, repo, sha, path string) ([]byte, bool, error)
	PutFunc func(ctx context.Context, repo, sha, path string, content []byte) error
}

func (f CacheFuncs) Get(ctx context.Context, repo, sha, path string) ([]byte, bool, error) {
	if f.GetFunc == nil {
		return nil, false, nil
	}
	return f.GetFunc(ctx, repo, sha, path)
}

func (f CacheFuncs) Put(ctx context.Context, repo, sha, path string, content []byte) error {
	if f.PutFunc == nil {
		return nil
	}
	return f.PutFunc(ctx, repo, sha, path, content)
}

// NewFailingCache returns a cache whose reads fail with getErr and writes
// with putErr. Nil errors get a generic one.
func NewFailingCache(getErr, putErr error) CacheFuncs {
	if getErr == nil {
		getErr = errors.New("cache get failed")
	}
	if putErr == nil {
		putErr = errors.New("cache put failed")
	}
	return CacheFuncs{
		GetFunc: func(context.Context, string, string, string) ([]byte, bool, error) {
			return nil, false, getErr
		},
		PutFunc: func(context.Context, string, string, string, []byte) error {
			return putErr
		},
	}
}

var (
	_ ManifestCache = NoopCache{}
	_ ManifestCache = (*MemoryCache)(nil)
	_ ManifestCache = CacheFuncs{}
)
