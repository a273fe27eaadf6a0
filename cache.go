package voom

import (
	"context"
	"fmt"
)

// ManifestCache stores manifest contents read from history. A commit's
// content never changes, so entries never go stale.
//
// Implementations must be safe for concurrent use. Errors are treated as
// misses: the scanner logs them and reads from the repository instead.
type ManifestCache interface {
	// Get returns the content of path at sha in repo, and whether it was
	// cached.
	Get(ctx context.Context, repo, sha, path string) ([]byte, bool, error)

	// Put stores the content of path at sha in repo.
	Put(ctx context.Context, repo, sha, path string, content []byte) error
}

// NoopCache never holds anything. It is the default.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string, string, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoopCache) Put(context.Context, string, string, string, []byte) error { return nil }

// CacheKey joins the parts of a cache entry's identity. Implementations may
// use it as a flat key.
func CacheKey(repo, sha, path string) string {
	return fmt.Sprintf("%s\x00%s\x00%s", repo, sha, path)
}

// showCached reads path at sha through the configured cache.
func (c *config) showCached(ctx context.Context, repo Repository, sha, path string) ([]byte, error) {
	name := repo.Name()
	content, ok, err := c.cache.Get(ctx, name, sha, path)
	if err != nil {
		c.logger.Warn("manifest cache read failed", "repo", name, "sha", sha, "path", path, "error", err)
	} else if ok {
		return content, nil
	}
	content, err = repo.Show(ctx, sha, path)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Put(ctx, name, sha, path, content); err != nil {
		c.logger.Warn("manifest cache write failed", "repo", name, "sha", sha, "path", path, "error", err)
	}
	return content, nil
}
