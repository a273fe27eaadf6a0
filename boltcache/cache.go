// Package boltcache persists manifest contents read from git history in a
// bbolt database, so repeated scans and resolutions across runs skip
// re-reading blobs from git.
package boltcache

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/albertocavalcante/go-voom"
)

const bucketName = "manifests"

// openTimeout bounds the wait for another process holding the file lock.
const openTimeout = 5 * time.Second

var _ voom.ManifestCache = (*Cache)(nil)

// Cache is a [voom.ManifestCache] backed by a single bbolt file. Entries are
// keyed by [voom.CacheKey] and never expire.
type Cache struct {
	db *bolt.DB
}

// Open opens or creates the cache file at path, creating parent
// directories as needed.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache %s: %w", path, err)
	}
	return &Cache{db: db}, nil
}

// Get returns the cached content of path at sha in repo.
func (c *Cache) Get(ctx context.Context, repo, sha, path string) ([]byte, bool, error) {
	var content []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		// Values are only valid for the life of the transaction.
		if v := tx.Bucket([]byte(bucketName)).Get([]byte(voom.CacheKey(repo, sha, path))); v != nil {
			content = bytes.Clone(v)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return content, content != nil, nil
}

// Put stores the content of path at sha in repo.
func (c *Cache) Put(ctx context.Context, repo, sha, path string, content []byte) error {
	if content == nil {
		content = []byte{}
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(voom.CacheKey(repo, sha, path)), content)
	})
}

// Len returns the number of cached entries.
func (c *Cache) Len() (int, error) {
	var n int
	err := c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(bucketName)).Stats().KeyN
		return nil
	})
	return n, err
}

// Path returns the location of the cache file.
func (c *Cache) Path() string {
	return c.db.Path()
}

// Close releases the file lock.
func (c *Cache) Close() error {
	return c.db.Close()
}
