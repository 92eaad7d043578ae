// Package scorecache provides a persisted cache of message scores. Entries are keyed by the message digest
// and kept in memory, every Put rewrites the whole cache file. Removing the file invalidates the cache.
package scorecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/umputun/spam-bayes/lib/spamcheck"
)

// Cache is a file-backed score cache, thread-safe.
type Cache struct {
	path    string
	entries map[string][2]float64 // digest -> [spam, ham]
	lock    sync.RWMutex
}

// cacheFile is the persisted form of the cache
type cacheFile struct {
	Cache map[string][2]float64 `json:"cache"`
}

// Open loads the cache from path. A missing file makes an empty cache.
func Open(path string) (*Cache, error) {
	res := &Cache{path: path, entries: make(map[string][2]float64)}

	data, err := os.ReadFile(path) //nolint:gosec // path is controlled by the caller
	if errors.Is(err, fs.ErrNotExist) {
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: can't read cache file %s: %w", spamcheck.ErrIO, path, err)
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("%w: can't decode cache file %s: %w", spamcheck.ErrSerialization, path, err)
	}
	for k, v := range cf.Cache {
		res.entries[k] = v
	}
	return res, nil
}

// Get returns scores stored for the message and true if found
func (c *Cache) Get(msg string) (spamcheck.Scores, bool) {
	key := spamcheck.Hash(msg)

	c.lock.RLock()
	defer c.lock.RUnlock()

	v, ok := c.entries[key]
	if !ok {
		return spamcheck.Scores{}, false
	}
	return spamcheck.Scores{Spam: v[0], Ham: v[1]}, true
}

// Put stores scores for the message and rewrites the cache file.
// If writing fails, the entry stays in memory and the file is stale until the next successful Put.
func (c *Cache) Put(msg string, s spamcheck.Scores) error {
	key := spamcheck.Hash(msg)

	c.lock.Lock()
	defer c.lock.Unlock()

	c.entries[key] = [2]float64{s.Spam, s.Ham}
	return c.flush()
}

// Clear removes the cache file. Entries of this instance stay in memory,
// a new Cache opened after Clear starts empty.
func (c *Cache) Clear() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return Remove(c.path)
}

// Remove deletes the cache file at path without reading it, a missing file is not an error.
// Works for a corrupt file Open can't load.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: can't remove cache file %s: %w", spamcheck.ErrIO, path, err)
	}
	return nil
}

// Len returns number of entries in memory
func (c *Cache) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.entries)
}

// Path returns location of the cache file
func (c *Cache) Path() string {
	return c.path
}

// flush writes all entries to a temp file and renames it over the cache file, caller must hold the lock
func (c *Cache) flush() error {
	data, err := json.Marshal(cacheFile{Cache: c.entries})
	if err != nil {
		return fmt.Errorf("%w: can't encode cache: %w", spamcheck.ErrSerialization, err)
	}

	dir := filepath.Dir(c.path)
	if err = os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: can't make cache directory %s: %w", spamcheck.ErrIO, dir, err)
	}

	fh, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: can't create temp cache file in %s: %w", spamcheck.ErrIO, dir, err)
	}
	tmpName := fh.Name()
	defer os.Remove(tmpName) // no-op after successful rename

	if _, err = fh.Write(data); err != nil {
		_ = fh.Close()
		return fmt.Errorf("%w: can't write cache file %s: %w", spamcheck.ErrIO, tmpName, err)
	}
	if err = fh.Close(); err != nil {
		return fmt.Errorf("%w: can't close cache file %s: %w", spamcheck.ErrIO, tmpName, err)
	}
	if err = os.Rename(tmpName, c.path); err != nil {
		return fmt.Errorf("%w: can't replace cache file %s: %w", spamcheck.ErrIO, c.path, err)
	}
	return nil
}
