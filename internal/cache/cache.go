// Package cache is a file-backed response cache with caller-supplied
// TTLs. Entries live one-per-file under the cache directory; the TTL is
// checked at read time and never persisted, so callers can shrink or
// grow the window without rewriting entries. Caching is a pure
// optimization: every failure path degrades to a miss.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
)

// Cache reads and writes TTL-stamped JSON entries in a directory.
type Cache struct {
	dir string

	// now is replaced by tests to control expiry.
	now func() time.Time
}

// New returns a cache rooted at dir. An empty dir selects the default
// location (~/.odoo-cli/cache).
func New(dir string) *Cache {
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".odoo-cli", "cache")
	}
	return &Cache{dir: dir, now: time.Now}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

type entry struct {
	Timestamp float64         `json:"_timestamp"`
	Data      json.RawMessage `json:"data"`
}

// filename hashes the logical key into a stable, filesystem-safe name so
// server URLs and database names never leak into the directory listing.
func (c *Cache) filename(key string) string {
	sum := blake3.Sum256([]byte(key))
	return filepath.Join(c.dir, "cache_"+hex.EncodeToString(sum[:])+".json")
}

// Get returns the payload stored under key if it is younger than ttl.
// Corrupt or expired entries are deleted and reported as a miss; no
// cache problem ever reaches the caller as an error.
func (c *Cache) Get(key string, ttl time.Duration) (json.RawMessage, bool) {
	path := c.filename(key)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil || e.Timestamp <= 0 {
		os.Remove(path)
		return nil, false
	}

	age := c.now().Sub(time.Unix(int64(e.Timestamp), 0))
	if age > ttl {
		os.Remove(path)
		return nil, false
	}

	return e.Data, true
}

// Set stores payload under key. ttl is accepted for API symmetry with
// Get but not persisted. Write failures are logged and swallowed.
func (c *Cache) Set(key string, payload any, ttl time.Duration) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[cache] marshal %q: %v", key, err)
		return
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		log.Printf("[cache] create dir: %v", err)
		return
	}

	e := entry{
		Timestamp: float64(c.now().Unix()),
		Data:      data,
	}
	raw, err := json.Marshal(e)
	if err != nil {
		log.Printf("[cache] marshal entry %q: %v", key, err)
		return
	}

	if err := os.WriteFile(c.filename(key), raw, 0o600); err != nil {
		log.Printf("[cache] write %q: %v", key, err)
	}
}

// Clear removes the entry stored under key, if any.
func (c *Cache) Clear(key string) {
	os.Remove(c.filename(key))
}

// ClearAll removes every entry in the cache directory.
func (c *Cache) ClearAll() error {
	matches, err := filepath.Glob(filepath.Join(c.dir, "cache_*.json"))
	if err != nil {
		return err
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
