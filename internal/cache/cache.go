// Package cache stores fixture verdicts on disk so that unchanged fixtures
// run against an unchanged compiler need not be re-evaluated.
//
// Entries are msgpack-encoded and keyed by a digest over everything that can
// influence a verdict: stage, compiler mode, compiler binary, fixture contents,
// support object and linker driver binary.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// schemaVersion must be bumped whenever Entry changes shape.
const schemaVersion uint16 = 1

// Key identifies a cached verdict.
type Key [sha256.Size]byte

// String returns the hex form of the key.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Entry is a cached verdict for one fixture.
type Entry struct {
	Schema uint16

	// Mismatch is set when the fixture did not conform.
	Mismatch bool
	Actual   string
	Reason   string
	Detail   string

	StoredAt time.Time
}

// Cache is an on-disk verdict cache. Safe for concurrent use.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// DefaultDir returns $XDG_CACHE_HOME/conform, falling back to ~/.cache/conform.
func DefaultDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "conform"), nil
}

// Open opens (creating if needed) a cache rooted at dir.
// If dir is empty, DefaultDir is used.
func Open(dir string) (*Cache, error) {
	if dir == "" {
		var err error
		dir, err = DefaultDir()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) pathFor(key Key) string {
	return filepath.Join(c.dir, "verdicts", key.String()+".mp")
}

// Get loads the entry for key into out. It returns false on a miss or when
// the stored entry has a different schema version.
func (c *Cache) Get(key Key, out *Entry) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to open cache entry: %w", err)
	}
	defer f.Close()

	var entry Entry
	if err := msgpack.NewDecoder(f).Decode(&entry); err != nil {
		return false, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	if entry.Schema != schemaVersion {
		return false, nil
	}
	*out = entry
	return true, nil
}

// Put stores entry under key, replacing any previous entry atomically.
func (c *Cache) Put(key Key, entry *Entry) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()

	stored := *entry
	stored.Schema = schemaVersion
	if stored.StoredAt.IsZero() {
		stored.StoredAt = time.Now().UTC()
	}

	if err := msgpack.NewEncoder(f).Encode(&stored); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to install cache entry: %w", err)
	}
	return nil
}

// Clear removes every cached entry.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.RemoveAll(filepath.Join(c.dir, "verdicts")); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Stats reports the number of cached entries and their total size in bytes.
func (c *Cache) Stats() (entries int, size int64, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	des, err := os.ReadDir(filepath.Join(c.dir, "verdicts"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("failed to read cache: %w", err)
	}
	for _, de := range des {
		if de.IsDir() || filepath.Ext(de.Name()) != ".mp" {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries++
		size += info.Size()
	}
	return entries, size, nil
}

// NewKey derives a key from an ordered list of parts. Parts are length-prefixed
// so that ("ab", "c") and ("a", "bc") differ.
func NewKey(parts ...[]byte) Key {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:", len(p))
		h.Write(p)
	}
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// FileDigest returns the SHA-256 of a file's contents.
func FileDigest(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return h.Sum(nil), nil
}
