package vault

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CacheFile is the metadata cache file name.
const CacheFile = "metadata.json"

// CacheEntry is the parsed attribute block of one note, valid while the note's
// modification time and size are unchanged.
type CacheEntry struct {
	ModTime     time.Time      `json:"mtime"`
	Size        int64          `json:"size"`
	FrontMatter map[string]any `json:"frontmatter"`
}

// MetadataCache holds parsed attribute blocks keyed by vault-relative path.
type MetadataCache struct {
	Entries map[string]CacheEntry `json:"entries"`
	Path    string                `json:"-"`
	mu      sync.RWMutex
	dirty   bool
}

// NewMetadataCache loads the cache at path. An empty path gives an in-memory
// cache that is never persisted.
func NewMetadataCache(path string) (*MetadataCache, error) {
	c := &MetadataCache{
		Entries: make(map[string]CacheEntry),
		Path:    path,
	}
	if path == "" {
		return c, nil
	}
	if _, err := os.Stat(path); err == nil {
		if err := c.Load(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *MetadataCache) Load() error {
	f, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	// Numbers stay json.Number so integers are written back as they were read.
	dec := json.NewDecoder(f)
	dec.UseNumber()
	if err := dec.Decode(c); err != nil {
		return err
	}
	if c.Entries == nil {
		c.Entries = make(map[string]CacheEntry)
	}
	return nil
}

func (c *MetadataCache) Save() error {
	c.mu.RLock()
	if !c.dirty || c.Path == "" {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	dir := filepath.Dir(c.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	f, err := os.Create(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(c); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// Get returns the entry for path if it matches modTime and size.
func (c *MetadataCache) Get(path string, modTime time.Time, size int64) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.Entries[path]
	if !ok || !e.ModTime.Equal(modTime) || e.Size != size {
		return nil, false
	}
	return e.FrontMatter, true
}

func (c *MetadataCache) Set(path string, modTime time.Time, size int64, fm map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Entries[path] = CacheEntry{ModTime: modTime, Size: size, FrontMatter: fm}
	c.dirty = true
}

func (c *MetadataCache) Remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.Entries[path]; exists {
		delete(c.Entries, path)
		c.dirty = true
	}
}
