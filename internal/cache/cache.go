// Package cache provides local file-based caching for MediaWiki API responses.
package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/WaffleSoul4/wikipedia-graph/internal/wiki"
)

// Cache stores raw API responses on the local filesystem, one file per
// page identity plus a TOML metadata sidecar. Entries older than MaxAge
// are treated as absent; the action API carries no etags to validate
// against, so freshness is purely age-based.
type Cache struct {
	Dir    string
	MaxAge time.Duration
}

// DefaultMaxAge is how long a cached response stays fresh.
const DefaultMaxAge = 24 * time.Hour

// Entry is a cached response with metadata about when it was stored.
type Entry struct {
	Body     []byte
	CachedAt time.Time
}

// meta is the TOML-serializable cache metadata.
type meta struct {
	URL      string    `toml:"url"`
	Lang     string    `toml:"lang"`
	Title    string    `toml:"title"`
	CachedAt time.Time `toml:"cached_at"`
}

// New creates a cache rooted at the given directory.
func New(dir string) *Cache {
	return &Cache{Dir: dir, MaxAge: DefaultMaxAge}
}

// DefaultDir returns the default cache directory (~/.wikigraph/cache).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".wikigraph", "cache")
}

// Put writes a response body for a page identity.
func (c *Cache) Put(id wiki.PageID, body []byte) error {
	filePath := c.filePath(id)
	metaPath := filePath + ".meta"

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return err
	}

	if err := os.WriteFile(filePath, body, 0o644); err != nil {
		return err
	}

	m := meta{
		URL:      id.PageURL(),
		Lang:     id.Lang,
		Title:    id.Title,
		CachedAt: time.Now().UTC(),
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return err
	}
	return os.WriteFile(metaPath, buf.Bytes(), 0o644)
}

// Get reads a cached response. Returns nil if not cached or stale.
func (c *Cache) Get(id wiki.PageID) (*Entry, error) {
	filePath := c.filePath(id)
	metaPath := filePath + ".meta"

	body, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var m meta
	if _, err := toml.DecodeFile(metaPath, &m); err != nil {
		return nil, nil
	}

	maxAge := c.MaxAge
	if maxAge == 0 {
		maxAge = DefaultMaxAge
	}
	if time.Since(m.CachedAt) > maxAge {
		return nil, nil
	}

	return &Entry{Body: body, CachedAt: m.CachedAt}, nil
}

// filePath returns the cache file path for a page identity.
func (c *Cache) filePath(id wiki.PageID) string {
	safeTitle := strings.ReplaceAll(id.Title, "..", "_")
	safeTitle = strings.ReplaceAll(safeTitle, string(filepath.Separator), "_")
	if safeTitle == "" {
		safeTitle = ".empty"
	}
	return filepath.Join(c.Dir, id.Lang, safeTitle+".json")
}
