// Package bookmarks provides persistent storage for saved pages.
//
// Bookmarks are stored in a TOML file (default ~/.wikigraph/bookmarks.toml)
// keyed by the page's identity key. This lets the CLI and TUI reopen a
// saved page in any session.
//
// TOML format:
//
//	["en:Saxophone"]
//	lang = "en"
//	title = "Saxophone"
//	added = 2026-08-23T10:00:00Z
package bookmarks

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/WaffleSoul4/wikipedia-graph/internal/wiki"
)

type entry struct {
	Lang  string    `toml:"lang"`
	Title string    `toml:"title"`
	Added time.Time `toml:"added"`
}

// Store manages saved pages keyed by page identity.
type Store struct {
	path    string
	entries map[string]entry
}

// DefaultPath returns the default bookmarks file path
// (~/.wikigraph/bookmarks.toml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".wikigraph", "bookmarks.toml")
}

// Load reads a bookmarks file from disk. Returns an empty store if the
// file does not exist yet. Returns an error if path is empty.
func Load(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("bookmarks file path is empty (could not determine home directory)")
	}
	s := &Store{path: path, entries: make(map[string]entry)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read bookmarks file %q: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if _, err := toml.Decode(string(data), &s.entries); err != nil {
		return nil, fmt.Errorf("parse bookmarks file %q: %w", path, err)
	}
	return s, nil
}

// Has reports whether the page is bookmarked.
func (s *Store) Has(id wiki.PageID) bool {
	_, ok := s.entries[id.Key()]
	return ok
}

// Add bookmarks a page and writes to disk.
func (s *Store) Add(id wiki.PageID) error {
	s.entries[id.Key()] = entry{
		Lang:  id.Lang,
		Title: id.Title,
		Added: time.Now().UTC(),
	}
	return s.save()
}

// Remove deletes a bookmark and writes to disk.
func (s *Store) Remove(id wiki.PageID) error {
	delete(s.entries, id.Key())
	return s.save()
}

// Pages returns all bookmarked pages sorted by identity key.
func (s *Store) Pages() []wiki.PageID {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pages := make([]wiki.PageID, 0, len(keys))
	for _, k := range keys {
		e := s.entries[k]
		pages = append(pages, wiki.PageID{Lang: e.Lang, Title: e.Title})
	}
	return pages
}

func (s *Store) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create bookmarks directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open bookmarks file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(s.entries); err != nil {
		_ = f.Close()
		return fmt.Errorf("write bookmarks file: %w", err)
	}
	return f.Close()
}
