// Package loader implements spec.md §4.L: reading YAML source files exactly
// once per run, caching them by canonicalized absolute path, and detecting
// cycles across `implements`/`imports` chains. Modeled on the teacher's
// ImportCache (pkg/parser/import_bfs.go, frontmatter_hash_repository_test.go)
// which keys its cache on absolute path plus a content hash.
package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sdtmpl/sdtmpl/internal/docerr"
	"github.com/sdtmpl/sdtmpl/internal/obslog"
)

var loaderLog = obslog.New("loader")

// Document is a loaded, not-yet-parsed YAML source file.
type Document struct {
	Path    string // canonicalized absolute path
	Content []byte
	Hash    string // sha256 hex of Content, makes cache correctness obvious
}

// Cache loads YAML source files at most once per run. It is append-only and
// safe for concurrent use, though the engine itself never calls it
// concurrently (spec.md §5).
type Cache struct {
	baseDir string

	mu      sync.Mutex
	entries map[string]*Document
	loading map[string]bool // "currently loading" set, detects cycles
}

// NewCache returns a Cache resolving relative paths against baseDir.
func NewCache(baseDir string) *Cache {
	return &Cache{
		baseDir: baseDir,
		entries: make(map[string]*Document),
		loading: make(map[string]bool),
	}
}

// Resolve canonicalizes path against the cache's base directory.
func (c *Cache) Resolve(path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	return filepath.Clean(filepath.Join(c.baseDir, path)), nil
}

// BeginLoad marks path as currently loading, returning a cycle error if it
// is already in progress (i.e. reached again before its own load finished).
// Callers must call EndLoad when done, typically via defer.
func (c *Cache) BeginLoad(path string, chain []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loading[path] {
		full := append(append([]string{}, chain...), path)
		return docerr.New(docerr.CategoryCycle, fmt.Sprintf("cycle detected: %v", full))
	}
	c.loading[path] = true
	return nil
}

// EndLoad clears the in-progress marker for path.
func (c *Cache) EndLoad(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.loading, path)
}

// Load reads path once, caching by canonical absolute path. Subsequent
// calls with the same canonical path return the cached Document without
// touching the filesystem again.
func (c *Cache) Load(path string) (*Document, error) {
	abs, err := c.Resolve(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if doc, ok := c.entries[abs]; ok {
		c.mu.Unlock()
		loaderLog.Printf("cache hit: %s", abs)
		return doc, nil
	}
	c.mu.Unlock()

	loaderLog.Printf("reading: %s", abs)
	content, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, docerr.New(docerr.CategoryIO, fmt.Sprintf("file not found: %s", abs)).Wrap(err)
		}
		return nil, docerr.New(docerr.CategoryIO, fmt.Sprintf("cannot read %s", abs)).Wrap(err)
	}

	sum := sha256.Sum256(content)
	doc := &Document{Path: abs, Content: content, Hash: hex.EncodeToString(sum[:])}

	c.mu.Lock()
	c.entries[abs] = doc
	c.mu.Unlock()

	return doc, nil
}

// Loaded reports how many distinct files have been read so far this run.
func (c *Cache) Loaded() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
