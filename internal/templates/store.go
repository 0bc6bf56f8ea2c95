// Package templates provides the read-only template content store used for
// branded error pages. Content lives outside the gateway; the store exposes
// a get-or-miss contract over it.
package templates

import (
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of template entries held in memory.
const DefaultCacheSize = 64

// Store fetches template content by key, caching hits. A nil Store is valid
// and always misses.
type Store struct {
	dir   string
	cache *lru.Cache[string, string]
}

// New creates a Store over dir. An empty dir produces a store that always
// misses, which callers treat as "use embedded defaults".
func New(dir string, cacheSize int) (*Store, error) {
	if dir == "" {
		return nil, nil
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, cache: cache}, nil
}

// Get returns the content stored under key, or ok=false on a miss. Keys are
// plain file names; path traversal is rejected as a miss.
func (s *Store) Get(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return "", false
	}
	if content, ok := s.cache.Get(key); ok {
		return content, true
	}
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		return "", false
	}
	content := string(data)
	s.cache.Add(key, content)
	return content, true
}
