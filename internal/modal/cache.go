package modal

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/mns/internal/fileutil"
)

// cacheFilePermissions is the mode of the cached-choice file.
const cacheFilePermissions = 0o600

// Cache stores the name of the last connector that connected successfully.
type Cache interface {
	Load() (string, error)
	Store(name string) error
	Clear() error
}

// cacheFile is the on-disk layout of FileCache.
type cacheFile struct {
	CachedProvider string `yaml:"cached_provider"`
}

// FileCache persists the cached choice as YAML.
type FileCache struct {
	path string
	mu   sync.Mutex
}

// NewFileCache creates a cache backed by path.
func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

// Path returns the backing file.
func (c *FileCache) Path() string {
	return c.path
}

// Load returns the cached connector name, or "" if none is cached.
func (c *FileCache) Load() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading provider cache: %w", err)
	}

	var f cacheFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return "", fmt.Errorf("parsing provider cache: %w", err)
	}
	return f.CachedProvider, nil
}

// Store records name as the cached choice.
func (c *FileCache) Store(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := yaml.Marshal(cacheFile{CachedProvider: name})
	if err != nil {
		return fmt.Errorf("encoding provider cache: %w", err)
	}
	return fileutil.WriteAtomic(c.path, data, cacheFilePermissions)
}

// Clear removes the cached choice.
func (c *FileCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clearing provider cache: %w", err)
	}
	return nil
}

// MemoryCache keeps the cached choice for the life of the process.
type MemoryCache struct {
	mu   sync.Mutex
	name string
}

// Load implements Cache.
func (c *MemoryCache) Load() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name, nil
}

// Store implements Cache.
func (c *MemoryCache) Store(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
	return nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear() error {
	return c.Store("")
}
