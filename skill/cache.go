package skill

import (
	"sort"
	"sync"
)

// Cache memoizes module bodies for the life of the process. One Cache is
// built at startup and shared by every selector and turn.
type Cache struct {
	store Store

	mu      sync.RWMutex
	entries map[string]string
}

// NewCache creates an empty cache over store.
func NewCache(store Store) *Cache {
	return &Cache{store: store, entries: make(map[string]string)}
}

// Get returns the module body, reading it from the store on first use.
// Missing modules are not cached so they can appear later.
func (c *Cache) Get(name string) (string, error) {
	c.mu.RLock()
	content, ok := c.entries[name]
	c.mu.RUnlock()
	if ok {
		return content, nil
	}

	content, err := c.store.ReadModule(name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[name]; ok {
		return existing, nil
	}
	c.entries[name] = content
	return content, nil
}

// Loaded returns the names of cached modules, sorted.
func (c *Cache) Loaded() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for n := range c.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsLoaded reports whether name is cached.
func (c *Cache) IsLoaded(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[name]
	return ok
}
