// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"
)

// CacheEntry is one durable resolution, keyed by AddressQuery.CacheKey.
// Entries are written once and never mutated in place; invalidation means
// deleting the key and re-resolving.
type CacheEntry struct {
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Provider    string    `json:"provider"`
	DisplayName string    `json:"display_name"`
	Score       int       `json:"score,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Cache is the persistent resolution cache: a JSON document read in full at
// startup and flushed after every accepted write, so a crash loses at most
// the in-flight query. When the disk write starts failing the cache degrades
// to memory-only instead of stopping the run.
type Cache struct {
	path     string
	entries  map[string]CacheEntry
	degraded bool
}

// OpenCache loads the cache document at path. A missing file yields an empty
// cache; a corrupt one is an error, since silently dropping accepted results
// would re-trigger hundreds of network calls.
func OpenCache(path string) (*Cache, error) {
	c := &Cache{
		path:    path,
		entries: make(map[string]CacheEntry),
	}

	data, err := os.ReadFile(path) // #nosec G304 - path is provided by the operator
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}

	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("parsing cache file %s: %w", path, err)
	}

	return c, nil
}

// NewMemoryCache returns a cache with no backing file, for tests and dry runs.
func NewMemoryCache() *Cache {
	return &Cache{entries: make(map[string]CacheEntry), degraded: true}
}

// Get returns the entry for key, if present.
func (c *Cache) Get(key string) (CacheEntry, bool) {
	e, ok := c.entries[key]

	return e, ok
}

// Put stores an entry and flushes the document to disk immediately.
func (c *Cache) Put(key string, e CacheEntry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	c.entries[key] = e
	c.flush()
}

// Delete removes a key and flushes.
func (c *Cache) Delete(key string) {
	if _, ok := c.entries[key]; !ok {
		return
	}

	delete(c.entries, key)
	c.flush()
}

// Len returns the number of cached resolutions.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Entries returns a copy of the cache contents, for the ambiguity detector
// and the prune command.
func (c *Cache) Entries() map[string]CacheEntry {
	out := make(map[string]CacheEntry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}

	return out
}

func (c *Cache) flush() {
	if c.degraded || c.path == "" {
		return
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err == nil {
		err = os.WriteFile(c.path, data, 0o600)
	}

	if err != nil {
		// Keep resolving with the in-memory cache; losing durability is
		// better than aborting a half-finished batch.
		log.Printf("cache: disabling persistence after write failure: %v", err)

		c.degraded = true
	}
}
