package geocoding

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mbsoft/ohmy-tracks/internal/routes"
	"github.com/mbsoft/ohmy-tracks/pkg/logger"
)

// Cache is a persistent map of location ID to successful geocode result.
// It is owned by the caller and accessed from a single sequential batch
// flow; it does not autosave on Set, so callers must Save at batch
// boundaries.
type Cache struct {
	path    string
	entries map[string]*routes.Geocode
	logger  *logger.Logger
}

// NewCache loads the cache from path. A missing or corrupt file is logged
// and the cache starts empty; it is never a construction error.
func NewCache(path string, log *logger.Logger) *Cache {
	c := &Cache{
		path:    path,
		entries: make(map[string]*routes.Geocode),
		logger:  log.Named("geocode-cache"),
	}
	c.load()
	return c
}

func (c *Cache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("Failed to read geocode cache file, starting empty",
				logger.String("path", c.path), logger.Error(err))
		}
		return
	}

	if err := json.Unmarshal(data, &c.entries); err != nil {
		c.logger.Warn("Failed to parse geocode cache file, starting empty",
			logger.String("path", c.path), logger.Error(err))
		c.entries = make(map[string]*routes.Geocode)
		return
	}

	c.logger.Info("Loaded geocode cache",
		logger.String("path", c.path),
		logger.Int("entries", len(c.entries)))
}

// Get returns a copy of the cached result for a location ID, marked
// FromCache, or nil when absent. Never mutates cache state.
func (c *Cache) Get(locationID string) *routes.Geocode {
	key := strings.TrimSpace(locationID)
	if key == "" {
		return nil
	}
	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	copied := *entry
	copied.FromCache = true
	return &copied
}

// Set stores a successful result under a location ID, stamping CachedAt.
// Failures and blank keys are silently ignored so failed lookups get
// retried on the next run.
func (c *Cache) Set(locationID string, result *routes.Geocode) {
	key := strings.TrimSpace(locationID)
	if key == "" || result == nil || !result.Success {
		return
	}
	copied := *result
	copied.CachedAt = time.Now().UTC().Format(time.RFC3339)
	c.entries[key] = &copied
}

// Has reports whether a location ID is cached.
func (c *Cache) Has(locationID string) bool {
	key := strings.TrimSpace(locationID)
	if key == "" {
		return false
	}
	_, ok := c.entries[key]
	return ok
}

// Size returns the number of cached entries.
func (c *Cache) Size() int {
	return len(c.entries)
}

// Clear empties the cache and persists the empty state immediately.
func (c *Cache) Clear() error {
	c.entries = make(map[string]*routes.Geocode)
	return c.Save()
}

// PruneOldEntries removes entries cached before now minus maxAgeDays and
// persists if anything was removed. Returns the number removed.
func (c *Cache) PruneOldEntries(maxAgeDays int) int {
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)

	pruned := 0
	for key, entry := range c.entries {
		if entry.CachedAt == "" {
			continue
		}
		cachedAt, err := time.Parse(time.RFC3339, entry.CachedAt)
		if err != nil {
			continue
		}
		if cachedAt.Before(cutoff) {
			delete(c.entries, key)
			pruned++
		}
	}

	if pruned > 0 {
		c.logger.Info("Pruned old geocode cache entries", logger.Int("pruned", pruned))
		if err := c.Save(); err != nil {
			c.logger.Error("Failed to persist pruned cache", logger.Error(err))
		}
	}
	return pruned
}

// Save writes the cache as a single JSON object via an atomic whole-file
// replace. Errors are returned for the caller to log; already-returned
// results are unaffected.
func (c *Cache) Save() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode geocode cache: %w", err)
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write geocode cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace geocode cache: %w", err)
	}

	c.logger.Debug("Saved geocode cache",
		logger.String("path", c.path),
		logger.Int("entries", len(c.entries)))
	return nil
}
