// includenav/helpers_alias_cache.go
// Contains the per-root alias table cache (LRU + singleflight, optional bbolt store).
package includenav

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"
)

const defaultAliasCacheSize = 256

// AliasCache memoizes alias tables per project root for the session.
// Tables are replaced wholesale; callers must not mutate returned slices.
type AliasCache struct {
	fs     FileSystem
	mem    *lru.Cache[string, []AliasEntry]
	group  singleflight.Group
	store  *AliasStore // nil when disk caching is off
	logger *slog.Logger

	// mu orders commits against invalidation. A build only commits when
	// neither its root's epoch nor allEpoch moved while it ran.
	mu       sync.Mutex
	epochs   map[string]uint64
	allEpoch uint64
}

type aliasEpoch struct {
	all, root uint64
}

// aliasLoad is the outcome of one build. hashes is nil when the table
// came from the store or the configs could not be fingerprinted.
type aliasLoad struct {
	entries []AliasEntry
	hashes  map[string]string
}

// NewAliasCache creates a cache reading configs through fsys. store may be nil.
func NewAliasCache(fsys FileSystem, store *AliasStore, logger *slog.Logger) (*AliasCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mem, err := lru.New[string, []AliasEntry](defaultAliasCacheSize)
	if err != nil {
		return nil, fmt.Errorf("%w: creating alias LRU: %w", ErrCache, err)
	}
	return &AliasCache{
		fs:     fsys,
		mem:    mem,
		store:  store,
		logger: logger.With("component", "AliasCache"),
		epochs: make(map[string]uint64),
	}, nil
}

// Get returns the alias table for root, building it on first request.
// A build overtaken by Invalidate still answers its own callers but is not cached.
func (c *AliasCache) Get(ctx context.Context, root string) []AliasEntry {
	if entries, ok := c.mem.Get(root); ok {
		return entries
	}
	v, _, _ := c.group.Do(root, func() (any, error) {
		if entries, ok := c.mem.Get(root); ok {
			return entries, nil
		}
		started := c.epoch(root)
		loaded := c.load(ctx, root)
		if ctx.Err() == nil {
			c.commit(root, started, loaded)
		}
		return loaded.entries, nil
	})
	return v.([]AliasEntry)
}

func (c *AliasCache) epoch(root string) aliasEpoch {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.epochs[root]; !ok {
		c.epochs[root] = 0
	}
	return aliasEpoch{all: c.allEpoch, root: c.epochs[root]}
}

// commit stores a finished build unless root was invalidated since it started.
func (c *AliasCache) commit(root string, started aliasEpoch, loaded aliasLoad) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if started != (aliasEpoch{all: c.allEpoch, root: c.epochs[root]}) {
		c.logger.Debug("Discarding alias table built before invalidation", "root", root)
		return
	}
	c.mem.Add(root, loaded.entries)
	if c.store != nil && loaded.hashes != nil {
		if err := c.store.Save(root, loaded.hashes, loaded.entries); err != nil {
			c.logger.Warn("Failed to persist alias table", "root", root, "error", err)
		}
	}
}

func (c *AliasCache) load(ctx context.Context, root string) aliasLoad {
	logger := c.logger.With("root", root)
	if c.store == nil {
		return aliasLoad{entries: extractAliases(ctx, c.fs, root, logger)}
	}

	hashes, err := hashConfigFiles(ctx, c.fs, root)
	if err != nil {
		logger.Warn("Could not hash build configs, bypassing disk cache", "error", err)
		return aliasLoad{entries: extractAliases(ctx, c.fs, root, logger)}
	}
	if entries, ok := c.store.Lookup(root, hashes); ok {
		logger.Debug("Alias table loaded from disk cache", "entries", len(entries))
		return aliasLoad{entries: entries}
	}
	return aliasLoad{entries: extractAliases(ctx, c.fs, root, logger), hashes: hashes}
}

// Invalidate drops the cached table for root, including one still being built.
func (c *AliasCache) Invalidate(root string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epochs[root]++
	c.group.Forget(root)
	c.mem.Remove(root)
	if c.store != nil {
		if err := c.store.Delete(root); err != nil {
			c.logger.Warn("Failed to delete persisted alias table", "root", root, "error", err)
		}
	}
	c.logger.Info("Alias table invalidated", "root", root)
}

// InvalidateAll drops every cached table.
func (c *AliasCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allEpoch++
	for root := range c.epochs {
		c.group.Forget(root)
	}
	c.mem.Purge()
	if c.store != nil {
		if err := c.store.Clear(); err != nil {
			c.logger.Warn("Failed to clear persisted alias tables", "error", err)
		}
	}
	c.logger.Info("All alias tables invalidated")
}

// Len reports how many roots are cached in memory.
func (c *AliasCache) Len() int { return c.mem.Len() }

const absentConfigHash = "absent"

// hashConfigFiles fingerprints every alias source under root with xxh3.
func hashConfigFiles(ctx context.Context, fsys FileSystem, root string) (map[string]string, error) {
	hashes := make(map[string]string)
	for _, name := range aliasConfigFiles() {
		data, err := fsys.ReadFile(ctx, filepath.Join(root, name))
		if err != nil {
			if isNotFound(err) {
				hashes[name] = absentConfigHash
				continue
			}
			return nil, fmt.Errorf("%w: %s: %w", ErrCacheHash, name, err)
		}
		hashes[name] = fmt.Sprintf("%016x", xxh3.Hash(data))
	}
	return hashes, nil
}
