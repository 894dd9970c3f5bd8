// includenav.go
// Package includenav resolves include/import path literals in PHP, JS/TS, Vue,
// HTML and stylesheet sources to files on disk, honoring build-tool aliases.
package includenav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

// =============================================================================
// Interfaces for Components
// =============================================================================

// FileSystem is the narrow read-only view the navigator needs.
type FileSystem interface {
	// ReadFile returns the file's bytes; a missing file wraps ErrPathNotFound.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// Stat describes path; a missing path wraps ErrPathNotFound.
	Stat(ctx context.Context, path string) (FileStat, error)
	// ReadDir lists the immediate children of dir.
	ReadDir(ctx context.Context, dir string) ([]DirEntry, error)
}

// Document exposes the per-line text of an open document.
type Document interface {
	Path() string
	LanguageID() string
	LineCount() int
	Line(i int) string
}

// =============================================================================
// Configuration Loading
// =============================================================================

// LoadConfig loads configuration from standard locations, merges with defaults,
// validates, and attempts to write a default config if needed.
func LoadConfig(logger *slog.Logger) (Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := DefaultConfig()
	var loadedFromFile bool
	var loadErrors []error
	var configParseError error

	primaryDir, secondaryDir, pathErr := GetConfigPaths(logger)
	if pathErr != nil {
		loadErrors = append(loadErrors, pathErr)
		logger.Warn("Could not determine config paths, using defaults", "error", pathErr)
	}

	for _, dir := range []string{primaryDir, secondaryDir} {
		if dir == "" || loadedFromFile {
			continue
		}
		for _, name := range []string{defaultConfigFileName, defaultYAMLConfigFileName} {
			path := filepath.Join(dir, name)
			logger.Debug("Attempting to load config", "path", path)
			loaded, loadErr := LoadAndMergeConfig(path, &cfg, logger)
			if loadErr != nil {
				if errors.Is(loadErr, errConfigParse) && configParseError == nil {
					configParseError = loadErr
				}
				loadErrors = append(loadErrors, fmt.Errorf("loading %s failed: %w", path, loadErr))
				logger.Warn("Failed to load or merge config", "path", path, "error", loadErr)
				continue
			}
			if loaded {
				loadedFromFile = true
				logger.Info("Loaded config", "path", path)
				break
			}
		}
	}

	if !loadedFromFile || configParseError != nil {
		writeDir := primaryDir
		if writeDir == "" {
			writeDir = secondaryDir
		}
		if writeDir != "" && configParseError == nil {
			writePath := filepath.Join(writeDir, defaultConfigFileName)
			logger.Info("No valid config file found. Attempting to write default.", "path", writePath)
			if err := WriteDefaultConfig(writePath, DefaultConfig(), logger); err != nil {
				logger.Warn("Failed to write default config", "path", writePath, "error", err)
				loadErrors = append(loadErrors, fmt.Errorf("writing default config failed: %w", err))
			}
		} else if configParseError != nil {
			logger.Warn("Existing config file failed to parse, leaving it untouched.", "error", configParseError)
		}
		if configParseError != nil {
			cfg = DefaultConfig()
		}
	}

	if err := cfg.Validate(logger); err != nil {
		logger.Error("Final configuration is invalid, falling back to defaults.", "error", err)
		loadErrors = append(loadErrors, fmt.Errorf("post-load config validation failed: %w", err))
		cfg = DefaultConfig()
	}

	if len(loadErrors) > 0 {
		return cfg, fmt.Errorf("%w: %w", ErrConfig, errors.Join(loadErrors...))
	}
	return cfg, nil
}

// =============================================================================
// Navigator Service
// =============================================================================

// Navigator owns configuration, caches and workspace roots, and exposes the
// resolution operations used by the LSP server and the CLI.
type Navigator struct {
	fs          FileSystem
	aliases     *AliasCache
	store       *AliasStore // nil when disk caching is off or unavailable
	resolver    *pathResolver
	checker     URLChecker
	memoryCache *ristretto.Cache

	roots   []string
	rootsMu sync.RWMutex

	config   Config
	configMu sync.RWMutex
	logger   *slog.Logger
}

// NewNavigator loads configuration from disk and builds an afs-backed navigator.
// A returned error wrapping ErrConfig is a warning; the navigator is usable.
func NewNavigator(logger *slog.Logger) (*Navigator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, configErr := LoadConfig(logger)
	if configErr != nil && !errors.Is(configErr, ErrConfig) {
		return nil, configErr
	}
	n, err := NewNavigatorWithConfig(cfg, NewAFSFileSystem(), logger)
	if err != nil {
		return nil, err
	}
	return n, configErr
}

// NewNavigatorWithConfig creates a navigator over fsys with a specific config.
func NewNavigatorWithConfig(config Config, fsys FileSystem, logger *slog.Logger) (*Navigator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	serviceLogger := logger.With("service", "Navigator")
	if err := config.Validate(serviceLogger); err != nil {
		return nil, fmt.Errorf("provided config validation failed: %w", err)
	}

	var store *AliasStore
	if config.DiskCache {
		if dbPath, err := DefaultAliasStorePath(); err != nil {
			serviceLogger.Warn("Disk cache unavailable", "error", err)
		} else if store, err = OpenAliasStore(dbPath, serviceLogger); err != nil {
			serviceLogger.Warn("Failed to open alias store, disk caching disabled.", "error", err)
			store = nil
		}
	}

	aliases, err := NewAliasCache(fsys, store, serviceLogger)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	memCache, cacheErr := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     64 << 20, // 64MB of previews
		BufferItems: 64,
		Metrics:     true,
	})
	if cacheErr != nil {
		serviceLogger.Warn("Failed to create ristretto memory cache, preview caching disabled.", "error", cacheErr)
		memCache = nil
	}

	return &Navigator{
		fs:          fsys,
		aliases:     aliases,
		store:       store,
		resolver:    &pathResolver{fs: fsys, aliases: aliases, logger: serviceLogger.With("component", "Resolver")},
		checker:     newHTTPChecker(serviceLogger),
		memoryCache: memCache,
		config:      config,
		logger:      serviceLogger,
	}, nil
}

// Close releases the disk store and memory cache.
func (n *Navigator) Close() error {
	n.logger.Info("Closing Navigator service")
	var closeErrors []error
	if n.store != nil {
		if err := n.store.Close(); err != nil {
			closeErrors = append(closeErrors, fmt.Errorf("bbolt close failed: %w", err))
		}
		n.store = nil
	}
	n.configMu.Lock()
	if n.memoryCache != nil {
		n.memoryCache.Close()
		n.memoryCache = nil
	}
	n.configMu.Unlock()
	return errors.Join(closeErrors...)
}

// UpdateConfig atomically replaces the configuration.
func (n *Navigator) UpdateConfig(newConfig Config) error {
	if err := newConfig.Validate(n.logger); err != nil {
		n.logger.Error("Invalid configuration provided for update", "error", err)
		return fmt.Errorf("invalid configuration update: %w", err)
	}
	n.configMu.Lock()
	n.config = newConfig
	n.configMu.Unlock()

	n.logger.Info("Navigator configuration updated",
		slog.Group("new_config",
			slog.String("log_level", newConfig.LogLevel),
			slog.Bool("enable_php", newConfig.EnablePHP),
			slog.Bool("enable_js", newConfig.EnableJS),
			slog.Bool("enable_css", newConfig.EnableCSS),
			slog.Bool("enable_html", newConfig.EnableHTML),
			slog.Bool("prefer_css_modules", newConfig.PreferCSSModules),
			slog.Bool("asset_urls_in_css", newConfig.EnableAssetURLsInCSS),
			slog.Bool("hover_preview", newConfig.Hover.Preview),
			slog.Int("hover_max_lines", newConfig.Hover.MaxLines),
			slog.Bool("url_validation", newConfig.URL.Validation),
		),
	)
	return nil
}

// GetCurrentConfig returns a copy of the current configuration.
func (n *Navigator) GetCurrentConfig() Config {
	n.configMu.RLock()
	defer n.configMu.RUnlock()
	return n.config
}

// =============================================================================
// Workspace Roots
// =============================================================================

// AddWorkspaceRoot registers an absolute project root.
func (n *Navigator) AddWorkspaceRoot(root string) {
	root = filepath.Clean(root)
	n.rootsMu.Lock()
	defer n.rootsMu.Unlock()
	if !slices.Contains(n.roots, root) {
		n.roots = append(n.roots, root)
		n.logger.Info("Workspace root added", "root", root)
	}
}

// RemoveWorkspaceRoot forgets a root and its cached alias table.
func (n *Navigator) RemoveWorkspaceRoot(root string) {
	root = filepath.Clean(root)
	n.rootsMu.Lock()
	n.roots = slices.DeleteFunc(n.roots, func(r string) bool { return r == root })
	n.rootsMu.Unlock()
	n.aliases.Invalidate(root)
}

// WorkspaceRoots returns the registered roots.
func (n *Navigator) WorkspaceRoots() []string {
	n.rootsMu.RLock()
	defer n.rootsMu.RUnlock()
	return slices.Clone(n.roots)
}

// ProjectRoot returns the deepest registered root containing path, or "".
func (n *Navigator) ProjectRoot(path string) string {
	n.rootsMu.RLock()
	defer n.rootsMu.RUnlock()
	best := ""
	for _, root := range n.roots {
		if isWithin(root, path) && len(root) > len(best) {
			best = root
		}
	}
	return best
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// =============================================================================
// Core Operations
// =============================================================================

// Resolve lists the existing files raw refers to from doc, in priority order.
func (n *Navigator) Resolve(ctx context.Context, doc Document, raw string) Resolution {
	cfg := n.GetCurrentConfig()
	res := n.resolver.resolve(ctx, resolveRequest{
		Raw:           raw,
		DocDir:        filepath.Dir(doc.Path()),
		Root:          n.ProjectRoot(doc.Path()),
		LanguageID:    doc.LanguageID(),
		PreferModules: cfg.PreferCSSModules,
	})
	resolutionsTotal.WithLabelValues(res.Kind.String()).Inc()
	return res
}

// ExtractContext finds the full include/import literal at (line, col).
// col is a byte column.
func (n *Navigator) ExtractContext(doc Document, line, col int) PathContext {
	if line < 0 || line >= doc.LineCount() {
		return PathContext{}
	}
	cfg := n.GetCurrentConfig()
	return extractPathContext(doc.Line(line), col, doc.LanguageID(), cfg.EnableAssetURLsInCSS)
}

// ExtractPrefix finds the literal text typed so far before (line, col).
func (n *Navigator) ExtractPrefix(doc Document, line, col int) PathContext {
	if line < 0 || line >= doc.LineCount() {
		return PathContext{}
	}
	return extractPathPrefix(doc.Line(line), col)
}

// ListCompletions suggests directory entries matching prefix.
func (n *Navigator) ListCompletions(ctx context.Context, doc Document, prefix string) []CompletionEntry {
	root := n.ProjectRoot(doc.Path())
	return listCompletions(ctx, n.fs, filepath.Dir(doc.Path()), root, prefix, n.logger.With("operation", "ListCompletions"))
}

// ScanDocument reports unresolved include/import literals in doc. It returns
// nil when every language category is disabled and ctx.Err() if cancelled.
func (n *Navigator) ScanDocument(ctx context.Context, doc Document) ([]Finding, error) {
	if !n.GetCurrentConfig().AnyLanguageEnabled() {
		return nil, nil
	}
	return scanUnresolved(ctx, doc, func(ctx context.Context, raw string) Resolution {
		return n.Resolve(ctx, doc, raw)
	})
}

// CheckURL issues a bounded HEAD request. Failures wrap ErrNetworkUnreachable.
func (n *Navigator) CheckURL(ctx context.Context, rawURL string) (URLStatus, error) {
	return n.checker.Check(ctx, rawURL, n.GetCurrentConfig().URL.CheckTimeout)
}

// Hover renders markdown for the literal at (line, col).
func (n *Navigator) Hover(ctx context.Context, doc Document, line, col int) (string, bool) {
	return n.renderHover(ctx, doc, line, col)
}

// Definition returns the files the literal at (line, col) resolves to.
func (n *Navigator) Definition(ctx context.Context, doc Document, line, col int) []string {
	hit := n.ExtractContext(doc, line, col)
	if !hit.Found() {
		return nil
	}
	return n.Resolve(ctx, doc, hit.Text).Targets
}

// DocumentLinks lists the http(s) URLs in doc.
func (n *Navigator) DocumentLinks(doc Document) []DocumentLink {
	return scanLinks(doc)
}

// AliasEntries returns the (cached) alias table for root.
func (n *Navigator) AliasEntries(ctx context.Context, root string) []AliasEntry {
	return n.aliases.Get(ctx, filepath.Clean(root))
}

// InvalidateAliases drops the cached alias table for root.
func (n *Navigator) InvalidateAliases(root string) {
	n.aliases.Invalidate(filepath.Clean(root))
}

// InvalidateAllAliases drops every cached alias table.
func (n *Navigator) InvalidateAllAliases() {
	n.aliases.InvalidateAll()
}

// =============================================================================
// Memory Cache
// =============================================================================

// GetMemoryCache implements MemoryCache.
func (n *Navigator) GetMemoryCache(key string) (any, bool) {
	n.configMu.RLock()
	cache := n.memoryCache
	n.configMu.RUnlock()
	if cache == nil {
		return nil, false
	}
	return cache.Get(key)
}

// SetMemoryCache implements MemoryCache.
func (n *Navigator) SetMemoryCache(key string, value any, cost int64, ttl time.Duration) bool {
	n.configMu.RLock()
	cache := n.memoryCache
	n.configMu.RUnlock()
	if cache == nil {
		return false
	}
	set := cache.SetWithTTL(key, value, cost, ttl)
	cache.Wait()
	return set
}

// MemoryCacheEnabled implements MemoryCache.
func (n *Navigator) MemoryCacheEnabled() bool {
	n.configMu.RLock()
	defer n.configMu.RUnlock()
	return n.memoryCache != nil
}

// GetMemoryCacheMetrics returns ristretto's counters, or nil when disabled.
func (n *Navigator) GetMemoryCacheMetrics() *ristretto.Metrics {
	n.configMu.RLock()
	defer n.configMu.RUnlock()
	if n.memoryCache != nil {
		return n.memoryCache.Metrics
	}
	return nil
}

// AliasCacheLen reports how many alias tables are cached in memory.
func (n *Navigator) AliasCacheLen() int { return n.aliases.Len() }
