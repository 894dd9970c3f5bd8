// includenav/includenav_types.go
// Contains core type definitions used throughout the includenav package.
package includenav

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// =============================================================================
// Configuration Types & Constants
// =============================================================================

const (
	defaultLogLevel            = "info"
	defaultHoverMaxLines       = 20
	defaultCheckTimeoutSecs    = 3
	defaultPreviewCacheTTLSecs = 30
	defaultConfigFileName      = "config.json"
	defaultYAMLConfigFileName  = "config.yaml"
	configDirName              = "includenav" // Subdirectory name for config/data.
	cacheSchemaVersion         = 1            // Bump when CachedAliasTable changes shape.

	// maxScanLines caps how many lines diagnostics and link scans look at.
	maxScanLines = 2000
	// maxHoverTargets caps how many resolved files a hover previews.
	maxHoverTargets = 3

	// diagnosticSource is reported as the source of every finding.
	diagnosticSource = "includenav"
)

// HoverConfig controls hover previews.
type HoverConfig struct {
	Preview  bool `json:"preview" yaml:"preview"`
	MaxLines int  `json:"maxLines" yaml:"maxLines"`
}

// URLConfig controls http(s) literal handling.
type URLConfig struct {
	Validation          bool          `json:"validation" yaml:"validation"`
	CheckTimeoutSeconds int           `json:"checkTimeoutSeconds" yaml:"checkTimeoutSeconds"`
	CheckTimeout        time.Duration `json:"-" yaml:"-"` // Derived, not from file.
}

// Config holds the active configuration for the navigator service.
type Config struct {
	LogLevel               string        `json:"logLevel" yaml:"logLevel"`
	EnablePHP              bool          `json:"enablePHP" yaml:"enablePHP"`
	EnableJS               bool          `json:"enableJS" yaml:"enableJS"`
	EnableCSS              bool          `json:"enableCSS" yaml:"enableCSS"`
	EnableHTML             bool          `json:"enableHTML" yaml:"enableHTML"`
	PreferCSSModules       bool          `json:"preferCssModules" yaml:"preferCssModules"`
	EnableAssetURLsInCSS   bool          `json:"enableAssetUrlsInCSS" yaml:"enableAssetUrlsInCSS"`
	Hover                  HoverConfig   `json:"hover" yaml:"hover"`
	URL                    URLConfig     `json:"url" yaml:"url"`
	PreviewCacheTTLSeconds int           `json:"previewCacheTtlSeconds" yaml:"previewCacheTtlSeconds"`
	PreviewCacheTTL        time.Duration `json:"-" yaml:"-"` // Derived, not from file.
	DiskCache              bool          `json:"diskCache" yaml:"diskCache"`               // Persist alias tables in bbolt.
	WatchConfigFiles       bool          `json:"watchConfigFiles" yaml:"watchConfigFiles"` // fsnotify invalidation.
}

// FileHoverConfig is the pointer-field form of HoverConfig.
type FileHoverConfig struct {
	Preview  *bool `json:"preview" yaml:"preview"`
	MaxLines *int  `json:"maxLines" yaml:"maxLines"`
}

// FileURLConfig is the pointer-field form of URLConfig.
type FileURLConfig struct {
	Validation          *bool `json:"validation" yaml:"validation"`
	CheckTimeoutSeconds *int  `json:"checkTimeoutSeconds" yaml:"checkTimeoutSeconds"`
}

// FileConfig represents the config file and client settings for unmarshalling.
// Uses pointers to distinguish between unset fields and zero-value fields.
type FileConfig struct {
	LogLevel               *string          `json:"logLevel" yaml:"logLevel"`
	EnablePHP              *bool            `json:"enablePHP" yaml:"enablePHP"`
	EnableJS               *bool            `json:"enableJS" yaml:"enableJS"`
	EnableCSS              *bool            `json:"enableCSS" yaml:"enableCSS"`
	EnableHTML             *bool            `json:"enableHTML" yaml:"enableHTML"`
	PreferCSSModules       *bool            `json:"preferCssModules" yaml:"preferCssModules"`
	EnableAssetURLsInCSS   *bool            `json:"enableAssetUrlsInCSS" yaml:"enableAssetUrlsInCSS"`
	Hover                  *FileHoverConfig `json:"hover" yaml:"hover"`
	URL                    *FileURLConfig   `json:"url" yaml:"url"`
	PreviewCacheTTLSeconds *int             `json:"previewCacheTtlSeconds" yaml:"previewCacheTtlSeconds"`
	DiskCache              *bool            `json:"diskCache" yaml:"diskCache"`
	WatchConfigFiles       *bool            `json:"watchConfigFiles" yaml:"watchConfigFiles"`
}

// DefaultConfig returns a new instance of the default configuration.
func DefaultConfig() Config {
	return Config{
		LogLevel:             defaultLogLevel,
		EnablePHP:            true,
		EnableJS:             true,
		EnableCSS:            true,
		EnableHTML:           true,
		PreferCSSModules:     true,
		EnableAssetURLsInCSS: false,
		Hover: HoverConfig{
			Preview:  true,
			MaxLines: defaultHoverMaxLines,
		},
		URL: URLConfig{
			Validation:          false,
			CheckTimeoutSeconds: defaultCheckTimeoutSecs,
			CheckTimeout:        defaultCheckTimeoutSecs * time.Second,
		},
		PreviewCacheTTLSeconds: defaultPreviewCacheTTLSecs,
		PreviewCacheTTL:        defaultPreviewCacheTTLSecs * time.Second,
		DiskCache:              true,
		WatchConfigFiles:       true,
	}
}

// Validate checks if configuration values are valid, applying defaults for some fields.
func (c *Config) Validate(logger *slog.Logger) error {
	var validationErrors []error
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()

	if c.Hover.MaxLines <= 0 {
		logger.Warn("Config validation: hover.maxLines is not positive, applying default.", "configured_value", c.Hover.MaxLines, "default", def.Hover.MaxLines)
		c.Hover.MaxLines = def.Hover.MaxLines
	}
	if c.URL.CheckTimeoutSeconds <= 0 {
		logger.Warn("Config validation: url.checkTimeoutSeconds is not positive, applying default.", "configured_value", c.URL.CheckTimeoutSeconds, "default", def.URL.CheckTimeoutSeconds)
		c.URL.CheckTimeoutSeconds = def.URL.CheckTimeoutSeconds
	}
	c.URL.CheckTimeout = time.Duration(c.URL.CheckTimeoutSeconds) * time.Second

	if c.PreviewCacheTTLSeconds <= 0 {
		logger.Warn("Config validation: previewCacheTtlSeconds is not positive, applying default.", "configured_value", c.PreviewCacheTTLSeconds, "default", def.PreviewCacheTTLSeconds)
		c.PreviewCacheTTLSeconds = def.PreviewCacheTTLSeconds
	}
	c.PreviewCacheTTL = time.Duration(c.PreviewCacheTTLSeconds) * time.Second

	if c.LogLevel == "" {
		logger.Warn("Config validation: logLevel is empty, applying default.", "default", defaultLogLevel)
		c.LogLevel = defaultLogLevel
	} else if _, err := ParseLogLevel(c.LogLevel); err != nil {
		logger.Warn("Config validation: invalid logLevel found, applying default.", "configured_value", c.LogLevel, "default", defaultLogLevel, "error", err)
		validationErrors = append(validationErrors, fmt.Errorf("invalid logLevel '%s': %w", c.LogLevel, err))
		c.LogLevel = defaultLogLevel
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(validationErrors...))
	}
	return nil
}

// AnyLanguageEnabled reports whether at least one language category is switched on.
func (c Config) AnyLanguageEnabled() bool {
	return c.EnablePHP || c.EnableJS || c.EnableCSS || c.EnableHTML
}

// mergeFileConfig copies every set field of fc onto cfg and returns how many were set.
func mergeFileConfig(cfg *Config, fc FileConfig) int {
	merged := 0
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
			merged++
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
			merged++
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
			merged++
		}
	}

	setString(&cfg.LogLevel, fc.LogLevel)
	setBool(&cfg.EnablePHP, fc.EnablePHP)
	setBool(&cfg.EnableJS, fc.EnableJS)
	setBool(&cfg.EnableCSS, fc.EnableCSS)
	setBool(&cfg.EnableHTML, fc.EnableHTML)
	setBool(&cfg.PreferCSSModules, fc.PreferCSSModules)
	setBool(&cfg.EnableAssetURLsInCSS, fc.EnableAssetURLsInCSS)
	if fc.Hover != nil {
		setBool(&cfg.Hover.Preview, fc.Hover.Preview)
		setInt(&cfg.Hover.MaxLines, fc.Hover.MaxLines)
	}
	if fc.URL != nil {
		setBool(&cfg.URL.Validation, fc.URL.Validation)
		setInt(&cfg.URL.CheckTimeoutSeconds, fc.URL.CheckTimeoutSeconds)
	}
	setInt(&cfg.PreviewCacheTTLSeconds, fc.PreviewCacheTTLSeconds)
	setBool(&cfg.DiskCache, fc.DiskCache)
	setBool(&cfg.WatchConfigFiles, fc.WatchConfigFiles)
	return merged
}

// =============================================================================
// Navigation Types
// =============================================================================

// AliasEntry maps an import prefix to an absolute target directory.
type AliasEntry struct {
	Prefix string
	Target string
}

// ContextKind tags the outcome of a lexical context scan.
type ContextKind int

const (
	ContextNone    ContextKind = iota // No include/import context at the column.
	ContextLiteral                    // Full literal under the cursor.
	ContextPrefix                     // Literal text up to the cursor.
)

func (k ContextKind) String() string {
	switch k {
	case ContextLiteral:
		return "literal"
	case ContextPrefix:
		return "prefix"
	default:
		return "none"
	}
}

// PathContext is the result of a lexical context scan.
// Start and End are byte columns of Text within the scanned line.
type PathContext struct {
	Kind  ContextKind
	Text  string
	Start int
	End   int
}

// Found reports whether the scan located a path context.
func (c PathContext) Found() bool { return c.Kind != ContextNone }

// ResolutionKind tags the outcome of resolving a raw path.
type ResolutionKind int

const (
	ResolutionUnresolved ResolutionKind = iota
	ResolutionFound
)

func (k ResolutionKind) String() string {
	if k == ResolutionFound {
		return "found"
	}
	return "unresolved"
}

// Resolution lists existing targets in candidate-generation order.
type Resolution struct {
	Kind    ResolutionKind
	Targets []string
}

var unresolved = Resolution{Kind: ResolutionUnresolved}

// DiagnosticSeverity mirrors the LSP severity levels.
type DiagnosticSeverity int

const (
	SeverityError   DiagnosticSeverity = 1
	SeverityWarning DiagnosticSeverity = 2
	SeverityInfo    DiagnosticSeverity = 3
	SeverityHint    DiagnosticSeverity = 4
)

// Position is a 0-based line and byte column.
type Position struct {
	Line      int
	Character int
}

// Range is a half-open span between two positions.
type Range struct {
	Start Position
	End   Position
}

// Finding is a warning about an include/import literal that resolves to nothing.
// StartCol and EndCol delimit the literal without its quotes.
type Finding struct {
	Line     int
	StartCol int
	EndCol   int
	Message  string
	Severity DiagnosticSeverity
	Source   string
}

// Range returns the finding's span as a Range.
func (f Finding) Range() Range {
	return Range{
		Start: Position{Line: f.Line, Character: f.StartCol},
		End:   Position{Line: f.Line, Character: f.EndCol},
	}
}

// QuotedSpan is the body of one quoted literal on a line.
type QuotedSpan struct {
	Start int // Byte column just after the opening quote.
	End   int // Byte column of the closing quote.
	Raw   string
}

// CompletionKind distinguishes files from directories.
type CompletionKind int

const (
	CompletionFile CompletionKind = iota
	CompletionDirectory
)

// CompletionEntry is one directory-listing suggestion.
type CompletionEntry struct {
	Name    string // Directories carry a trailing "/".
	Kind    CompletionKind
	Detail  string // Path relative to the project root.
	SortKey string
}

// URLStatus is the outcome of a reachable URL check.
type URLStatus struct {
	StatusCode    int
	StatusMessage string
}

// DocumentLink is an http(s) URL found in a document.
type DocumentLink struct {
	Range  Range
	Target string
}

// =============================================================================
// Cache Types
// =============================================================================

// CachedAliasTable is the bbolt record for one project root.
type CachedAliasTable struct {
	SchemaVersion int               // Version of the cache structure itself.
	ConfigHashes  map[string]string // xxh3 of each build config file name, "absent" when missing.
	EntriesGob    []byte            // Gob-encoded []AliasEntry.
}
