// includenav/includenav_utils.go
package includenav

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// Logging Helpers
// ============================================================================

// ParseLogLevel converts a level name into a slog.Level.
func ParseLogLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", levelStr)
}

// ============================================================================
// Config File Helpers
// ============================================================================

var errConfigParse = errors.New("parsing config file")

// GetConfigPaths returns the primary (user config dir) and secondary (~/.config)
// config directories.
func GetConfigPaths(logger *slog.Logger) (primary, secondary string, err error) {
	var errs []error
	if dir, cfgErr := os.UserConfigDir(); cfgErr == nil {
		primary = filepath.Join(dir, configDirName)
	} else {
		errs = append(errs, fmt.Errorf("user config dir: %w", cfgErr))
	}
	if home, homeErr := os.UserHomeDir(); homeErr == nil {
		secondary = filepath.Join(home, ".config", configDirName)
	} else {
		errs = append(errs, fmt.Errorf("user home dir: %w", homeErr))
	}
	if primary == "" && secondary == "" {
		return "", "", fmt.Errorf("%w: %w", ErrConfig, errors.Join(errs...))
	}
	logger.Debug("Resolved config directories", "primary", primary, "secondary", secondary)
	return primary, secondary, nil
}

// LoadAndMergeConfig merges the config file at path onto cfg. YAML is used for
// .yaml/.yml files, JSON otherwise. A missing file reports (false, nil).
func LoadAndMergeConfig(path string, cfg *Config, logger *slog.Logger) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading config file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		logger.Warn("Config file is empty, ignoring", "path", path)
		return false, nil
	}

	var fileCfg FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fileCfg)
	default:
		err = json.Unmarshal(data, &fileCfg)
	}
	if err != nil {
		return false, fmt.Errorf("%w %s: %w", errConfigParse, path, err)
	}
	merged := mergeFileConfig(cfg, fileCfg)
	logger.Debug("Merged config file", "path", path, "fields", merged)
	return true, nil
}

// WriteDefaultConfig writes cfg as indented JSON, creating parent directories.
func WriteDefaultConfig(path string, cfg Config, logger *slog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	logger.Info("Wrote default config", "path", path)
	return nil
}

// ============================================================================
// URI Helpers
// ============================================================================

// ValidateAndGetFilePath converts a file:// URI into an absolute local path.
func ValidateAndGetFilePath(uri string) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("%w: empty URI", ErrInvalidURI)
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}
	if parsed.Scheme != "file" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURI, parsed.Scheme)
	}
	p := filepath.FromSlash(parsed.Path)
	if !filepath.IsAbs(p) {
		return "", fmt.Errorf("%w: path %q is not absolute", ErrInvalidURI, parsed.Path)
	}
	return filepath.Clean(p), nil
}

// PathToURI converts an absolute local path into a file:// URI.
func PathToURI(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

// ============================================================================
// LSP Position Conversion Helpers
// ============================================================================

// LspPositionToByteColumn converts a 0-based LSP position (UTF-16) into a
// 0-based line index and byte column within that line. Columns past the end
// of the line are clamped to its length.
func LspPositionToByteColumn(doc Document, pos LSPPosition) (line, col int, err error) {
	line = int(pos.Line)
	if line >= doc.LineCount() {
		return 0, 0, fmt.Errorf("%w: line %d not in document (%d lines)", ErrPositionOutOfRange, line, doc.LineCount())
	}
	text := doc.Line(line)
	col, err = Utf16OffsetToBytes([]byte(text), int(pos.Character))
	if err != nil {
		if errors.Is(err, ErrPositionOutOfRange) {
			return line, len(text), nil
		}
		return 0, 0, fmt.Errorf("%w: %w", ErrPositionConversion, err)
	}
	return line, col, nil
}

// Utf16OffsetToBytes converts a 0-based UTF-16 offset within a line to a 0-based byte offset.
func Utf16OffsetToBytes(line []byte, utf16Offset int) (int, error) {
	if utf16Offset < 0 {
		return 0, fmt.Errorf("%w: invalid utf16Offset: %d (must be >= 0)", ErrInvalidPositionInput, utf16Offset)
	}
	if utf16Offset == 0 {
		return 0, nil
	}

	byteOffset := 0
	currentUTF16Offset := 0
	for byteOffset < len(line) {
		if currentUTF16Offset >= utf16Offset {
			break
		}
		r, size := utf8.DecodeRune(line[byteOffset:])
		if r == utf8.RuneError && size <= 1 {
			return byteOffset, fmt.Errorf("%w at byte offset %d", ErrInvalidUTF8, byteOffset)
		}
		utf16Units := 1
		if r > 0xFFFF {
			utf16Units = 2 // Surrogate pair.
		}
		if currentUTF16Offset+utf16Units > utf16Offset {
			break
		}
		currentUTF16Offset += utf16Units
		byteOffset += size
	}
	if currentUTF16Offset < utf16Offset && byteOffset >= len(line) {
		return len(line), fmt.Errorf("%w: utf16Offset %d is beyond the line length in UTF-16 units (%d)", ErrPositionOutOfRange, utf16Offset, currentUTF16Offset)
	}
	return byteOffset, nil
}

// byteColumnToUTF16 converts a byte column within line into UTF-16 units.
func byteColumnToUTF16(line string, col int) uint32 {
	col = clampColumn(line, col)
	n, err := bytesToUTF16Offset([]byte(line[:col]))
	if err != nil {
		return uint32(col)
	}
	return uint32(n)
}

// bytesToUTF16Offset counts the UTF-16 code units in b.
func bytesToUTF16Offset(b []byte) (int, error) {
	utf16Offset := 0
	byteOffset := 0
	for byteOffset < len(b) {
		r, size := utf8.DecodeRune(b[byteOffset:])
		if r == utf8.RuneError && size <= 1 {
			return utf16Offset, fmt.Errorf("%w at byte offset %d within slice", ErrInvalidUTF8, byteOffset)
		}
		if r > 0xFFFF {
			utf16Offset += 2
		} else {
			utf16Offset++
		}
		byteOffset += size
	}
	return utf16Offset, nil
}
