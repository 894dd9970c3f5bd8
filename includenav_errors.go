// includenav/includenav_errors.go
// Contains exported error definitions for the includenav package.
package includenav

import "errors"

// =============================================================================
// Exported Errors
// =============================================================================

var (
	// ErrConfigRead indicates a build-tool config file (tsconfig, vite, webpack)
	// could not be read or parsed. Extraction absorbs it and yields zero entries.
	ErrConfigRead = errors.New("build config read failed")

	// ErrPathNotFound indicates a stat or read target does not exist.
	ErrPathNotFound = errors.New("path not found")

	// ErrIsDirectory indicates a resolved target is a directory and has no preview.
	ErrIsDirectory = errors.New("target is a directory")

	// ErrNetworkUnreachable indicates a URL check failed or timed out.
	ErrNetworkUnreachable = errors.New("network target unreachable")

	// ErrFilesystemList indicates a directory listing failed.
	ErrFilesystemList = errors.New("directory listing failed")

	// ErrConfig indicates non-fatal errors during config loading or processing.
	ErrConfig = errors.New("configuration error")

	// ErrInvalidConfig indicates a configuration value is invalid after validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCache indicates a general cache operation failure.
	ErrCache = errors.New("cache operation failed")

	// ErrCacheRead indicates failure reading from the alias store.
	ErrCacheRead = errors.New("cache read failed")

	// ErrCacheWrite indicates failure writing to the alias store.
	ErrCacheWrite = errors.New("cache write failed")

	// ErrCacheDecode indicates failure decoding data read from the alias store.
	ErrCacheDecode = errors.New("cache decode failed")

	// ErrCacheEncode indicates failure encoding data for the alias store.
	ErrCacheEncode = errors.New("cache encode failed")

	// ErrCacheHash indicates failure hashing config files for cache validation.
	ErrCacheHash = errors.New("cache hash calculation failed")

	// ErrPositionConversion indicates failure converting between LSP and byte positions.
	ErrPositionConversion = errors.New("position conversion failed")

	// ErrInvalidPositionInput indicates input position values (line/col) are invalid.
	ErrInvalidPositionInput = errors.New("invalid input position")

	// ErrPositionOutOfRange indicates a position is outside the bounds of the document or line.
	ErrPositionOutOfRange = errors.New("position out of range")

	// ErrInvalidUTF8 indicates an invalid UTF-8 sequence was encountered.
	ErrInvalidUTF8 = errors.New("invalid utf-8 sequence")

	// ErrInvalidURI indicates a document URI is invalid or uses an unsupported scheme.
	ErrInvalidURI = errors.New("invalid document URI")
)
