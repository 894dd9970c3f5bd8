// includenav/helpers_alias.go
// Contains alias table extraction from compiler and bundler config files.
package includenav

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Compiler configs are read as JSON, bundler configs as opaque text.
var (
	compilerConfigFiles = []string{"tsconfig.json", "jsconfig.json"}
	bundlerConfigFiles  = []string{
		"vite.config.ts", "vite.config.js",
		"webpack.config.js", "webpack.config.ts", "webpack.config.cjs", "webpack.config.mjs",
	}
)

// aliasConfigFiles lists every file whose content feeds the alias table, in source order.
func aliasConfigFiles() []string {
	files := make([]string, 0, len(compilerConfigFiles)+len(bundlerConfigFiles))
	files = append(files, compilerConfigFiles...)
	return append(files, bundlerConfigFiles...)
}

var (
	aliasBlockStartRe = regexp.MustCompile(`alias\s*:\s*\{`)
	aliasPairRe       = regexp.MustCompile(`['"]([^'"\n]+)['"]\s*:\s*['"]([^'"\n]+)['"]`)
	aliasFindRe       = regexp.MustCompile(`\{\s*find\s*:\s*['"]([^'"\n]+)['"]\s*,\s*replacement\s*:\s*['"]([^'"\n]+)['"]\s*,?\s*\}`)
)

// extractAliases builds the alias table for root: compiler configs first, then
// bundler configs, stably sorted by descending prefix length.
func extractAliases(ctx context.Context, fsys FileSystem, root string, logger *slog.Logger) []AliasEntry {
	if logger == nil {
		logger = slog.Default()
	}
	opLogger := logger.With("operation", "extractAliases", "root", root)

	var entries []AliasEntry
	for _, name := range compilerConfigFiles {
		found, err := compilerConfigAliases(ctx, fsys, root, name)
		if err != nil {
			opLogger.Debug("Skipping compiler config", "file", name, "error", err)
			continue
		}
		aliasExtractions.WithLabelValues(name).Add(float64(len(found)))
		entries = append(entries, found...)
	}
	for _, name := range bundlerConfigFiles {
		found, err := bundlerConfigAliases(ctx, fsys, root, name)
		if err != nil {
			opLogger.Debug("Skipping bundler config", "file", name, "error", err)
			continue
		}
		aliasExtractions.WithLabelValues(name).Add(float64(len(found)))
		entries = append(entries, found...)
	}

	sortAliasEntries(entries)
	opLogger.Debug("Alias table built", "entries", len(entries))
	return entries
}

// sortAliasEntries orders entries so the first prefix match is the longest.
func sortAliasEntries(entries []AliasEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return len(entries[i].Prefix) > len(entries[j].Prefix)
	})
}

// compilerConfigAliases reads compilerOptions.baseUrl and compilerOptions.paths.
func compilerConfigAliases(ctx context.Context, fsys FileSystem, root, name string) ([]AliasEntry, error) {
	data, err := fsys.ReadFile(ctx, filepath.Join(root, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigRead, name, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s: invalid JSON", ErrConfigRead, name)
	}

	baseURL := gjson.GetBytes(data, "compilerOptions.baseUrl").String()
	if baseURL == "" {
		baseURL = "."
	}
	paths := gjson.GetBytes(data, "compilerOptions.paths")
	if !paths.IsObject() {
		return nil, nil
	}

	var entries []AliasEntry
	paths.ForEach(func(key, value gjson.Result) bool {
		if !value.IsArray() {
			return true
		}
		targets := value.Array()
		if len(targets) == 0 {
			return true
		}
		prefix := stripWildcard(key.String())
		if prefix == "" {
			return true
		}
		entries = append(entries, AliasEntry{
			Prefix: prefix,
			Target: filepath.Join(root, baseURL, stripWildcard(targets[0].String())),
		})
		return true
	})
	return entries, nil
}

// stripWildcard drops everything from the first "*" onward.
func stripWildcard(s string) string {
	if i := strings.IndexByte(s, '*'); i >= 0 {
		return s[:i]
	}
	return s
}

// bundlerConfigAliases scans a vite or webpack config for literal alias tables.
func bundlerConfigAliases(ctx context.Context, fsys FileSystem, root, name string) ([]AliasEntry, error) {
	data, err := fsys.ReadFile(ctx, filepath.Join(root, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigRead, name, err)
	}
	text := string(data)

	var entries []AliasEntry
	if body, ok := aliasObjectBody(text); ok {
		for _, m := range aliasPairRe.FindAllStringSubmatch(body, -1) {
			entries = appendBundlerAlias(entries, root, m[1], m[2])
		}
	}
	for _, m := range aliasFindRe.FindAllStringSubmatch(text, -1) {
		entries = appendBundlerAlias(entries, root, m[1], m[2])
	}
	return entries, nil
}

func appendBundlerAlias(entries []AliasEntry, root, key, value string) []AliasEntry {
	if key == "" {
		return entries
	}
	// Bundler values are always project-root relative.
	value = strings.TrimPrefix(value, "/")
	return append(entries, AliasEntry{Prefix: key, Target: filepath.Join(root, value)})
}

// aliasObjectBody returns the text between the braces of the first
// `alias: { ... }` block, matching nested braces and skipping quoted text.
func aliasObjectBody(text string) (string, bool) {
	loc := aliasBlockStartRe.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	open := loc[1] - 1
	depth := 0
	var quote byte
	for i := open; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[open+1 : i], true
			}
		}
	}
	return "", false
}

// matchAlias finds the first (longest) entry whose prefix starts raw and
// returns its target plus the remainder with one leading "/" removed.
func matchAlias(raw string, entries []AliasEntry) (target, rest string, ok bool) {
	for _, e := range entries {
		if strings.HasPrefix(raw, e.Prefix) {
			return e.Target, strings.TrimPrefix(raw[len(e.Prefix):], "/"), true
		}
	}
	return "", "", false
}
