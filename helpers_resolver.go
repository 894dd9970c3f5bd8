// includenav/helpers_resolver.go
// Contains candidate generation and existence resolution for raw include paths.
package includenav

import (
	"context"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

var (
	jsExtensions  = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}
	cssExtensions = []string{".css", ".scss", ".sass", ".less"}
	phpExtensions = []string{".php", ".inc", ".phtml"}

	httpURLRe = regexp.MustCompile(`(?i)^https?://`)
)

// statConcurrency bounds parallel Stat calls for one resolution.
const statConcurrency = 8

// extensionsForLanguage picks the inferred-extension set for a language id.
func extensionsForLanguage(languageID string) []string {
	switch {
	case languageID == "php":
		return phpExtensions
	case strings.HasPrefix(languageID, "javascript"), strings.HasPrefix(languageID, "typescript"), languageID == "vue":
		return jsExtensions
	case languageID == "css", languageID == "scss", languageID == "less", languageID == "html":
		return cssExtensions
	}
	all := make([]string, 0, len(jsExtensions)+len(cssExtensions)+len(phpExtensions))
	all = append(all, jsExtensions...)
	all = append(all, cssExtensions...)
	return append(all, phpExtensions...)
}

func isHTTPURL(s string) bool { return httpURLRe.MatchString(s) }

// hasExtension reports whether the final segment of p has a dot past its first byte.
func hasExtension(p string) bool {
	base := filepath.Base(p)
	if base == "." || base == ".." {
		return false
	}
	return strings.LastIndexByte(base, '.') > 0
}

// rewriteShorthand applies the built-in "@/" -> "src/" and "~" stripping rules.
func rewriteShorthand(raw string) string {
	switch {
	case strings.HasPrefix(raw, "@/"):
		return "src/" + raw[2:]
	case strings.HasPrefix(raw, "~/"):
		return raw[2:]
	case strings.HasPrefix(raw, "~"):
		return raw[1:]
	}
	return raw
}

// expandCandidates lists the candidate paths for raw joined onto baseDir.
func expandCandidates(baseDir, raw string, exts []string, preferModules bool) []string {
	bare := filepath.Join(baseDir, raw)
	if hasExtension(raw) {
		return []string{bare}
	}
	modules := preferModules && slices.Contains(exts, ".css")
	out := make([]string, 0, 2*len(exts)+4)
	out = append(out, bare)
	if modules {
		out = append(out, bare+".module.css")
	}
	for _, ext := range exts {
		out = append(out, bare+ext)
	}
	index := filepath.Join(bare, "index")
	out = append(out, index)
	if modules {
		out = append(out, index+".module.css")
	}
	for _, ext := range exts {
		out = append(out, index+ext)
	}
	return out
}

// resolveRequest carries everything candidate generation needs.
type resolveRequest struct {
	Raw           string
	DocDir        string
	Root          string // empty when the document is outside every workspace root
	LanguageID    string
	PreferModules bool
}

// generateCandidates lists every candidate path in priority order:
// root-absolute, document-relative, root-relative, then alias-relative.
func generateCandidates(req resolveRequest, aliases []AliasEntry) []string {
	raw := req.Raw
	if req.Root != "" {
		raw = rewriteShorthand(raw)
	}
	exts := extensionsForLanguage(req.LanguageID)

	var candidates []string
	if strings.HasPrefix(raw, "/") && req.Root != "" {
		candidates = append(candidates, expandCandidates(req.Root, raw[1:], exts, req.PreferModules)...)
	}
	candidates = append(candidates, expandCandidates(req.DocDir, raw, exts, req.PreferModules)...)
	if req.Root != "" {
		candidates = append(candidates, expandCandidates(req.Root, raw, exts, req.PreferModules)...)
	}
	if target, rest, ok := matchAlias(raw, aliases); ok {
		candidates = append(candidates, expandCandidates(target, rest, exts, req.PreferModules)...)
	}
	return candidates
}

// pathResolver turns raw literals into existing files.
type pathResolver struct {
	fs      FileSystem
	aliases *AliasCache
	logger  *slog.Logger
}

// resolve runs the full pipeline for one raw literal.
func (r *pathResolver) resolve(ctx context.Context, req resolveRequest) Resolution {
	req.Raw = strings.TrimSpace(req.Raw)
	if req.Raw == "" || isHTTPURL(req.Raw) {
		return unresolved
	}
	var aliases []AliasEntry
	if req.Root != "" {
		aliases = r.aliases.Get(ctx, req.Root)
	}
	targets := r.existingFiles(ctx, generateCandidates(req, aliases))
	if len(targets) == 0 {
		return unresolved
	}
	return Resolution{Kind: ResolutionFound, Targets: targets}
}

// existingFiles stats candidates concurrently and keeps every path that exists,
// files and directories alike, preserving candidate order and dropping duplicates.
func (r *pathResolver) existingFiles(ctx context.Context, candidates []string) []string {
	unique := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		unique = append(unique, c)
	}

	exists := make([]bool, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statConcurrency)
	for i, candidate := range unique {
		i, candidate := i, candidate
		g.Go(func() error {
			_, err := r.fs.Stat(gctx, candidate)
			if err != nil {
				if !isNotFound(err) {
					r.logger.Debug("Stat failed, treating as missing", "path", candidate, "error", err)
				}
				return nil
			}
			exists[i] = true
			return nil
		})
	}
	_ = g.Wait()

	var found []string
	for i, ok := range exists {
		if ok {
			found = append(found, unique[i])
		}
	}
	return found
}
