// includenav/helpers_completion.go
// Contains directory-listing completions for partially typed paths.
package includenav

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
)

// listCompletions lists entries of the base directory whose names start with
// the final segment of prefix. Base is root for "/"-rooted prefixes, otherwise docDir.
func listCompletions(ctx context.Context, fsys FileSystem, docDir, root, prefix string, logger *slog.Logger) []CompletionEntry {
	if root == "" {
		return nil
	}
	base := docDir
	if strings.HasPrefix(prefix, "/") {
		base = root
	}

	entries, err := fsys.ReadDir(ctx, base)
	if err != nil {
		logger.Debug("Completion listing failed", "dir", base, "error", err)
		return nil
	}

	filter := strings.ToLower(finalSegment(prefix))
	items := make([]CompletionEntry, 0, len(entries))
	for _, e := range entries {
		if !strings.HasPrefix(strings.ToLower(e.Name), filter) {
			continue
		}
		item := CompletionEntry{
			Name:    e.Name,
			Kind:    CompletionFile,
			Detail:  relativeToRoot(root, filepath.Join(base, e.Name)),
			SortKey: "1" + e.Name,
		}
		if e.IsDir {
			item.Name += "/"
			item.Kind = CompletionDirectory
			item.SortKey = "0" + e.Name
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SortKey < items[j].SortKey })
	return items
}

// finalSegment returns the last named segment of prefix, ignoring trailing
// slashes. "." and ".." name no entry and filter nothing.
func finalSegment(prefix string) string {
	seg := strings.TrimRight(prefix, "/")
	if i := strings.LastIndexByte(seg, '/'); i >= 0 {
		seg = seg[i+1:]
	}
	if seg == "." || seg == ".." {
		return ""
	}
	return seg
}

// relativeToRoot renders p relative to root with forward slashes, or p itself
// when it lies outside root.
func relativeToRoot(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}
