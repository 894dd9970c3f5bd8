// includenav/helpers_hover.go
// Contains hover rendering: URL status lines and file previews.
package includenav

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// formatURLHover renders the status block for an http(s) literal.
func formatURLHover(rawURL string, res URLStatus, checkErr error) string {
	status := "unreachable"
	if checkErr == nil {
		status = fmt.Sprintf("%d %s", res.StatusCode, res.StatusMessage)
	}
	return fmt.Sprintf("URL: %s  \nStatus: %s", rawURL, status)
}

// formatFilePreview renders one resolved target as a fenced preview.
func formatFilePreview(relPath, preview string) string {
	return strings.Join([]string{"File: " + relPath, "```", preview, "```"}, "\n")
}

// firstLines returns up to maxLines lines of text, split on \n or \r\n.
func firstLines(text string, maxLines int) string {
	lines := splitLines(text)
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return strings.Join(lines, "\n")
}

// readPreview returns the first maxLines lines of path, memoized in the
// ristretto cache under a key that includes the file's modification time.
func (n *Navigator) readPreview(ctx context.Context, path string, maxLines int, logger *slog.Logger) (string, error) {
	st, err := n.fs.Stat(ctx, path)
	if err != nil {
		return "", err
	}
	if st.IsDir {
		return "", fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}
	cfg := n.GetCurrentConfig()
	key := fmt.Sprintf("preview:%s:%d:%d", path, st.ModTime.UnixNano(), maxLines)
	preview, _, err := withMemoryCache(n, key, 0, cfg.PreviewCacheTTL, func() (string, error) {
		data, readErr := n.fs.ReadFile(ctx, path)
		if readErr != nil {
			return "", readErr
		}
		return firstLines(string(data), maxLines), nil
	}, logger)
	return preview, err
}

// renderHover builds the hover markdown for the literal at (line, col).
func (n *Navigator) renderHover(ctx context.Context, doc Document, line, col int) (string, bool) {
	cfg := n.GetCurrentConfig()
	if !cfg.Hover.Preview {
		return "", false
	}
	hoverLogger := n.logger.With("operation", "Hover", "path", doc.Path(), "line", line, "col", col)

	hit := n.ExtractContext(doc, line, col)
	if !hit.Found() {
		return "", false
	}

	if isHTTPURL(hit.Text) {
		if !cfg.URL.Validation {
			return "", false
		}
		res, checkErr := n.CheckURL(ctx, hit.Text)
		return formatURLHover(hit.Text, res, checkErr), true
	}

	resolution := n.Resolve(ctx, doc, hit.Text)
	if resolution.Kind != ResolutionFound {
		return "", false
	}
	root := n.ProjectRoot(doc.Path())
	var parts []string
	for _, target := range resolution.Targets[:min(len(resolution.Targets), maxHoverTargets)] {
		preview, err := n.readPreview(ctx, target, cfg.Hover.MaxLines, hoverLogger)
		if err != nil {
			hoverLogger.Debug("Preview unavailable", "target", target, "error", err)
			continue
		}
		if preview == "" {
			continue
		}
		rel := target
		if root != "" {
			rel = relativeToRoot(root, target)
		}
		parts = append(parts, formatFilePreview(rel, preview))
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n\n"), true
}
