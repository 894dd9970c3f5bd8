// includenav/includenav_document.go
// Contains the in-memory text document used by every scanner.
package includenav

import (
	"path/filepath"
	"strings"
)

// TextDocument is an immutable snapshot of a document's text.
type TextDocument struct {
	path       string
	languageID string
	lines      []string
}

// NewTextDocument splits content into lines. path must be absolute.
func NewTextDocument(path, languageID, content string) *TextDocument {
	return &TextDocument{path: path, languageID: languageID, lines: splitLines(content)}
}

func (d *TextDocument) Path() string       { return d.path }
func (d *TextDocument) LanguageID() string { return d.languageID }
func (d *TextDocument) LineCount() int     { return len(d.lines) }

// Line returns line i without its terminator, or "" when out of range.
func (d *TextDocument) Line(i int) string {
	if i < 0 || i >= len(d.lines) {
		return ""
	}
	return d.lines[i]
}

// splitLines splits on \n and drops a trailing \r from each line.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// LanguageForPath guesses an editor language id from a file extension.
// Unknown extensions map to "plaintext", which selects every extension set.
func LanguageForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".php", ".inc", ".phtml":
		return "php"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".jsx":
		return "javascriptreact"
	case ".ts", ".mts", ".cts":
		return "typescript"
	case ".tsx":
		return "typescriptreact"
	case ".vue":
		return "vue"
	case ".html", ".htm":
		return "html"
	case ".css":
		return "css"
	case ".scss", ".sass":
		return "scss"
	case ".less":
		return "less"
	}
	return "plaintext"
}
