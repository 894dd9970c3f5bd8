// includenav/helpers_context.go
// Contains the lexical scanner that locates include/import literals on a line.
package includenav

import (
	"regexp"
	"strings"
)

// pathContextPatterns mark a line as carrying an include/import reference.
var pathContextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(include|require|include_once|require_once)\b`),
	regexp.MustCompile(`\b(import\s+|from\s+|require\s*\(|import\s*\()`),
	regexp.MustCompile(`<(script|link)[^>]+(src|href)\s*=`),
	regexp.MustCompile(`@import\s+|@use\s+`),
	regexp.MustCompile(`\b(fetch|axios\.[a-z]+|XMLHttpRequest)\b`),
}

// lineIndicatesPathContext reports whether any import-like pattern matches line.
func lineIndicatesPathContext(line string) bool {
	for _, re := range pathContextPatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// extractPathContext returns the full literal under col, falling back to a
// CSS url(...) argument for stylesheets when cssURLs is set.
func extractPathContext(line string, col int, languageID string, cssURLs bool) PathContext {
	col = clampColumn(line, col)
	if !lineIndicatesPathContext(line) {
		return PathContext{}
	}

	open, closing, ok := quoteSpanAt(line, col, true)
	if !ok {
		open, closing, ok = quoteSpanAt(line, col, false)
	}
	if ok && closing > open+1 {
		return PathContext{Kind: ContextLiteral, Text: line[open+1 : closing], Start: open + 1, End: closing}
	}

	if cssURLs && isStylesheetLanguage(languageID) {
		if c, found := urlFunctionAt(line, col); found {
			return c
		}
	}
	return PathContext{}
}

// extractPathPrefix returns the literal text between the opening quote and col.
// An empty prefix is still a found context.
func extractPathPrefix(line string, col int) PathContext {
	col = clampColumn(line, col)
	if !lineIndicatesPathContext(line) {
		return PathContext{}
	}
	open, _, ok := quoteSpanAt(line, col, false)
	if !ok {
		return PathContext{}
	}
	return PathContext{Kind: ContextPrefix, Text: line[open+1 : col], Start: open + 1, End: col}
}

// quoteSpanAt picks whichever of ' or " occurs last at or before col (strictly
// before when inclusive is false) and pairs it with the next same quote.
// ok is false unless open <= col <= closing.
func quoteSpanAt(line string, col int, inclusive bool) (open, closing int, ok bool) {
	limit := col
	if !inclusive {
		limit = col - 1
	}
	if limit >= len(line) {
		limit = len(line) - 1
	}
	if limit < 0 {
		return 0, 0, false
	}

	head := line[:limit+1]
	single := strings.LastIndexByte(head, '\'')
	double := strings.LastIndexByte(head, '"')
	open, quote := single, byte('\'')
	if double > single {
		open, quote = double, '"'
	}
	if open < 0 {
		return 0, 0, false
	}
	rel := strings.IndexByte(line[open+1:], quote)
	if rel < 0 {
		return 0, 0, false
	}
	closing = open + 1 + rel
	if col < open || col > closing {
		return 0, 0, false
	}
	return open, closing, true
}

// urlFunctionAt extracts the argument of the url( ... ) enclosing col.
func urlFunctionAt(line string, col int) (PathContext, bool) {
	searchEnd := col + len("url(")
	if searchEnd > len(line) {
		searchEnd = len(line)
	}
	up := strings.LastIndex(line[:searchEnd], "url(")
	if up < 0 {
		return PathContext{}, false
	}
	argStart := up + len("url(")
	rel := strings.IndexByte(line[argStart:], ')')
	if rel < 0 {
		return PathContext{}, false
	}
	closeParen := argStart + rel
	if col < up || col > closeParen {
		return PathContext{}, false
	}

	arg := line[argStart:closeParen]
	start := argStart + len(arg) - len(strings.TrimLeft(arg, " \t"))
	text := strings.TrimSpace(arg)
	if len(text) > 0 && (text[0] == '\'' || text[0] == '"') {
		text = text[1:]
		start++
	}
	if n := len(text); n > 0 && (text[n-1] == '\'' || text[n-1] == '"') {
		text = text[:n-1]
	}
	if text == "" {
		return PathContext{}, false
	}
	return PathContext{Kind: ContextLiteral, Text: text, Start: start, End: start + len(text)}, true
}

// quotedSpans returns every non-empty quoted literal body on line, left to
// right. Scanning resumes after each closing quote.
func quotedSpans(line string) []QuotedSpan {
	var spans []QuotedSpan
	for i := 0; i < len(line); i++ {
		q := line[i]
		if q != '\'' && q != '"' {
			continue
		}
		rel := strings.IndexByte(line[i+1:], q)
		if rel < 0 {
			continue
		}
		j := i + 1 + rel
		if j > i+1 {
			spans = append(spans, QuotedSpan{Start: i + 1, End: j, Raw: strings.TrimSpace(line[i+1 : j])})
		}
		i = j
	}
	return spans
}

func clampColumn(line string, col int) int {
	if col < 0 {
		return 0
	}
	if col > len(line) {
		return len(line)
	}
	return col
}

func isStylesheetLanguage(languageID string) bool {
	switch languageID {
	case "css", "scss", "less":
		return true
	}
	return false
}
