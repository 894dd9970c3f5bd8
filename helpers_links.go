// includenav/helpers_links.go
// Contains the http(s) document link scan.
package includenav

import "regexp"

var urlLinkRe = regexp.MustCompile(`(?i)https?://[^\s"')]+`)

// scanLinks returns every http(s) URL in the first maxScanLines lines of doc.
func scanLinks(doc Document) []DocumentLink {
	limit := min(doc.LineCount(), maxScanLines)
	var links []DocumentLink
	for i := 0; i < limit; i++ {
		line := doc.Line(i)
		for _, loc := range urlLinkRe.FindAllStringIndex(line, -1) {
			links = append(links, DocumentLink{
				Range: Range{
					Start: Position{Line: i, Character: loc[0]},
					End:   Position{Line: i, Character: loc[1]},
				},
				Target: line[loc[0]:loc[1]],
			})
		}
	}
	return links
}
