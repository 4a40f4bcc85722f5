// Package htmltext flattens the small HTML fragments upstream APIs
// embed in item and comment bodies into plain text.
package htmltext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Plain strips tags and decodes entities. Input that does not look like
// HTML is returned trimmed as-is; a parse failure falls back to the raw
// input rather than losing the body.
func Plain(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}
