package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcPolicy    = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

// Sanitize cleans HTML content to prevent XSS attacks, keeping safe formatting.
func Sanitize(input string) string {
	return ugcPolicy.Sanitize(input)
}

// SanitizeText strips all tags and returns plain text for single-line fields
// such as titles and names. Entities are decoded, so "&lt;b&gt;" is stored as
// the literal text "<b>"; clients must escape these fields when rendering HTML.
func SanitizeText(input string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(input)))
}
