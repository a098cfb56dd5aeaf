package app

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// plainTextPolicy strips every tag; script and style bodies are dropped entirely.
var plainTextPolicy = bluemonday.StrictPolicy()

// sanitizeText turns user-entered comments and notes into plain text. Entities are
// decoded after tags are stripped, so "&lt;b&gt;" is stored as a literal "<b>": the
// result is text, and every renderer must escape it before emitting HTML.
func sanitizeText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(plainTextPolicy.Sanitize(raw)))
}
