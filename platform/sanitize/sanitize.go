// Package sanitize cleans text received from upstream systems before it is
// logged, stored, or echoed back to operators.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength bounds stored upstream messages.
const MaxMessageLength = 500

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	entityReplacer  = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", "\"",
		"&#39;", "'",
		"&nbsp;", " ",
	)
)

// StripHTML removes markup, decodes common entities and strips again so
// encoded tags do not survive.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entityReplacer.Replace(result)
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Message strips markup, collapses whitespace and truncates to
// MaxMessageLength runes. Upstream error bodies go through here.
func Message(s string) string {
	return Truncate(whitespaceRegex.ReplaceAllString(StripHTML(s), " "), MaxMessageLength)
}

// Truncate cuts s to at most limit runes, appending an ellipsis when cut.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}

// TextPtr sanitizes an optional string.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Message(*s)
	return &result
}
