package utils

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Sanitize strips every HTML element from user text such as point reasons
// and scripture segments, leaving plain text.
func Sanitize(input string) string {
	// bluemonday escapes what it keeps; the API serves JSON, not HTML
	return html.UnescapeString(strict.Sanitize(input))
}
