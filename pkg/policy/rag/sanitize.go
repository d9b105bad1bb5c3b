package rag

import "regexp"

var tagRx = regexp.MustCompile(`<[^>]+>`)

// SanitizeHTML strips markup tags from text before it is assembled into a
// prompt.
func SanitizeHTML(text string) string {
	return tagRx.ReplaceAllString(text, "")
}
