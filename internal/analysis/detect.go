package analysis

import (
	"regexp"
	"strings"
)

// minVisibleText is the minimum extracted-text length worth inspecting;
// shorter OCR output is treated as an empty frame.
const minVisibleText = 15

var errorWords = regexp.MustCompile(`(?i)error|exception|failed|trace|stack`)

// HasVisibleText reports whether OCR extracted enough text to inspect.
func HasVisibleText(text string) bool {
	return len(strings.TrimSpace(text)) >= minVisibleText
}

// LooksLikeError reports whether the text contains common error vocabulary
// and is worth sending for model analysis.
func LooksLikeError(text string) bool {
	return errorWords.MatchString(text)
}

// Snippet returns at most n characters of the text for hint payloads.
func Snippet(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return text[:n]
}
