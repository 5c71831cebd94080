package speech

import (
	"regexp"
	"strings"
)

var (
	urlRE        = regexp.MustCompile(`https?://\S+`)
	boldStarRE   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	boldUnderRE  = regexp.MustCompile(`__(.*?)__`)
	emphStarRE   = regexp.MustCompile(`\*(.*?)\*`)
	emphUnderRE  = regexp.MustCompile(`_(.*?)_`)
	symbolRE     = regexp.MustCompile("[#*`~>\\[\\]()\\\\!]")
	nonASCIIRE   = regexp.MustCompile(`[^\x00-\x7F]`)
	whitespaceRE = regexp.MustCompile(`\s+`)
)

// Sanitize reduces assistant text to its speakable form: URLs and markup
// stripped, emphasis unwrapped, non-ASCII dropped, whitespace collapsed.
// Applying it twice yields the same result as applying it once.
func Sanitize(text string) string {
	text = urlRE.ReplaceAllString(text, "")
	text = boldStarRE.ReplaceAllString(text, "$1")
	text = boldUnderRE.ReplaceAllString(text, "$1")
	text = emphStarRE.ReplaceAllString(text, "$1")
	text = emphUnderRE.ReplaceAllString(text, "$1")
	text = symbolRE.ReplaceAllString(text, "")
	text = nonASCIIRE.ReplaceAllString(text, "")
	text = whitespaceRE.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
