package lang

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	urlRegex   = regexp.MustCompile(`https?\S+`)
	emailRegex = regexp.MustCompile(`\S+@\S+`)
	punctRegex = regexp.MustCompile(`[^\p{L}\p{N}\p{M}_\s]`)
)

// Clean prepares text for detection: compatibility forms are folded, URLs,
// email-like tokens and punctuation are dropped and whitespace is collapsed.
func Clean(text string) string {
	text = norm.NFKC.String(text)
	text = urlRegex.ReplaceAllString(text, "")
	text = emailRegex.ReplaceAllString(text, "")
	text = punctRegex.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}
