// Package sanitize strips a small denylist of dangerous substrings from chat
// input before it reaches persistence or the upstream model.
//
// This is defense-in-depth only: a best-effort denylist, not a parser-based
// sanitizer, and it makes no claim of being XSS-complete. Rendering layers must
// still output-encode. The denylist covers script blocks, javascript: URIs, and
// inline on*= event handler attributes.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	scriptBlocks  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	javascriptURI = regexp.MustCompile(`(?i)javascript\s*:`)
	eventHandlers = regexp.MustCompile(`(?i)\bon\w+\s*=`)
)

// Message removes denylisted patterns from raw chat input and trims surrounding
// whitespace. Replacement repeats until a fixpoint: removing a match can splice
// the surrounding text into a new match (`jjavascript:avascript:` becomes
// `javascript:` after one pass), so a single pass would both leak denylisted
// substrings and break idempotence.
func Message(raw string) string {
	s := raw
	for {
		next := scriptBlocks.ReplaceAllString(s, "")
		next = javascriptURI.ReplaceAllString(next, "")
		next = eventHandlers.ReplaceAllString(next, "")
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}
