package strings

import (
	"strings"
)

// DefaultDescriptionMaxLen is the column width descriptions are
// truncated to in tabular output.
const DefaultDescriptionMaxLen = 60

// MinTruncateLen is the smallest usable maxLen: one character plus the
// "..." marker.
const MinTruncateLen = 4

// TruncateDescription flattens s to a single line and truncates it to
// maxLen runes, appending "..." when anything was cut. Newlines and
// runs of whitespace collapse to single spaces. maxLen values below
// MinTruncateLen are clamped.
func TruncateDescription(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	// Rune-based so multi-byte characters are never split.
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
