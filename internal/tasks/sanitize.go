package tasks

import (
	"strings"
)

// CleanOneLine collapses all whitespace runs (newlines included) into single
// spaces. If the result exceeds maxLen runes it is truncated with an ellipsis.
// It returns the cleaned text and whether it was changed or truncated.
func CleanOneLine(s string, maxLen int) (string, bool, bool) {
	out := strings.Join(strings.Fields(s), " ")
	changed := out != s

	truncated := false
	if maxLen > 0 {
		r := []rune(out)
		if len(r) > maxLen {
			out = string(r[:maxLen]) + "…"
			truncated = true
		}
	}
	return out, changed, truncated
}

func oneLine(s string) string { out, _, _ := CleanOneLine(s, 0); return out }
