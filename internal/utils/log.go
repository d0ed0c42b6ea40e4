package utils

import "strings"

// TruncateForLog squeezes s onto one line and keeps at most limit runes of it.
// Pretty-printed prompts and replies turn into a single readable log field.
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	line := strings.Join(strings.Fields(s), " ")
	n := 0
	for i := range line {
		if n == limit {
			return line[:i] + "..."
		}
		n++
	}
	return line
}
