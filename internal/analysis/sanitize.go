package analysis

import (
	"strings"
)

// StripJSONFences removes markdown code fences from a model response.
// Some providers wrap JSON output in ``` blocks despite schema constraints.
func StripJSONFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
		lines = lines[:n-1]
	}
	return strings.Join(lines, "\n")
}
