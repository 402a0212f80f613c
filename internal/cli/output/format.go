package output

import (
	"fmt"
	"strings"
)

// FormatHeader returns a markdown header line at the given level.
func FormatHeader(level int, text string) string {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue returns a markdown key/value line.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("**%s:** %s", key, value)
}

// FormatCodeBlock returns code wrapped in a fenced markdown block.
func FormatCodeBlock(language, code string) string {
	return fmt.Sprintf("```%s\n%s\n```", language, strings.TrimRight(code, "\n"))
}
