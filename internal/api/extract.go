package api

import (
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \t]*\r?\n(.*?)```")

// ExtractCode returns the body of the first fenced code block in text.
// Completion endpoints return bare code, which is returned unchanged.
func ExtractCode(text string) string {
	m := fencePattern.FindStringSubmatch(text)
	if m == nil {
		return text
	}
	body := strings.TrimRight(m[1], " \t\r\n")
	return body + "\n"
}
