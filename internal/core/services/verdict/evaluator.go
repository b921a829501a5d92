// Package verdict compares program output against expected output.
package verdict

import "strings"

// Normalize unifies line endings, trims trailing whitespace on every line and
// trims the whole string.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\f\v")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Matches reports whether actual equals expected after normalization
func Matches(actual, expected string) bool {
	return Normalize(actual) == Normalize(expected)
}
