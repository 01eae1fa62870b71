// Package sanitize cleans user-supplied text (experiment names, rule names,
// error messages) before it is embedded in markdown or logs returned to
// MCP clients.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxCellLength is the maximum length of a markdown table cell.
const MaxCellLength = 64

// MaxMessageLength is the maximum length of a single-line message.
const MaxMessageLength = 500

var (
	// reXMLTag matches XML/HTML tags including those with attributes and self-closing tags.
	reXMLTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	// reWhitespaceRun matches runs of whitespace, including newlines.
	reWhitespaceRun = regexp.MustCompile(`\s+`)

	// reBackticks matches one or more backticks.
	reBackticks = regexp.MustCompile("`+")
)

// TableCell makes s safe as one markdown table cell: control characters and
// tags are removed, whitespace collapses to single spaces, pipes are escaped
// and the result is truncated to MaxCellLength runes.
func TableCell(s string) string {
	s = Line(s)
	s = reBackticks.ReplaceAllString(s, "'")
	s = truncate(s, MaxCellLength)
	return strings.ReplaceAll(s, "|", `\|`)
}

// Line flattens s to a single trimmed line without control characters or
// tags, truncated to MaxMessageLength runes.
func Line(s string) string {
	if s == "" {
		return ""
	}
	s = stripControlChars(s)
	s = reXMLTag.ReplaceAllString(s, "")
	s = reWhitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return truncate(s, MaxMessageLength)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// stripControlChars removes ASCII control characters (0x00-0x1F and DEL)
// except newline and tab, which later collapse to spaces.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r < 0x20 && r != '\n' && r != '\t') || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
