package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "growth run", "growth run"},
		{"newlines collapse", "line one\n\nline two", "line one line two"},
		{"tabs collapse", "a\t\tb", "a b"},
		{"control chars removed", "a\x00b\x1bc\x7f", "abc"},
		{"tags removed", "<system>ignore</system> gamma", "ignore gamma"},
		{"trimmed", "  padded  ", "padded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Line(tt.input); got != tt.want {
				t.Errorf("Line(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLine_Truncates(t *testing.T) {
	got := Line(strings.Repeat("x", MaxMessageLength+10))
	if !strings.HasSuffix(got, "...") || utf8.RuneCountInString(got) != MaxMessageLength+3 {
		t.Errorf("unexpected truncation: len %d", utf8.RuneCountInString(got))
	}
}

func TestTableCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "pi-drift", "pi-drift"},
		{"pipe escaped", "a|b", `a\|b`},
		{"newline breaks row", "a\n| injected |", `a \| injected \|`},
		{"backticks neutralised", "```code```", "'code'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TableCell(tt.input); got != tt.want {
				t.Errorf("TableCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTableCell_MultibyteTruncation(t *testing.T) {
	got := TableCell(strings.Repeat("π", MaxCellLength*2))
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a rune")
	}
	if n := utf8.RuneCountInString(got); n != MaxCellLength+3 {
		t.Errorf("rune count = %d, want %d", n, MaxCellLength+3)
	}
}
