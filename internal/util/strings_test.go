package util

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string unchanged", "builder", 10, "builder"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string truncated", "hello world", 8, "hello..."},
		{"tiny budget is all ellipsis", "hello", 3, "..."},
		{"zero budget is all ellipsis", "hello", 0, "..."},
		{"empty string unchanged", "", 10, ""},
		{"runes counted, not bytes", "日本語テスト", 5, "日本..."},
		{"mixed ascii and wide runes", "hello日本語world", 10, "hello日本..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestTruncateANSI(t *testing.T) {
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	if got := TruncateANSI("hello", 10); got != "hello" {
		t.Errorf("short string changed: %q", got)
	}
	if got := TruncateANSI("hello world", 8); got != "hello..." {
		t.Errorf("plain truncation = %q, want %q", got, "hello...")
	}
	if got := TruncateANSI("hello", 2); got != "..." {
		t.Errorf("tiny budget = %q, want ellipsis", got)
	}

	styled := red.Render("hi")
	if got := TruncateANSI(styled, 10); got != styled {
		t.Error("styled string below the width limit was modified")
	}

	for _, input := range []string{red.Render("hello world"), "日本語テスト"} {
		got := TruncateANSI(input, 8)
		if w := lipgloss.Width(got); w > 8 {
			t.Errorf("TruncateANSI(%q, 8) has visual width %d", input, w)
		}
	}
}
