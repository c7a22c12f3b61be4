// Package util holds small helpers shared by the CLI views.
package util

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const ellipsis = "..."

// TruncateString caps s at maxLen runes, ending with "..." when it had
// to cut. Counts runes, not columns; task titles and agent names are
// fine, styled terminal output is not. Use TruncateANSI for that.
func TruncateString(s string, maxLen int) string {
	if maxLen <= len(ellipsis) {
		return ellipsis
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-len(ellipsis)]) + ellipsis
}

// TruncateANSI caps s at maxWidth visual columns, ending with "..."
// when it had to cut. Escape sequences and wide characters are measured
// correctly, so lipgloss-styled roster lines keep their styling.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= len(ellipsis) {
		return ellipsis
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	// ansi.Truncate counts the tail toward the final width.
	return ansi.Truncate(s, maxWidth, ellipsis)
}
