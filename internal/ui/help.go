package ui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

const (
	helpSeparator    = " • "
	defaultHelpWidth = 80
)

// buildHelpText joins key hints with separators, wrapping between items so
// that no hint is split across lines.
func buildHelpText(items []string, maxWidth int) string {
	if len(items) == 0 {
		return ""
	}
	if maxWidth <= 0 {
		maxWidth = defaultHelpWidth
	}

	var (
		lines []string
		line  strings.Builder
	)
	sepWidth := ansi.StringWidth(helpSeparator)
	for _, item := range items {
		width := ansi.StringWidth(item)
		switch {
		case line.Len() == 0:
		case ansi.StringWidth(line.String())+sepWidth+width <= maxWidth:
			line.WriteString(helpSeparator)
		default:
			lines = append(lines, line.String())
			line.Reset()
		}
		line.WriteString(item)
	}
	lines = append(lines, line.String())
	return strings.Join(lines, "\n")
}

// wrapText wraps a message to width, keeping styled text intact.
func wrapText(s string, width int) string {
	if width <= 0 {
		return s
	}
	return ansi.Wordwrap(s, width, "")
}
