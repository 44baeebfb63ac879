package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
)

func TestBuildHelpText_SingleLine(t *testing.T) {
	items := []string{"[a] one", "[b] two", "[c] three"}
	result := buildHelpText(items, 100)

	// Should fit on one line
	if strings.Contains(result, "\n") {
		t.Errorf("Expected single line, got: %q", result)
	}

	// Should contain all items with separators
	if !strings.Contains(result, "[a] one") {
		t.Error("Missing first item")
	}
	if !strings.Contains(result, " • ") {
		t.Error("Missing separator")
	}
}

func TestBuildHelpText_MultiLine(t *testing.T) {
	items := []string{"[enter] refresh", "[n] new", "[s] select", "[d] delete", "[q] quit"}
	result := buildHelpText(items, 40) // Force wrapping

	lines := strings.Split(result, "\n")
	if len(lines) < 2 {
		t.Errorf("Expected multiple lines for narrow width, got: %q", result)
	}

	// Each line should not exceed max width
	for _, line := range lines {
		if w := ansi.StringWidth(line); w > 40 {
			t.Errorf("Line exceeds max width: %q (width=%d)", line, w)
		}
	}
}

func TestBuildHelpText_ItemsStayTogether(t *testing.T) {
	items := []string{"[enter] refresh all", "[n] new"}
	result := buildHelpText(items, 25)

	for _, line := range strings.Split(result, "\n") {
		if !strings.HasPrefix(line, "[") {
			t.Errorf("Line does not start with an item: %q", line)
		}
	}

	// All items should appear in output
	if !strings.Contains(result, "[enter] refresh all") {
		t.Error("First item was split")
	}
	if !strings.Contains(result, "[n] new") {
		t.Error("Second item was split")
	}
}

func TestBuildHelpText_EmptyItems(t *testing.T) {
	result := buildHelpText([]string{}, 80)
	if result != "" {
		t.Errorf("Expected empty result for empty items, got: %q", result)
	}
}

func TestBuildHelpText_VerySmallWidth(t *testing.T) {
	items := []string{"[a] test", "[b] item"}
	result := buildHelpText(items, 5) // Very small width

	// Should still produce output (each item on own line when width is tiny)
	if result == "" {
		t.Error("Expected non-empty result even with tiny width")
	}
	if !strings.Contains(result, "[a] test") || !strings.Contains(result, "[b] item") {
		t.Error("Items should still appear in output")
	}
}

func TestBuildHelpText_DefaultWidth(t *testing.T) {
	items := []string{"[a] test"}
	result := buildHelpText(items, 0) // Zero width should use default

	if result != "[a] test" {
		t.Errorf("Expected item to appear unchanged, got: %q", result)
	}
}

func TestWrapText(t *testing.T) {
	msg := "This Microsoft account is underaged and is not linked to a family."
	wrapped := wrapText(msg, 20)

	for _, line := range strings.Split(wrapped, "\n") {
		if w := ansi.StringWidth(line); w > 20 {
			t.Errorf("Line exceeds width: %q (width=%d)", line, w)
		}
	}
	if wrapText(msg, 0) != msg {
		t.Error("Zero width should leave text unchanged")
	}
}
