// Package ui styles contains shared styling definitions.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/quasar/mcauth/internal/core"
)

// Color palette - using a cohesive purple/violet theme
var (
	ColorPrimary   = lipgloss.Color("#7C3AED") // Violet
	ColorSecondary = lipgloss.Color("#A78BFA") // Light violet
	ColorAccent    = lipgloss.Color("#34D399") // Emerald (success)
	ColorWarning   = lipgloss.Color("#FBBF24") // Amber
	ColorError     = lipgloss.Color("#EF4444") // Red
	ColorMuted     = lipgloss.Color("#626262") // Gray
	ColorText      = lipgloss.Color("#FAFAFA") // White
	ColorSubtle    = lipgloss.Color("#A1A1AA") // Zinc
	ColorLink      = lipgloss.Color("86")
)

// Shared styles
var (
	ContainerStyle = lipgloss.NewStyle().
			Padding(1, 2)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Background(ColorPrimary).
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	SubtleStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	LinkStyle = lipgloss.NewStyle().
			Foreground(ColorLink)

	// Box around the device code
	CodeBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)
)

// stateStyle colours an account state label.
func stateStyle(s core.AccountState) lipgloss.Style {
	st := lipgloss.NewStyle().Bold(true)
	switch s {
	case core.StateOnline:
		return st.Foreground(ColorAccent)
	case core.StateExpired, core.StateRequiresAction:
		return st.Foreground(ColorWarning)
	case core.StateDisabled, core.StateGone:
		return st.Foreground(ColorError)
	default:
		return st.Foreground(ColorSubtle)
	}
}
