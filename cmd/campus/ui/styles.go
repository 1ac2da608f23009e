// Package ui holds the terminal styling shared by campus commands.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Brand colors.
var (
	Primary     = lipgloss.Color("#8BC34A") // Lime Green
	Accent      = lipgloss.Color("#2196F3") // Blue
	Foreground  = lipgloss.AdaptiveColor{Light: "#101F38", Dark: "#f2f2f2"}
	MutedColor  = lipgloss.AdaptiveColor{Light: "#6a737d", Dark: "#8b949e"}
	Destructive = lipgloss.Color("#e53935")
	Warning     = lipgloss.Color("#FFC107")
)

// Styles contains the styles used across commands.
type Styles struct {
	Title     lipgloss.Style
	Body      lipgloss.Style
	Muted     lipgloss.Style
	Bold      lipgloss.Style
	Prompt    lipgloss.Style
	UserInput lipgloss.Style
	Answer    lipgloss.Style
	Step      lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Spinner   lipgloss.Style
}

// DefaultStyles returns the default styles.
func DefaultStyles() Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(Primary),
		Body:      lipgloss.NewStyle().Foreground(Foreground),
		Muted:     lipgloss.NewStyle().Foreground(MutedColor),
		Bold:      lipgloss.NewStyle().Bold(true).Foreground(Foreground),
		Prompt:    lipgloss.NewStyle().Bold(true).Foreground(Primary),
		UserInput: lipgloss.NewStyle().Foreground(Foreground),
		Answer:    lipgloss.NewStyle().PaddingLeft(2),
		Step:      lipgloss.NewStyle().Foreground(Accent),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(Destructive),
		Warning:   lipgloss.NewStyle().Foreground(Warning),
		Spinner:   lipgloss.NewStyle().Foreground(Primary),
	}
}
