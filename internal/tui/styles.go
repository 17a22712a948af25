package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/seda/internal/scaling"
	"github.com/Iron-Ham/seda/internal/seda"
)

var (
	// Colors
	PrimaryColor = lipgloss.Color("#A78BFA") // Purple
	GreenColor   = lipgloss.Color("#10B981") // Green
	WarningColor = lipgloss.Color("#F59E0B") // Amber
	ErrorColor   = lipgloss.Color("#F87171") // Red
	BlueColor    = lipgloss.Color("#60A5FA") // Blue
	MutedColor   = lipgloss.Color("#9CA3AF") // Gray
	TextColor    = lipgloss.Color("#F9FAFB") // Light text
	BorderColor  = lipgloss.Color("#6B7280") // Gray

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	Muted = lipgloss.NewStyle().Foreground(MutedColor)

	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextColor).
		Padding(0, 1)

	Cell = lipgloss.NewStyle().Padding(0, 1)

	Selected = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor).
			Background(PrimaryColor)

	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 1)

	Help = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)
)

// StatusColor returns the color for a stage status.
func StatusColor(s seda.Status) lipgloss.Color {
	switch s {
	case seda.Running:
		return GreenColor
	case seda.ShuttingDown:
		return WarningColor
	case seda.Stopped:
		return BlueColor
	default:
		return MutedColor
	}
}

// ActionColor returns the color for the last pool action.
func ActionColor(a scaling.Action) lipgloss.Color {
	switch a {
	case scaling.ActionGrow:
		return GreenColor
	case scaling.ActionShrink:
		return WarningColor
	default:
		return MutedColor
	}
}
