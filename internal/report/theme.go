package report

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/numbersense/internal/risk"
)

// Color palette
var (
	Primary   = lipgloss.Color("#8B5CF6") // Vivid Purple
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F97316") // Orange
	Success   = lipgloss.Color("#22C55E") // Green
	Warning   = lipgloss.Color("#EAB308") // Amber
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Heading = lipgloss.NewStyle().
		Bold(true).
		Foreground(Secondary)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)
)

var (
	ProgressFilled = lipgloss.NewStyle().
			Background(Secondary)

	ProgressEmpty = lipgloss.NewStyle().
			Background(Border)
)

// levelStyle colors a risk level from green to rose.
func levelStyle(l risk.Level) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true)
	switch l {
	case risk.LevelCritical:
		return s.Foreground(Error)
	case risk.LevelHigh:
		return s.Foreground(Accent)
	case risk.LevelModerate:
		return s.Foreground(Warning)
	default:
		return s.Foreground(Success)
	}
}

func severityStyle(sev risk.Severity) lipgloss.Style {
	switch sev {
	case risk.SeveritySevere:
		return lipgloss.NewStyle().Foreground(Error)
	case risk.SeverityModerate:
		return lipgloss.NewStyle().Foreground(Warning)
	default:
		return lipgloss.NewStyle().Foreground(TextDim)
	}
}
