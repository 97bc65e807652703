// Package report renders engine results for the terminal with lipgloss.
package report

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/numbersense/internal/config"
	"github.com/abhisek/numbersense/internal/engine"
	"github.com/abhisek/numbersense/internal/progression"
	"github.com/abhisek/numbersense/internal/risk"
	"github.com/abhisek/numbersense/internal/store"
	"github.com/abhisek/numbersense/internal/support"
)

// DefaultWidth is used when the caller has no terminal width.
const DefaultWidth = 72

// ProgressBar renders label, a bar filled to percent and the percentage.
func ProgressBar(label string, percent float64, width int) string {
	var result string
	if label != "" {
		result += Body.Render(label) + "  "
	}

	barWidth := width - lipgloss.Width(result) - 6
	if barWidth < 4 {
		barWidth = 4
	}
	filled := int(float64(barWidth) * percent)
	filled = min(max(filled, 0), barWidth)

	result += ProgressFilled.Render(strings.Repeat(" ", filled)) +
		ProgressEmpty.Render(strings.Repeat(" ", barWidth-filled))
	result += Hint.Render(fmt.Sprintf(" %4d%%", int(percent*100)))
	return result
}

// Profile renders a risk profile as a card.
func Profile(p *risk.Profile, width int) string {
	var b strings.Builder

	b.WriteString(Title.Render("Risk profile") + "  " + levelStyle(p.Level).Render(strings.ToUpper(string(p.Level))) + "\n")
	b.WriteString(Hint.Render(fmt.Sprintf("confidence %.2f · %d sessions · %d recent tasks",
		p.Confidence, p.SessionCount, p.SampleSize)) + "\n\n")

	barWidth := width - 8
	b.WriteString(ProgressBar(fmt.Sprintf("%-14s", "counting"), p.Rates.Counting, barWidth) + "\n")
	b.WriteString(ProgressBar(fmt.Sprintf("%-14s", "automatized"), p.Rates.Automatization, barWidth) + "\n")
	b.WriteString(ProgressBar(fmt.Sprintf("%-14s", "structured"), p.Rates.StructuredPerception, barWidth) + "\n")
	b.WriteString(ProgressBar(fmt.Sprintf("%-14s", "decomposition"), p.Rates.DecompositionFailure, barWidth) + "\n")
	if len(p.Patterns) > 0 {
		b.WriteString(Hint.Render("patterns: "+strings.Join(p.Patterns, ", ")) + "\n")
	}

	b.WriteString("\n" + Heading.Render("Indicators") + "\n")
	if len(p.Indicators) == 0 {
		b.WriteString(Hint.Render("none fired") + "\n")
	}
	for _, ind := range p.Indicators {
		b.WriteString(severityStyle(ind.Severity).Render(fmt.Sprintf("[%s]", ind.Severity)) + " " +
			Body.Render(ind.Criterion) + "\n")
		b.WriteString("  " + Hint.Render(ind.Evidence) + "\n")
	}

	if len(p.Recommendations) > 0 {
		b.WriteString("\n" + Heading.Render("Recommendations") + "\n")
		for _, r := range p.Recommendations {
			b.WriteString(Body.Render(fmt.Sprintf("%s (%s)", r.Intervention, r.Priority)) + "\n")
			b.WriteString("  " + Hint.Render(r.Dosage) + "\n")
			if len(r.Materials) > 0 {
				b.WriteString("  " + Hint.Render("materials: "+strings.Join(r.Materials, ", ")) + "\n")
			}
		}
	}

	if p.Narrative != "" {
		b.WriteString("\n" + Heading.Render("Summary") + "\n")
		b.WriteString(lipgloss.NewStyle().Width(width-4).Render(p.Narrative) + "\n")
	}

	return Card.Width(width).Render(strings.TrimRight(b.String(), "\n"))
}

// Support renders a support state as a row of filled and empty pips.
func Support(st support.State, cfg config.Support) string {
	pips := lipgloss.NewStyle().Foreground(Secondary).Render(strings.Repeat("●", st.Level)) +
		lipgloss.NewStyle().Foreground(Border).Render(strings.Repeat("○", max(cfg.MaxLevel-st.Level, 0)))
	return fmt.Sprintf("%s %s %s\n%s",
		Title.Render("Support"), pips, Body.Render(fmt.Sprintf("%d/%d", st.Level, cfg.MaxLevel)),
		Hint.Render(fmt.Sprintf("%d consecutive correct, drops after %d", st.ConsecutiveCorrect, cfg.StreakForSupportDrop)))
}

// Transition renders one level change, or "" for nil.
func Transition(tr *progression.Transition) string {
	if tr == nil {
		return ""
	}
	line := fmt.Sprintf("%s: level %d → %d", tr.Trigger, tr.From, tr.To)
	if tr.StageChanged() {
		line += fmt.Sprintf(", stage %d → %d", tr.FromStage, tr.ToStage)
	}
	return lipgloss.NewStyle().Foreground(Accent).Bold(true).Render(line)
}

// Levels renders the per-level table and the transition log.
func Levels(st *progression.State, events []store.LevelEvent) string {
	if st == nil {
		return Hint.Render("no progress recorded yet")
	}

	var b strings.Builder
	b.WriteString(Title.Render(fmt.Sprintf("Level %d", st.CurrentLevel)) + " " +
		Hint.Render(fmt.Sprintf("stage %d · %d/%d correct · streak %d",
			st.Stage, st.TotalCorrect, st.TotalSolved, st.Streak)) + "\n\n")

	header := fmt.Sprintf("%-6s %8s %8s %7s %9s  %s", "level", "attempts", "correct", "rate", "avg time", "mastered")
	b.WriteString(Heading.Render(header) + "\n")
	for _, r := range st.Levels {
		mastered := "-"
		if r.IsMastered() {
			mastered = r.MasteredAt.Format("2006-01-02")
		}
		row := fmt.Sprintf("%-6d %8d %8d %6.0f%% %8.1fs  %s",
			r.Level, r.Attempts, r.Correct, r.SuccessRate()*100, r.AverageMs()/1000, mastered)
		if r.Level == st.CurrentLevel {
			b.WriteString(lipgloss.NewStyle().Foreground(Primary).Render(row) + "\n")
		} else {
			b.WriteString(Body.Render(row) + "\n")
		}
	}

	if len(events) > 0 {
		b.WriteString("\n" + Heading.Render("Transitions") + "\n")
		for _, e := range events {
			b.WriteString(Hint.Render(e.Timestamp.Format("2006-01-02 15:04")) + " " +
				Body.Render(fmt.Sprintf("%s %d → %d", e.Trigger, e.From, e.To)) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Screen renders batch results as a table, one learner per row.
func Screen(results []engine.BatchResult) string {
	if len(results) == 0 {
		return Hint.Render("no learners to screen")
	}

	idWidth := len("learner")
	for _, r := range results {
		idWidth = max(idWidth, lipgloss.Width(r.UserID))
	}

	var b strings.Builder
	b.WriteString(Heading.Render(fmt.Sprintf("%-*s  %-9s %5s  %s", idWidth, "learner", "risk", "conf", "indicators")) + "\n")
	for _, r := range results {
		id := fmt.Sprintf("%-*s", idWidth, r.UserID)
		if r.Err != nil {
			b.WriteString(Body.Render(id) + "  " + lipgloss.NewStyle().Foreground(Error).Render("error: "+r.Err.Error()) + "\n")
			continue
		}
		p := r.Profile
		names := make([]string, 0, len(p.Indicators))
		for _, ind := range p.Indicators {
			names = append(names, ind.Criterion)
		}
		b.WriteString(Body.Render(id) + "  " +
			levelStyle(p.Level).Render(fmt.Sprintf("%-9s", p.Level)) + " " +
			Body.Render(fmt.Sprintf("%5.2f", p.Confidence)) + "  " +
			Hint.Render(strings.Join(names, "; ")) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
