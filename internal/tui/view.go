// pattern: Functional Core

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"projsync/internal/reconcile"
)

// previewLimit caps how many set elements a bulk request lists.
const previewLimit = 5

// View renders the current phase.
func (m Model) View() string {
	var body string
	switch m.phase {
	case phaseScanning:
		body = m.spin.View() + " Scanning project tree..."
	case phaseResolving:
		body = m.renderRequest()
	case phaseApplying:
		body = fmt.Sprintf("%s Applying %d change(s)...", m.spin.View(), len(m.res.Mutations()))
	case phaseDone:
		body = m.renderDone()
	case phaseFailed:
		body = m.styles.ErrorStyle().Render("✗ " + m.errText())
	case phaseAborted:
		body = m.styles.WarnStyle().Render("Aborted. The registry was not changed.")
	}

	title := "Reconcile registry"
	if m.dryRun {
		title += " (dry run)"
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		m.styles.TitleStyle().Render(title),
		body,
	)
	box := m.styles.BoxStyle().Render(content)
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) errText() string {
	if m.err == nil {
		return "unknown error"
	}
	return m.err.Error()
}

func (m Model) renderRequest() string {
	var b strings.Builder
	answered, pending := m.res.Progress()

	b.WriteString(m.styles.SetStyle(string(m.req.Set)).Render(string(m.req.Set)))
	b.WriteString(m.styles.SubtitleStyle().Render(fmt.Sprintf("  %d answered, %d pending", answered, pending)))
	b.WriteString("\n\n")
	b.WriteString(m.truncate(m.req.Prompt()))
	b.WriteString("\n")

	if m.req.Bulk {
		for _, line := range m.preview() {
			b.WriteString(m.styles.SubtitleStyle().Render(m.truncate("  • " + line)))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")

	for i, c := range m.req.Options {
		line := "  " + m.styles.InfoStyle().Render(c.Label())
		if i == m.cursor {
			line = m.styles.SelectedStyle().Render("> " + c.Label())
		}
		if c == m.req.Default {
			line += m.styles.DefaultStyle().Render(" (default)")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString(m.styles.HelpStyle().Render(m.help.View(m.keys)))
	return b.String()
}

// preview lists the first elements of the request's set.
func (m Model) preview() []string {
	result := m.res.Result()
	var lines []string
	switch m.req.Set {
	case reconcile.SetOrphaned:
		for _, r := range result.Orphaned {
			lines = append(lines, fmt.Sprintf("%s (%s)", r.Name, r.RelativePath))
		}
	case reconcile.SetMismatched:
		for _, mm := range result.Mismatched {
			lines = append(lines, fmt.Sprintf("%s -> %s (%s)", mm.Record.Name, mm.ActualName, mm.Record.RelativePath))
		}
	case reconcile.SetUnregistered:
		for _, c := range result.Unregistered {
			lines = append(lines, c.Path)
		}
	}
	if len(lines) > previewLimit {
		more := len(lines) - previewLimit
		lines = append(lines[:previewLimit], fmt.Sprintf("... and %d more", more))
	}
	return lines
}

func (m Model) renderDone() string {
	if m.res == nil || m.res.Result().Empty() {
		return m.styles.SuccessStyle().Render("✓ Registry and project tree agree.")
	}
	mutations := m.res.Mutations()
	if len(mutations) == 0 {
		return m.styles.InfoStyle().Render("No changes selected.")
	}

	var b strings.Builder
	if m.dryRun {
		b.WriteString(m.styles.InfoStyle().Render("Planned changes:"))
		b.WriteString("\n")
		for _, mu := range mutations {
			b.WriteString(m.truncate("  " + mu.String()))
			b.WriteString("\n")
		}
		return b.String()
	}

	s := reconcile.Summarize(m.outcomes)
	b.WriteString(m.styles.SuccessStyle().Render(fmt.Sprintf("✓ %d deleted, %d renamed, %d registered", s.Deleted, s.Renamed, s.Registered)))
	for _, o := range m.outcomes {
		if o.Err == nil {
			continue
		}
		b.WriteString("\n")
		b.WriteString(m.styles.ErrorStyle().Render(m.truncate(fmt.Sprintf("✗ %s: %v", o.Mutation, o.Err))))
	}
	return b.String()
}

// truncate fits a line inside the box on narrow terminals.
func (m Model) truncate(s string) string {
	if m.width == 0 {
		return s
	}
	return ansi.Truncate(s, max(m.width-8, 10), "…")
}
