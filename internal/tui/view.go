package tui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/cbegin/athenacl-go/internal/outlog"
	"github.com/cbegin/athenacl-go/internal/protocol"
	"github.com/cbegin/athenacl-go/internal/worker"
)

const progressWidth = 24

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(logBorder.Width(m.contentWidth()).Render(m.log.View()))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(statusBar.Render(m.renderStatus()))
	return b.String()
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("athenaCL")
	if m.opts.Banner == "" {
		return title
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", subtleStyle.Render(m.opts.Banner))
}

func (m Model) renderStatus() string {
	parts := []string{stateLabel(m.core.WorkerState(), m.closed)}
	parts = append(parts, fmt.Sprintf("tempo %d", m.snap.Tempo))
	if m.snap.ScratchDir != "" {
		parts = append(parts, "scratch "+m.snap.ScratchDir)
	}
	names := make([]string, 0, len(m.snap.Libraries))
	for name := range m.snap.Libraries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if vals := m.snap.Libraries[name]; len(vals) > 0 {
			parts = append(parts, name+" "+strings.Join(vals, ","))
		}
	}
	if m.status != "" {
		parts = append(parts, errorStyle.Render(m.status))
	}
	line := strings.Join(parts, " · ")
	return runewidth.Truncate(line, max(m.contentWidth(), 10), "…")
}

func stateLabel(s worker.State, closed bool) string {
	switch {
	case closed:
		return errorStyle.Render("stopped")
	case s == worker.Running:
		return playingStyle.Render("running")
	case s == worker.AwaitingAnswer:
		return promptStyle.Render("waiting for answer")
	default:
		return subtleStyle.Render("idle")
	}
}

func (m Model) renderLog(width int) string {
	if len(m.snap.Entries) == 0 {
		return subtleStyle.Render("tab selects a track · ctrl+p play/pause · ctrl+←/→ seek · ctrl+↑/↓ tempo")
	}
	sel, hasSel := m.selectedTrack()
	lines := make([]string, 0, len(m.snap.Entries))
	for i, e := range m.snap.Entries {
		selected := hasSel && sel.Index == i
		lines = append(lines, renderEntry(e, width, selected)...)
	}
	return strings.Join(lines, "\n")
}

func renderEntry(e outlog.Entry, width int, selected bool) []string {
	switch e.Kind {
	case outlog.EntryCommand:
		return []string{commandStyle.Render(fit("> "+e.Text, width))}
	case outlog.EntryError:
		return []string{errorStyle.Render(fit(e.Text, width))}
	case outlog.EntryTrack:
		return []string{renderTrack(e, width, selected)}
	case outlog.EntryGroup:
		var out []string
		for _, c := range e.Children {
			for _, line := range renderEntry(c, width-2, false) {
				out = append(out, groupRule.Render("│ ")+line)
			}
		}
		return out
	default:
		return []string{textStyle.Render(fit(e.Text, width))}
	}
}

func renderTrack(e outlog.Entry, width int, selected bool) string {
	t := e.Track
	if t == nil {
		return ""
	}
	icon := "▶"
	if t.Playing {
		icon = "⏸"
	}
	name := filepath.Base(t.Path)
	if t.Missing {
		return errorStyle.Render(fit(fmt.Sprintf("✗ %s %s (missing)", kindLabel(t.Kind), name), width))
	}
	bar := progressBar(t.Position, progressWidth)
	pct := fmt.Sprintf("%3d%%", int(t.Position*100+0.5))
	label := fmt.Sprintf("%s %s ", icon, kindLabel(t.Kind))
	room := width - runewidth.StringWidth(label) - progressWidth - len(pct) - 2
	line := label + runewidth.FillRight(runewidth.Truncate(name, max(room, 4), "…"), max(room, 4)) + " " + bar + " " + pct

	switch {
	case selected:
		return selectedTrackStyle.Render(line)
	case t.Playing:
		return playingStyle.Render(line)
	default:
		return trackStyle.Render(line)
	}
}

func kindLabel(k protocol.TrackKind) string {
	if k == protocol.TrackMIDI {
		return "midi "
	}
	return "audio"
}

func progressBar(pos float64, width int) string {
	filled := int(pos*float64(width) + 0.5)
	filled = min(max(filled, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func fit(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
