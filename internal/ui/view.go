package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/five82/slingshot/internal/upload"
)

const (
	badgeWidth = 13
	sizeWidth  = 9
	minBar     = 10
)

// View renders the whole screen.
func (m Model) View() string {
	sections := []string{m.renderHeader(), m.renderFiles()}
	if len(m.pending) > 0 {
		sections = append(sections, m.renderPending())
	}
	if m.prefs.ShowLogs {
		sections = append(sections, m.renderLogs())
	}
	sections = append(sections, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	s := m.styles
	parts := []string{s.Logo.Render("slingshot")}
	if m.title != "" {
		parts = append(parts, s.MutedText.Render(m.title))
	}
	parts = append(parts, s.StatusStyle(string(m.snap.Status)).Render(string(m.snap.Status)))

	if total := len(m.snap.Files); total > 0 {
		parts = append(parts, s.Text.Render(fmt.Sprintf("%d/%d done", m.snap.Count(upload.FileDone), total)))
		if bad := total - m.snap.Count(upload.FileDone) - m.active(); bad > 0 {
			parts = append(parts, s.DangerText.Render(fmt.Sprintf("%d not uploaded", bad)))
		}
		pct := m.snap.Progress()
		bar := m.bar
		bar.Width = clamp(m.width/4, minBar, 40)
		parts = append(parts, bar.ViewAs(float64(pct)/100)+" "+s.Text.Render(fmt.Sprintf("%3d%%", pct)))
	}
	return s.Header.Width(m.width).Render(strings.Join(parts, "  "))
}

// active counts records that have not reached a terminal status.
func (m Model) active() int {
	n := 0
	for _, rec := range m.snap.Files {
		if !rec.Terminal() {
			n++
		}
	}
	return n
}

func (m Model) renderFiles() string {
	s := m.styles
	if len(m.snap.Files) == 0 {
		hint := "No uploads yet."
		if len(m.pending) > 0 {
			hint = "Files are staged. Press u to upload."
		}
		return s.MutedText.Padding(1, 2).Render(hint)
	}

	nameWidth := clamp(m.width/3, 12, 48)
	rows := make([]string, 0, len(m.snap.Files))
	for i, rec := range m.snap.Files {
		row := m.renderRecord(rec, nameWidth)
		if i == m.cursor {
			row = s.Selected.Width(m.width).Render("› " + row)
		} else {
			row = "  " + row
		}
		rows = append(rows, row)
	}
	return lipgloss.NewStyle().Padding(1, 0).Render(strings.Join(rows, "\n"))
}

func (m Model) renderRecord(rec upload.Record, nameWidth int) string {
	s := m.styles
	badge := s.StatusStyle(string(rec.Status)).Width(badgeWidth).Render(string(rec.Status))
	name := s.Text.Render(runewidth.FillRight(runewidth.Truncate(rec.Name, nameWidth, "…"), nameWidth))
	size := s.MutedText.Render(fmt.Sprintf("%*s", sizeWidth, humanize.IBytes(uint64(max(rec.Size, 0)))))

	var detail string
	switch rec.Status {
	case upload.FileUploading:
		bar := m.bar
		bar.Width = clamp(m.width-nameWidth-badgeWidth-sizeWidth-16, minBar, 60)
		detail = bar.ViewAs(float64(rec.Percent())/100) + " " + s.Text.Render(fmt.Sprintf("%3d%%", rec.Percent()))
	case upload.FileAccepted, upload.FileDone:
		detail = s.FaintText.Render(rec.Key)
	case upload.FileRejected, upload.FileFailed:
		detail = s.DangerText.Render(rec.Error)
	case upload.FileAborted:
		detail = s.WarningText.Render(rec.Error)
	}
	return strings.Join([]string{badge, name, size, detail}, " ")
}

func (m Model) renderPending() string {
	s := m.styles
	lines := []string{s.AccentText.Render(fmt.Sprintf("Staged (%d) · press u to upload", len(m.pending)))}
	for _, f := range m.pending {
		lines = append(lines, "  "+s.StatusStyle("pending").Render("pending")+" "+
			s.Text.Render(f.Name)+" "+s.MutedText.Render(f.Type))
	}
	return lipgloss.NewStyle().Padding(0, 2, 1).Render(strings.Join(lines, "\n"))
}

func (m Model) renderLogs() string {
	s := m.styles
	var lines []string
	switch {
	case m.logPath == "":
		lines = []string{s.MutedText.Render("no log file configured")}
	case m.logErr != nil:
		lines = []string{s.DangerText.Render(m.logErr.Error())}
	case len(m.logs) == 0:
		lines = []string{s.MutedText.Render("log is empty")}
	}
	for _, e := range m.logs {
		line := runewidth.Truncate(e.String(), max(m.width-6, 10), "…")
		lines = append(lines, m.levelStyle(e.Level).Render(line))
	}
	return s.Pane.Width(max(m.width-2, 10)).Render(strings.Join(lines, "\n"))
}

func (m Model) levelStyle(level string) lipgloss.Style {
	switch strings.ToUpper(level) {
	case "ERROR":
		return m.styles.DangerText
	case "WARN":
		return m.styles.WarningText
	case "DEBUG":
		return m.styles.FaintText
	}
	return m.styles.MutedText
}

func (m Model) renderFooter() string {
	s := m.styles
	help := m.help.View(m.keys)
	if m.notice == "" {
		return s.Footer.Width(m.width).Render(help)
	}
	style := s.InfoText
	if m.noticeBad {
		style = s.WarningText
	}
	return s.Footer.Width(m.width).Render(style.Render(m.notice) + "  " + help)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
