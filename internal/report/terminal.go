package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")).MarginTop(1)
	nameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	countStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	totalStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46")).MarginTop(1)
)

// DefaultBarWidth is the length of the longest administration bar.
const DefaultBarWidth = 40

// TerminalSink prints the report as text with a horizontal bar chart for the
// administrations.
type TerminalSink struct {
	Out      io.Writer
	BarWidth int
	TopN     int // administrations shown, 0 for all
}

func (s TerminalSink) Name() string { return "terminal" }

func (s TerminalSink) Write(_ context.Context, t Tables) error {
	width := s.BarWidth
	if width <= 0 {
		width = DefaultBarWidth
	}

	var b strings.Builder
	b.WriteString(headingStyle.Render("Notices per administration") + "\n")
	admins := t.Administrations
	if s.TopN > 0 && len(admins) > s.TopN {
		admins = admins[:s.TopN]
	}
	nameWidth := 0
	for _, a := range admins {
		nameWidth = max(nameWidth, lipgloss.Width(a.Administration))
	}
	var top int64
	if len(admins) > 0 {
		top = admins[0].Count
	}
	for _, a := range admins {
		n := 0
		if top > 0 {
			n = int(a.Count * int64(width) / top)
		}
		if n == 0 && a.Count > 0 {
			n = 1
		}
		fmt.Fprintf(&b, "%s %s %s\n",
			nameStyle.Width(nameWidth).Render(a.Administration),
			barStyle.Render(strings.Repeat("█", n)),
			countStyle.Render(fmt.Sprint(a.Count)))
	}
	if hidden := len(t.Administrations) - len(admins); hidden > 0 {
		b.WriteString(countStyle.Render(fmt.Sprintf("... %d more", hidden)) + "\n")
	}

	b.WriteString(headingStyle.Render("Notification reasons (ntf_rsn)") + "\n")
	writeShares(&b, t.Reasons)

	b.WriteString(headingStyle.Render("Notice types (ntc_type)") + "\n")
	writeShares(&b, t.Types)

	b.WriteString(totalStyle.Render(fmt.Sprintf("Total notices processed: %d", t.Total)) + "\n")

	_, err := io.WriteString(s.Out, b.String())
	return err
}

func writeShares(b *strings.Builder, rows []ShareRow) {
	for _, r := range rows {
		fmt.Fprintf(b, "  %6.2f%%  %s %s\n",
			r.Percentage,
			nameStyle.Render(r.Label),
			countStyle.Render(fmt.Sprintf("(%s, %d)", r.Code, r.Count)))
	}
}
