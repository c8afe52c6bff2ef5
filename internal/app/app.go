// Package app holds the interactive terminal prompts used when a run is
// started without its dates on the command line.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/ificstats/internal/util"
)

// Defaults offered by the date prompt.
const (
	DefaultStart = "01.01.2024"
	DefaultEnd   = "01.01.2026"
)

// ErrCancelled is returned when the user quits a prompt.
var ErrCancelled = errors.New("prompt cancelled")

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// DateModel asks for the start and end date of a run. An empty answer takes
// the default; an answer that does not parse is rejected and asked again.
type DateModel struct {
	State PromptState
	Start time.Time
	End   time.Time

	input   textinput.Model
	spinner spinner.Model
	probe   YearProber
	ctx     context.Context

	years    []int
	yearsErr error
	loading  bool
	inputErr error
}

// NewDateModel builds the date prompt. probe may be nil, in which case no
// year list is shown.
func NewDateModel(ctx context.Context, probe YearProber) *DateModel {
	ti := textinput.New()
	ti.CharLimit = 10
	ti.Width = 12
	ti.Placeholder = DefaultStart
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &DateModel{
		State:   EnteringStart,
		input:   ti,
		spinner: s,
		probe:   probe,
		ctx:     ctx,
		loading: probe != nil,
	}
}

func (m *DateModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.probe != nil {
		cmds = append(cmds, m.spinner.Tick, probeYears(m.ctx, m.probe))
	}
	return tea.Batch(cmds...)
}

func (m *DateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case YearsMsg:
		m.loading = false
		m.years, m.yearsErr = msg.Years, msg.Err
		return m, nil
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.State = Cancelled
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *DateModel) submit() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	if value == "" {
		value = m.input.Placeholder
	}
	t, err := util.ParseCatalogDate(value)
	if err != nil {
		m.inputErr = err
		return m, nil
	}
	m.inputErr = nil
	m.input.SetValue("")

	if m.State == EnteringStart {
		m.Start = t
		m.State = EnteringEnd
		m.input.Placeholder = DefaultEnd
		return m, nil
	}
	m.End = t
	m.State = Answered
	return m, tea.Quit
}

func (m *DateModel) View() string {
	if m.State == Answered || m.State == Cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("IFIC date range") + "\n")
	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + infoStyle.Render(" Checking available catalog years...") + "\n")
	case m.yearsErr != nil:
		b.WriteString(errorStyle.Render("Could not list catalog years: "+m.yearsErr.Error()) + "\n")
	case m.probe != nil:
		b.WriteString(infoStyle.Render("Available years: "+joinYears(m.years)) + "\n")
	}

	label := "Start date (dd.mm.yyyy)"
	if m.State == EnteringEnd {
		label = "End date (dd.mm.yyyy)"
	}
	fmt.Fprintf(&b, "\n%s %s\n", label, m.input.View())
	if m.inputErr != nil {
		b.WriteString(errorStyle.Render(m.inputErr.Error()) + "\n")
	}
	b.WriteString(infoStyle.Render("enter to accept, esc to quit") + "\n")
	return b.String()
}

func joinYears(years []int) string {
	if len(years) == 0 {
		return "none"
	}
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = fmt.Sprint(y)
	}
	return strings.Join(parts, ", ")
}

// ConfirmModel asks a yes/no question.
type ConfirmModel struct {
	Question string
	State    PromptState
	Yes      bool
}

func NewConfirmModel(question string) *ConfirmModel {
	return &ConfirmModel{Question: question, State: EnteringStart}
}

func (m *ConfirmModel) Init() tea.Cmd { return nil }

func (m *ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y", "Y":
		m.Yes, m.State = true, Answered
		return m, tea.Quit
	case "n", "N", "enter":
		m.Yes, m.State = false, Answered
		return m, tea.Quit
	case "ctrl+c", "esc":
		m.State = Cancelled
		return m, tea.Quit
	}
	return m, nil
}

func (m *ConfirmModel) View() string {
	if m.State != EnteringStart {
		return ""
	}
	return titleStyle.Render(m.Question) + infoStyle.Render(" (y/n) ")
}

// Prompter runs the prompts on a terminal. It satisfies the confirmation
// interface the orchestrator expects.
type Prompter struct {
	In    io.Reader
	Out   io.Writer
	Years YearProber
}

// AskDates prompts for the run's date range.
func (p Prompter) AskDates(ctx context.Context) (time.Time, time.Time, error) {
	m := NewDateModel(ctx, p.Years)
	if err := p.run(ctx, m); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if m.State != Answered {
		return time.Time{}, time.Time{}, ErrCancelled
	}
	return m.Start, m.End, nil
}

func (p Prompter) ConfirmDownload(ctx context.Context, missing int) (bool, error) {
	return p.confirm(ctx, fmt.Sprintf("%d file(s) need downloading. Proceed with download?", missing))
}

func (p Prompter) ConfirmAggregate(ctx context.Context) (bool, error) {
	return p.confirm(ctx, "Run queries on the IFIC databases?")
}

func (p Prompter) confirm(ctx context.Context, question string) (bool, error) {
	m := NewConfirmModel(question)
	if err := p.run(ctx, m); err != nil {
		return false, err
	}
	if m.State != Answered {
		return false, ErrCancelled
	}
	return m.Yes, nil
}

func (p Prompter) run(ctx context.Context, m tea.Model) error {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if p.In != nil {
		opts = append(opts, tea.WithInput(p.In))
	}
	if p.Out != nil {
		opts = append(opts, tea.WithOutput(p.Out))
	}
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return fmt.Errorf("run prompt: %w", err)
	}
	return nil
}
