package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// YearsMsg carries the result of probing which catalog years exist.
type YearsMsg struct {
	Years []int
	Err   error
}

// YearProber lists the catalog years that can be fetched.
type YearProber func(ctx context.Context) ([]int, error)

func probeYears(ctx context.Context, probe YearProber) tea.Cmd {
	return func() tea.Msg {
		years, err := probe(ctx)
		return YearsMsg{Years: years, Err: err}
	}
}
