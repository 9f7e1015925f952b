package cli

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	coreapp "guardrail/internal/core/app"
	"guardrail/internal/core/ports"
	"guardrail/internal/data/history"
)

// runUI shows the violation browser. Every re-check from the watch service is
// pushed into the running program.
func runUI(ctx context.Context, app *coreapp.App, watch ports.WatchService, trend *history.TrendReport) error {
	m := initialModel(trend)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	if watch != nil {
		watch.Subscribe(func(update ports.WatchUpdate) {
			p.Send(updateMsg{report: update.Report, graph: app.Graph(), err: update.Err})
		})
	}

	go func() {
		p.Send(updateMsg{report: app.LastReport(), graph: app.Graph()})
	}()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
