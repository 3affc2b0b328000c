package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sacrosaunt/churnchurnchurn/internal/events"
	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/service"
)

// eventMsg carries one engine event into the program.
type eventMsg struct {
	event events.Event
}

// actionDoneMsg reports a finished engine command.
type actionDoneMsg struct {
	status string
	err    error
	// focus switches to the detail view of this offer when set.
	focus int
}

// planDoneMsg reports a generated, loaded or saved plan.
type planDoneMsg struct {
	plan   models.Plan
	inputs models.PlanRequest
	saved  bool
	at     time.Time
	status string
	err    error
}

// inputsMsg carries the stored planning inputs.
type inputsMsg struct {
	inputs models.PlanRequest
	err    error
}

type tickMsg time.Time

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge forwards every published event to the program. Handlers run on
// the engine goroutine; Send blocks until the program takes the message.
func Bridge(ev *events.Manager, p Sender) {
	ev.SubscribeAll(func(ctx context.Context, e events.Event) error {
		p.Send(eventMsg{event: e})
		return nil
	})
}

func tickEvery(interval time.Duration) tea.Cmd {
	if interval <= 0 {
		interval = time.Second
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// planView is what the plan screen shows.
type planView struct {
	plan     models.Plan
	inputs   models.PlanRequest
	saved    bool
	at       time.Time
	timeline []service.AnnotatedMonth
	excluded service.Exclusions
}
