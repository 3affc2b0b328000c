package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sacrosaunt/churnchurnchurn/internal/backend"
	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/offerstate"
	"github.com/sacrosaunt/churnchurnchurn/internal/service"
)

// action runs fn off the update loop and reports the outcome. The engine
// serializes the work itself.
func (m *Model) action(fn func(ctx context.Context) actionDoneMsg) tea.Cmd {
	m.inflight = true
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return fn(ctx)
	}
}

func (m *Model) submitCmd(req models.CreateOfferRequest) tea.Cmd {
	engine := m.engine
	return m.action(func(ctx context.Context) actionDoneMsg {
		offer, err := engine.Submit(ctx, req)
		var dup *backend.DuplicateOfferError
		if errors.As(err, &dup) {
			if _, err := engine.Focus(ctx, dup.ExistingID); err != nil {
				return actionDoneMsg{err: err}
			}
			return actionDoneMsg{status: "offer already tracked", focus: dup.ExistingID}
		}
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: fmt.Sprintf("offer %d added, processing", offer.ID)}
	})
}

func (m *Model) focusCmd(id int) tea.Cmd {
	engine := m.engine
	return m.action(func(ctx context.Context) actionDoneMsg {
		if _, err := engine.Focus(ctx, id); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{focus: id}
	})
}

func (m *Model) blurCmd() tea.Cmd {
	engine := m.engine
	return m.action(func(ctx context.Context) actionDoneMsg {
		return actionDoneMsg{err: engine.Blur(ctx)}
	})
}

func (m *Model) kickCmd() tea.Cmd {
	engine := m.engine
	return m.action(func(ctx context.Context) actionDoneMsg {
		if err := engine.Kick(ctx); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "reloading"}
	})
}

func (m *Model) refreshFieldCmd(id int, field string) tea.Cmd {
	engine := m.engine
	return m.action(func(ctx context.Context) actionDoneMsg {
		if err := engine.RefreshField(ctx, id, field); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "refreshing " + field}
	})
}

func (m *Model) reprocessCmd(id int) tea.Cmd {
	engine := m.engine
	return m.action(func(ctx context.Context) actionDoneMsg {
		if _, err := engine.Reprocess(ctx, id); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "reprocessing offer"}
	})
}

func (m *Model) statusCmd(id int, k offerstate.StatusKey) tea.Cmd {
	engine := m.engine
	return m.action(func(ctx context.Context) actionDoneMsg {
		if _, err := engine.UpdateStatus(ctx, id, k); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "status set to " + string(k)}
	})
}

func (m *Model) setURLCmd(id int, rawURL string) tea.Cmd {
	engine := m.engine
	return m.action(func(ctx context.Context) actionDoneMsg {
		if _, err := engine.SetURL(ctx, id, rawURL); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "url updated"}
	})
}

func (m *Model) deleteCmd(id int) tea.Cmd {
	if m.focused == id {
		m.screen = screenList
		m.focused = 0
	}
	engine := m.engine
	return m.action(func(ctx context.Context) actionDoneMsg {
		if err := engine.Delete(ctx, id); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "offer deleted"}
	})
}

func (m *Model) planAction(fn func(ctx context.Context) planDoneMsg) tea.Cmd {
	m.inflight = true
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return fn(ctx)
	}
}

func (m *Model) generateCmd(req models.PlanRequest) tea.Cmd {
	planning, now := m.planning, m.now
	return m.planAction(func(ctx context.Context) planDoneMsg {
		plan, err := planning.Generate(ctx, req)
		if err != nil {
			return planDoneMsg{err: err}
		}
		return planDoneMsg{plan: plan, inputs: req, at: now(), status: "plan generated"}
	})
}

func (m *Model) currentPlanCmd() tea.Cmd {
	planning := m.planning
	return m.planAction(func(ctx context.Context) planDoneMsg {
		current, err := planning.Current(ctx)
		if errors.Is(err, service.ErrNoPlan) {
			return planDoneMsg{err: errors.New("no plan yet, press g to generate one")}
		}
		if err != nil {
			return planDoneMsg{err: err}
		}
		return planDoneMsg{plan: current.Plan, inputs: current.Inputs, at: current.GeneratedAt, status: "current plan"}
	})
}

func (m *Model) savePlanCmd() tea.Cmd {
	planning := m.planning
	return m.planAction(func(ctx context.Context) planDoneMsg {
		saved, err := planning.Save(ctx)
		if err != nil {
			return planDoneMsg{err: err}
		}
		return planDoneMsg{plan: saved.Plan, inputs: saved.Inputs, saved: true, at: saved.SavedAt, status: "plan saved"}
	})
}

func (m *Model) savedPlanCmd() tea.Cmd {
	planning := m.planning
	return m.planAction(func(ctx context.Context) planDoneMsg {
		saved, err := planning.Saved(ctx)
		if err != nil {
			return planDoneMsg{err: err}
		}
		return planDoneMsg{plan: saved.Plan, inputs: saved.Inputs, saved: true, at: saved.SavedAt, status: "saved plan loaded"}
	})
}

func (m Model) inputsCmd() tea.Cmd {
	planning, timeout := m.planning, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		inputs, err := planning.Inputs(ctx)
		return inputsMsg{inputs: inputs, err: err}
	}
}
