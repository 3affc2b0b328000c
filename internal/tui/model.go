// Package tui is the terminal front end. It renders the engine's offer
// store and turns key presses into engine commands; engine events arrive
// through Bridge and trigger redraws.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sacrosaunt/churnchurnchurn/internal/events"
	"github.com/sacrosaunt/churnchurnchurn/internal/features"
	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/offerstate"
	"github.com/sacrosaunt/churnchurnchurn/internal/refresh"
	"github.com/sacrosaunt/churnchurnchurn/internal/service"
	"github.com/sacrosaunt/churnchurnchurn/internal/store"
)

// Engine is the part of the reconciliation engine the UI drives.
type Engine interface {
	Store() store.Store
	Tracker() *refresh.Tracker
	Submit(ctx context.Context, req models.CreateOfferRequest) (models.Offer, error)
	Reprocess(ctx context.Context, id int) (models.Offer, error)
	RefreshField(ctx context.Context, id int, field string) error
	UpdateStatus(ctx context.Context, id int, key offerstate.StatusKey) (models.Offer, error)
	SetURL(ctx context.Context, id int, rawURL string) (models.Offer, error)
	Delete(ctx context.Context, id int) error
	Focus(ctx context.Context, id int) (models.Offer, error)
	Blur(ctx context.Context) error
	Kick(ctx context.Context) error
}

// Planner is the planning service as seen by the plan view.
type Planner interface {
	Generate(ctx context.Context, req models.PlanRequest) (models.Plan, error)
	Current(ctx context.Context) (service.GeneratedPlan, error)
	Save(ctx context.Context) (models.SavedPlan, error)
	Saved(ctx context.Context) (models.SavedPlan, error)
	Inputs(ctx context.Context) (models.PlanRequest, error)
	Timeline(plan models.Plan, now time.Time) []service.AnnotatedMonth
	Excluded(plan models.Plan, offers []models.Offer, now time.Time) service.Exclusions
}

// Options configures the UI.
type Options struct {
	Features       *features.Manager
	Now            func() time.Time
	CommandTimeout time.Duration
}

type screen int

const (
	screenList screen = iota
	screenDetail
	screenPlan
)

type inputMode int

const (
	inputNone inputMode = iota
	inputAddOffer
	inputEditURL
	inputPlan
)

var sortCycle = []offerstate.SortBy{
	offerstate.SortAll,
	offerstate.SortBonus,
	offerstate.SortExpiration,
	offerstate.SortStatus,
}

// Model is the bubbletea model.
type Model struct {
	engine   Engine
	planning Planner
	features *features.Manager
	now      func() time.Time
	timeout  time.Duration

	screen        screen
	mode          inputMode
	sortBy        offerstate.SortBy
	ascending     bool
	focused       int
	fieldIndex    int
	confirmDelete int
	inflight      bool
	statusLine    string
	statusErr     bool
	inputs        models.PlanRequest
	plan          *planView

	width  int
	height int

	keys     keyMap
	list     list.Model
	input    textinput.Model
	detail   viewport.Model
	spinner  spinner.Model
	progress progress.Model
	theme    theme
}

// New creates the model.
func New(engine Engine, planning Planner, opts Options) Model {
	if opts.Features == nil {
		opts.Features = features.NewDefaultManager(features.AllOn())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 45 * time.Second
	}

	th := newTheme()

	offers := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	offers.SetShowHelp(false)
	offers.Styles.Title = th.panelTitle

	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 20000

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05c46b"))

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 30

	m := Model{
		engine:     engine,
		planning:   planning,
		features:   opts.Features,
		now:        opts.Now,
		timeout:    opts.CommandTimeout,
		sortBy:     offerstate.SortAll,
		statusLine: "loading offers...",
		inputs:     models.DefaultPlanRequest(),
		keys:       defaultKeys(),
		list:       offers,
		input:      input,
		detail:     viewport.New(0, 0),
		spinner:    sp,
		progress:   bar,
		theme:      th,
	}
	m.refreshList()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.inputsCmd(),
		tickEvery(time.Second),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderDetail()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tickMsg:
		// Urgency depends on the date.
		m.refreshList()
		cmds = append(cmds, tickEvery(time.Second))
	case eventMsg:
		m.applyEvent(msg.event)
	case actionDoneMsg:
		m.inflight = false
		if msg.err != nil {
			m.setError(msg.err)
			break
		}
		m.setStatus(msg.status)
		if msg.focus > 0 {
			m.screen = screenDetail
			m.focused = msg.focus
			m.fieldIndex = 0
			m.detail.GotoTop()
		}
		m.refreshList()
		m.renderDetail()
	case planDoneMsg:
		m.inflight = false
		if msg.err != nil {
			m.setError(msg.err)
			break
		}
		m.setStatus(msg.status)
		m.inputs = msg.inputs
		m.plan = &planView{
			plan:     msg.plan,
			inputs:   msg.inputs,
			saved:    msg.saved,
			at:       msg.at,
			timeline: m.planning.Timeline(msg.plan, m.now()),
			excluded: m.planning.Excluded(msg.plan, m.engine.Store().All(), m.now()),
		}
		m.screen = screenPlan
		m.renderDetail()
	case inputsMsg:
		if msg.err == nil {
			m.inputs = msg.inputs
		}
	case tea.KeyMsg:
		cmds = append(cmds, m.handleKey(msg))
	default:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) applyEvent(e events.Event) {
	switch e.Type {
	case events.EventNotice:
		if data, ok := e.Data.(events.NoticeData); ok {
			if data.Level == events.NoticeError {
				m.statusLine = data.Message
				m.statusErr = true
			} else {
				m.setStatus(data.Message)
			}
		}
	case events.EventRouteRender:
		if m.screen == screenDetail {
			if _, ok := m.engine.Store().Get(m.focused); !ok {
				m.screen = screenList
				m.focused = 0
			}
		}
	}

	m.refreshList()
	m.renderDetail()
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}

	if m.mode != inputNone {
		return m.handleInput(msg)
	}

	if m.confirmDelete != 0 {
		id := m.confirmDelete
		m.confirmDelete = 0
		if key.Matches(msg, m.keys.Confirm) {
			return m.deleteCmd(id)
		}
		m.setStatus("delete canceled")
		return nil
	}

	switch m.screen {
	case screenDetail:
		return m.handleDetailKey(msg)
	case screenPlan:
		return m.handlePlanKey(msg)
	default:
		return m.handleListKey(msg)
	}
}

func (m *Model) handleListKey(msg tea.KeyMsg) tea.Cmd {
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Open):
		if item, ok := m.list.SelectedItem().(offerItem); ok {
			return m.focusCmd(item.offer.ID)
		}
		return nil
	case key.Matches(msg, m.keys.Add):
		return m.beginInput(inputAddOffer, "", "https://bank.example/bonus or pasted offer text")
	case key.Matches(msg, m.keys.Delete):
		if item, ok := m.list.SelectedItem().(offerItem); ok {
			m.confirmDelete = item.offer.ID
			m.setStatus(fmt.Sprintf("delete %q? press y to confirm", item.Title()))
		}
		return nil
	case key.Matches(msg, m.keys.Sort):
		m.sortBy = nextSort(m.sortBy)
		m.refreshList()
		return nil
	case key.Matches(msg, m.keys.Order):
		m.ascending = !m.ascending
		m.refreshList()
		return nil
	case key.Matches(msg, m.keys.Reload):
		return m.kickCmd()
	case key.Matches(msg, m.keys.Plan):
		m.screen = screenPlan
		m.renderDetail()
		if m.plan == nil {
			return m.currentPlanCmd()
		}
		return nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return cmd
}

func (m *Model) handleDetailKey(msg tea.KeyMsg) tea.Cmd {
	offer, ok := m.engine.Store().Get(m.focused)
	if !ok {
		m.screen = screenList
		return nil
	}
	fields := detailFields(offer)

	switch {
	case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.Back):
		m.screen = screenList
		m.focused = 0
		return m.blurCmd()
	case key.Matches(msg, m.keys.Up):
		if m.fieldIndex > 0 {
			m.fieldIndex--
		}
	case key.Matches(msg, m.keys.Down):
		if m.fieldIndex < len(fields)-1 {
			m.fieldIndex++
		}
	case key.Matches(msg, m.keys.Refresh):
		if !m.features.IsEnabled(features.FeatureFieldRefresh) {
			m.setStatus("field refresh is disabled")
			return nil
		}
		if m.fieldIndex < len(fields) {
			return m.refreshFieldCmd(offer.ID, fields[m.fieldIndex])
		}
	case key.Matches(msg, m.keys.Reprocess):
		return m.reprocessCmd(offer.ID)
	case key.Matches(msg, m.keys.EditURL):
		return m.beginInput(inputEditURL, offer.URL, "https://")
	case key.Matches(msg, m.keys.Delete):
		m.confirmDelete = offer.ID
		m.setStatus("delete this offer? press y to confirm")
		return nil
	case key.Matches(msg, m.keys.Status):
		if k, ok := offerstate.ParseStatusKey(statusForKey(msg.String())); ok {
			return m.statusCmd(offer.ID, k)
		}
	default:
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return cmd
	}

	m.renderDetail()
	return nil
}

func (m *Model) handlePlanKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.Back):
		m.screen = screenList
		return nil
	case key.Matches(msg, m.keys.Generate):
		return m.beginInput(inputPlan, formatInputs(m.inputs), "pay-cycle-days paycheck accounts-per-cycle")
	case key.Matches(msg, m.keys.Save):
		return m.savePlanCmd()
	case key.Matches(msg, m.keys.Load):
		return m.savedPlanCmd()
	case key.Matches(msg, m.keys.Current):
		return m.currentPlanCmd()
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return cmd
}

func (m *Model) handleInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.endInput()
		m.setStatus("canceled")
		return nil
	case tea.KeyEnter:
		mode := m.mode
		value := strings.TrimSpace(m.input.Value())
		m.endInput()
		if value == "" {
			return nil
		}
		switch mode {
		case inputAddOffer:
			return m.submitCmd(newOfferRequest(value))
		case inputEditURL:
			return m.setURLCmd(m.focused, value)
		case inputPlan:
			req, err := parseInputs(value)
			if err != nil {
				m.setError(err)
				return nil
			}
			return m.generateCmd(req)
		}
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) beginInput(mode inputMode, value, placeholder string) tea.Cmd {
	m.mode = mode
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) endInput() {
	m.mode = inputNone
	m.input.Blur()
	m.input.Reset()
}

func (m *Model) setStatus(s string) {
	m.statusLine = s
	m.statusErr = false
}

func (m *Model) setError(err error) {
	m.statusLine = "error: " + err.Error()
	m.statusErr = true
}

func (m *Model) refreshList() {
	selected := 0
	if item, ok := m.list.SelectedItem().(offerItem); ok {
		selected = item.offer.ID
	}

	items := m.buildItems(m.now())
	m.list.SetItems(items)
	m.list.Title = m.listTitle()

	for i, it := range items {
		if it.(offerItem).offer.ID == selected {
			m.list.Select(i)
			break
		}
	}
}

func (m *Model) resize() {
	w := max(20, m.width-4)
	h := max(5, m.height-9)
	m.list.SetSize(w, h)
	m.detail.Width = w
	m.detail.Height = h
	m.input.Width = w - 4
	m.progress.Width = min(40, w/2)
}

func nextSort(current offerstate.SortBy) offerstate.SortBy {
	for i, s := range sortCycle {
		if s == current {
			return sortCycle[(i+1)%len(sortCycle)]
		}
	}
	return sortCycle[0]
}

func statusForKey(k string) string {
	i, err := strconv.Atoi(k)
	if err != nil || i < 1 || i > len(offerstate.StatusKeys) {
		return ""
	}
	return string(offerstate.StatusKeys[i-1])
}

// detailFields lists the refreshable fields of offer in backend order.
func detailFields(offer models.Offer) []string {
	var out []string
	for _, f := range offer.FieldOrder() {
		if models.IsDetailField(f) {
			out = append(out, f)
		}
	}
	if len(out) == 0 && !offer.IsProcessing() {
		out = append(out, models.DetailFields...)
	}
	return out
}

// newOfferRequest treats anything that looks like a URL as one and the rest
// as pasted offer text.
func newOfferRequest(value string) models.CreateOfferRequest {
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		if !strings.ContainsAny(value, " \n\t") {
			return models.CreateOfferRequest{URL: value}
		}
	}
	return models.CreateOfferRequest{Content: value}
}

func formatInputs(req models.PlanRequest) string {
	return fmt.Sprintf("%d %s %d", req.PayCycleDays, strconv.FormatFloat(req.AveragePaycheck, 'f', -1, 64), req.AccountsPerPaycycle)
}

func parseInputs(s string) (models.PlanRequest, error) {
	parts := strings.Fields(strings.ReplaceAll(s, "$", ""))
	if len(parts) != 3 {
		return models.PlanRequest{}, fmt.Errorf("expected three values: pay cycle days, paycheck, accounts per cycle")
	}

	days, err := strconv.Atoi(parts[0])
	if err != nil {
		return models.PlanRequest{}, fmt.Errorf("invalid pay cycle days %q", parts[0])
	}
	paycheck, err := strconv.ParseFloat(strings.ReplaceAll(parts[1], ",", ""), 64)
	if err != nil {
		return models.PlanRequest{}, fmt.Errorf("invalid paycheck %q", parts[1])
	}
	accounts, err := strconv.Atoi(parts[2])
	if err != nil {
		return models.PlanRequest{}, fmt.Errorf("invalid accounts per cycle %q", parts[2])
	}

	return models.PlanRequest{PayCycleDays: days, AveragePaycheck: paycheck, AccountsPerPaycycle: accounts}, nil
}
