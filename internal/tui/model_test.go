package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sacrosaunt/churnchurnchurn/internal/events"
	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/offerstate"
	"github.com/sacrosaunt/churnchurnchurn/internal/refresh"
	"github.com/sacrosaunt/churnchurnchurn/internal/service"
	"github.com/sacrosaunt/churnchurnchurn/internal/store"
)

type fakeEngine struct {
	store   *store.MemoryStore
	tracker *refresh.Tracker

	focused  []int
	statuses []offerstate.StatusKey
	deleted  []int
}

func newFakeEngine(offers ...models.Offer) *fakeEngine {
	st := store.NewMemoryStore()
	st.ReplaceAll(offers)
	return &fakeEngine{store: st, tracker: refresh.NewTracker(refresh.DefaultConfig())}
}

func (e *fakeEngine) Store() store.Store { return e.store }

func (e *fakeEngine) Tracker() *refresh.Tracker { return e.tracker }

func (e *fakeEngine) Blur(ctx context.Context) error { return nil }

func (e *fakeEngine) Kick(ctx context.Context) error { return nil }

func (e *fakeEngine) Submit(ctx context.Context, req models.CreateOfferRequest) (models.Offer, error) {
	o := models.Offer{ID: e.store.Len() + 1, URL: req.URL, Status: models.StatusProcessing}
	e.store.Put(o)
	return o, nil
}

func (e *fakeEngine) Reprocess(ctx context.Context, id int) (models.Offer, error) {
	o, _ := e.store.Get(id)
	return o, nil
}

func (e *fakeEngine) RefreshField(ctx context.Context, id int, field string) error {
	_, err := e.tracker.Start(refresh.Key{OfferID: id, Field: field}, time.Now())
	return err
}

func (e *fakeEngine) UpdateStatus(ctx context.Context, id int, key offerstate.StatusKey) (models.Offer, error) {
	e.statuses = append(e.statuses, key)
	o, _ := e.store.Get(id)
	o.UserControlled = offerstate.FlagsFor(key)
	e.store.Put(o)
	return o, nil
}

func (e *fakeEngine) SetURL(ctx context.Context, id int, rawURL string) (models.Offer, error) {
	o, _ := e.store.Get(id)
	o.URL = rawURL
	e.store.Put(o)
	return o, nil
}

func (e *fakeEngine) Delete(ctx context.Context, id int) error {
	e.deleted = append(e.deleted, id)
	e.store.RemoveByID(id)
	return nil
}

func (e *fakeEngine) Focus(ctx context.Context, id int) (models.Offer, error) {
	e.focused = append(e.focused, id)
	o, _ := e.store.Get(id)
	return o, nil
}

type fakePlanner struct {
	plan models.Plan
}

func (p *fakePlanner) Generate(ctx context.Context, req models.PlanRequest) (models.Plan, error) {
	return p.plan, nil
}

func (p *fakePlanner) Current(ctx context.Context) (service.GeneratedPlan, error) {
	return service.GeneratedPlan{}, service.ErrNoPlan
}

func (p *fakePlanner) Save(ctx context.Context) (models.SavedPlan, error) {
	return models.SavedPlan{Plan: p.plan, SavedAt: time.Now()}, nil
}

func (p *fakePlanner) Saved(ctx context.Context) (models.SavedPlan, error) {
	return models.SavedPlan{}, service.ErrNoSavedPlan
}

func (p *fakePlanner) Inputs(ctx context.Context) (models.PlanRequest, error) {
	return models.DefaultPlanRequest(), nil
}

func (p *fakePlanner) Timeline(plan models.Plan, now time.Time) []service.AnnotatedMonth {
	return nil
}

func (p *fakePlanner) Excluded(plan models.Plan, offers []models.Offer, now time.Time) service.Exclusions {
	return service.Exclusions{}
}

func completed(id int, bank, bonus string) models.Offer {
	return models.Offer{
		ID:     id,
		URL:    "https://" + strings.ToLower(bank) + ".example",
		Status: models.StatusCompleted,
		Details: models.Details{
			models.FieldBankName:          bank,
			models.FieldBonusToBeReceived: bonus,
		},
	}
}

func setupModel(t *testing.T, engine *fakeEngine) Model {
	t.Helper()
	m := New(engine, &fakePlanner{plan: models.Plan{TotalBonus: 800}}, Options{})
	return update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	if !ok {
		t.Fatalf("Expected Model, got %T", next)
	}
	return out
}

// press sends a key. When the key started an engine or planner call, the
// call runs and its result is fed back in.
func press(t *testing.T, m Model, k tea.KeyMsg) Model {
	t.Helper()
	next, cmd := m.Update(k)
	m = next.(Model)
	if !m.inflight || cmd == nil {
		return m
	}
	return feed(t, m, cmd())
}

func feed(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, cmd := range batch {
			if cmd != nil {
				m = feed(t, m, cmd())
			}
		}
		return m
	}
	return update(t, m, msg)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNew_ListsOffers(t *testing.T) {
	m := setupModel(t, newFakeEngine(completed(1, "Chase", "$300"), completed(2, "Citi", "$500")))

	if got := len(m.list.Items()); got != 2 {
		t.Fatalf("Expected 2 items, got %d", got)
	}
	if !strings.Contains(m.list.Title, "claimed $0") {
		t.Errorf("Expected totals in title, got %q", m.list.Title)
	}

	m = press(t, m, runes("s"))
	if m.sortBy != offerstate.SortBonus {
		t.Fatalf("Expected bonus sort, got %s", m.sortBy)
	}
	first := m.list.Items()[0].(offerItem)
	if first.offer.ID != 2 {
		t.Errorf("Expected largest bonus first, got offer %d", first.offer.ID)
	}
}

func TestOpenDetailAndSetStatus(t *testing.T) {
	engine := newFakeEngine(completed(1, "Chase", "$300"))
	m := setupModel(t, engine)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.screen != screenDetail || m.focused != 1 {
		t.Fatalf("Expected detail of offer 1, got screen %d focused %d", m.screen, m.focused)
	}
	if len(engine.focused) != 1 {
		t.Errorf("Expected engine focus, got %v", engine.focused)
	}
	if !strings.Contains(m.View(), "Chase") {
		t.Error("Expected bank name in detail view")
	}

	m = press(t, m, runes("3"))
	if len(engine.statuses) != 1 || engine.statuses[0] != offerstate.KeyDeposited {
		t.Errorf("Expected deposited status update, got %v", engine.statuses)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.screen != screenList {
		t.Errorf("Expected list screen after esc, got %d", m.screen)
	}
}

func TestRefreshFieldShowsStage(t *testing.T) {
	engine := newFakeEngine(completed(1, "Chase", "$300"))
	m := setupModel(t, engine)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	m = press(t, m, runes("f"))
	field := detailFields(completed(1, "Chase", "$300"))[0]
	if stage := engine.tracker.Stage(refresh.Key{OfferID: 1, Field: field}); stage != refresh.Rescraping {
		t.Fatalf("Expected rescraping, got %s", stage)
	}
	if !strings.Contains(m.detail.View(), string(refresh.Rescraping)) {
		t.Error("Expected refresh stage in detail view")
	}

	m = press(t, m, runes("f"))
	if !m.statusErr {
		t.Error("Expected an error for a second refresh of the same field")
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	engine := newFakeEngine(completed(1, "Chase", "$300"))
	m := setupModel(t, engine)

	m = press(t, m, runes("x"))
	m = press(t, m, runes("n"))
	if len(engine.deleted) != 0 {
		t.Fatalf("Expected no delete without confirmation, got %v", engine.deleted)
	}

	m = press(t, m, runes("x"))
	m = press(t, m, runes("y"))
	if len(engine.deleted) != 1 {
		t.Fatalf("Expected one delete, got %v", engine.deleted)
	}
	if len(m.list.Items()) != 0 {
		t.Errorf("Expected empty list, got %d items", len(m.list.Items()))
	}
}

func TestAddOffer(t *testing.T) {
	engine := newFakeEngine()
	m := setupModel(t, engine)

	m = press(t, m, runes("a"))
	if m.mode != inputAddOffer {
		t.Fatalf("Expected add mode, got %d", m.mode)
	}
	m = press(t, m, runes("https://bank.example/bonus"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.mode != inputNone {
		t.Errorf("Expected input closed, got %d", m.mode)
	}
	if engine.store.Len() != 1 {
		t.Fatalf("Expected submitted offer, got %d", engine.store.Len())
	}
	o, _ := engine.store.Get(1)
	if o.URL != "https://bank.example/bonus" {
		t.Errorf("Expected URL submission, got %+v", o)
	}
}

func TestNoticeEvent(t *testing.T) {
	m := setupModel(t, newFakeEngine())

	m = update(t, m, eventMsg{event: events.Event{
		Type: events.EventNotice,
		Data: events.NoticeData{Level: events.NoticeError, Message: "Failed to load offers"},
	}})
	if m.statusLine != "Failed to load offers" || !m.statusErr {
		t.Errorf("Expected error notice in status line, got %q (%v)", m.statusLine, m.statusErr)
	}
}

func TestRouteRenderLeavesRemovedOffer(t *testing.T) {
	engine := newFakeEngine(completed(1, "Chase", "$300"))
	m := setupModel(t, engine)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	engine.store.RemoveByID(1)
	m = update(t, m, eventMsg{event: events.Event{Type: events.EventRouteRender, Data: events.RouteRenderData{Reason: "offer removed"}}})
	if m.screen != screenList {
		t.Errorf("Expected list screen, got %d", m.screen)
	}
}

func TestPlanScreen(t *testing.T) {
	m := setupModel(t, newFakeEngine())

	m = press(t, m, runes("p"))
	if m.screen != screenPlan {
		t.Fatalf("Expected plan screen, got %d", m.screen)
	}
	if !m.statusErr {
		t.Error("Expected a no-plan error when nothing was generated")
	}

	m = press(t, m, runes("g"))
	if m.mode != inputPlan || m.input.Value() != "14 2000 2" {
		t.Fatalf("Expected prefilled plan input, got mode %d value %q", m.mode, m.input.Value())
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.plan == nil || m.plan.plan.TotalBonus != 800 {
		t.Fatalf("Expected generated plan, got %+v", m.plan)
	}
	if !strings.Contains(m.detail.View(), "$800") {
		t.Error("Expected total bonus in plan view")
	}
}

func TestParseInputs(t *testing.T) {
	tests := []struct {
		in      string
		want    models.PlanRequest
		wantErr bool
	}{
		{"14 2000 2", models.PlanRequest{PayCycleDays: 14, AveragePaycheck: 2000, AccountsPerPaycycle: 2}, false},
		{"15 $3,500.50 3", models.PlanRequest{PayCycleDays: 15, AveragePaycheck: 3500.5, AccountsPerPaycycle: 3}, false},
		{"14 2000", models.PlanRequest{}, true},
		{"two 2000 2", models.PlanRequest{}, true},
	}

	for _, tt := range tests {
		got, err := parseInputs(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseInputs(%q): expected error %v, got %v", tt.in, tt.wantErr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseInputs(%q): expected %+v, got %+v", tt.in, tt.want, got)
		}
	}
}

func TestNewOfferRequest(t *testing.T) {
	if req := newOfferRequest("https://bank.example"); req.URL == "" || req.Content != "" {
		t.Errorf("Expected URL request, got %+v", req)
	}
	if req := newOfferRequest("Earn $300 when you open a checking account"); req.Content == "" {
		t.Errorf("Expected content request, got %+v", req)
	}
}

type recordingSender struct {
	msgs []tea.Msg
}

func (s *recordingSender) Send(msg tea.Msg) {
	s.msgs = append(s.msgs, msg)
}

func TestBridge(t *testing.T) {
	ev := events.NewManager(true)
	sender := &recordingSender{}
	Bridge(ev, sender)

	ev.PublishRouteRender(context.Background(), "offer added")
	if len(sender.msgs) != 1 {
		t.Fatalf("Expected 1 forwarded message, got %d", len(sender.msgs))
	}
	if msg, ok := sender.msgs[0].(eventMsg); !ok || msg.event.Type != events.EventRouteRender {
		t.Errorf("Unexpected message %#v", sender.msgs[0])
	}
}
