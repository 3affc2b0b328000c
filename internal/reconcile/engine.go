// Package reconcile keeps the local offer cache consistent with the
// asynchronously processing backend and turns the differences into
// presentation events.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sacrosaunt/churnchurnchurn/internal/backend"
	"github.com/sacrosaunt/churnchurnchurn/internal/considerations"
	"github.com/sacrosaunt/churnchurnchurn/internal/events"
	"github.com/sacrosaunt/churnchurnchurn/internal/metrics"
	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/offerstate"
	"github.com/sacrosaunt/churnchurnchurn/internal/refresh"
	"github.com/sacrosaunt/churnchurnchurn/internal/store"
	"github.com/sacrosaunt/churnchurnchurn/internal/tracing"
)

// Backend is the subset of the backend API the engine drives.
type Backend interface {
	ListOffers(ctx context.Context) ([]models.Offer, error)
	GetOffer(ctx context.Context, id int) (models.Offer, error)
	CreateOffer(ctx context.Context, req models.CreateOfferRequest) (models.Offer, error)
	Reprocess(ctx context.Context, offer models.Offer) (models.Offer, error)
	RefreshField(ctx context.Context, id int, field string) error
	UpdateField(ctx context.Context, id int, field string, value any) (models.Offer, error)
	DeleteOffer(ctx context.Context, id int) error
}

// ErrOfferProcessing is returned for actions that need a finished offer.
var ErrOfferProcessing = errors.New("offer is still processing")

// Config holds the engine timings.
type Config struct {
	PollInterval      time.Duration
	DetailRenderDelay time.Duration
	InboxSize         int
	Refresh           refresh.Config
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		PollInterval:      500 * time.Millisecond,
		DetailRenderDelay: 100 * time.Millisecond,
		InboxSize:         64,
		Refresh:           refresh.DefaultConfig(),
	}
}

// Engine owns the offer store. All mutations happen on the goroutine
// running Run; other goroutines read the store directly or send commands.
type Engine struct {
	cfg     Config
	backend Backend
	store   store.Store
	events  *events.Manager
	tracker *refresh.Tracker
	sched   Scheduler
	now     func() time.Time
	logger  zerolog.Logger

	inbox chan Message
	done  chan struct{}

	// Owned by the loop goroutine.
	focused int
	failing bool
	pollGen uint64
	pollDue time.Time
}

// Option configures an Engine.
type Option func(*Engine)

func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithScheduler replaces the timer based scheduler.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) {
		e.sched = s
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an engine. It does nothing until Run is called.
func New(be Backend, st store.Store, ev *events.Manager, opts ...Option) *Engine {
	e := &Engine{
		cfg:     DefaultConfig(),
		backend: be,
		store:   st,
		events:  ev,
		now:     time.Now,
		logger:  zerolog.Nop(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.InboxSize <= 0 {
		e.cfg.InboxSize = 64
	}
	e.inbox = make(chan Message, e.cfg.InboxSize)
	e.tracker = refresh.NewTracker(e.cfg.Refresh)
	if e.sched == nil {
		e.sched = timerScheduler{post: e.post}
	}
	return e
}

// Store returns the engine's offer store for read access.
func (e *Engine) Store() store.Store {
	return e.store
}

// Tracker returns the field refresh tracker for read access.
func (e *Engine) Tracker() *refresh.Tracker {
	return e.tracker
}

// Run loads the collection and then processes messages until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)

	e.logger.Info().Msg("reconciliation loop started")
	e.PollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("reconciliation loop stopped")
			return ctx.Err()
		case msg := <-e.inbox:
			e.handle(ctx, msg)
		}
	}
}

func (e *Engine) post(msg Message) {
	select {
	case e.inbox <- msg:
	case <-e.done:
	}
}

func (e *Engine) handle(ctx context.Context, msg Message) {
	switch m := msg.(type) {
	case pollMsg:
		if m.gen != e.pollGen {
			return
		}
		e.pollDue = time.Time{}
		e.PollOnce(ctx)
	case detailRenderMsg:
		if _, ok := e.store.Get(m.offerID); ok {
			e.events.PublishDetailRender(ctx, m.offerID)
		}
	case settleMsg:
		e.settle(ctx, m.key)
	case submitMsg:
		offer, err := e.submit(ctx, m.req)
		m.reply <- result{offer: offer, err: err}
	case reprocessMsg:
		offer, err := e.reprocess(ctx, m.id)
		m.reply <- result{offer: offer, err: err}
	case refreshFieldMsg:
		m.reply <- result{err: e.refreshField(ctx, m.id, m.field)}
	case updateStatusMsg:
		offer, err := e.updateStatus(ctx, m.id, m.key)
		m.reply <- result{offer: offer, err: err}
	case setURLMsg:
		offer, err := e.setURL(ctx, m.id, m.url)
		m.reply <- result{offer: offer, err: err}
	case deleteMsg:
		m.reply <- result{err: e.delete(ctx, m.id)}
	case focusMsg:
		offer, err := e.focus(ctx, m.id)
		m.reply <- result{offer: offer, err: err}
	case blurMsg:
		e.blur(ctx)
		m.reply <- result{}
	case kickMsg:
		m.reply <- result{err: e.PollOnce(ctx)}
	case snapshotMsg:
		m.reply <- result{snapshot: e.snapshot()}
	default:
		e.logger.Warn().Str("type", fmt.Sprintf("%T", msg)).Msg("unknown message")
	}
}

// PollOnce fetches the collection, publishes the differences against the
// cache and schedules the next poll if anything is still in motion.
func (e *Engine) PollOnce(ctx context.Context) error {
	ctx, span := tracing.StartPoll(ctx)
	defer span.End()

	fresh, err := e.backend.ListOffers(ctx)
	now := e.now()
	if err != nil {
		tracing.Fail(span, err)
		e.pollFailed(ctx, err)
		metrics.ObservePoll(metrics.PollError, e.store.Len())
		e.scheduleNext(now)
		return err
	}
	if e.failing {
		e.failing = false
		e.logger.Info().Msg("backend reachable again")
	}

	var (
		pending       []func()
		justCompleted bool
		replace       = len(fresh) != e.store.Len()
		patched       bool
		present       = make(map[int]bool, len(fresh))
	)

	for _, offer := range fresh {
		present[offer.ID] = true

		old, ok := e.store.Get(offer.ID)
		if !ok {
			replace = true
		} else {
			for _, field := range offer.FieldOrder() {
				value := offer.Details[field]
				if !fieldChanged(old.Details[field], value) {
					continue
				}
				e.store.PatchField(offer.ID, field, value)
				patched = true
				pending = append(pending, func() {
					e.events.PublishFieldUpdated(ctx, offer.ID, field, value)
				})
				if field == models.FieldAdditionalConsiderations {
					items := considerations.Parse(value)
					pending = append(pending, func() {
						e.events.PublishConsiderationsUpdated(ctx, offer.ID, items)
					})
				}
			}

			if !replace {
				if cur, _ := e.store.Get(offer.ID); !sameOffer(cur, offer) {
					replace = true
				}
			}

			if offer.IsProcessing() && offer.ProcessingStep != old.ProcessingStep {
				progress := offerstate.ProcessingProgress(offer)
				pending = append(pending, func() {
					e.events.PublishProcessingProgress(ctx, offer.ID, progress)
				})
			}

			if old.IsProcessing() && !offer.IsProcessing() {
				justCompleted = true
				e.sched.After(e.cfg.DetailRenderDelay, detailRenderMsg{offerID: offer.ID})
			}
		}

		for _, tr := range e.tracker.Observe(offer, now) {
			pending = append(pending, func() { e.publishRefresh(ctx, tr) })
			if tr.To == refresh.Done {
				metrics.ObserveRefresh(string(refresh.Done))
				e.sched.After(e.cfg.Refresh.DisplayDelay, settleMsg{key: tr.Key})
			}
		}
	}

	for _, st := range e.tracker.Statuses() {
		if !present[st.Key.OfferID] {
			e.tracker.Forget(st.Key.OfferID)
		}
	}

	if replace {
		e.store.ReplaceAll(fresh)
	}
	changed := replace || patched

	for _, publish := range pending {
		publish()
	}

	if e.focused != 0 && !present[e.focused] {
		e.focused = 0
		e.events.PublishNotice(ctx, events.NoticeError, "Offer not found")
	}

	if changed {
		focusedProcessing := false
		if e.focused != 0 {
			if o, ok := e.store.Get(e.focused); ok && o.IsProcessing() {
				focusedProcessing = true
			}
		}
		switch {
		case justCompleted:
			e.events.PublishRouteRender(ctx, "processing completed")
		case !e.tracker.Visible() && !focusedProcessing:
			e.events.PublishRouteRender(ctx, "collection changed")
		}
		metrics.ObservePoll(metrics.PollChanged, len(fresh))
	} else {
		metrics.ObservePoll(metrics.PollUnchanged, len(fresh))
	}

	span.SetAttributes(
		attribute.Int("offers", len(fresh)),
		attribute.Bool("changed", changed),
	)
	e.logger.Debug().Int("offers", len(fresh)).Bool("changed", changed).Msg("poll")

	e.scheduleNext(now)
	return nil
}

// fieldChanged reports a targeted update: a populated value that differs,
// which includes a placeholder being replaced. A value appearing where there
// was none is left to the full re-render.
func fieldChanged(prev, next string) bool {
	if prev == models.ProcessingValue && next != models.ProcessingValue {
		return true
	}
	return prev != "" && prev != next
}

func sameOffer(a, b models.Offer) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ra) == string(rb)
}

func (e *Engine) pollFailed(ctx context.Context, err error) {
	e.logger.Warn().Err(err).Msg("poll failed")

	for _, st := range e.tracker.Statuses() {
		if tr, ok := e.tracker.Fail(st.Key); ok {
			e.publishRefresh(ctx, tr)
			metrics.ObserveRefresh(string(refresh.Error))
			e.sched.After(e.cfg.Refresh.ErrorDisplay, settleMsg{key: tr.Key})
		}
	}

	if !e.failing {
		e.failing = true
		e.events.PublishNotice(ctx, events.NoticeError, describe("Could not refresh offers", err))
	}
}

// scheduleNext keeps polling while any cached offer is processing or
// refreshing, or a refresh from this client is in flight. Otherwise polling
// stops until the next user action.
func (e *Engine) scheduleNext(now time.Time) {
	interval := time.Duration(0)
	for _, o := range e.store.All() {
		if o.IsProcessing() || o.IsRefreshing() {
			interval = e.cfg.PollInterval
			break
		}
	}
	if d := e.tracker.PollInterval(now); d > 0 && (interval == 0 || d < interval) {
		interval = d
	}
	if interval > 0 {
		e.schedulePoll(interval)
	}
}

// schedulePoll arranges a poll after d unless one is already due sooner.
func (e *Engine) schedulePoll(d time.Duration) {
	due := e.now().Add(d)
	if !e.pollDue.IsZero() && !e.pollDue.After(due) {
		return
	}
	e.pollGen++
	e.pollDue = due
	e.sched.After(d, pollMsg{gen: e.pollGen})
}

func (e *Engine) settle(ctx context.Context, key refresh.Key) {
	stage, ok := e.tracker.Settle(key)
	if !ok {
		return
	}
	e.events.PublishRefreshProgress(ctx, key.OfferID, key.Field, string(refresh.Idle), 0)
	if stage == refresh.Done {
		if _, ok := e.store.Get(key.OfferID); ok {
			e.events.PublishDetailRender(ctx, key.OfferID)
		}
	}
}

func (e *Engine) publishRefresh(ctx context.Context, tr refresh.Transition) {
	e.events.PublishRefreshProgress(ctx, tr.Key.OfferID, tr.Key.Field, string(tr.To), tr.Percent)
}

func (e *Engine) snapshot() Snapshot {
	return Snapshot{
		Offers:    e.store.All(),
		Focused:   e.focused,
		Refreshes: e.tracker.Statuses(),
		Polling:   !e.pollDue.IsZero(),
		Failing:   e.failing,
	}
}

// describe renders err for a notice. Backend rejections carry their own
// message; transport failures get a generic one.
func describe(action string, err error) string {
	if backend.IsNetworkError(err) {
		return action + ": could not reach the backend"
	}
	return action + ": " + err.Error()
}

func (e *Engine) notifyError(ctx context.Context, action string, err error) {
	e.logger.Warn().Err(err).Str("action", action).Msg("action failed")
	e.events.PublishNotice(ctx, events.NoticeError, describe(action, err))
}
