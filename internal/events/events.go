package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sacrosaunt/churnchurnchurn/internal/considerations"
	"github.com/sacrosaunt/churnchurnchurn/internal/metrics"
	"github.com/sacrosaunt/churnchurnchurn/internal/offerstate"
)

// EventType represents the type of event.
type EventType string

const (
	// EventFieldUpdated carries a single changed detail value.
	EventFieldUpdated EventType = "field.updated"
	// EventConsiderationsUpdated carries re-parsed additional considerations.
	EventConsiderationsUpdated EventType = "considerations.updated"
	// EventProcessingProgress is emitted when a processing offer moves to a new step.
	EventProcessingProgress EventType = "processing.progress"
	// EventDetailRender asks for a full re-render of one offer's detail view.
	EventDetailRender EventType = "detail.render"
	// EventRouteRender asks for a re-render of whatever view is current.
	EventRouteRender EventType = "route.render"
	// EventRefreshProgress reports a field refresh moving between stages.
	EventRefreshProgress EventType = "refresh.progress"
	// EventNotice is a transient user-facing message.
	EventNotice EventType = "notice"
)

// Event represents an event in the system.
type Event struct {
	ID        string      `json:"id"`
	Seq       uint64      `json:"seq"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type FieldUpdatedData struct {
	OfferID int    `json:"offer_id"`
	Field   string `json:"field"`
	Value   string `json:"value"`
}

type ConsiderationsUpdatedData struct {
	OfferID int                   `json:"offer_id"`
	Items   []considerations.Item `json:"items"`
}

type ProcessingProgressData struct {
	OfferID  int                 `json:"offer_id"`
	Progress offerstate.Progress `json:"progress"`
}

type DetailRenderData struct {
	OfferID int `json:"offer_id"`
}

// RouteRenderData says why the current view should redraw.
type RouteRenderData struct {
	Reason string `json:"reason"`
}

type RefreshProgressData struct {
	OfferID int    `json:"offer_id"`
	Field   string `json:"field"`
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
}

// NoticeLevel grades a notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

type NoticeData struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager dispatches presentation events. Handlers run synchronously on the
// publishing goroutine, in subscription order, so every subscriber sees
// events in the order they were published.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	any      []Handler
	enabled  bool
	seq      uint64
	log      *Log
	logger   zerolog.Logger
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLog records every published event into log.
func WithLog(log *Log) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// WithLogger reports handler failures to logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a new event manager.
func NewManager(enabled bool, opts ...Option) *Manager {
	m := &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// SubscribeAll subscribes a handler to every event type.
func (m *Manager) SubscribeAll(handler Handler) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.any = append(m.any, handler)
}

// Publish publishes an event to all subscribed handlers and returns it.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) Event {
	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return Event{}
	}
	m.seq++
	event := Event{
		ID:        uuid.NewString(),
		Seq:       m.seq,
		Type:      eventType,
		Timestamp: m.now(),
		Data:      data,
	}
	handlers := append(append([]Handler(nil), m.handlers[eventType]...), m.any...)
	m.mu.Unlock()

	metrics.ObserveEvent(string(eventType))
	if m.log != nil {
		m.log.Append(event)
	}

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			m.logger.Warn().Err(err).Str("event", string(eventType)).Msg("event handler failed")
		}
	}
	return event
}

func (m *Manager) PublishFieldUpdated(ctx context.Context, offerID int, field, value string) {
	m.Publish(ctx, EventFieldUpdated, FieldUpdatedData{OfferID: offerID, Field: field, Value: value})
}

func (m *Manager) PublishConsiderationsUpdated(ctx context.Context, offerID int, items []considerations.Item) {
	m.Publish(ctx, EventConsiderationsUpdated, ConsiderationsUpdatedData{OfferID: offerID, Items: items})
}

func (m *Manager) PublishProcessingProgress(ctx context.Context, offerID int, p offerstate.Progress) {
	m.Publish(ctx, EventProcessingProgress, ProcessingProgressData{OfferID: offerID, Progress: p})
}

func (m *Manager) PublishDetailRender(ctx context.Context, offerID int) {
	m.Publish(ctx, EventDetailRender, DetailRenderData{OfferID: offerID})
}

func (m *Manager) PublishRouteRender(ctx context.Context, reason string) {
	m.Publish(ctx, EventRouteRender, RouteRenderData{Reason: reason})
}

func (m *Manager) PublishRefreshProgress(ctx context.Context, offerID int, field, stage string, percent int) {
	m.Publish(ctx, EventRefreshProgress, RefreshProgressData{OfferID: offerID, Field: field, Stage: stage, Percent: percent})
}

// PublishNotice publishes a transient message for the user.
func (m *Manager) PublishNotice(ctx context.Context, level NoticeLevel, message string) {
	m.Publish(ctx, EventNotice, NoticeData{Level: level, Message: message})
}

// Shutdown shuts down the event manager.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
	m.any = nil
}

// Log keeps the most recent events for clients that poll instead of
// subscribing.
type Log struct {
	mu     sync.RWMutex
	events []Event
	size   int
}

// NewLog creates a log holding at most size events.
func NewLog(size int) *Log {
	if size <= 0 {
		size = 256
	}
	return &Log{size: size}
}

// Append adds an event, evicting the oldest when full.
func (l *Log) Append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, e)
	if over := len(l.events) - l.size; over > 0 {
		l.events = append([]Event(nil), l.events[over:]...)
	}
}

// Since returns events with a sequence number greater than after, oldest
// first.
func (l *Log) Since(after uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Event, 0)
	for _, e := range l.events {
		if e.Seq > after {
			out = append(out, e)
		}
	}
	return out
}
