// Package refresh tracks single-field re-extractions started from this
// client. There is one state machine per (offer, field):
//
//	idle -> rescraping -> querying -> consensus -> done -> idle
//	                \__________________________/
//	                        network failure -> error -> idle
//
// While a field's refresh_status entry is present in polled snapshots the
// stage is taken from it. Once the entry is gone, the refresh is complete if
// it was ever observed or the grace period has run out.
package refresh

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sacrosaunt/churnchurnchurn/internal/models"
)

// Stage is the client-side state of one field refresh.
type Stage string

const (
	Idle       Stage = "idle"
	Rescraping Stage = "rescraping"
	Querying   Stage = "querying"
	Consensus  Stage = "consensus"
	Done       Stage = "done"
	Error      Stage = "error"
)

var percents = map[Stage]int{
	Idle:       0,
	Rescraping: 15,
	Querying:   40,
	Consensus:  80,
	Done:       100,
	Error:      0,
}

// Percent returns the progress bar position for stage.
func Percent(stage Stage) int {
	return percents[stage]
}

// InFlight reports whether stage is waiting on the backend.
func (s Stage) InFlight() bool {
	return s == Rescraping || s == Querying || s == Consensus
}

// ErrInFlight is returned by Start when the field is already refreshing.
var ErrInFlight = errors.New("refresh already in progress for this field")

// Key identifies one field of one offer.
type Key struct {
	OfferID int    `json:"offer_id"`
	Field   string `json:"field"`
}

// Config holds the sub-protocol timings.
type Config struct {
	GracePeriod        time.Duration
	GracePollInterval  time.Duration
	ActivePollInterval time.Duration
	DisplayDelay       time.Duration
	ErrorDisplay       time.Duration
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		GracePeriod:        2 * time.Second,
		GracePollInterval:  200 * time.Millisecond,
		ActivePollInterval: 500 * time.Millisecond,
		DisplayDelay:       1000 * time.Millisecond,
		ErrorDisplay:       1000 * time.Millisecond,
	}
}

// Transition describes a stage change the caller should publish.
type Transition struct {
	Key     Key
	From    Stage
	To      Stage
	Percent int
}

// Status is a read-only view of one tracked refresh.
type Status struct {
	Key     Key   `json:"key"`
	Stage   Stage `json:"stage"`
	Percent int   `json:"percent"`
}

type state struct {
	stage   Stage
	started time.Time
	seen    bool
}

// Tracker owns every refresh state machine. Transitions are driven by a
// single goroutine; reads are safe from any goroutine.
type Tracker struct {
	cfg Config

	mu     sync.RWMutex
	states map[Key]*state
}

// NewTracker creates a tracker with cfg.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{
		cfg:    cfg,
		states: make(map[Key]*state),
	}
}

// Config returns the tracker timings.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Start moves key from idle to rescraping. A refresh that is still showing
// done or error may be restarted.
func (t *Tracker) Start(key Key, now time.Time) (Transition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	from := Idle
	if s, ok := t.states[key]; ok {
		if s.stage.InFlight() {
			return Transition{}, ErrInFlight
		}
		from = s.stage
	}

	t.states[key] = &state{stage: Rescraping, started: now}
	return transition(key, from, Rescraping), nil
}

// Fail moves an in-flight key to error.
func (t *Tracker) Fail(key Key) (Transition, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[key]
	if !ok || !s.stage.InFlight() {
		return Transition{}, false
	}
	from := s.stage
	s.stage = Error
	return transition(key, from, Error), true
}

// Observe feeds a polled snapshot of the offer into every in-flight refresh
// for it and returns the resulting stage changes in field order.
func (t *Tracker) Observe(offer models.Offer, now time.Time) []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Transition
	for _, key := range t.keysLocked() {
		if key.OfferID != offer.ID {
			continue
		}
		s := t.states[key]
		if !s.stage.InFlight() {
			continue
		}

		from := s.stage
		if reported := offer.RefreshStatus[key.Field]; reported != "" {
			s.seen = true
			s.stage = stageFor(reported, s.stage)
		} else if s.seen || now.Sub(s.started) >= t.cfg.GracePeriod {
			s.stage = Done
		}

		if s.stage != from {
			out = append(out, transition(key, from, s.stage))
		}
	}
	return out
}

// Settle returns a done or error key to idle once its display time is over.
// It reports the stage that was settled.
func (t *Tracker) Settle(key Key) (Stage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[key]
	if !ok || s.stage.InFlight() {
		return "", false
	}
	delete(t.states, key)
	return s.stage, true
}

// Forget drops every refresh of an offer, used when the offer disappears.
func (t *Tracker) Forget(offerID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key := range t.states {
		if key.OfferID == offerID {
			delete(t.states, key)
		}
	}
}

// Stage returns the current stage for key.
func (t *Tracker) Stage(key Key) Stage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if s, ok := t.states[key]; ok {
		return s.stage
	}
	return Idle
}

// Active reports whether any refresh is waiting on the backend.
func (t *Tracker) Active() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, s := range t.states {
		if s.stage.InFlight() {
			return true
		}
	}
	return false
}

// Visible reports whether any refresh is on screen, including the done and
// error display phases.
func (t *Tracker) Visible() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.states) > 0
}

// PollInterval returns the cadence needed by in-flight refreshes: the short
// interval while any of them is still inside its grace period without
// having been observed, the regular one otherwise. It returns 0 when
// nothing is in flight.
func (t *Tracker) PollInterval(now time.Time) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	interval := time.Duration(0)
	for _, s := range t.states {
		if !s.stage.InFlight() {
			continue
		}
		if !s.seen && now.Sub(s.started) < t.cfg.GracePeriod {
			return t.cfg.GracePollInterval
		}
		interval = t.cfg.ActivePollInterval
	}
	return interval
}

// Statuses lists every tracked refresh ordered by offer and field.
func (t *Tracker) Statuses() []Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := t.keysLocked()
	out := make([]Status, 0, len(keys))
	for _, k := range keys {
		stage := t.states[k].stage
		out = append(out, Status{Key: k, Stage: stage, Percent: Percent(stage)})
	}
	return out
}

func (t *Tracker) keysLocked() []Key {
	keys := make([]Key, 0, len(t.states))
	for k := range t.states {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].OfferID != keys[j].OfferID {
			return keys[i].OfferID < keys[j].OfferID
		}
		return keys[i].Field < keys[j].Field
	})
	return keys
}

// stageFor maps a backend-reported stage. Unknown values keep the current
// stage.
func stageFor(reported models.RefreshStage, current Stage) Stage {
	switch reported {
	case models.RefreshRescraping:
		return Rescraping
	case models.RefreshQuerying:
		return Querying
	case models.RefreshConsensus:
		return Consensus
	default:
		return current
	}
}

func transition(key Key, from, to Stage) Transition {
	return Transition{Key: key, From: from, To: to, Percent: Percent(to)}
}
