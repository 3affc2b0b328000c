// Package features holds the runtime toggles for optional client
// behavior. Toggles start from configuration and can be flipped through the
// facade while the process runs.
package features

import (
	"errors"
	"sort"
	"sync"
)

// Predefined flag names.
const (
	// FeatureFieldRefresh allows single-field re-extraction.
	FeatureFieldRefresh = "field_refresh"
	// FeaturePlanCache keeps generated plans as the current plan for 24h.
	FeaturePlanCache = "plan_cache"
	// FeatureEventLog exposes presentation events over /api/events.
	FeatureEventLog = "event_log"
)

// ErrUnknownFlag is returned by Set for a name that was never registered.
var ErrUnknownFlag = errors.New("unknown feature flag")

// FeatureFlag is the state of one toggle.
type FeatureFlag struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// Manager holds the registered flags.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]FeatureFlag
}

// NewManager creates a manager with no flags.
func NewManager() *Manager {
	return &Manager{flags: make(map[string]FeatureFlag)}
}

// Register adds or replaces a flag.
func (m *Manager) Register(name string, enabled bool, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flags[name] = FeatureFlag{Name: name, Enabled: enabled, Description: description}
}

// IsEnabled reports whether name is registered and on.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.flags[name].Enabled
}

// Set turns a registered flag on or off and returns its new state.
func (m *Manager) Set(name string, enabled bool) (FeatureFlag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	flag, ok := m.flags[name]
	if !ok {
		return FeatureFlag{}, ErrUnknownFlag
	}
	flag.Enabled = enabled
	m.flags[name] = flag
	return flag, nil
}

// List returns every flag sorted by name.
func (m *Manager) List() []FeatureFlag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]FeatureFlag, 0, len(m.flags))
	for _, f := range m.flags {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Toggles is the initial state of the predefined flags.
type Toggles struct {
	FieldRefresh bool
	PlanCache    bool
	EventLog     bool
}

// AllOn enables every predefined flag.
func AllOn() Toggles {
	return Toggles{FieldRefresh: true, PlanCache: true, EventLog: true}
}

// NewDefaultManager creates a manager with every predefined flag registered.
func NewDefaultManager(t Toggles) *Manager {
	m := NewManager()
	m.Register(FeatureFieldRefresh, t.FieldRefresh, "Re-extract a single offer field on request")
	m.Register(FeaturePlanCache, t.PlanCache, "Keep the last generated plan for 24 hours")
	m.Register(FeatureEventLog, t.EventLog, "Record presentation events for polling clients")
	return m
}
