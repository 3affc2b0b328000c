package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sacrosaunt/churnchurnchurn/internal/cache"
	"github.com/sacrosaunt/churnchurnchurn/internal/database"
	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/offerstate"
	"github.com/sacrosaunt/churnchurnchurn/internal/timeline"
	"github.com/sacrosaunt/churnchurnchurn/internal/validation"
)

var (
	// ErrNoPlan is returned when no plan was generated in the last 24 hours.
	ErrNoPlan = errors.New("no current plan")
	// ErrNoSavedPlan is returned when the user has never saved a plan.
	ErrNoSavedPlan = errors.New("no saved plan")
)

// Planner generates plans. The backend client satisfies it.
type Planner interface {
	GeneratePlan(ctx context.Context, req models.PlanRequest) (models.Plan, error)
}

// GeneratedPlan is the most recent plan together with how it was produced.
type GeneratedPlan struct {
	Plan        models.Plan        `json:"plan"`
	Inputs      models.PlanRequest `json:"inputs"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// Service provides the planning workflow: inputs, generation, the current
// plan and the saved snapshot.
type Service struct {
	db      *database.DB
	planner Planner
	cache   cache.Cache
	logger  zerolog.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache keeps generated plans in c. Without it only saved plans survive.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new service instance.
func NewService(db *database.DB, planner Planner, opts ...Option) *Service {
	s := &Service{
		db:      db,
		planner: planner,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate validates and stores the inputs, asks the planner for a plan and
// keeps it as the current plan.
func (s *Service) Generate(ctx context.Context, req models.PlanRequest) (models.Plan, error) {
	if err := validation.ValidatePlanRequest(req); err != nil {
		return models.Plan{}, err
	}

	if err := s.db.SaveInputs(req); err != nil {
		return models.Plan{}, fmt.Errorf("failed to persist planning inputs: %w", err)
	}

	plan, err := s.planner.GeneratePlan(ctx, req)
	if err != nil {
		return models.Plan{}, err
	}

	if s.cache != nil {
		current := GeneratedPlan{Plan: plan, Inputs: req, GeneratedAt: s.now()}
		if err := cache.SetJSON(ctx, s.cache, cache.KeyCurrentPlan, current, cache.PlanTTL); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache generated plan")
		}
	}

	s.logger.Info().
		Int("offers", len(plan.Offers)).
		Float64("total_bonus", plan.TotalBonus).
		Int("pay_cycles", plan.TotalPayCycles).
		Msg("plan generated")

	return plan, nil
}

// Current returns the plan generated within the last 24 hours.
func (s *Service) Current(ctx context.Context) (GeneratedPlan, error) {
	if s.cache == nil {
		return GeneratedPlan{}, ErrNoPlan
	}

	var current GeneratedPlan
	err := cache.GetJSON(ctx, s.cache, cache.KeyCurrentPlan, &current)
	if errors.Is(err, cache.ErrNotFound) {
		return GeneratedPlan{}, ErrNoPlan
	}
	if err != nil {
		return GeneratedPlan{}, fmt.Errorf("failed to read current plan: %w", err)
	}

	// The cache TTL normally handles this; a clock-skewed Redis might not.
	if s.now().Sub(current.GeneratedAt) >= cache.PlanTTL {
		if err := s.cache.Delete(ctx, cache.KeyCurrentPlan); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drop expired plan")
		}
		return GeneratedPlan{}, ErrNoPlan
	}

	return current, nil
}

// Save snapshots the current plan.
func (s *Service) Save(ctx context.Context) (models.SavedPlan, error) {
	current, err := s.Current(ctx)
	if err != nil {
		return models.SavedPlan{}, err
	}

	saved := models.SavedPlan{
		Plan:    current.Plan,
		Inputs:  current.Inputs,
		SavedAt: s.now(),
	}
	if err := s.db.SavePlan(saved); err != nil {
		return models.SavedPlan{}, err
	}
	return saved, nil
}

// Saved returns the most recently saved plan.
func (s *Service) Saved(ctx context.Context) (models.SavedPlan, error) {
	saved, err := s.db.LoadSavedPlan()
	if errors.Is(err, database.ErrNotFound) {
		return models.SavedPlan{}, ErrNoSavedPlan
	}
	return saved, err
}

// ClearSaved drops every saved plan.
func (s *Service) ClearSaved(ctx context.Context) error {
	n, err := s.db.ClearSavedPlans()
	if err != nil {
		return err
	}
	s.logger.Info().Int("plans", n).Msg("saved plans cleared")
	return nil
}

// Inputs returns the last-used planning inputs, or the defaults.
func (s *Service) Inputs(ctx context.Context) (models.PlanRequest, error) {
	req, err := s.db.LoadInputs()
	if errors.Is(err, database.ErrNotFound) {
		return models.DefaultPlanRequest(), nil
	}
	if err != nil {
		return models.PlanRequest{}, err
	}
	return req, nil
}

// AnnotatedEvent is a timeline event with its display flags.
type AnnotatedEvent struct {
	timeline.Event
	Urgent    bool `json:"urgent"`
	Optimized bool `json:"optimized"`
}

// AnnotatedMonth is one month of the annotated master timeline.
type AnnotatedMonth struct {
	Label  string           `json:"label"`
	Events []AnnotatedEvent `json:"events"`
}

// Timeline builds the master timeline for plan. Deposits due within a week
// are urgent; opens the planner pushed more than a week out are optimized.
func (s *Service) Timeline(plan models.Plan, now time.Time) []AnnotatedMonth {
	timings := make(map[int]models.Timing, len(plan.Timeline))
	for _, item := range plan.Timeline {
		timings[item.Offer.ID] = item.Timing
	}

	groups := timeline.BuildMasterTimeline(plan.Timeline)
	out := make([]AnnotatedMonth, 0, len(groups))
	for _, g := range groups {
		month := AnnotatedMonth{Label: g.Label, Events: make([]AnnotatedEvent, 0, len(g.Events))}
		for _, e := range g.Events {
			ae := AnnotatedEvent{Event: e}
			switch e.Kind {
			case timeline.KindDeposit:
				ae.Urgent = timeline.IsUrgent(e.Date, now)
			case timeline.KindOpen:
				ae.Optimized = timeline.IsOptimized(timings[e.Offer.ID], now)
			}
			month.Events = append(month.Events, ae)
		}
		out = append(out, month)
	}
	return out
}

// Exclusions lists unopened offers the planner left out.
type Exclusions struct {
	Offers  []models.Offer `json:"offers"`
	Expired int            `json:"expired"`
}

// Excluded compares the plan against the unopened offers. Tier variants
// count for the offer they were derived from.
func (s *Service) Excluded(plan models.Plan, offers []models.Offer, now time.Time) Exclusions {
	planned := make(map[int]bool, len(plan.Offers))
	for _, o := range plan.Offers {
		planned[o.ID] = true
		if o.OriginalOfferID != 0 {
			planned[o.OriginalOfferID] = true
		}
	}

	var ex Exclusions
	for _, o := range offerstate.UnopenedOffers(offers) {
		if planned[o.ID] {
			continue
		}
		ex.Offers = append(ex.Offers, o)
		if expired(o, now) {
			ex.Expired++
		}
	}
	return ex
}

func expired(o models.Offer, now time.Time) bool {
	raw := o.Detail(models.FieldDealExpirationDate)
	if raw == "" || raw == models.NotAvailable {
		return false
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return false
	}
	return d.Before(now)
}
