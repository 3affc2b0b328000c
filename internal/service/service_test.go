package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sacrosaunt/churnchurnchurn/internal/backend"
	"github.com/sacrosaunt/churnchurnchurn/internal/cache"
	"github.com/sacrosaunt/churnchurnchurn/internal/database"
	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/timeline"
	"github.com/sacrosaunt/churnchurnchurn/internal/validation"
)

func setupTestDB(t *testing.T) (*database.DB, func()) {
	dbPath := filepath.Join(os.TempDir(), "churn_service_"+uuid.NewString()+".db")
	db, err := database.NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}

	return db, cleanup
}

type fakePlanner struct {
	plan  models.Plan
	err   error
	calls []models.PlanRequest
}

func (p *fakePlanner) GeneratePlan(ctx context.Context, req models.PlanRequest) (models.Plan, error) {
	p.calls = append(p.calls, req)
	return p.plan, p.err
}

func day(y int, m time.Month, d int) models.Date {
	return models.NewDate(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func TestGenerate_PersistsAndCaches(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	planner := &fakePlanner{plan: models.Plan{TotalBonus: 500, TotalPayCycles: 2}}
	c := cache.NewInMemoryCache().WithClock(func() time.Time { return now })
	svc := NewService(db, planner, WithCache(c), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	req := models.PlanRequest{PayCycleDays: 14, AveragePaycheck: 3000, AccountsPerPaycycle: 3}
	plan, err := svc.Generate(ctx, req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if plan.TotalBonus != 500 {
		t.Errorf("Expected total bonus 500, got %v", plan.TotalBonus)
	}

	inputs, err := svc.Inputs(ctx)
	if err != nil || inputs != req {
		t.Errorf("Expected inputs %+v to persist, got %+v (%v)", req, inputs, err)
	}

	current, err := svc.Current(ctx)
	if err != nil {
		t.Fatalf("Expected current plan, got %v", err)
	}
	if current.Inputs != req || !current.GeneratedAt.Equal(now) {
		t.Errorf("Unexpected current plan %+v", current)
	}

	now = now.Add(25 * time.Hour)
	if _, err := svc.Current(ctx); !errors.Is(err, ErrNoPlan) {
		t.Errorf("Expected ErrNoPlan after 24h, got %v", err)
	}
}

type failingDeleteCache struct {
	*cache.InMemoryCache
}

func (c failingDeleteCache) Delete(ctx context.Context, key string) error {
	return errors.New("connection reset")
}

func TestCurrent_ExpiredPlanDeleteFailureIsLogged(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	generated := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	now := generated
	var buf bytes.Buffer
	c := failingDeleteCache{cache.NewInMemoryCache().WithClock(func() time.Time { return generated })}
	svc := NewService(db, &fakePlanner{plan: models.Plan{TotalBonus: 500}},
		WithCache(c),
		WithClock(func() time.Time { return now }),
		WithLogger(zerolog.New(&buf)),
	)
	ctx := context.Background()

	if _, err := svc.Generate(ctx, models.PlanRequest{PayCycleDays: 14, AveragePaycheck: 3000, AccountsPerPaycycle: 3}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	now = now.Add(25 * time.Hour)
	if _, err := svc.Current(ctx); !errors.Is(err, ErrNoPlan) {
		t.Errorf("Expected ErrNoPlan after 24h, got %v", err)
	}
	if !strings.Contains(buf.String(), `"level":"warn"`) || !strings.Contains(buf.String(), "connection reset") {
		t.Errorf("Expected a warning for the failed delete, got %s", buf.String())
	}
}

func TestGenerate_RejectsInvalidInputs(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	planner := &fakePlanner{}
	svc := NewService(db, planner)

	_, err := svc.Generate(context.Background(), models.PlanRequest{PayCycleDays: 3, AveragePaycheck: 2000, AccountsPerPaycycle: 2})

	var ve *validation.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if len(planner.calls) != 0 {
		t.Errorf("Expected planner not to be called")
	}
}

func TestGenerate_BackendNotFoundSurfaces(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	planner := &fakePlanner{err: &backend.APIError{StatusCode: 404, Message: "No unopened offers available for planning"}}
	svc := NewService(db, planner, WithCache(cache.NewInMemoryCache()))
	ctx := context.Background()

	_, err := svc.Generate(ctx, models.DefaultPlanRequest())
	if !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("Expected not found, got %v", err)
	}
	if err.Error() != "No unopened offers available for planning" {
		t.Errorf("Expected backend message, got %q", err.Error())
	}
	if _, err := svc.Current(ctx); !errors.Is(err, ErrNoPlan) {
		t.Errorf("Expected no cached plan after failure, got %v", err)
	}
}

func TestInputs_Defaults(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := NewService(db, &fakePlanner{})
	got, err := svc.Inputs(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != models.DefaultPlanRequest() {
		t.Errorf("Expected defaults, got %+v", got)
	}
}

func TestSaveAndSaved(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(db, &fakePlanner{plan: models.Plan{TotalBonus: 800}},
		WithCache(cache.NewInMemoryCache()),
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	if _, err := svc.Save(ctx); !errors.Is(err, ErrNoPlan) {
		t.Errorf("Expected ErrNoPlan before generating, got %v", err)
	}
	if _, err := svc.Saved(ctx); !errors.Is(err, ErrNoSavedPlan) {
		t.Errorf("Expected ErrNoSavedPlan, got %v", err)
	}

	if _, err := svc.Generate(ctx, models.DefaultPlanRequest()); err != nil {
		t.Fatalf("Failed to generate: %v", err)
	}
	if _, err := svc.Save(ctx); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	saved, err := svc.Saved(ctx)
	if err != nil {
		t.Fatalf("Expected saved plan, got %v", err)
	}
	if saved.Plan.TotalBonus != 800 || !saved.SavedAt.Equal(now) {
		t.Errorf("Unexpected saved plan %+v", saved)
	}

	if err := svc.ClearSaved(ctx); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}
	if _, err := svc.Saved(ctx); !errors.Is(err, ErrNoSavedPlan) {
		t.Errorf("Expected ErrNoSavedPlan after clear, got %v", err)
	}
}

func TestTimeline_Annotations(t *testing.T) {
	svc := NewService(nil, &fakePlanner{})
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	soon := models.Offer{ID: 1, Details: models.Details{models.FieldBankName: "Soon Bank"}}
	later := models.Offer{ID: 2, Details: models.Details{models.FieldBankName: "Later Bank"}}
	plan := models.Plan{Timeline: []models.TimelineItem{
		{
			Offer: soon,
			Timing: models.Timing{
				AccountOpenDate:  day(2025, 3, 2),
				DepositDeadline:  day(2025, 3, 5),
				DepositDates:     []models.DepositDate{{Date: day(2025, 3, 5), Amount: 500, Number: 1}},
				BonusPayoutDate:  day(2025, 5, 1),
				DepositsRequired: 1,
			},
		},
		{
			Offer: later,
			Timing: models.Timing{
				AccountOpenDate:  day(2025, 3, 20),
				DepositDeadline:  day(2025, 4, 10),
				DepositDates:     []models.DepositDate{{Date: day(2025, 4, 10), Amount: 1000, Number: 1}},
				BonusPayoutDate:  day(2025, 6, 1),
				DepositsRequired: 1,
			},
		},
	}}

	months := svc.Timeline(plan, now)
	if len(months) != 4 {
		t.Fatalf("Expected 4 months, got %d", len(months))
	}
	if months[0].Label != "March 2025" {
		t.Errorf("Expected March 2025 first, got %s", months[0].Label)
	}

	var urgent, optimized []int
	for _, m := range months {
		for _, e := range m.Events {
			if e.Urgent {
				urgent = append(urgent, e.Offer.ID)
			}
			if e.Optimized {
				optimized = append(optimized, e.Offer.ID)
			}
			if e.Kind != timeline.KindDeposit && e.Urgent {
				t.Errorf("Expected only deposits to be urgent, got %s", e.Kind)
			}
		}
	}
	if len(urgent) != 1 || urgent[0] != 1 {
		t.Errorf("Expected offer 1 deposit to be urgent, got %v", urgent)
	}
	if len(optimized) != 1 || optimized[0] != 2 {
		t.Errorf("Expected offer 2 open to be optimized, got %v", optimized)
	}
}

func TestExcluded(t *testing.T) {
	svc := NewService(nil, &fakePlanner{})
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	offers := []models.Offer{
		{ID: 1, Status: models.StatusCompleted},
		{ID: 2, Status: models.StatusCompleted, Details: models.Details{models.FieldDealExpirationDate: "2025-02-01"}},
		{ID: 3, Status: models.StatusCompleted, Details: models.Details{models.FieldDealExpirationDate: models.NotAvailable}},
		{ID: 4, Status: models.StatusCompleted, UserControlled: models.UserControlled{Opened: true}},
		{ID: 5, Status: models.StatusProcessing},
		{ID: 6, Status: models.StatusCompleted},
	}
	plan := models.Plan{Offers: []models.Offer{
		{ID: 1},
		{ID: 1006, IsTierVariant: true, OriginalOfferID: 6},
	}}

	ex := svc.Excluded(plan, offers, now)
	if len(ex.Offers) != 2 {
		t.Fatalf("Expected 2 excluded offers, got %d", len(ex.Offers))
	}
	if ex.Offers[0].ID != 2 || ex.Offers[1].ID != 3 {
		t.Errorf("Expected offers 2 and 3, got %d and %d", ex.Offers[0].ID, ex.Offers[1].ID)
	}
	if ex.Expired != 1 {
		t.Errorf("Expected 1 expired, got %d", ex.Expired)
	}
}
