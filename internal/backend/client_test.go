package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/sacrosaunt/churnchurnchurn/internal/models"
)

func newTestClient(t *testing.T, r http.Handler) *Client {
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestListOffers_KeepsDetailOrder(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/offers", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(RequestIDHeader) == "" {
			t.Errorf("Expected a request id header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 1, "url": "https://bank.example", "status": "completed",
			"user_controlled": {"opened": false, "deposited": false, "received": false},
			"details": {"days_for_bonus": 90, "bank_name": "Chase", "fee_is_conditional": true}}]`))
	})

	offers, err := newTestClient(t, r).ListOffers(context.Background())
	if err != nil {
		t.Fatalf("Failed to list offers: %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("Expected 1 offer, got %d", len(offers))
	}

	got := offers[0].FieldOrder()
	want := []string{"days_for_bonus", "bank_name", "fee_is_conditional"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected field %d to be %s, got %s", i, want[i], got[i])
		}
	}
	if offers[0].Detail(models.FieldDaysForBonus) != "90" {
		t.Errorf("Expected numeric detail to become '90', got %q", offers[0].Detail(models.FieldDaysForBonus))
	}
	if offers[0].Detail(models.FieldFeeIsConditional) != "true" {
		t.Errorf("Expected boolean detail to become 'true', got %q", offers[0].Detail(models.FieldFeeIsConditional))
	}
}

func TestGetOffer_NotFound(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/offers/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Offer not found"})
	})

	_, err := newTestClient(t, r).GetOffer(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if err.Error() != "Offer not found" {
		t.Errorf("Expected backend message, got %q", err.Error())
	}
}

func TestCreateOffer_Duplicate(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/offers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":              "This offer already exists",
			"duplicate_offer_id": 3,
			"duplicate_offer": map[string]any{
				"id":      3,
				"url":     "https://bank.example/bonus",
				"status":  "completed",
				"details": map[string]any{"bank_name": "Chase"},
			},
		})
	})

	_, err := newTestClient(t, r).CreateOffer(context.Background(), models.CreateOfferRequest{URL: "https://bank.example/bonus"})

	var dup *DuplicateOfferError
	if !errors.As(err, &dup) {
		t.Fatalf("Expected DuplicateOfferError, got %v", err)
	}
	if dup.ExistingID != 3 {
		t.Errorf("Expected existing id 3, got %d", dup.ExistingID)
	}
	if dup.Existing.Detail(models.FieldBankName) != "Chase" {
		t.Errorf("Expected preview bank name Chase, got %q", dup.Existing.Detail(models.FieldBankName))
	}
}

func TestUpdateField_Rejection(t *testing.T) {
	r := chi.NewRouter()
	r.Put("/api/offers/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{Error: "Invalid URL"})
	})

	_, err := newTestClient(t, r).SetURL(context.Background(), 1, "not a url")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.Message != "Invalid URL" {
		t.Errorf("Unexpected error: %+v", apiErr)
	}
}

func TestAPIError_DefaultMessage(t *testing.T) {
	r := chi.NewRouter()
	r.Delete("/api/offers/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := newTestClient(t, r).DeleteOffer(context.Background(), 9)
	if err == nil || err.Error() != "request failed (HTTP 500)" {
		t.Errorf("Expected 'request failed (HTTP 500)', got %v", err)
	}
}

func TestReprocess_RequestBody(t *testing.T) {
	var got models.CreateOfferRequest
	r := chi.NewRouter()
	r.Post("/api/offers", func(w http.ResponseWriter, r *http.Request) {
		got = models.CreateOfferRequest{}
		json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, models.Offer{ID: got.RefreshOfferID, Status: models.StatusProcessing})
	})
	client := newTestClient(t, r)

	offer, err := client.Reprocess(context.Background(), models.Offer{ID: 5, URL: "https://bank.example"})
	if err != nil {
		t.Fatalf("Failed to reprocess: %v", err)
	}
	if got.RefreshOfferID != 5 || got.URL != "https://bank.example" {
		t.Errorf("Unexpected request body: %+v", got)
	}
	if !offer.IsProcessing() {
		t.Errorf("Expected returned offer to be processing")
	}

	manual := models.Offer{ID: 6, URL: "manual-content-6", OriginalContent: "Earn $300 with direct deposit"}
	if _, err := client.Reprocess(context.Background(), manual); err != nil {
		t.Fatalf("Failed to reprocess manual offer: %v", err)
	}
	if got.URL != "" || got.Content != manual.OriginalContent {
		t.Errorf("Expected stored content and no url for a manual offer, got %+v", got)
	}
}

func TestRefreshField_Accepted(t *testing.T) {
	var field string
	r := chi.NewRouter()
	r.Post("/api/offers/{id}/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req models.RefreshFieldRequest
		json.NewDecoder(r.Body).Decode(&req)
		field = req.Field
		writeJSON(w, http.StatusAccepted, models.RefreshFieldResponse{Status: "refreshing", Field: req.Field})
	})

	if err := newTestClient(t, r).RefreshField(context.Background(), 2, models.FieldBonusToBeReceived); err != nil {
		t.Fatalf("Failed to refresh field: %v", err)
	}
	if field != models.FieldBonusToBeReceived {
		t.Errorf("Expected field %s, got %s", models.FieldBonusToBeReceived, field)
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := New(url)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	_, err = client.ListOffers(context.Background())

	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("Expected NetworkError, got %v", err)
	}
	if ne.Op != "list_offers" {
		t.Errorf("Expected op list_offers, got %s", ne.Op)
	}
	if !IsNetworkError(err) {
		t.Errorf("Expected IsNetworkError to be true")
	}
}

func TestGeneratePlan_DecodesDates(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/planning/generate", func(w http.ResponseWriter, r *http.Request) {
		var req models.PlanRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.PayCycleDays != 14 {
			t.Errorf("Expected pay cycle 14, got %d", req.PayCycleDays)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"offers": [], "total_bonus": 900, "timeline": [{"position": 1, "pay_cycle": 1,
			"offer": {"id": 1, "details": {"bank_name": "Chase"}},
			"start_date": "Mon, 05 Jan 2026 00:00:00 GMT",
			"estimated_completion": "2026-04-05T00:00:00",
			"timing": {"account_open_date": "2026-01-05T00:00:00", "deposit_deadline": "2026-02-04",
				"deposit_dates": [{"date": "2026-01-20T00:00:00", "amount": 500, "number": 1}],
				"account_close_date": null, "bonus_payout_date": "2026-04-05", "deposits_required": 1}}]}`))
	})

	plan, err := newTestClient(t, r).GeneratePlan(context.Background(), models.DefaultPlanRequest())
	if err != nil {
		t.Fatalf("Failed to generate plan: %v", err)
	}
	if plan.TotalBonus != 900 || len(plan.Timeline) != 1 {
		t.Fatalf("Unexpected plan: %+v", plan)
	}
	item := plan.Timeline[0]
	if item.StartDate.Day() != 5 || item.Timing.DepositDeadline.Month() != 2 {
		t.Errorf("Unexpected dates: %v, %v", item.StartDate, item.Timing.DepositDeadline)
	}
	if item.Timing.AccountCloseDate != nil {
		t.Errorf("Expected nil close date, got %v", item.Timing.AccountCloseDate)
	}
}
