package offerstate

import (
	"testing"
	"time"

	"github.com/sacrosaunt/churnchurnchurn/internal/models"
)

func offerWith(status models.ProcessingStatus, opened, deposited, received bool) models.Offer {
	return models.Offer{
		Status: status,
		UserControlled: models.UserControlled{
			Opened:    opened,
			Deposited: deposited,
			Received:  received,
		},
	}
}

func TestDerive_Precedence(t *testing.T) {
	tests := []struct {
		name   string
		offer  models.Offer
		expect DisplayStatus
	}{
		{"processing wins over flags", offerWith(models.StatusProcessing, true, true, true), Processing},
		{"failed wins over flags", offerWith(models.StatusFailed, true, true, true), Failed},
		{"received", offerWith(models.StatusCompleted, false, false, true), Claimed},
		{"deposited", offerWith(models.StatusCompleted, true, true, false), Waiting},
		{"opened", offerWith(models.StatusCompleted, true, false, false), PendingDeposit},
		{"nothing set", offerWith(models.StatusCompleted, false, false, false), Unopened},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Derive(tt.offer); got != tt.expect {
				t.Errorf("Expected %s, got %s", tt.expect, got)
			}
		})
	}
}

func TestDerive_TotalOverFlags(t *testing.T) {
	statuses := []models.ProcessingStatus{models.StatusProcessing, models.StatusCompleted, models.StatusFailed}
	valid := map[DisplayStatus]bool{
		Processing: true, Failed: true, Claimed: true, Waiting: true, PendingDeposit: true, Unopened: true,
	}

	for _, st := range statuses {
		for mask := 0; mask < 8; mask++ {
			offer := offerWith(st, mask&1 != 0, mask&2 != 0, mask&4 != 0)
			got := Derive(offer)
			if !valid[got] {
				t.Fatalf("Unexpected status %q for %s/%d", got, st, mask)
			}
			if st == models.StatusCompleted && offer.UserControlled.Received && got != Claimed {
				t.Errorf("Expected claimed whenever received is set, got %s (mask %d)", got, mask)
			}
		}
	}
}

func TestFlagsFor_SetsFullPrefix(t *testing.T) {
	flags := FlagsFor(KeyDeposited)
	if !flags.Opened || !flags.Deposited || flags.Received {
		t.Errorf("Expected opened+deposited only, got %+v", flags)
	}

	if flags := FlagsFor(KeyUnopened); flags.Opened || flags.Deposited || flags.Received {
		t.Errorf("Expected all flags cleared, got %+v", flags)
	}

	if CurrentStatusKey(offerWith(models.StatusCompleted, true, true, false)) != KeyDeposited {
		t.Errorf("Expected current key deposited")
	}
}

func TestUnopenedOffers_ExcludesReceivedAndProcessing(t *testing.T) {
	offers := []models.Offer{
		{ID: 1, Status: models.StatusCompleted},
		{ID: 2, Status: models.StatusProcessing},
		{ID: 3, Status: models.StatusCompleted, UserControlled: models.UserControlled{Received: true}},
		{ID: 4, Status: models.StatusFailed},
		{ID: 5, Status: models.StatusCompleted},
	}

	got := UnopenedOffers(offers)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 5 {
		t.Errorf("Expected offers 1 and 5, got %+v", got)
	}
}

func pct(step, total int) float64 {
	return float64(step) / float64(total) * 100
}

func TestProcessingProgress(t *testing.T) {
	tests := []struct {
		name    string
		offer   models.Offer
		index   int
		percent float64
	}{
		{"exact url step", models.Offer{URL: "https://bank.example", ProcessingStep: "Condensing Terms"}, 2, 50},
		{"prefix match", models.Offer{URL: "https://bank.example", ProcessingStep: "Extracting Details (3/20)"}, 3, pct(4, 6)},
		{"validating content alias", models.Offer{URL: "https://bank.example", ProcessingStep: "Validating Content"}, 1, pct(2, 6)},
		{"manual mode", models.Offer{URL: "manual-content-4", ProcessingStep: "Validating Content"}, 0, pct(1, 5)},
		{"failure step", models.Offer{URL: "https://bank.example", ProcessingStep: "Scraping Failed"}, 4, pct(5, 6)},
		{"done", models.Offer{URL: "manual-content-4", ProcessingStep: "Done"}, 4, 100},
		{"unknown", models.Offer{URL: "https://bank.example", ProcessingStep: "Warming up"}, 0, pct(1, 6)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ProcessingProgress(tt.offer)
			if p.Index != tt.index {
				t.Errorf("Expected index %d, got %d", tt.index, p.Index)
			}
			if p.Percent != tt.percent {
				t.Errorf("Expected percent %v, got %v", tt.percent, p.Percent)
			}
		})
	}
}

func bonusOffer(id int, bonus string, uc models.UserControlled) models.Offer {
	return models.Offer{
		ID:             id,
		Status:         models.StatusCompleted,
		UserControlled: uc,
		Details:        models.Details{models.FieldBonusToBeReceived: bonus},
	}
}

func TestSort(t *testing.T) {
	offers := []models.Offer{
		bonusOffer(1, "$300", models.UserControlled{}),
		bonusOffer(2, "Up to $900", models.UserControlled{}),
		bonusOffer(3, "$500", models.UserControlled{}),
	}

	byID := Sort(offers, SortAll, false)
	if byID[0].ID != 3 || byID[2].ID != 1 {
		t.Errorf("Expected newest first, got %d,%d,%d", byID[0].ID, byID[1].ID, byID[2].ID)
	}

	byBonus := Sort(offers, SortBonus, false)
	if byBonus[0].ID != 2 || byBonus[1].ID != 3 || byBonus[2].ID != 1 {
		t.Errorf("Expected 2,3,1, got %d,%d,%d", byBonus[0].ID, byBonus[1].ID, byBonus[2].ID)
	}

	asc := Sort(offers, SortBonus, true)
	if asc[0].ID != 1 {
		t.Errorf("Expected smallest bonus first when ascending, got %d", asc[0].ID)
	}

	if offers[0].ID != 1 {
		t.Errorf("Expected input slice to be left untouched")
	}
}

func TestSort_ExpirationInvalidLast(t *testing.T) {
	offers := []models.Offer{
		{ID: 1, Details: models.Details{models.FieldDealExpirationDate: "N/A"}},
		{ID: 2, Details: models.Details{models.FieldDealExpirationDate: "2026-03-01"}},
		{ID: 3, Details: models.Details{models.FieldDealExpirationDate: "2026-01-15"}},
	}

	got := Sort(offers, SortExpiration, false)
	if got[0].ID != 3 || got[1].ID != 2 || got[2].ID != 1 {
		t.Errorf("Expected 3,2,1, got %d,%d,%d", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestGroupByStatus(t *testing.T) {
	offers := []models.Offer{
		bonusOffer(1, "$100", models.UserControlled{}),
		bonusOffer(2, "$400", models.UserControlled{}),
		bonusOffer(3, "$250", models.UserControlled{Opened: true, Deposited: true, Received: true}),
		{ID: 4, Status: models.StatusProcessing},
	}

	groups := GroupByStatus(offers, true)
	if len(groups) != 3 {
		t.Fatalf("Expected 3 groups, got %d", len(groups))
	}
	if groups[0].Status != Unopened || groups[1].Status != Processing || groups[2].Status != Claimed {
		t.Errorf("Unexpected group order: %s, %s, %s", groups[0].Status, groups[1].Status, groups[2].Status)
	}
	if groups[0].Offers[0].ID != 2 {
		t.Errorf("Expected largest bonus first inside a group, got %d", groups[0].Offers[0].ID)
	}

	reversed := GroupByStatus(offers, false)
	if reversed[0].Status != Claimed {
		t.Errorf("Expected claimed first when descending, got %s", reversed[0].Status)
	}
}

func TestComputeTotals(t *testing.T) {
	offers := []models.Offer{
		bonusOffer(1, "$300", models.UserControlled{Opened: true, Deposited: true, Received: true}),
		bonusOffer(2, "$200", models.UserControlled{Opened: true, Deposited: true}),
		bonusOffer(3, "$900", models.UserControlled{Opened: true}),
	}

	totals := ComputeTotals(offers)
	if totals.Claimed != 300 {
		t.Errorf("Expected claimed 300, got %v", totals.Claimed)
	}
	if totals.Pending != 200 {
		t.Errorf("Expected pending 200, got %v", totals.Pending)
	}
}

func TestExpirationUrgency(t *testing.T) {
	now := time.Date(2026, 1, 10, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		date   string
		expect Urgency
	}{
		{"2026-01-09", UrgencyExpired},
		{"2026-01-10", UrgencyExpired},
		{"2026-01-12", UrgencyImminent},
		{"2026-01-16", UrgencySoon},
		{"2026-02-20", UrgencyNone},
		{"N/A", UrgencyNone},
	}

	for _, tt := range tests {
		offer := models.Offer{Details: models.Details{models.FieldDealExpirationDate: tt.date}}
		if got := ExpirationUrgency(offer, now); got != tt.expect {
			t.Errorf("%s: expected %s, got %s", tt.date, tt.expect, got)
		}
	}

	deposited := models.Offer{
		UserControlled: models.UserControlled{Opened: true, Deposited: true},
		Details:        models.Details{models.FieldDealExpirationDate: "2026-01-09"},
	}
	if got := ExpirationUrgency(deposited, now); got != UrgencyNone {
		t.Errorf("Expected no urgency once deposited, got %s", got)
	}
}
