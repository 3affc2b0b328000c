package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PlanRequest holds the planning inputs sent to the backend.
type PlanRequest struct {
	PayCycleDays        int     `json:"pay_cycle_days"`
	AveragePaycheck     float64 `json:"average_paycheck"`
	AccountsPerPaycycle int     `json:"accounts_per_paycycle"`
}

// DefaultPlanRequest returns the inputs used before the user picks any.
func DefaultPlanRequest() PlanRequest {
	return PlanRequest{
		PayCycleDays:        14,
		AveragePaycheck:     2000,
		AccountsPerPaycycle: 2,
	}
}

// Plan is a generated schedule for opening offers across pay cycles.
type Plan struct {
	Offers              []Offer         `json:"offers"`
	Timeline            []TimelineItem  `json:"timeline"`
	TotalBonus          float64         `json:"total_bonus"`
	TotalMonthlyFees    float64         `json:"total_monthly_fees"`
	EstimatedDuration   int             `json:"estimated_duration"`
	TotalPayCycles      int             `json:"total_pay_cycles"`
	AccountsPerPaycycle int             `json:"accounts_per_paycycle"`
	TierSelections      []TierSelection `json:"tier_selections,omitempty"`
}

// TimelineItem places one offer in the plan.
type TimelineItem struct {
	Offer               Offer  `json:"offer"`
	Position            int    `json:"position"`
	StartDate           Date   `json:"start_date"`
	EstimatedCompletion Date   `json:"estimated_completion"`
	PayCycle            int    `json:"pay_cycle"`
	Timing              Timing `json:"timing"`
}

// Timing is the per-offer action schedule computed by the planner.
type Timing struct {
	AccountOpenDate  Date          `json:"account_open_date"`
	DepositDeadline  Date          `json:"deposit_deadline"`
	DepositDates     []DepositDate `json:"deposit_dates"`
	AccountCloseDate *Date         `json:"account_close_date"`
	BonusPayoutDate  Date          `json:"bonus_payout_date"`
	DaysForDeposit   int           `json:"days_for_deposit"`
	HoldingPeriod    int           `json:"holding_period"`
	DepositsRequired int           `json:"deposits_required"`
}

// DepositDate is one scheduled deposit.
type DepositDate struct {
	Date   Date    `json:"date"`
	Amount float64 `json:"amount"`
	Number int     `json:"number"`
}

// TierSelection records which tier the planner picked for a multi-tier offer.
type TierSelection struct {
	BankName        string  `json:"bank_name"`
	OriginalOfferID int     `json:"original_offer_id"`
	SelectedTier    string  `json:"selected_tier"`
	BonusAmount     float64 `json:"bonus_amount"`
	DepositAmount   float64 `json:"deposit_amount"`
}

// Date is a calendar timestamp that tolerates the formats the backend emits.
type Date struct {
	time.Time
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseDate parses s using every layout the backend is known to produce.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, fmt.Errorf("unrecognized date %q", s)
}

// NewDate wraps t.
func NewDate(t time.Time) Date {
	return Date{Time: t}
}

// UnmarshalJSON decodes a date string or null.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = Date{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}

	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON encodes the date as RFC 3339, or null when unset.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(time.RFC3339))
}

// SavedPlan is a plan the user chose to keep, with the inputs it came from.
type SavedPlan struct {
	Plan    Plan        `json:"plan"`
	Inputs  PlanRequest `json:"inputs"`
	SavedAt time.Time   `json:"saved_at"`
}
