// Package timeline merges the per-offer schedules of a generated plan into a
// single chronological list of actions.
package timeline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/tiers"
)

// Kind is the action an event asks the user to take.
type Kind string

const (
	KindOpen    Kind = "open"
	KindDeposit Kind = "deposit"
	KindBonus   Kind = "bonus"
	KindClose   Kind = "close"
)

// urgencyWindow and optimizedWindow are both one week.
const (
	urgencyWindow   = 7
	optimizedWindow = 7
)

// Event is one dated action in the master timeline.
type Event struct {
	Date        time.Time    `json:"date"`
	Kind        Kind         `json:"kind"`
	Offer       models.Offer `json:"offer"`
	Amount      float64      `json:"amount,omitempty"`
	Sequence    int          `json:"sequence,omitempty"`
	Description string       `json:"description"`
}

// MonthGroup holds the events falling in one calendar month.
type MonthGroup struct {
	Label  string     `json:"label"`
	Year   int        `json:"year"`
	Month  time.Month `json:"month"`
	Events []Event    `json:"events"`
}

// Events expands every timeline item into its dated actions, sorted by date.
// Events on the same date keep the order of the plan.
func Events(items []models.TimelineItem) []Event {
	var events []Event
	for _, item := range items {
		events = append(events, expand(item)...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})
	return events
}

// BuildMasterTimeline merges all plan items into month buckets in
// chronological order.
func BuildMasterTimeline(items []models.TimelineItem) []MonthGroup {
	var groups []MonthGroup
	for _, e := range Events(items) {
		y, m, _ := e.Date.Date()
		if n := len(groups); n > 0 && groups[n-1].Year == y && groups[n-1].Month == m {
			groups[n-1].Events = append(groups[n-1].Events, e)
			continue
		}
		groups = append(groups, MonthGroup{
			Label:  fmt.Sprintf("%s %d", m, y),
			Year:   y,
			Month:  m,
			Events: []Event{e},
		})
	}
	return groups
}

func expand(item models.TimelineItem) []Event {
	offer := item.Offer
	timing := item.Timing
	bank := offer.Detail(models.FieldBankName)

	events := []Event{{
		Date:        timing.AccountOpenDate.Time,
		Kind:        KindOpen,
		Offer:       offer,
		Description: fmt.Sprintf("Open %s account", bank),
	}}

	if timing.DepositsRequired > 1 && len(timing.DepositDates) > 0 {
		for _, d := range timing.DepositDates {
			events = append(events, Event{
				Date:        d.Date.Time,
				Kind:        KindDeposit,
				Offer:       offer,
				Amount:      d.Amount,
				Sequence:    d.Number,
				Description: fmt.Sprintf("Make deposit %d (%s) to %s", d.Number, tiers.FormatDollars(d.Amount), bank),
			})
		}
	} else {
		var amount float64
		if len(timing.DepositDates) > 0 {
			amount = timing.DepositDates[0].Amount
		}
		events = append(events, Event{
			Date:        timing.DepositDeadline.Time,
			Kind:        KindDeposit,
			Offer:       offer,
			Amount:      amount,
			Sequence:    1,
			Description: fmt.Sprintf("Make deposit (%s) to %s", tiers.FormatDollars(amount), bank),
		})
	}

	events = append(events, Event{
		Date:        timing.BonusPayoutDate.Time,
		Kind:        KindBonus,
		Offer:       offer,
		Description: fmt.Sprintf("Bonus payout from %s", bank),
	})

	if timing.AccountCloseDate != nil && !timing.AccountCloseDate.IsZero() {
		events = append(events, Event{
			Date:        timing.AccountCloseDate.Time,
			Kind:        KindClose,
			Offer:       offer,
			Description: fmt.Sprintf("Can close %s account", bank),
		})
	}

	return events
}

// daysUntil rounds up partial days, so anything later today counts as one.
func daysUntil(t, now time.Time) int {
	return int(math.Ceil(t.Sub(now).Hours() / 24))
}

// IsOptimized reports whether the planner deliberately delayed opening the
// account by more than a week.
func IsOptimized(timing models.Timing, now time.Time) bool {
	return daysUntil(timing.AccountOpenDate.Time, now) > optimizedWindow
}

// IsUrgent reports whether a deposit deadline is at most a week away.
func IsUrgent(deadline time.Time, now time.Time) bool {
	return daysUntil(deadline, now) <= urgencyWindow
}
