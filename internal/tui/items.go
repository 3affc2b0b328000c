package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"

	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/offerstate"
	"github.com/sacrosaunt/churnchurnchurn/internal/tiers"
)

// offerItem adapts an offer to the bubbles list.
type offerItem struct {
	offer   models.Offer
	status  offerstate.DisplayStatus
	urgency offerstate.Urgency
	badge   string
}

func (i offerItem) Title() string {
	bank := i.offer.Detail(models.FieldBankName)
	if bank == "" || bank == models.ProcessingValue {
		bank = i.offer.URL
	}
	if title := i.offer.Detail(models.FieldAccountTitle); title != "" && title != models.NotAvailable && title != models.ProcessingValue {
		bank += " · " + title
	}
	return bank
}

func (i offerItem) Description() string {
	parts := []string{i.badge}

	if i.status == offerstate.Processing {
		if step := i.offer.ProcessingStep; step != "" {
			parts = append(parts, step)
		}
		return strings.Join(parts, "  ")
	}

	if bonus := offerstate.HeadlineBonus(i.offer); bonus > 0 {
		parts = append(parts, tiers.FormatDollars(bonus))
	}
	switch i.urgency {
	case offerstate.UrgencyExpired:
		parts = append(parts, "expired")
	case offerstate.UrgencyImminent, offerstate.UrgencySoon:
		parts = append(parts, "expires "+i.offer.Detail(models.FieldDealExpirationDate))
	}
	if i.offer.IsRefreshing() {
		parts = append(parts, "refreshing")
	}
	return strings.Join(parts, "  ")
}

func (i offerItem) FilterValue() string {
	return i.offer.Detail(models.FieldBankName) + " " + i.offer.URL
}

func (m *Model) buildItems(now time.Time) []list.Item {
	offers := offerstate.Sort(m.engine.Store().All(), m.sortBy, m.ascending)
	items := make([]list.Item, 0, len(offers))
	for _, o := range offers {
		status := offerstate.Derive(o)
		items = append(items, offerItem{
			offer:   o,
			status:  status,
			urgency: offerstate.ExpirationUrgency(o, now),
			badge:   m.theme.badge(status),
		})
	}
	return items
}

func (m *Model) listTitle() string {
	totals := offerstate.ComputeTotals(m.engine.Store().All())
	dir := "desc"
	if m.ascending {
		dir = "asc"
	}
	return fmt.Sprintf("Offers · sort %s %s · claimed %s · pending %s",
		m.sortBy, dir, tiers.FormatDollars(totals.Claimed), tiers.FormatDollars(totals.Pending))
}
