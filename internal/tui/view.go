package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sacrosaunt/churnchurnchurn/internal/considerations"
	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/offerstate"
	"github.com/sacrosaunt/churnchurnchurn/internal/refresh"
	"github.com/sacrosaunt/churnchurnchurn/internal/tiers"
	"github.com/sacrosaunt/churnchurnchurn/internal/timeline"
)

func (m Model) View() string {
	var content string
	switch m.screen {
	case screenDetail, screenPlan:
		content = m.theme.panel.Render(m.detail.View())
	default:
		content = m.list.View()
	}

	parts := []string{m.renderHeader(), content}
	if m.mode != inputNone {
		parts = append(parts, m.theme.panel.Render(m.input.View()))
	}
	parts = append(parts, m.renderFooter())

	return m.theme.root.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) renderHeader() string {
	title := "churnchurnchurn"
	switch m.screen {
	case screenDetail:
		title += " · offer"
	case screenPlan:
		title += " · plan"
	}

	busy := m.inflight || m.engine.Tracker().Active()
	for _, o := range m.engine.Store().All() {
		if o.IsProcessing() {
			busy = true
			break
		}
	}
	if busy {
		title += " " + m.spinner.View()
	}
	return m.theme.header.Render(title)
}

func (m Model) renderFooter() string {
	status := m.theme.status.Render(m.statusLine)
	if m.statusErr {
		status = m.theme.errorStatus.Render(m.statusLine)
	}

	var help string
	switch {
	case m.mode != inputNone:
		help = "enter submit · esc cancel"
	case m.screen == screenDetail:
		help = helpLine(m.keys.Back, m.keys.Up, m.keys.Down, m.keys.Refresh, m.keys.Status, m.keys.Reprocess, m.keys.EditURL, m.keys.Delete)
	case m.screen == screenPlan:
		help = helpLine(m.keys.Back, m.keys.Generate, m.keys.Save, m.keys.Load, m.keys.Current)
	default:
		help = helpLine(m.keys.Open, m.keys.Add, m.keys.Delete, m.keys.Sort, m.keys.Order, m.keys.Reload, m.keys.Plan, m.keys.Quit)
	}

	return m.theme.footer.Render(status + "\n" + m.theme.helpText.Render(help))
}

// renderDetail fills the viewport for the detail and plan screens.
func (m *Model) renderDetail() {
	switch m.screen {
	case screenDetail:
		offer, ok := m.engine.Store().Get(m.focused)
		if !ok {
			m.detail.SetContent(m.theme.muted.Render("offer not found"))
			return
		}
		m.detail.SetContent(m.renderOffer(offer))
	case screenPlan:
		m.detail.SetContent(m.renderPlan())
	}
}

func (m Model) renderOffer(offer models.Offer) string {
	var b strings.Builder
	status := offerstate.Derive(offer)

	b.WriteString(m.theme.panelTitle.Render(offerItem{offer: offer}.Title()))
	b.WriteString("  " + m.theme.badge(status))
	if bonus := offerstate.HeadlineBonus(offer); bonus > 0 {
		b.WriteString("  " + m.theme.fieldValue.Render(tiers.FormatDollars(bonus)))
	}
	b.WriteString("\n")
	b.WriteString(m.theme.muted.Render(offer.URL) + "\n\n")

	if offer.IsProcessing() {
		p := offerstate.ProcessingProgress(offer)
		fmt.Fprintf(&b, "%s  %s (%d/%d)\n\n", m.progress.ViewAs(p.Percent/100), p.Step, p.Index+1, p.Total)
	}

	fields := detailFields(offer)
	for i, f := range fields {
		label := m.theme.fieldKey.Render(fieldLabel(f))
		if i == m.fieldIndex {
			label = m.theme.fieldPick.Render("› " + fieldLabel(f))
		}
		value := offer.Detail(f)
		if f == models.FieldAdditionalConsiderations {
			value = "see below"
		}
		fmt.Fprintf(&b, "%s: %s", label, m.theme.fieldValue.Render(value))

		stage := m.engine.Tracker().Stage(refresh.Key{OfferID: offer.ID, Field: f})
		switch {
		case stage.InFlight():
			fmt.Fprintf(&b, "  %s %s", m.progress.ViewAs(float64(refresh.Percent(stage))/100), stage)
		case stage == refresh.Done:
			b.WriteString("  " + m.theme.optimized.Render("updated"))
		case stage == refresh.Error:
			b.WriteString("  " + m.theme.urgent.Render("refresh failed"))
		}
		b.WriteString("\n")
	}

	if ts := tiers.OfferTiers(offer); len(ts) > 0 {
		b.WriteString("\n" + m.theme.panelTitle.Render("Tiers") + "\n")
		for _, t := range ts {
			fmt.Fprintf(&b, "  Tier %d: %s bonus, %s\n", t.TierNumber, tiers.FormatDollars(t.Bonus), tiers.DepositText(t))
		}
	}

	raw := offer.Detail(models.FieldAdditionalConsiderations)
	if items := considerations.Parse(raw); len(items) > 0 {
		b.WriteString("\n" + m.theme.panelTitle.Render("Considerations") + "\n")
		for _, it := range items {
			style, ok := m.theme.kinds[it.Kind]
			if !ok {
				style = m.theme.muted
			}
			fmt.Fprintf(&b, "  %s %s\n", style.Render(string(it.Kind)), it.Text)
		}
	} else if considerations.Pending(raw) && !offer.IsProcessing() {
		b.WriteString("\n" + m.theme.muted.Render("No additional considerations.") + "\n")
	}

	return b.String()
}

func (m Model) renderPlan() string {
	if m.plan == nil {
		return m.theme.muted.Render("No plan loaded. Press g to generate, l to load the saved plan.")
	}

	var b strings.Builder
	p := m.plan.plan

	kind := "Generated"
	if m.plan.saved {
		kind = "Saved"
	}
	fmt.Fprintf(&b, "%s %s\n", m.theme.panelTitle.Render(kind+" plan"), m.theme.muted.Render(m.plan.at.Format("Jan 2, 2006 15:04")))
	fmt.Fprintf(&b, "Pay cycle %d days · paycheck %s · %d accounts per cycle\n",
		m.plan.inputs.PayCycleDays, tiers.FormatDollars(m.plan.inputs.AveragePaycheck), m.plan.inputs.AccountsPerPaycycle)
	fmt.Fprintf(&b, "Total bonus %s · monthly fees %s · %d pay cycles · ~%d days\n",
		tiers.FormatDollars(p.TotalBonus), tiers.FormatDollars(p.TotalMonthlyFees), p.TotalPayCycles, p.EstimatedDuration)

	if len(p.TierSelections) > 0 {
		b.WriteString("\n" + m.theme.panelTitle.Render("Tier selections") + "\n")
		for _, ts := range p.TierSelections {
			fmt.Fprintf(&b, "  %s: %s (%s bonus for %s)\n", ts.BankName, ts.SelectedTier,
				tiers.FormatDollars(ts.BonusAmount), tiers.FormatDollars(ts.DepositAmount))
		}
	}

	for _, month := range m.plan.timeline {
		b.WriteString("\n" + m.theme.panelTitle.Render(month.Label) + "\n")
		for _, e := range month.Events {
			line := fmt.Sprintf("  %s  %-8s %s", e.Date.Format("Jan 02"), e.Kind, e.Description)
			switch {
			case e.Urgent:
				line = m.theme.urgent.Render(line + "  due soon")
			case e.Optimized:
				line = m.theme.optimized.Render(line + "  optimized")
			case e.Kind == timeline.KindBonus:
				line = m.theme.fieldValue.Render(line)
			}
			b.WriteString(line + "\n")
		}
	}

	if ex := m.plan.excluded; len(ex.Offers) > 0 {
		fmt.Fprintf(&b, "\n%s\n", m.theme.muted.Render(fmt.Sprintf("%d unopened offers not in this plan (%d expired)", len(ex.Offers), ex.Expired)))
		for _, o := range ex.Offers {
			fmt.Fprintf(&b, "  %s\n", m.theme.muted.Render(offerItem{offer: o}.Title()))
		}
	}

	return b.String()
}

func fieldLabel(field string) string {
	words := strings.Split(field, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
