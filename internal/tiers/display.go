package tiers

import (
	"math"

	"github.com/sacrosaunt/churnchurnchurn/internal/models"
)

// OfferTiers returns the tiers of a multi-tier offer, or nil when the offer
// has a single tier.
func OfferTiers(offer models.Offer) []Tier {
	raw := offer.Detail(models.FieldBonusTiersDetailed)
	if isAbsent(raw) {
		raw = offer.Detail(models.FieldBonusTiers)
	}

	tiers := ParseTiers(raw, offer.Detail(models.FieldTotalDepositByTier))
	if len(tiers) <= 1 {
		return nil
	}
	return tiers
}

// DisplayBonus picks the headline bonus for a tiered offer. The tier sum is
// used when it agrees with the extracted bonus to within $10.
func DisplayBonus(tiers []Tier, bonus float64) float64 {
	if len(tiers) == 0 {
		return bonus
	}

	var sum float64
	for _, t := range tiers {
		sum += t.Bonus
	}
	if math.Abs(sum-bonus) <= 10 {
		return sum
	}
	return bonus
}

// DepositText renders a tier's deposit requirement for display.
func DepositText(t Tier) string {
	if t.DepositDescription != "" {
		return ShortenDescription(t.DepositDescription)
	}
	if t.DepositAmount == 0 {
		return SeeRequirements
	}
	return FormatDollars(t.DepositAmount) + " deposit"
}
