// Package tiers turns the extraction backend's tier text into structured
// bonus tiers and compresses deposit requirement descriptions for display.
package tiers

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Tier is one reward bracket of a multi-tier bonus offer.
type Tier struct {
	TierNumber         int     `json:"tier_number"`
	Bonus              float64 `json:"bonus"`
	DepositAmount      float64 `json:"deposit_amount"`
	DepositDescription string  `json:"deposit_description,omitempty"`
	TotalDeposit       float64 `json:"total_deposit"`
}

var (
	typeTagPattern  = regexp.MustCompile(`(?i)^json\s*`)
	tierLinePattern = regexp.MustCompile(`(?i)tier\s*(\d+)\s*:\s*(?:up\s+to\s+)?\$?\s*(\d[\d,]*(?:\.\d+)?)\s*(k)?\s*bonus\s+(?:for\s+)?\$?\s*(\d[\d,]*(?:\.\d+)?)\s*(k)?\s*deposit`)
)

// ParseTiers parses the detailed tier text together with the optional
// total-deposit-by-tier text. It returns nil when the text does not
// describe any tier.
func ParseTiers(raw, totalByTier string) []Tier {
	if isAbsent(raw) {
		return nil
	}

	if tiers, ok := parseStructured(raw, totalByTier); ok && len(tiers) > 0 {
		return tiers
	}

	return parsePattern(raw)
}

func isAbsent(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return true
	}
	if strings.EqualFold(s, "single tier") || strings.EqualFold(s, "n/a") {
		return true
	}
	return strings.Contains(strings.ToLower(s), "processing")
}

func clean(raw string) string {
	s := strings.ReplaceAll(strings.TrimSpace(raw), "```", "")
	s = typeTagPattern.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.ReplaceAll(s, "'", `"`)
	return strings.TrimSpace(s)
}

func decodeRecords(text string) ([]map[string]any, bool) {
	text = clean(text)
	if strings.HasPrefix(text, "{") {
		text = "[" + text + "]"
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, false
	}

	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		var rec map[string]any
		if err := json.Unmarshal(item, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, true
}

func parseStructured(raw, totalByTier string) ([]Tier, bool) {
	records, ok := decodeRecords(raw)
	if !ok {
		return nil, false
	}

	totals := map[int]float64{}
	if !isAbsent(totalByTier) {
		// A malformed total list only loses the totals.
		if deposits, ok := decodeRecords(totalByTier); ok {
			for _, d := range deposits {
				n, ok := numberOf(lookup(d, "tier", "tier_number"))
				if !ok {
					continue
				}
				if total, ok := numberOf(lookup(d, "total_deposit", "total")); ok {
					totals[int(n)] = total
				}
			}
		}
	}

	result := make([]Tier, 0, len(records))
	for _, rec := range records {
		tier := Tier{TierNumber: 1}
		if n, ok := numberOf(lookup(rec, "tier", "tier_number")); ok && n > 0 {
			tier.TierNumber = int(n)
		}
		tier.Bonus, _ = numberOf(lookup(rec, "bonus", "bonus_amount"))

		switch deposit := lookup(rec, "deposit", "deposit_amount").(type) {
		case float64:
			tier.DepositAmount = deposit
		case string:
			tier.DepositDescription = strings.TrimSpace(deposit)
			if amount, ok := extractAmount(deposit); ok {
				tier.DepositAmount = amount
			}
		}

		tier.TotalDeposit = tier.DepositAmount
		if total, ok := totals[tier.TierNumber]; ok {
			tier.TotalDeposit = total
		}

		result = append(result, tier)
	}

	return result, true
}

func parsePattern(raw string) []Tier {
	matches := tierLinePattern.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil
	}

	result := make([]Tier, 0, len(matches))
	for _, m := range matches {
		number := int(parseNumber(m[1]))
		bonus := parseNumber(m[2])
		if m[3] != "" {
			bonus *= 1000
		}
		deposit := parseNumber(m[4])
		if m[5] != "" {
			deposit *= 1000
		}
		result = append(result, Tier{
			TierNumber:    number,
			Bonus:         bonus,
			DepositAmount: deposit,
			TotalDeposit:  deposit,
		})
	}
	return result
}

func lookup(rec map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func numberOf(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		return extractAmount(t)
	default:
		return 0, false
	}
}
