package tiers

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	upToPattern   = regexp.MustCompile(`(?i)up to\s*\$?\s*(\d[\d,]*(?:\.\d+)?)`)
	numberPattern = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)(?:\s?([kK])\b)?`)
	dollarPattern = regexp.MustCompile(`\$\s?(\d[\d,]*(?:\.\d+)?)(?:\s?([kK])\b)?`)

	printer = message.NewPrinter(language.English)
)

// ParseBonusAmount extracts the bonus value from free text. An "up to"
// amount wins over the first number in the text.
func ParseBonusAmount(text string) float64 {
	if text == "" {
		return 0
	}

	if m := upToPattern.FindStringSubmatch(text); m != nil {
		return parseNumber(m[1])
	}

	if m := numberPattern.FindStringSubmatch(text); m != nil {
		return parseNumber(m[1])
	}

	return 0
}

// extractAmount returns the first dollar amount in text, falling back to
// the first bare number. A trailing K multiplies by a thousand.
func extractAmount(text string) (float64, bool) {
	for _, re := range []*regexp.Regexp{dollarPattern, numberPattern} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		amount := parseNumber(m[1])
		if m[2] != "" {
			amount *= 1000
		}
		return amount, true
	}
	return 0, false
}

func parseNumber(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// FormatDollars renders amount with thousands separators, e.g. "$15,000".
func FormatDollars(amount float64) string {
	if amount == math.Trunc(amount) {
		return printer.Sprintf("$%d", int64(amount))
	}
	return printer.Sprintf("$%.2f", amount)
}
