package tiers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SeeRequirements is shown when a deposit requirement cannot be summarized.
const SeeRequirements = "See requirements"

const maxDescriptionLen = 40

// rule is one predicate/transform pair of the shortening rule list.
// apply may return "" to let the next rule try.
type rule struct {
	name  string
	match func(text string) []string
	apply func(m []string, text string) string
}

func patternRule(name string, re *regexp.Regexp, apply func(m []string, text string) string) rule {
	return rule{name: name, match: re.FindStringSubmatch, apply: apply}
}

var (
	directDepositPattern   = regexp.MustCompile(`(?i)direct\s+deposit`)
	dollarMaintainPattern  = regexp.MustCompile(`(?i)\$(\d[\d,]*(?:\.\d+)?)\s*(k)?\s*\+\s*maintain(?:\s+(?:for\s+)?(\d+)\s*days?)?`)
	openBothPattern        = regexp.MustCompile(`(?i)open\s+both.*accounts`)
	composeMaintainPattern = regexp.MustCompile(`(?i)maintain.*?(\d+)\s*days`)
	depositMaintainPattern = regexp.MustCompile(`(?i)deposit.*?\$(\d[\d,]*(?:\.\d+)?)(?:\s?(k)\b)?.*?maintain.*?(\d+)\s*days`)
	depositPattern         = regexp.MustCompile(`(?i)deposit.*?\$(\d[\d,]*(?:\.\d+)?)(?:\s?(k)\b)?`)
	maintainPattern        = regexp.MustCompile(`(?i)maintain.*?\$(\d[\d,]*(?:\.\d+)?)(?:\s?(k)\b)?.*?(\d+)\s*days`)
	spacePattern           = regexp.MustCompile(`\s+`)
)

var shortenRules = []rule{
	patternRule("direct-deposit", directDepositPattern, func([]string, string) string {
		return "Set up direct deposit"
	}),
	patternRule("dollar-plus-maintain", dollarMaintainPattern, func(m []string, _ string) string {
		amount := scaled(m[1], m[2])
		days, _ := strconv.Atoi(m[3])
		// "$15 + maintain 90 days" is a dropped K.
		if m[2] == "" && amount <= 50 && days > 30 {
			amount *= 1000
		}
		switch {
		case days > 0:
			return fmt.Sprintf("%s + maintain %d days", FormatDollars(amount), days)
		case amount > 100:
			return FormatDollars(amount) + " + maintain balance"
		default:
			return "Maintain minimum balance"
		}
	}),
	patternRule("open-both-accounts", openBothPattern, func(_ []string, text string) string {
		parts := []string{"Open both accounts"}
		if directDepositPattern.MatchString(text) {
			parts = append(parts, "direct deposit")
		}
		if m := dollarPattern.FindStringSubmatch(text); m != nil {
			if amount := scaled(m[1], m[2]); amount > 100 {
				parts = append(parts, FormatDollars(amount)+" deposit")
			}
		}
		if m := composeMaintainPattern.FindStringSubmatch(text); m != nil {
			if days, _ := strconv.Atoi(m[1]); days > 0 {
				parts = append(parts, fmt.Sprintf("maintain %d days", days))
			}
		}
		return strings.Join(parts, " + ")
	}),
	patternRule("deposit-and-maintain", depositMaintainPattern, func(m []string, _ string) string {
		return fmt.Sprintf("%s deposit + maintain %s days", FormatDollars(scaled(m[1], m[2])), m[3])
	}),
	patternRule("deposit", depositPattern, func(m []string, _ string) string {
		return FormatDollars(scaled(m[1], m[2])) + " deposit"
	}),
	patternRule("maintain", maintainPattern, func(m []string, _ string) string {
		return fmt.Sprintf("Maintain %s for %s days", FormatDollars(scaled(m[1], m[2])), m[3])
	}),
}

// filler phrases removed when no rule summarizes the text.
var fillers = []struct {
	re   *regexp.Regexp
	with string
}{
	{regexp.MustCompile(`(?i)at least (\d+|\w+) qualifying`), ""},
	{regexp.MustCompile(`(?i)electronic`), ""},
	{regexp.MustCompile(`(?i)within \d+ days`), ""},
	{regexp.MustCompile(`(?i)from employer.*?benefits`), ""},
	{regexp.MustCompile(`(?i)meet both reqs`), "meet both requirements"},
	{regexp.MustCompile(`(?i)for 0 days`), ""},
}

// ShortenDescription compresses a verbose deposit requirement into a short
// label. The first matching rule wins; otherwise filler is stripped and the
// text is truncated.
func ShortenDescription(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return SeeRequirements
	}

	for _, r := range shortenRules {
		m := r.match(text)
		if m == nil {
			continue
		}
		if out := r.apply(m, text); out != "" {
			return out
		}
	}

	return compress(text)
}

func compress(text string) string {
	for _, f := range fillers {
		text = f.re.ReplaceAllString(text, f.with)
	}
	text = strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))

	runes := []rune(text)
	if len(runes) > maxDescriptionLen {
		text = strings.TrimSpace(string(runes[:maxDescriptionLen-3])) + "..."
	}

	if text == "" {
		return SeeRequirements
	}
	return text
}

func scaled(number, suffix string) float64 {
	amount := parseNumber(number)
	if suffix != "" {
		amount *= 1000
	}
	return amount
}
