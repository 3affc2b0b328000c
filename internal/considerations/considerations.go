// Package considerations classifies the free-text notes the extraction
// backend attaches to an offer.
package considerations

import (
	"regexp"
	"strings"
)

// Kind is the severity of a consideration.
type Kind string

const (
	Good    Kind = "GOOD"
	Caution Kind = "CAUTION"
	Warning Kind = "WARNING"
)

// displayOrder is the order items are presented in.
var displayOrder = []Kind{Good, Caution, Warning}

// Item is one classified consideration line.
type Item struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

var tagPattern = regexp.MustCompile(`(WARNING:|CAUTION:|GOOD:)`)

// Pending reports whether text carries no considerations yet, either
// because extraction is still running or because none were found.
func Pending(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	return lower == "" || lower == "n/a" || strings.Contains(lower, "processing")
}

// Parse splits text into classified items ordered good, caution, warning.
// Lines without a known TYPE: prefix are dropped.
func Parse(text string) []Item {
	if Pending(text) {
		return nil
	}

	normalized := strings.NewReplacer(`\n`, "\n", "\r\n", "\n", "\r", "\n").Replace(text)
	if !strings.Contains(normalized, "\n") {
		normalized = tagPattern.ReplaceAllString(normalized, "\n$1")
	}

	groups := make(map[Kind][]string)
	for _, line := range strings.Split(normalized, "\n") {
		line = strings.TrimSpace(line)
		colon := strings.Index(line, ":")
		if colon == -1 {
			continue
		}

		kind := Kind(strings.ToUpper(strings.TrimSpace(line[:colon])))
		body := strings.TrimSuffix(strings.TrimSpace(line[colon+1:]), ".")
		if body == "" {
			continue
		}

		switch kind {
		case Good, Caution, Warning:
			groups[kind] = append(groups[kind], body)
		}
	}

	var items []Item
	for _, k := range displayOrder {
		for _, body := range groups[k] {
			items = append(items, Item{Kind: k, Text: body})
		}
	}
	return items
}
