package offerstate

import (
	"strings"

	"github.com/sacrosaunt/churnchurnchurn/internal/models"
)

const stepDone = "Done"

var (
	urlSteps    = []string{"Scraping Website", "Validating Offer", "Condensing Terms", "Extracting Details", "Analyzing Fine Print", stepDone}
	manualSteps = []string{"Validating Content", "Condensing Terms", "Extracting Details", "Analyzing Fine Print", stepDone}

	failureSteps = map[string]bool{
		"Validation Failed": true,
		"Scraping Failed":   true,
		"Processing Error":  true,
	}
)

// Progress describes how far the backend pipeline has got with an offer.
type Progress struct {
	Step    string  `json:"step"`
	Index   int     `json:"index"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// Steps returns the pipeline stage names for the offer's origin.
func Steps(offer models.Offer) []string {
	if offer.IsManual() {
		return manualSteps
	}
	return urlSteps
}

// ProcessingProgress maps the offer's processing step onto its pipeline.
// Unknown steps count as the first stage; failure steps count as the stage
// before Done.
func ProcessingProgress(offer models.Offer) Progress {
	steps := Steps(offer)
	step := offer.ProcessingStep
	idx := stepIndex(steps, step, offer.IsManual())

	p := Progress{
		Step:    step,
		Index:   idx,
		Total:   len(steps),
		Percent: float64(idx+1) / float64(len(steps)) * 100,
	}
	if step == stepDone {
		p.Percent = 100
	}
	return p
}

func stepIndex(steps []string, step string, manual bool) int {
	for i, s := range steps {
		if s == step {
			return i
		}
	}

	lower := strings.ToLower(step)
	if step != "" {
		for i, s := range steps {
			if strings.HasPrefix(lower, strings.ToLower(s)) {
				return i
			}
		}
	}

	for i, s := range steps {
		if strings.EqualFold(s, step) {
			return i
		}
	}

	// The backend reports "Validating Content" for URL offers too.
	if !manual && step == "Validating Content" {
		for i, s := range steps {
			if s == "Validating Offer" {
				return i
			}
		}
	}

	if failureSteps[step] {
		return len(steps) - 2
	}
	return 0
}
