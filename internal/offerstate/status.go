// Package offerstate derives display state from raw offer data.
package offerstate

import (
	"github.com/sacrosaunt/churnchurnchurn/internal/models"
)

// DisplayStatus is the single lifecycle label shown for an offer.
type DisplayStatus string

const (
	Processing     DisplayStatus = "processing"
	Failed         DisplayStatus = "failed"
	Claimed        DisplayStatus = "claimed"
	Waiting        DisplayStatus = "waiting"
	PendingDeposit DisplayStatus = "pending-deposit"
	Unopened       DisplayStatus = "unopened"
)

var labels = map[DisplayStatus]string{
	Processing:     "Processing...",
	Failed:         "Failed",
	Claimed:        "Claimed",
	Waiting:        "Waiting for Bonus",
	PendingDeposit: "Pending Deposit",
	Unopened:       "Unopened",
}

// Derive computes the display status. Backend state takes precedence over
// the user's progress flags, and later flags win over earlier ones.
func Derive(offer models.Offer) DisplayStatus {
	switch {
	case offer.Status == models.StatusProcessing:
		return Processing
	case offer.Status == models.StatusFailed:
		return Failed
	case offer.UserControlled.Received:
		return Claimed
	case offer.UserControlled.Deposited:
		return Waiting
	case offer.UserControlled.Opened:
		return PendingDeposit
	default:
		return Unopened
	}
}

// Label returns the human readable text for status.
func Label(status DisplayStatus) string {
	if l, ok := labels[status]; ok {
		return l
	}
	return string(status)
}

// StatusKey names one step of the user-controlled progression.
type StatusKey string

const (
	KeyUnopened  StatusKey = "unopened"
	KeyOpened    StatusKey = "opened"
	KeyDeposited StatusKey = "deposited"
	KeyReceived  StatusKey = "received"
)

// StatusKeys lists the progression in order.
var StatusKeys = []StatusKey{KeyUnopened, KeyOpened, KeyDeposited, KeyReceived}

// ParseStatusKey validates a status key.
func ParseStatusKey(s string) (StatusKey, bool) {
	for _, k := range StatusKeys {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// CurrentStatusKey returns the furthest step the user has reached.
func CurrentStatusKey(offer models.Offer) StatusKey {
	switch {
	case offer.UserControlled.Received:
		return KeyReceived
	case offer.UserControlled.Deposited:
		return KeyDeposited
	case offer.UserControlled.Opened:
		return KeyOpened
	default:
		return KeyUnopened
	}
}

// FlagsFor returns the full prefix of flags implied by key: every step up
// to and including key is set and every later step is cleared.
func FlagsFor(key StatusKey) models.UserControlled {
	switch key {
	case KeyReceived:
		return models.UserControlled{Opened: true, Deposited: true, Received: true}
	case KeyDeposited:
		return models.UserControlled{Opened: true, Deposited: true}
	case KeyOpened:
		return models.UserControlled{Opened: true}
	default:
		return models.UserControlled{}
	}
}

// UnopenedOffers returns the offers eligible as planning input.
func UnopenedOffers(offers []models.Offer) []models.Offer {
	var out []models.Offer
	for _, o := range offers {
		if Derive(o) == Unopened {
			out = append(out, o)
		}
	}
	return out
}
