package offerstate

import (
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/tiers"
)

// SortBy selects the ordering applied to the offer list.
type SortBy string

const (
	SortAll        SortBy = "all"
	SortBonus      SortBy = "bonus"
	SortExpiration SortBy = "expiration"
	SortStatus     SortBy = "status"
)

// ParseSortBy falls back to SortAll for unknown values.
func ParseSortBy(s string) SortBy {
	switch SortBy(s) {
	case SortBonus, SortExpiration, SortStatus:
		return SortBy(s)
	default:
		return SortAll
	}
}

var (
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	statusSortOrder  = []DisplayStatus{Processing, Failed, Unopened, PendingDeposit, Waiting, Claimed}
	statusGroupOrder = []DisplayStatus{Unopened, PendingDeposit, Waiting, Processing, Claimed, Failed}
)

// Bonus returns the offer's parsed bonus amount.
func Bonus(offer models.Offer) float64 {
	return tiers.ParseBonusAmount(offer.Detail(models.FieldBonusToBeReceived))
}

// HeadlineBonus is the bonus shown for an offer. Sorting keeps using Bonus.
func HeadlineBonus(offer models.Offer) float64 {
	return tiers.DisplayBonus(tiers.OfferTiers(offer), Bonus(offer))
}

// Sort returns a sorted copy of offers. The natural direction of each
// ordering is newest, largest, earliest or most active first; ascending
// reverses it.
func Sort(offers []models.Offer, by SortBy, ascending bool) []models.Offer {
	out := append([]models.Offer(nil), offers...)

	sort.SliceStable(out, func(i, j int) bool {
		c := compare(out[i], out[j], by)
		if ascending {
			c = -c
		}
		return c < 0
	})
	return out
}

func compare(a, b models.Offer, by SortBy) int {
	switch by {
	case SortBonus:
		return sign(Bonus(b) - Bonus(a))
	case SortExpiration:
		da, okA := expiration(a)
		db, okB := expiration(b)
		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return 1
		case !okB:
			return -1
		}
		return sign(float64(da.Sub(db)))
	case SortStatus:
		return indexOf(statusSortOrder, Derive(a)) - indexOf(statusSortOrder, Derive(b))
	default:
		return b.ID - a.ID
	}
}

func expiration(o models.Offer) (time.Time, bool) {
	s := o.Detail(models.FieldDealExpirationDate)
	if !isoDatePattern.MatchString(s) {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Group is one status section of the grouped list view.
type Group struct {
	Status DisplayStatus  `json:"status"`
	Label  string         `json:"label"`
	Offers []models.Offer `json:"offers"`
}

// GroupByStatus buckets offers by display status. Sections follow the
// unopened-to-failed order (reversed when ascending is false) and offers
// within a section are ordered by bonus, largest first. Empty sections
// are omitted.
func GroupByStatus(offers []models.Offer, ascending bool) []Group {
	buckets := make(map[DisplayStatus][]models.Offer)
	for _, o := range offers {
		s := Derive(o)
		buckets[s] = append(buckets[s], o)
	}

	order := append([]DisplayStatus(nil), statusGroupOrder...)
	if !ascending {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}

	var groups []Group
	for _, s := range order {
		members := buckets[s]
		if len(members) == 0 {
			continue
		}
		groups = append(groups, Group{
			Status: s,
			Label:  Label(s),
			Offers: Sort(members, SortBonus, false),
		})
	}
	return groups
}

// Totals sums bonuses already claimed and bonuses awaiting payout.
type Totals struct {
	Claimed float64 `json:"claimed"`
	Pending float64 `json:"pending"`
}

// ComputeTotals sums received bonuses into Claimed and deposited but not yet
// received bonuses into Pending.
func ComputeTotals(offers []models.Offer) Totals {
	var t Totals
	for _, o := range offers {
		switch {
		case o.UserControlled.Received:
			t.Claimed += Bonus(o)
		case o.UserControlled.Deposited:
			t.Pending += Bonus(o)
		}
	}
	return t
}

// Urgency classifies how close an expiration date is.
type Urgency string

const (
	UrgencyNone     Urgency = "none"
	UrgencySoon     Urgency = "soon"
	UrgencyImminent Urgency = "imminent"
	UrgencyExpired  Urgency = "expired"
)

// ExpirationUrgency classifies the offer's deal expiration date relative to
// now. Offers already deposited or claimed are never urgent.
func ExpirationUrgency(offer models.Offer, now time.Time) Urgency {
	if offer.UserControlled.Deposited || offer.UserControlled.Received {
		return UrgencyNone
	}

	exp, ok := expiration(offer)
	if !ok {
		return UrgencyNone
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(math.Ceil(exp.Sub(today).Hours() / 24))

	switch {
	case days <= 0:
		return UrgencyExpired
	case days <= 3:
		return UrgencyImminent
	case days <= 7:
		return UrgencySoon
	default:
		return UrgencyNone
	}
}

func indexOf(order []DisplayStatus, s DisplayStatus) int {
	for i, v := range order {
		if v == s {
			return i
		}
	}
	return len(order)
}

func sign(v float64) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}
