package handler

import (
	"net/http"
	"time"

	"github.com/sacrosaunt/churnchurnchurn/internal/considerations"
	"github.com/sacrosaunt/churnchurnchurn/internal/features"
	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/offerstate"
	"github.com/sacrosaunt/churnchurnchurn/internal/refresh"
	"github.com/sacrosaunt/churnchurnchurn/internal/tiers"
	"github.com/sacrosaunt/churnchurnchurn/internal/validation"
)

// OfferSummary is one row of the offer list.
type OfferSummary struct {
	Offer         models.Offer             `json:"offer"`
	DisplayStatus offerstate.DisplayStatus `json:"display_status"`
	StatusLabel   string                   `json:"status_label"`
	Bonus         float64                  `json:"bonus"`
	Urgency       offerstate.Urgency       `json:"urgency"`
}

// OfferDetail is everything the detail view shows for one offer.
type OfferDetail struct {
	OfferSummary
	Progress       *offerstate.Progress  `json:"progress,omitempty"`
	Tiers          []tiers.Tier          `json:"tiers,omitempty"`
	Considerations []considerations.Item `json:"considerations,omitempty"`
	Refreshes      []refresh.Status      `json:"refreshes,omitempty"`
}

// GroupView is one section of the grouped list.
type GroupView struct {
	Status offerstate.DisplayStatus `json:"status"`
	Label  string                   `json:"label"`
	Offers []OfferSummary           `json:"offers"`
}

func summarize(o models.Offer, now time.Time) OfferSummary {
	status := offerstate.Derive(o)
	return OfferSummary{
		Offer:         o,
		DisplayStatus: status,
		StatusLabel:   offerstate.Label(status),
		Bonus:         offerstate.HeadlineBonus(o),
		Urgency:       offerstate.ExpirationUrgency(o, now),
	}
}

// ListOffers handles GET /api/offers
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	by := offerstate.ParseSortBy(validation.SanitizeString(q.Get("sort")))
	ascending := q.Get("order") == "asc"

	now := h.now()
	offers := offerstate.Sort(h.engine.Store().All(), by, ascending)
	out := make([]OfferSummary, 0, len(offers))
	for _, o := range offers {
		out = append(out, summarize(o, now))
	}

	h.respondJSON(w, http.StatusOK, out)
}

// GroupOffers handles GET /api/offers/groups
func (h *Handler) GroupOffers(w http.ResponseWriter, r *http.Request) {
	ascending := r.URL.Query().Get("order") != "desc"

	now := h.now()
	groups := offerstate.GroupByStatus(h.engine.Store().All(), ascending)
	out := make([]GroupView, 0, len(groups))
	for _, g := range groups {
		view := GroupView{Status: g.Status, Label: g.Label, Offers: make([]OfferSummary, 0, len(g.Offers))}
		for _, o := range g.Offers {
			view.Offers = append(view.Offers, summarize(o, now))
		}
		out = append(out, view)
	}

	h.respondJSON(w, http.StatusOK, out)
}

// GetOffer handles GET /api/offers/{id}
func (h *Handler) GetOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.offerID(w, r)
	if !ok {
		return
	}

	offer, found := h.engine.Store().Get(id)
	if !found {
		h.respondError(w, http.StatusNotFound, "offer not found")
		return
	}

	detail := OfferDetail{
		OfferSummary:   summarize(offer, h.now()),
		Tiers:          tiers.OfferTiers(offer),
		Considerations: considerations.Parse(offer.Detail(models.FieldAdditionalConsiderations)),
	}
	if offer.IsProcessing() {
		p := offerstate.ProcessingProgress(offer)
		detail.Progress = &p
	}
	for _, st := range h.engine.Tracker().Statuses() {
		if st.Key.OfferID == id {
			detail.Refreshes = append(detail.Refreshes, st)
		}
	}

	h.respondJSON(w, http.StatusOK, detail)
}

// CreateOffer handles POST /api/offers
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOfferRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.RefreshOfferID = 0

	offer, err := h.engine.Submit(r.Context(), req)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, offer)
}

// RefreshField handles POST /api/offers/{id}/refresh
func (h *Handler) RefreshField(w http.ResponseWriter, r *http.Request) {
	if !h.features.IsEnabled(features.FeatureFieldRefresh) {
		h.respondError(w, http.StatusForbidden, "field refresh is disabled")
		return
	}

	id, ok := h.offerID(w, r)
	if !ok {
		return
	}

	var req models.RefreshFieldRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Field = validation.SanitizeString(req.Field)

	if err := h.engine.RefreshField(r.Context(), id, req.Field); err != nil {
		h.respondFailure(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusAccepted, models.RefreshFieldResponse{Status: "refreshing", Field: req.Field})
}

// ReprocessOffer handles POST /api/offers/{id}/reprocess
func (h *Handler) ReprocessOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.offerID(w, r)
	if !ok {
		return
	}

	offer, err := h.engine.Reprocess(r.Context(), id)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, offer)
}

// UpdateStatusRequest moves an offer to a progress step.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PUT /api/offers/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.offerID(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	key, err := validation.ValidateStatusKey(req.Status)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	offer, err := h.engine.UpdateStatus(r.Context(), id, key)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, summarize(offer, h.now()))
}

// UpdateURLRequest replaces an offer's source URL.
type UpdateURLRequest struct {
	URL string `json:"url"`
}

// UpdateURL handles PUT /api/offers/{id}/url
func (h *Handler) UpdateURL(w http.ResponseWriter, r *http.Request) {
	id, ok := h.offerID(w, r)
	if !ok {
		return
	}

	var req UpdateURLRequest
	if !h.decode(w, r, &req) {
		return
	}

	offer, err := h.engine.SetURL(r.Context(), id, req.URL)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, offer)
}

// DeleteOffer handles DELETE /api/offers/{id}
func (h *Handler) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.offerID(w, r)
	if !ok {
		return
	}

	if err := h.engine.Delete(r.Context(), id); err != nil {
		h.respondFailure(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, models.MessageResponse{Message: "Offer deleted successfully"})
}

// ViewRequest focuses an offer's detail view; a zero id closes it.
type ViewRequest struct {
	OfferID int `json:"offer_id"`
}

// SetView handles PUT /api/view
func (h *Handler) SetView(w http.ResponseWriter, r *http.Request) {
	var req ViewRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.OfferID == 0 {
		if err := h.engine.Blur(r.Context()); err != nil {
			h.respondFailure(w, r, err)
			return
		}
		h.respondJSON(w, http.StatusOK, ViewRequest{})
		return
	}

	if _, err := h.engine.Focus(r.Context(), req.OfferID); err != nil {
		h.respondFailure(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, req)
}

// Poll handles POST /api/poll
func (h *Handler) Poll(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Kick(r.Context()); err != nil {
		h.respondFailure(w, r, err)
		return
	}

	snap, err := h.engine.Snapshot(r.Context())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, snap)
}

// ListEvents handles GET /api/events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.eventLog == nil || !h.features.IsEnabled(features.FeatureEventLog) {
		h.respondError(w, http.StatusNotFound, "event log is disabled")
		return
	}

	after, err := queryUint(r, "after")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid 'after' parameter, must be a sequence number")
		return
	}

	h.respondJSON(w, http.StatusOK, h.eventLog.Since(after))
}

// Totals handles GET /api/totals
func (h *Handler) Totals(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, offerstate.ComputeTotals(h.engine.Store().All()))
}

// StorageStats handles GET /api/storage/stats
func (h *Handler) StorageStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.storage.StorageStats(r.Context())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, stats)
}

// Backup handles POST /api/storage/backup
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	resp, err := h.storage.Backup(r.Context())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}
