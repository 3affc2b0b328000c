package handler

import (
	"net/http"
	"time"

	"github.com/sacrosaunt/churnchurnchurn/internal/features"
	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/service"
)

// PlanView is a plan with its master timeline and the offers left out.
type PlanView struct {
	Plan        models.Plan              `json:"plan"`
	Inputs      models.PlanRequest       `json:"inputs"`
	GeneratedAt *time.Time               `json:"generated_at,omitempty"`
	SavedAt     *time.Time               `json:"saved_at,omitempty"`
	Timeline    []service.AnnotatedMonth `json:"timeline"`
	Excluded    service.Exclusions       `json:"excluded"`
}

func (h *Handler) planView(plan models.Plan, inputs models.PlanRequest) PlanView {
	now := h.now()
	return PlanView{
		Plan:     plan,
		Inputs:   inputs,
		Timeline: h.planning.Timeline(plan, now),
		Excluded: h.planning.Excluded(plan, h.engine.Store().All(), now),
	}
}

// GeneratePlan handles POST /api/planning/generate
// Fields missing from the body fall back to the last-used inputs.
func (h *Handler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	req, err := h.planning.Inputs(r.Context())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	if !h.decode(w, r, &req) {
		return
	}

	plan, err := h.planning.Generate(r.Context(), req)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	view := h.planView(plan, req)
	generated := h.now()
	view.GeneratedAt = &generated
	h.respondJSON(w, http.StatusOK, view)
}

// CurrentPlan handles GET /api/planning/current
func (h *Handler) CurrentPlan(w http.ResponseWriter, r *http.Request) {
	if !h.features.IsEnabled(features.FeaturePlanCache) {
		h.respondError(w, http.StatusNotFound, "plan cache is disabled")
		return
	}

	current, err := h.planning.Current(r.Context())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	view := h.planView(current.Plan, current.Inputs)
	view.GeneratedAt = &current.GeneratedAt
	h.respondJSON(w, http.StatusOK, view)
}

// SavedPlan handles GET /api/planning/saved
func (h *Handler) SavedPlan(w http.ResponseWriter, r *http.Request) {
	saved, err := h.planning.Saved(r.Context())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	view := h.planView(saved.Plan, saved.Inputs)
	view.SavedAt = &saved.SavedAt
	h.respondJSON(w, http.StatusOK, view)
}

// SavePlan handles POST /api/planning/saved
func (h *Handler) SavePlan(w http.ResponseWriter, r *http.Request) {
	saved, err := h.planning.Save(r.Context())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, saved)
}

// ClearSavedPlan handles DELETE /api/planning/saved
func (h *Handler) ClearSavedPlan(w http.ResponseWriter, r *http.Request) {
	if err := h.planning.ClearSaved(r.Context()); err != nil {
		h.respondFailure(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, models.MessageResponse{Message: "Saved plans cleared"})
}

// PlanningSettings handles GET /api/planning/settings
func (h *Handler) PlanningSettings(w http.ResponseWriter, r *http.Request) {
	inputs, err := h.planning.Inputs(r.Context())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, inputs)
}

// PlanTimeline handles GET /api/planning/timeline
func (h *Handler) PlanTimeline(w http.ResponseWriter, r *http.Request) {
	var plan models.Plan

	switch source := r.URL.Query().Get("source"); source {
	case "", "current":
		current, err := h.planning.Current(r.Context())
		if err != nil {
			h.respondFailure(w, r, err)
			return
		}
		plan = current.Plan
	case "saved":
		saved, err := h.planning.Saved(r.Context())
		if err != nil {
			h.respondFailure(w, r, err)
			return
		}
		plan = saved.Plan
	default:
		h.respondError(w, http.StatusBadRequest, "invalid 'source' parameter, must be 'current' or 'saved'")
		return
	}

	h.respondJSON(w, http.StatusOK, h.planning.Timeline(plan, h.now()))
}
