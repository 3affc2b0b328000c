package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sacrosaunt/churnchurnchurn/internal/features"
)

// SetFeatureRequest flips one feature flag.
type SetFeatureRequest struct {
	Enabled *bool `json:"enabled"`
}

// ListFeatures handles GET /api/features
func (h *Handler) ListFeatures(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.features.List())
}

// SetFeature handles PUT /api/features/{name}
func (h *Handler) SetFeature(w http.ResponseWriter, r *http.Request) {
	var req SetFeatureRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		h.respondError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	name := chi.URLParam(r, "name")
	flag, err := h.features.Set(name, *req.Enabled)
	if errors.Is(err, features.ErrUnknownFlag) {
		h.respondError(w, http.StatusNotFound, "unknown feature flag '"+name+"'")
		return
	}

	h.logger.Info().Str("flag", flag.Name).Bool("enabled", flag.Enabled).Msg("feature flag changed")
	h.respondJSON(w, http.StatusOK, flag)
}
