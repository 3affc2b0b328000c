package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/sacrosaunt/churnchurnchurn/internal/backend"
	"github.com/sacrosaunt/churnchurnchurn/internal/events"
	"github.com/sacrosaunt/churnchurnchurn/internal/features"
	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/reconcile"
	"github.com/sacrosaunt/churnchurnchurn/internal/refresh"
	"github.com/sacrosaunt/churnchurnchurn/internal/service"
	"github.com/sacrosaunt/churnchurnchurn/internal/validation"
)

// Storage exposes the backend's storage maintenance calls.
type Storage interface {
	StorageStats(ctx context.Context) (models.StorageStats, error)
	Backup(ctx context.Context) (models.BackupResponse, error)
}

// Handler provides HTTP handlers for the local facade.
type Handler struct {
	engine      *reconcile.Engine
	planning    *service.Service
	storage     Storage
	eventLog    *events.Log
	features    *features.Manager
	logger      zerolog.Logger
	now         func() time.Time
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
	EventLog    *events.Log
	Features    *features.Manager
	Logger      zerolog.Logger
	Now         func() time.Time
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 1 << 20, // 1MB default
		Logger:      zerolog.Nop(),
		Now:         time.Now,
	}
}

// NewHandler creates a new handler instance.
func NewHandler(engine *reconcile.Engine, planning *service.Service, storage Storage) *Handler {
	return NewHandlerWithOptions(engine, planning, storage, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(engine *reconcile.Engine, planning *service.Service, storage Storage, opts NewHandlerOptions) *Handler {
	if opts.Features == nil {
		opts.Features = features.NewDefaultManager(features.AllOn())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultHandlerOptions().MaxBodySize
	}
	return &Handler{
		engine:      engine,
		planning:    planning,
		storage:     storage,
		eventLog:    opts.EventLog,
		features:    opts.Features,
		logger:      opts.Logger,
		now:         opts.Now,
		maxBodySize: opts.MaxBodySize,
	}
}

// Register mounts every facade route on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/offers", func(r chi.Router) {
			r.Get("/", h.ListOffers)
			r.Post("/", h.CreateOffer)
			r.Get("/groups", h.GroupOffers)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetOffer)
				r.Delete("/", h.DeleteOffer)
				r.Post("/refresh", h.RefreshField)
				r.Post("/reprocess", h.ReprocessOffer)
				r.Put("/status", h.UpdateStatus)
				r.Put("/url", h.UpdateURL)
			})
		})
		r.Put("/view", h.SetView)
		r.Post("/poll", h.Poll)
		r.Get("/events", h.ListEvents)
		r.Get("/totals", h.Totals)

		r.Route("/planning", func(r chi.Router) {
			r.Post("/generate", h.GeneratePlan)
			r.Get("/current", h.CurrentPlan)
			r.Get("/saved", h.SavedPlan)
			r.Post("/saved", h.SavePlan)
			r.Delete("/saved", h.ClearSavedPlan)
			r.Get("/settings", h.PlanningSettings)
			r.Get("/timeline", h.PlanTimeline)
		})

		r.Get("/features", h.ListFeatures)
		r.Put("/features/{name}", h.SetFeature)

		r.Get("/storage/stats", h.StorageStats)
		r.Post("/storage/backup", h.Backup)
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// decode reads a JSON body into dst, answering the request itself on
// failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	// Limit request body size to prevent abuse
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case err == io.EOF:
			h.respondError(w, http.StatusBadRequest, "request body is required")
		case errors.As(err, &tooLarge):
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		default:
			h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		}
		return false
	}
	return true
}

func (h *Handler) offerID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := validation.ParseOfferID(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return id, true
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}

// respondFailure maps an engine, service or backend error onto a response.
func (h *Handler) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve  *validation.ValidationError
		dup *backend.DuplicateOfferError
		api *backend.APIError
	)

	switch {
	case errors.As(err, &ve):
		h.respondError(w, http.StatusBadRequest, ve.Error())
	case errors.As(err, &dup):
		h.respondJSON(w, http.StatusConflict, models.DuplicateOfferResponse{
			Error:            dup.Error(),
			DuplicateOfferID: dup.ExistingID,
			DuplicateOffer:   dup.Existing,
		})
	case errors.Is(err, service.ErrNoPlan), errors.Is(err, service.ErrNoSavedPlan):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, backend.ErrNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, reconcile.ErrOfferProcessing), errors.Is(err, refresh.ErrInFlight):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &api):
		status := api.StatusCode
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		h.respondError(w, status, api.Error())
	case backend.IsNetworkError(err):
		h.respondError(w, http.StatusBadGateway, "could not reach the backend")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.respondError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func queryUint(r *http.Request, name string) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}
