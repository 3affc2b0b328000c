// Package metrics exposes Prometheus collectors for the backend client,
// the reconciliation loop and the local HTTP facade.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	backendRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "churn_backend_requests_total",
		Help: "Requests sent to the offer backend.",
	}, []string{"op", "status"})

	backendRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "churn_backend_request_duration_seconds",
		Help:    "Latency of requests sent to the offer backend.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	backendRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "churn_backend_requests_in_flight",
		Help: "Backend requests currently waiting on a response.",
	})

	pollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "churn_polls_total",
		Help: "Collection polls by outcome.",
	}, []string{"result"})

	eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "churn_events_published_total",
		Help: "Presentation events published by type.",
	}, []string{"type"})

	refreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "churn_field_refreshes_total",
		Help: "Field refreshes by final outcome.",
	}, []string{"outcome"})

	cachedOffers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "churn_cached_offers",
		Help: "Offers held in the local cache.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "churn_http_requests_total",
		Help: "Requests served by the local API.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "churn_http_request_duration_seconds",
		Help:    "Latency of requests served by the local API.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Poll outcomes.
const (
	PollChanged   = "changed"
	PollUnchanged = "unchanged"
	PollError     = "error"
)

// MustRegister registers the package collectors once.
func MustRegister(registerer prometheus.Registerer) {
	registerOnce.Do(func() {
		registerer.MustRegister(
			backendRequestsTotal,
			backendRequestDuration,
			backendRequestsInFlight,
			pollsTotal,
			eventsPublished,
			refreshesTotal,
			cachedOffers,
			httpRequestsTotal,
			httpRequestDuration,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// BackendRequestStarted marks a request in flight and returns a function
// that records its outcome. status is the HTTP status, or 0 on a network
// failure.
func BackendRequestStarted(op string) func(status int) {
	start := time.Now()
	backendRequestsInFlight.Inc()

	return func(status int) {
		backendRequestsInFlight.Dec()
		label := "network_error"
		if status > 0 {
			label = strconv.Itoa(status)
		}
		backendRequestsTotal.WithLabelValues(op, label).Inc()
		backendRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// ObservePoll counts one poll outcome and the resulting cache size.
func ObservePoll(result string, cached int) {
	pollsTotal.WithLabelValues(result).Inc()
	cachedOffers.Set(float64(cached))
}

// ObserveEvent counts one published presentation event.
func ObserveEvent(eventType string) {
	eventsPublished.WithLabelValues(eventType).Inc()
}

// ObserveRefresh counts a field refresh reaching done or error.
func ObserveRefresh(outcome string) {
	refreshesTotal.WithLabelValues(outcome).Inc()
}

// Middleware records request counts and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
