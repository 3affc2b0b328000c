package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RequestLogger logs one line per facade request, graded by status.
// Polling reads that succeed are logged at debug so they do not drown
// everything else.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			var ev *zerolog.Event
			switch {
			case status >= 500:
				ev = logger.Error()
			case status >= 400:
				ev = logger.Warn()
			case r.Method == http.MethodGet:
				ev = logger.Debug()
			default:
				ev = logger.Info()
			}

			ev.Int("status", status).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int64("latency_ms", time.Since(start).Milliseconds()).
				Str("client_ip", ClientKey(r)).
				Str("request_id", chimw.GetReqID(r.Context())).
				Int("bytes", ww.BytesWritten())
			if r.URL.RawQuery != "" {
				ev.Str("query", r.URL.RawQuery)
			}
			ev.Msg("request completed")
		})
	}
}
