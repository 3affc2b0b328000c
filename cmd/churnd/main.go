package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sacrosaunt/churnchurnchurn/internal/app"
	"github.com/sacrosaunt/churnchurnchurn/internal/config"
	"github.com/sacrosaunt/churnchurnchurn/internal/handler"
	"github.com/sacrosaunt/churnchurnchurn/internal/logging"
	"github.com/sacrosaunt/churnchurnchurn/internal/metrics"
	"github.com/sacrosaunt/churnchurnchurn/internal/middleware"
	"github.com/sacrosaunt/churnchurnchurn/internal/tracing"
)

var version = "dev"

func main() {
	configFile := flag.String("config", "", "Path to a JSON or YAML config file")
	port := flag.String("port", "", "Server port (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configFile, *port)
	if err != nil {
		l := logging.NewLogger("", "")
		l.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := logging.NewLogger(cfg.Env, cfg.Log.Level)

	if err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     version,
		Environment: cfg.Env,
		SampleRatio: cfg.Tracing.SampleRatio,
	}); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize tracing")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	a, err := app.New(cfg, logger, app.Options{})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()

	h := handler.NewHandlerWithOptions(a.Engine, a.Planning, a.Backend, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
		EventLog:    a.EventLog,
		Features:    a.Features,
		Logger:      logger,
		Now:         time.Now,
	})

	// Setup router
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)

	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer rateLimiter.Stop()
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Security.Origins(),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.TracingMiddleware())
	r.Use(metrics.Middleware)

	r.Handle("/metrics", metrics.Handler())
	if cfg.IsDevelopment() {
		r.Mount("/debug", chimw.Profiler())
	}
	h.Register(r)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := a.Engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("engine stopped")
		}
	}()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("error closing server")
		}
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to flush traces")
		}
	}()

	logger.Info().
		Str("addr", server.Addr).
		Str("backend", cfg.Backend.URL).
		Str("database", cfg.Database.Path).
		Bool("redis", cfg.Redis.Enabled).
		Bool("tracing", cfg.Tracing.Enabled).
		Msg("starting facade server")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server failed")
	}

	stop()
	<-engineDone
}

// loadConfig reads the config file, applies the port override and validates
// the result.
func loadConfig(path, port string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if port != "" {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
