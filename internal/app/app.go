// Package app wires the components shared by the facade server and the
// terminal UI.
package app

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sacrosaunt/churnchurnchurn/internal/backend"
	"github.com/sacrosaunt/churnchurnchurn/internal/cache"
	"github.com/sacrosaunt/churnchurnchurn/internal/config"
	"github.com/sacrosaunt/churnchurnchurn/internal/database"
	"github.com/sacrosaunt/churnchurnchurn/internal/events"
	"github.com/sacrosaunt/churnchurnchurn/internal/features"
	"github.com/sacrosaunt/churnchurnchurn/internal/reconcile"
	"github.com/sacrosaunt/churnchurnchurn/internal/refresh"
	"github.com/sacrosaunt/churnchurnchurn/internal/service"
	"github.com/sacrosaunt/churnchurnchurn/internal/store"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Backend  *backend.Client
	Events   *events.Manager
	EventLog *events.Log
	Engine   *reconcile.Engine
	DB       *database.DB
	Planning *service.Service
	Features *features.Manager

	closers []func() error
}

// Options adjusts wiring for a particular front end.
type Options struct {
	// Interactive front ends subscribe to events directly, so dispatch
	// stays on even when the event log is disabled.
	Interactive bool
}

// New builds every component from cfg. Nothing is started; run the engine
// with Engine.Run.
func New(cfg *config.Config, logger zerolog.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	client, err := backend.New(cfg.Backend.URL,
		backend.WithTimeout(time.Duration(cfg.Backend.TimeoutSeconds)*time.Second),
		backend.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	a.Backend = client

	a.Features = features.NewDefaultManager(features.Toggles{
		FieldRefresh: cfg.Features.FieldRefresh,
		PlanCache:    cfg.Features.PlanCache,
		EventLog:     cfg.Features.EventLog,
	})

	evOpts := []events.Option{events.WithLogger(logger)}
	if cfg.Features.EventLog {
		a.EventLog = events.NewLog(cfg.Events.LogSize)
		evOpts = append(evOpts, events.WithLog(a.EventLog))
	}
	a.Events = events.NewManager(cfg.Features.EventLog || opts.Interactive, evOpts...)
	a.closers = append(a.closers, func() error {
		a.Events.Shutdown()
		return nil
	})

	a.Engine = reconcile.New(client, store.NewMemoryStore(), a.Events,
		reconcile.WithConfig(EngineConfig(cfg.Polling)),
		reconcile.WithLogger(logger),
	)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	svcOpts := []service.Option{service.WithLogger(logger)}
	if cfg.Features.PlanCache {
		c, err := newCache(cfg.Redis, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		if closer, ok := c.(interface{ Close() error }); ok {
			a.closers = append(a.closers, closer.Close)
		}
		svcOpts = append(svcOpts, service.WithCache(c))
	}
	a.Planning = service.NewService(db, client, svcOpts...)

	return a, nil
}

// Close releases everything New opened, newest first.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// EngineConfig converts the polling settings into engine timings.
func EngineConfig(p config.PollingConfig) reconcile.Config {
	cfg := reconcile.DefaultConfig()
	cfg.PollInterval = p.Interval()
	cfg.DetailRenderDelay = p.DetailRenderDelay()
	cfg.Refresh = refresh.Config{
		GracePeriod:        p.RefreshGrace(),
		GracePollInterval:  p.RefreshGracePoll(),
		ActivePollInterval: p.Interval(),
		DisplayDelay:       p.RefreshDisplay(),
		ErrorDisplay:       p.RefreshDisplay(),
	}
	return cfg
}

func newCache(cfg config.RedisConfig, logger zerolog.Logger) (cache.Cache, error) {
	if !cfg.Enabled {
		return cache.NewInMemoryCache(), nil
	}
	c, err := cache.NewRedisCache(cfg.Addr, cfg.Password, cfg.DB, cfg.Prefix)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("addr", cfg.Addr).Msg("plan cache using redis")
	return c, nil
}
