package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sacrosaunt/churnchurnchurn/internal/app"
	"github.com/sacrosaunt/churnchurnchurn/internal/config"
	"github.com/sacrosaunt/churnchurnchurn/internal/logging"
	"github.com/sacrosaunt/churnchurnchurn/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "churn:", err)
		os.Exit(1)
	}
}

func run() error {
	configFile := flag.String("config", "", "Path to a JSON or YAML config file")
	backendURL := flag.String("backend", "", "Backend URL (overrides config)")
	logFile := flag.String("log", "churn.log", "Log file path")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		return err
	}
	if *backendURL != "" {
		cfg.Backend.URL = *backendURL
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closer, err := logging.NewFileLogger(*logFile, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer closer.Close()

	a, err := app.New(cfg, logger, app.Options{Interactive: true})
	if err != nil {
		return err
	}
	defer a.Close()

	model := tui.New(a.Engine, a.Planning, tui.Options{
		Features:       a.Features,
		CommandTimeout: time.Duration(cfg.Backend.TimeoutSeconds+15) * time.Second,
	})
	p := tea.NewProgram(model, tea.WithAltScreen())
	tui.Bridge(a.Events, p)

	ctx, cancel := context.WithCancel(context.Background())
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := a.Engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("engine stopped")
		}
	}()

	_, err = p.Run()
	cancel()
	<-engineDone
	return err
}
