package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/petems/rate-tray/internal/app"
	"github.com/petems/rate-tray/internal/logsource"
	"github.com/petems/rate-tray/internal/permissions"
	"github.com/petems/rate-tray/internal/trackinfo"
	"github.com/petems/rate-tray/internal/tray"
	"github.com/rs/zerolog"
)

func runTray(parent context.Context) error {
	cfg, log, err := loadConfig(true)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	src := logsource.NewSystem()

	// Reading the system log needs admin rights (macOS) or journal group membership (Linux)
	probeLogAccess(ctx, src, log)

	hw, closeHW, err := newController(log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audio hardware")
	}
	defer closeHW()

	var tracks trackinfo.Provider = trackinfo.Nop{}
	if cfg.TrackInfo {
		tracks = trackinfo.NewSystem()
	}

	application := app.New(app.Config{
		Hardware: hw,
		Source:   src,
		Tracks:   tracks,
		Config:   cfg,
		Logger:   log,
	})

	go func() {
		if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Coordinator stopped")
		}
	}()
	if err := application.Start(ctx); err != nil {
		return err
	}

	trayUI := tray.New(application, Version, Commit, log.With().Str("component", "tray").Logger())

	log.Info().Str("config", cfg.Path()).Msg("RateTray starting...")

	// Setup shutdown signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Shutting down...")
		if err := application.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Shutdown error")
		}
		closeHW()
		os.Exit(0)
	}()

	// Start tray UI - MUST run on main thread
	if err := trayUI.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Tray error")
	}
	return nil
}

// probeLogAccess warns about an unreadable log but never stops startup; the
// poller reports the same condition in the tray.
func probeLogAccess(ctx context.Context, src logsource.Source, log zerolog.Logger) bool {
	err := permissions.EnsurePermissions(ctx, src)
	switch {
	case err == nil:
		return true
	case errors.Is(err, permissions.ErrLogAccess):
		log.Warn().Err(err).Msg("System log not readable; detection will report insufficient privilege")
	default:
		log.Warn().Err(err).Msg("System log probe failed; starting anyway")
	}
	return false
}
