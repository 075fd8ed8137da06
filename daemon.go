package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/mil-ad/bluenotify/internal/bluez"
	"github.com/mil-ad/bluenotify/internal/config"
	"github.com/mil-ad/bluenotify/internal/history"
	"github.com/mil-ad/bluenotify/internal/ipc"
	"github.com/mil-ad/bluenotify/internal/logger"
	"github.com/mil-ad/bluenotify/internal/monitor"
	"github.com/mil-ad/bluenotify/internal/notify"
)

func runDaemon() error {
	cfg, cfgPath, cfgErr := loadConfig()

	log, err := logger.New(&logger.Config{Level: cfg.LogLevel, Output: cfg.LogOutput})
	if err != nil {
		log, _ = logger.New(&logger.Config{Output: cfg.LogOutput})
		log.Warn().Err(err).Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
	}
	if cfgErr != nil {
		log.Warn().Err(cfgErr).Str("path", cfgPath).Msg("Error loading config, using defaults")
	} else if err := cfg.Save(cfgPath); err != nil {
		log.Warn().Err(err).Str("path", cfgPath).Msg("Error saving config")
	}

	bus, err := bluez.Connect()
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to BlueZ")
		return fmt.Errorf("connect to bluez: %w", err)
	}
	defer bus.Close()

	events, err := bus.Subscribe()
	if err != nil {
		log.Error().Err(err).Msg("Failed to subscribe to BlueZ signals")
		return fmt.Errorf("subscribe: %w", err)
	}

	notifier := newNotifier(cfg, log)
	defer notifier.Close()

	histPath, err := history.DefaultPath()
	if err != nil {
		log.Warn().Err(err).Msg("No location for device history, it will not be saved")
	}
	hist := history.NewStore()
	if histPath != "" {
		hist, err = history.Load(histPath)
		if err != nil {
			log.Warn().Err(err).Str("path", histPath).Msg("Error loading device history")
		}
	}

	m := monitor.New(monitor.Options{
		Bus:         bus,
		Events:      events,
		Notifier:    notifier,
		Config:      cfg,
		History:     hist,
		HistoryPath: histPath,
		Logger:      logger.WithComponent(log, "monitor"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sock := ipc.SocketPath()
	srv, err := ipc.Listen(sock, m.Serve, logger.WithComponent(log, "ipc"))
	if err != nil {
		// Status queries are optional; notifications still work.
		log.Warn().Err(err).Msg("Status socket unavailable")
	} else {
		defer srv.Close()
		go func() {
			if err := srv.Serve(ctx); err != nil {
				log.Warn().Err(err).Msg("Status socket stopped")
			}
		}()
	}

	err = m.Run(ctx)
	if errors.Is(err, monitor.ErrEventsClosed) {
		log.Error().Err(err).Msg("Lost connection to BlueZ")
	}
	return err
}

// loadConfig reads the user's config. On error the defaults come back with it.
func loadConfig() (*config.Config, string, error) {
	path, err := config.Path()
	if err != nil {
		return config.Default(), "", err
	}
	cfg, err := config.Load(path)
	return cfg, path, err
}

func newNotifier(cfg *config.Config, log zerolog.Logger) notify.Notifier {
	var (
		n   notify.Notifier
		err error
	)
	switch cfg.Notifier {
	case config.NotifierDunstify:
		n, err = notify.NewDunstify()
	default:
		n, err = notify.NewDBus()
	}
	if err != nil {
		log.Warn().Err(err).Str("notifier", cfg.Notifier).Msg("Notifications disabled")
	}
	return notify.NewLimited(n, cfg.NotifyRate, cfg.NotifyBurst, logger.WithComponent(log, "notify"))
}
