package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"

	"orion/internal/bridge"
	"orion/internal/config"
	"orion/internal/logapi"
	"orion/internal/logctx"
	"orion/internal/logdb"
	"orion/internal/logger"
	"orion/internal/maintenance"
	"orion/internal/transport/telegram"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml/json")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	busy, err := cfg.Storage.BusyTimeoutDuration()
	if err != nil {
		return err
	}
	store, err := logdb.Open(logdb.Config{Path: cfg.Storage.Path, BusyTimeout: busy})
	if err != nil {
		return fmt.Errorf("open log db: %w", err)
	}
	defer store.Close()

	core := logger.Init(logger.Options{
		Source:  cfg.Logging.Source,
		Version: cfg.Logging.Version,
		Level:   cfg.Logging.Level,
		Color:   cfg.Logging.Color,
		Writer:  store,
	})
	core.Start()
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		core.Stop(stopCtx)
	}()

	mirror := applyMirror(core, cfg.Telegram)
	if mirror != nil {
		defer mirror.Stop()
	}

	log := logger.Get()
	ctx, runID := logctx.BeginEvent(ctx, "main", "")
	log.Info(ctx, "orion starting (run "+runID+")")

	br := bridge.New(bridge.Config{
		DefaultProcess: cfg.Bridge.DefaultProcess,
		FixedSource:    cfg.Bridge.FixedSource,
		Silence:        cfg.Bridge.Silence,
	})
	br.BindContext(ctx)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(br.ZerologWriter()).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &zlog
	slog.SetDefault(slog.New(br.SlogHandler("slog")))

	api := logapi.New(store, log)
	api.Apply(ctx, logapi.Config{Enabled: cfg.API.Enabled, Addr: cfg.API.Addr})
	defer api.Stop(context.Background())

	upkeep := maintenance.New(store, log)
	upkeep.Apply(ctx, maintenance.Config{Enabled: cfg.Maintenance.Enabled, Spec: cfg.Maintenance.Spec})
	defer upkeep.Stop(context.Background())

	// Follow the config file; level, color and service toggles retune live.
	updates := mgr.Subscribe(1)
	go func() {
		if err := mgr.Watch(ctx, func(err error) {
			log.Warn(ctx, "config reload rejected: "+err.Error())
		}); err != nil {
			log.Warn(ctx, "config watch unavailable: "+err.Error())
		}
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case next := <-updates:
				core.Apply(next.Logging.Level, next.Logging.Color)
				api.Apply(ctx, logapi.Config{Enabled: next.API.Enabled, Addr: next.API.Addr})
				upkeep.Apply(ctx, maintenance.Config{Enabled: next.Maintenance.Enabled, Spec: next.Maintenance.Spec})
				log.Info(ctx, "config reloaded")
			}
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info(ctx, "orion ready")

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	log.Info(context.WithoutCancel(ctx), "orion stopping")
	return nil
}

// applyMirror wires the high-severity telegram sink when configured. A bad
// token degrades to console+storage only; the service still runs.
func applyMirror(core *logger.Core, cfg config.TelegramConfig) *logger.Mirror {
	if !cfg.Enabled {
		return nil
	}
	sender, err := telegram.New(telegram.Config{Token: cfg.Token})
	if err != nil {
		fmt.Fprintln(os.Stderr, "telegram mirror disabled:", err)
		return nil
	}
	mirror := logger.NewMirror(logger.TelegramConfig{
		Enabled:    true,
		ChatID:     cfg.ChatID,
		ThreadID:   cfg.ThreadID,
		MinLevel:   cfg.MinLevel,
		RatePerSec: cfg.RatePerSec,
	}, sender)
	mirror.Start()
	core.SetMirror(mirror)
	return mirror
}
