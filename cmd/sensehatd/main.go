package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/avlin/sensehatd/internal/config"
	"codeberg.org/avlin/sensehatd/internal/logger"
	"codeberg.org/avlin/sensehatd/internal/metrics"
	"codeberg.org/avlin/sensehatd/internal/pid"
	"codeberg.org/avlin/sensehatd/internal/recorder"
	"codeberg.org/avlin/sensehatd/internal/sensehat"
	"codeberg.org/avlin/sensehatd/internal/target"
	"codeberg.org/avlin/sensehatd/internal/telemetry"
	"codeberg.org/avlin/sensehatd/internal/ui"
)

var (
	cfg    *config.Config
	device sensehat.Device
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")

	if cfg.Fake {
		device = sensehat.NewFake()
		logger.Info().Msg("Running against a simulated Sense HAT")
	} else {
		device, err = sensehat.Open()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open Sense HAT")
		}
	}
}

func main() {
	defer device.Close()

	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}
	defer removePIDFile()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := run(ctx); err != nil {
		logger.Error().Err(err).Msg("error in main loop")
	}
	logger.Info().Msg("Exiting...")
}

func run(ctx context.Context) error {
	engine := metrics.NewEngine(device, cfg.Cores)
	tgt := target.NewAt(cfg.TargetTemp)

	collector, err := newCollector()
	if err != nil {
		return err
	}
	defer collector.Close()

	rec, err := recorder.New(engine, tgt, collector, recorder.Config{
		Path:      cfg.LogPath,
		Separator: cfg.Separator,
		Interval:  cfg.LogInterval(),
	})
	if err != nil {
		return err
	}
	go rec.Run(ctx)

	navigator := ui.New(device, engine, tgt, rec, ui.Options{
		CoreCount: cfg.Cores,
	})
	navigator.Run(ctx)

	return nil
}

func newCollector() (telemetry.Collector, error) {
	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.Enabled = cfg.Telemetry
	if cfg.TelemetryDB != "" {
		telemetryCfg.DBPath = cfg.TelemetryDB
	}

	return telemetry.NewService(telemetryCfg)
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func removePIDFile() {
	if err := pid.Remove(); err != nil {
		logger.Error().Err(err).Msg("failed to remove PID file")
	}
}
