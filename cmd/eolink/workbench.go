package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eolink-project/eolink/internal/api"
	"github.com/eolink-project/eolink/internal/capture"
	"github.com/eolink-project/eolink/internal/cli"
	"github.com/eolink-project/eolink/internal/config"
	"github.com/eolink-project/eolink/internal/events"
	"github.com/eolink-project/eolink/internal/inspect"
	"github.com/eolink-project/eolink/internal/scheduler"
	"github.com/eolink-project/eolink/internal/telemetry"
	"github.com/eolink-project/eolink/internal/util"
)

const shutdownTimeout = 30 * time.Second

// runWorkbench starts every long-running component and blocks until a
// signal, a quit command or a fatal error.
func runWorkbench(configDir string, noConsole bool) error {
	fmt.Printf(banner, util.Version)
	fmt.Println()

	cfg, firstRun, err := loadConfig(configDir, true)
	if err != nil {
		return err
	}

	log.Info().
		Str("version", util.Version).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Msg("starting eolink")

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		if !firstRun {
			return fmt.Errorf("configuration validation failed, please fix the errors above")
		}
		log.Info().Msg("first run detected, launching setup wizard")
		if err := config.RunSetupWizard(cfg, os.Stdin, os.Stdout); err != nil {
			return fmt.Errorf("setup wizard failed: %w", err)
		}
		if result := config.Validate(cfg); !result.IsValid() {
			return fmt.Errorf("configuration still invalid after setup: %s", result.Errors[0].Error())
		}
	}

	hostInfo := util.GetHostInfo()
	log.Info().
		Str("hostname", hostInfo.Hostname).
		Str("os", hostInfo.OS).
		Str("cpu", hostInfo.CPUModel).
		Int("threads", hostInfo.CPUThreads).
		Uint64("memory_mb", hostInfo.TotalMemoryMB).
		Msg("system information")

	app := cfg.GetApplicationData()
	store, err := capture.NewStore(app.Capture.DatabasePath, app.Capture.MaxPacketsPerSession)
	if err != nil {
		return fmt.Errorf("failed to open capture store: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := events.NewEventBus()
	eventBus.Subscribe(events.EventShutdown, "main", func(context.Context, events.Event) error {
		cancel()
		return nil
	})

	bench := inspect.NewWorkbench(store, eventBus, inspect.Options{
		StrictSequence: cfg.GetCodec().StrictSequence,
	})

	var mqttHandler *telemetry.MQTTHandler
	if app.MQTT.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	if app.API.Enabled {
		apiServer := api.NewServer(cfg, eventBus, bench)
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Int("port", app.API.Port).Msg("starting REST API server")
			if err := startWithRetry(ctx, "api", apiServer.Start, 5); err != nil {
				errCh <- fmt.Errorf("api server: %w", err)
			}
		}()
	}

	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	sched := scheduler.NewScheduler(cfg, eventBus, bench)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Start(ctx)
	}()

	if !noConsole {
		console := cli.NewCLI(cfg, eventBus, bench)
		wg.Add(1)
		go func() {
			defer wg.Done()
			console.Start(ctx)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("critical error, initiating shutdown")
	}

	log.Info().Msg("initiating graceful shutdown...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(shutdownTimeout):
		log.Warn().Dur("timeout", shutdownTimeout).Msg("shutdown timed out, forcing exit")
	}

	eventBus.Stop()
	log.Info().Msg("eolink stopped")
	return runErr
}

// startWithRetry retries startFn while it fails, typically on a port that
// the previous run has not released yet.
func startWithRetry(ctx context.Context, name string, startFn func(context.Context) error, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if ctx.Err() != nil {
			return nil
		}
		lastErr = startFn(ctx)
		if lastErr == nil {
			return nil
		}
		if i < maxRetries {
			log.Warn().Err(lastErr).Str("component", name).Int("retry", i+1).Int("max", maxRetries).Msg("bind failed, retrying in 3s...")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(3 * time.Second):
			}
		}
	}
	return lastErr
}
