package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"vramd/internal/backend"
	"vramd/internal/config"
	"vramd/internal/events"
	"vramd/internal/gpumon"
	"vramd/internal/httpapi"
	"vramd/internal/service"
	"vramd/internal/vram"
)

func buildServeCmd(f *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the VRAM arbiter daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg config.Config) error {
	log := newLogger(cfg.LogLevel)

	monitor, err := gpumon.New(gpumon.Config{
		CacheTTL: time.Duration(cfg.CacheTTLSec * float64(time.Second)),
		Logger:   log,
	})
	if err != nil {
		// No usable vendor probe means the whole subsystem is unusable.
		return err
	}
	log.Info().Str("vendor", string(monitor.Vendor())).Msg("GPU tool detected")

	publisher := events.MultiPublisher{
		events.NewLogPublisher(log),
		events.NewMetricsPublisher(prometheus.DefaultRegisterer),
	}

	arbiter, err := vram.New(vram.Config{
		Monitor:   monitor,
		TotalGB:   cfg.TotalVRAMGB,
		BufferGB:  cfg.SafetyBufferGB,
		Publisher: publisher,
	})
	if err != nil {
		return err
	}
	log.Info().Float64("total_gb", arbiter.TotalGB()).Msg("arbiter ready")

	svc, err := service.New(service.Config{
		Name:        cfg.ServiceName,
		Backend:     &backend.Stub{EstimateGB: cfg.ModelVRAMGB},
		Arbiter:     arbiter,
		Publisher:   publisher,
		Logger:      log,
		IdleTimeout: time.Duration(cfg.IdleTimeoutSec) * time.Second,
	})
	if err != nil {
		return err
	}
	svc.Start()

	mux := httpapi.NewMux(svc, arbiter, log)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("vramd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		_ = svc.Stop(5 * time.Second)
		return err
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	if err := svc.Stop(5 * time.Second); err != nil {
		log.Warn().Err(err).Msg("worker stop")
	}
	return nil
}
