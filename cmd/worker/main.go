package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/schoolhealth/config"
	"github.com/jwalitptl/schoolhealth/internal/worker"
	"github.com/jwalitptl/schoolhealth/pkg/logger"
	"github.com/jwalitptl/schoolhealth/pkg/messaging/redis"
	"github.com/jwalitptl/schoolhealth/pkg/metrics"
)

// The worker records the activity feed of every BFF replica. It keeps no snapshots of its own.
func setupHealthCheck(port int, registry *prometheus.Registry, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}

func main() {
	cfg, err := config.LoadConfig(os.Getenv("SCHOOLHEALTH_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Log.Console,
	})
	log.Logger = appLogger.ZL

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(cfg.Monitoring.Namespace + "_worker").MustRegister(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker, err := redis.NewRedisBroker(ctx, cfg.ToBrokerConfig(), &appLogger.ZL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Redis broker")
	}
	defer broker.Close()

	activity := worker.NewActivityWorker(
		broker,
		nil,
		worker.ActivityConfig{Channel: cfg.Events.Channel, Origin: worker.InstanceID()},
		appLogger,
		m,
	)

	healthSrv := setupHealthCheck(cfg.Server.Port+1, registry, appLogger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Shutting down...")
		cancel()
	}()

	if err := activity.Start(ctx); err != nil {
		appLogger.Error(err, "Activity worker stopped")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	_ = healthSrv.Shutdown(shutdownCtx)
}
