package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/schoolhealth/config"
	"github.com/jwalitptl/schoolhealth/internal/backend"
	"github.com/jwalitptl/schoolhealth/internal/cache"
	"github.com/jwalitptl/schoolhealth/internal/confirm"
	batchHandler "github.com/jwalitptl/schoolhealth/internal/handler/batch"
	"github.com/jwalitptl/schoolhealth/internal/handler/health"
	medicationHandler "github.com/jwalitptl/schoolhealth/internal/handler/medication"
	"github.com/jwalitptl/schoolhealth/internal/handler/prometheus"
	"github.com/jwalitptl/schoolhealth/internal/middleware"
	"github.com/jwalitptl/schoolhealth/internal/repository"
	"github.com/jwalitptl/schoolhealth/internal/router"
	batchService "github.com/jwalitptl/schoolhealth/internal/service/batch"
	medicationService "github.com/jwalitptl/schoolhealth/internal/service/medication"
	"github.com/jwalitptl/schoolhealth/internal/worker"
	"github.com/jwalitptl/schoolhealth/pkg/logger"
	"github.com/jwalitptl/schoolhealth/pkg/messaging"
	"github.com/jwalitptl/schoolhealth/pkg/messaging/redis"
	"github.com/jwalitptl/schoolhealth/pkg/metrics"
	"github.com/jwalitptl/schoolhealth/pkg/validator"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(os.Getenv("SCHOOLHEALTH_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Log.Console,
	})
	log.Logger = appLogger.ZL

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	prom := prometheus.New(cfg.Monitoring.Namespace)
	m := metrics.New(cfg.Monitoring.Namespace).MustRegister(prom.Registry())

	// Remote backend
	client, err := backend.NewClient(backend.Config{
		BaseURL:       cfg.Backend.URL,
		Timeout:       cfg.Backend.Timeout,
		Breaker:       cfg.BreakerSettings(),
		MaxImageBytes: cfg.Backend.MaxImageBytes,
	}, m, appLogger.ZL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create backend client")
	}

	// Snapshot store
	var store repository.SnapshotStore
	switch cfg.Cache.Driver {
	case "redis":
		redisStore, err := cache.NewRedisStore(cfg.RedisStoreConfig(), m)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create redis snapshot store")
		}
		defer redisStore.Close()
		store = redisStore
	default:
		store = cache.NewMemoryStore(cfg.SnapshotConfig(), m)
	}

	readiness := map[string]health.Pinger{
		"backend":   client,
		"snapshots": store,
	}

	// Activity events
	var publisher messaging.Publisher = messaging.LogPublisher{Logger: &appLogger.ZL}
	if cfg.Events.Enabled {
		broker, err := redis.NewRedisBroker(ctx, cfg.ToBrokerConfig(), &appLogger.ZL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer broker.Close()

		origin := worker.InstanceID()
		publisher = messaging.NewBrokerPublisher(broker, cfg.Events.Channel, origin)
		readiness["events"] = broker

		// Replicas with private snapshots drop what other replicas made stale.
		if cfg.Cache.Driver != "redis" {
			activity := worker.NewActivityWorker(broker, store,
				worker.ActivityConfig{Channel: cfg.Events.Channel, Origin: origin}, appLogger, m)
			go func() {
				if err := activity.Start(ctx); err != nil {
					appLogger.Error(err, "activity worker stopped")
				}
			}()
		}
	}

	// Services
	medicationSvc := medicationService.NewService(client, store, medicationService.Config{
		Validator:         validator.New(),
		Publisher:         publisher,
		Metrics:           m,
		Logger:            appLogger.ZL,
		MaxImageDimension: cfg.Image.MaxDimension,
	})
	batchSvc := batchService.NewService(client, store, batchService.Config{
		Publisher: publisher,
		Metrics:   m,
		Logger:    appLogger.ZL,
	})

	// Handlers
	guard := confirm.NewTokenGuard(cfg.TokenConfig())
	healthH := health.NewHandler(readiness)
	medicationH := medicationHandler.NewHandler(medicationSvc, guard, cfg.Location())
	batchH := batchHandler.NewHandler(batchSvc, guard)

	// Setup router
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.Security.AllowedOrigins

	routerCfg := router.RouterConfig{
		Mode:       cfg.Server.Mode,
		CORSConfig: cors,
		SizeLimit: middleware.SizeLimitConfig{
			MaxBodySize:   cfg.Security.MaxBodyBytes,
			MaxUploadSize: cfg.Security.MaxUploadBytes,
			ErrorMessage:  "Request size exceeds limit",
		},
	}
	if cfg.RateLimit.Enabled {
		routerCfg.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerCfg.RateBurst = cfg.RateLimit.Burst
	}

	r := router.NewRouter(healthH, medicationH, batchH, prom, routerCfg)
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// Start server
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("backend", cfg.Backend.URL).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
