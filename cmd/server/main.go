package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"storebridge/internal/abandon"
	"storebridge/internal/alert"
	"storebridge/internal/api"
	"storebridge/internal/config"
	"storebridge/internal/credstore"
	"storebridge/internal/database"
	"storebridge/internal/domain"
	"storebridge/internal/events"
	"storebridge/internal/logging"
	"storebridge/internal/metrics"
	"storebridge/internal/models"
	"storebridge/internal/report"
	"storebridge/internal/sink"
	"storebridge/internal/syncer"
	"storebridge/internal/upstream"
	"storebridge/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	redisClient, creds := initCredentialStore(ctx, cfg, &logger)
	if redisClient != nil {
		defer credstore.Close(redisClient)
	}

	upstreamClient := upstream.NewClient(cfg.Upstream)
	sinkClient := sink.NewClient(cfg.Sink, &logger)

	dispatcher := syncer.NewDispatcher(sinkClient, &logger)
	orchestrator := syncer.NewOrchestrator(creds, upstreamClient, dispatcher, db, &logger)

	alertSender, err := alert.New(cfg.Alerts, &logger)
	if err != nil {
		return err
	}
	if alertSender != nil {
		orchestrator.SetAlerts(alertSender)
	}

	detector := abandon.NewDetector(creds, sinkClient, cfg.Abandon.ThresholdMinutes, &logger)

	retryPolicy := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
	eventWorker := worker.NewEventWorker(db, db, detector, redisClient, retryPolicy, &logger)
	go eventWorker.Start(ctx)

	eventBus := events.NewEventBus()
	subscribeRunEvents(ctx, eventBus, db, cfg, &logger)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(cfg, &logger)
	}

	var lock domain.RunLock
	if redisClient != nil {
		lock = syncer.NewRedisRunLock(redisClient)
	} else {
		lock = syncer.NewMemoryRunLock()
	}

	server := api.NewServer(*cfg, db, db, creds, db, eventWorker, orchestrator, lock, eventBus, &logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("api server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api server shutdown")
	}

	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := logging.Component(baseLogger, "server-main")

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("create database directory")
		return err
	}
	if cfg.Exports.Path != "" {
		if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
			logger.Error().Err(err).Msg("create exports directory")
			return err
		}
	}
	return nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Msg("database init failed")
		return nil, err
	}

	// Seed configured tenants so runs can be triggered right after boot.
	for i := range cfg.Tenants {
		tenant := cfg.Tenants[i]
		if err := db.UpsertTenant(context.Background(), &tenant); err != nil {
			logger.Error().Err(err).Str("tenant_id", tenant.ID).Msg("seed tenant")
		}
	}
	return db, nil
}

// initCredentialStore builds the credential store. With redis
// configured the store is redis-primary with an in-memory failover;
// without it, memory only.
func initCredentialStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.CredentialStore) {
	memory := credstore.NewMemoryStore()

	if cfg.Redis.Address == "" {
		logger.Warn().Msg("redis not configured, credentials held in memory only")
		return nil, memory
	}

	redisClient := credstore.NewRedisClient(cfg.Redis)
	if err := credstore.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, failover store will recover when it returns")
	}

	primary := credstore.NewRedisStore(redisClient, time.Duration(models.DefaultCredentialTTL)*time.Second)
	return redisClient, credstore.NewFailoverStore(primary, memory, logger)
}

// subscribeRunEvents wires in-process consumers to the event bus:
// finished runs are logged with their outcome and, when an export path
// is configured, the run-history workbook is refreshed.
func subscribeRunEvents(ctx context.Context, bus *events.EventBus, db *database.DB, cfg *config.Config, logger *zerolog.Logger) {
	var exporter *report.Exporter
	if cfg.Exports.Path != "" {
		exporter = report.NewExporter(db, cfg.Exports, logger)
	}

	bus.Subscribe(events.EventSyncRunFinished, func(ev *events.Event) error {
		var run models.SyncRun
		if err := json.Unmarshal(ev.Payload, &run); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode run")
			return nil
		}

		logger.Info().
			Str("run_id", run.ID).
			Str("tenant_id", run.TenantID).
			Str("status", run.Status).
			Int("forwarded", run.TotalForwarded).
			Msg("event bus: sync run finished")

		if exporter != nil {
			if _, err := exporter.ExportRuns(ctx, run.TenantID, 0); err != nil {
				logger.Error().Err(err).Str("tenant_id", run.TenantID).Msg("event bus: export run history")
			}
		}
		return nil
	})

	bus.Subscribe(events.EventCredentialRotated, func(ev *events.Event) error {
		logger.Info().RawJSON("payload", ev.Payload).Msg("event bus: credential rotated")
		return nil
	})

	bus.Subscribe(events.EventCheckoutUpdated, func(ev *events.Event) error {
		var payload events.CheckoutEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode checkout")
			return nil
		}
		logger.Debug().
			Str("tenant_id", payload.TenantID).
			Str("cart_token", payload.CartToken).
			Msg("event bus: checkout accepted")
		return nil
	})
}

func startMetricsServer(cfg *config.Config, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
