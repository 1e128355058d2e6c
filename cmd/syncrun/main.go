package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"storebridge/internal/config"
	"storebridge/internal/credstore"
	"storebridge/internal/database"
	"storebridge/internal/domain"
	"storebridge/internal/logging"
	"storebridge/internal/metrics"
	"storebridge/internal/report"
	"storebridge/internal/sink"
	"storebridge/internal/syncer"
	"storebridge/internal/upstream"
)

// syncrun triggers one sync run for a tenant from the command line,
// without going through the API server. Useful for cron and for
// operators recovering a tenant by hand.
func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	var (
		tenantID   = flag.String("tenant", "", "tenant to sync (required)")
		exportPath = flag.Bool("export", false, "write run history to an xlsx after the run")
	)
	flag.Parse()

	if *tenantID == "" {
		flag.Usage()
		return fmt.Errorf("-tenant is required")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	logger := logging.Component(baseLogger, "syncrun")

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	var creds domain.CredentialStore = credstore.NewMemoryStore()
	if cfg.Redis.Address != "" {
		redisClient := credstore.NewRedisClient(cfg.Redis)
		defer credstore.Close(redisClient)
		if err := credstore.Ping(ctx, redisClient); err != nil {
			logger.Warn().Err(err).Msg("redis unavailable")
		}
		creds = credstore.NewRedisStore(redisClient, 0)
	}

	tenant, err := db.GetTenant(ctx, *tenantID)
	if err != nil {
		return err
	}
	if tenant == nil {
		return fmt.Errorf("unknown tenant: %s", *tenantID)
	}

	sinkClient := sink.NewClient(cfg.Sink, &logger)
	dispatcher := syncer.NewDispatcher(sinkClient, &logger)
	orchestrator := syncer.NewOrchestrator(creds, upstream.NewClient(cfg.Upstream), dispatcher, db, &logger)

	runResult := orchestrator.Run(ctx, *tenant, cfg.Sync.PageSize)

	out, err := json.MarshalIndent(runResult, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if *exportPath {
		exporter := report.NewExporter(db, cfg.Exports, &logger)
		path, err := exporter.ExportRuns(ctx, *tenantID, 0)
		if err != nil {
			return err
		}
		fmt.Printf("history written to %s\n", path)
	}

	if runResult.Failed() {
		return fmt.Errorf("run %s finished with status %s", runResult.ID, runResult.Status)
	}
	return nil
}
