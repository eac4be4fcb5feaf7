package main

import (
	"context"
	"log"
	"os"
	"time"

	"docquorum/internal/activities"
	"docquorum/internal/config"
	"docquorum/internal/engine"
	"docquorum/internal/report"
	"docquorum/internal/storage"
	"docquorum/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := engine.NewLogger(os.Stderr, cfg.LogLevel)

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress, Logger: tlog.NewStructuredLogger(logger)})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	files := report.NewFileRecorder(cfg.ReportDir)
	files.GraphThreshold = cfg.GraphThreshold
	files.Logger = logger
	sinks := report.Multi{files}
	opts := engine.Options{Logger: logger, Unpaced: true}
	var sections activities.SectionSource

	if cfg.PostgresURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		db, err := storage.NewDB(ctx, cfg.PostgresURL)
		if err == nil {
			err = db.EnsureSchema(ctx)
		}
		cancel()
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
		sinks = append(sinks, storage.NewRunRepo(db))
		sections = storage.NewDocumentRepo(db)
		opts.Calls = storage.NewLLMAuditRepo(db)
	}
	opts.Recorder = sinks

	eng, err := engine.New(context.Background(), cfg, opts)
	if err != nil {
		log.Fatal(err)
	}

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{MaxConcurrentActivityExecutionSize: max(cfg.Concurrency, 1)})
	workflows.Register(w)
	activities.Register(w, activities.New(eng, sections, sinks))

	logger.Info("docquorum worker listening", "temporal", cfg.TemporalAddress, "queue", cfg.TemporalTaskQueue, "models", cfg.Models, "oracle", cfg.OracleKind(), "reports", cfg.ReportDir)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
