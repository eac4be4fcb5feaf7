package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"docquorum/internal/api"
	"docquorum/internal/config"
	"docquorum/internal/engine"
	"docquorum/internal/storage"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := engine.NewLogger(os.Stderr, cfg.LogLevel)

	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress, Logger: tlog.NewStructuredLogger(logger)})
	if err != nil {
		log.Fatal(err)
	}
	defer tc.Close()

	deps := api.Deps{Temporal: tc, Logger: logger}
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
		deps.Documents = storage.NewDocumentRepo(db)
		deps.Runs = storage.NewRunRepo(db)
		deps.Calls = storage.NewLLMAuditRepo(db)
	}

	h := api.NewServer(cfg, deps)
	logger.Info("docquorum api listening", "addr", cfg.APIAddr, "models", cfg.Models, "oracle", cfg.OracleKind(), "storage", cfg.PostgresURL != "")
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal(err)
	}
}
