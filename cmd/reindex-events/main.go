package main

import (
	"context"
	"time"

	"nightpass/internal/api"
	"nightpass/internal/config"
	"nightpass/internal/logger"
)

// Rebuilds the Elasticsearch event index from Postgres.
func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	if !cfg.Elasticsearch.Enabled {
		logger.Fatal("ELASTICSEARCH_ENABLED is false, nothing to reindex")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	app, err := api.Bootstrap(ctx, cfg, "reindex-events")
	if err != nil {
		logger.Fatal("Failed to bootstrap", "error", err)
	}

	start := time.Now()
	n, err := app.Services.Events.Reindex(ctx)
	app.Close()
	if err != nil {
		logger.Fatal("Reindex failed", "error", err, "indexed", n)
	}

	log.Info("Reindex completed", "indexed", n, "duration", time.Since(start).String())
}
