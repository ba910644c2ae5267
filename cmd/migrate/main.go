package main

import (
	"context"
	"flag"
	"time"

	"bureau/internal/bootstrap"
	"bureau/internal/seed"
	"bureau/pkg/config"
)

const JobName = "migrate"

func main() {
	seedPath := flag.String("seed", "", "optional JSON catalog fixture to upsert after migrating")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.Log.Info("Starting migration job", "driver", cfg.StoreDriver)
	defer cfg.Client.GracefulShutdown(cfg.Log)

	backend, err := bootstrap.Backend(ctx, cfg)
	if err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}
	cfg.Log.Info("Migration completed successfully")

	if *seedPath == "" {
		return
	}
	fixture, err := seed.Load(*seedPath)
	if err != nil {
		cfg.Log.Fatal("Failed to load seed", "error", err)
	}
	if err := fixture.Apply(ctx, backend, backend, cfg.Log); err != nil {
		cfg.Log.Fatal("Failed to apply seed", "error", err, "path", *seedPath)
	}
}
