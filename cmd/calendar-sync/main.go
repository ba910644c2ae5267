package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bureau/internal/bootstrap"
	"bureau/internal/calendarsync"
	"bureau/pkg/config"
	"bureau/pkg/kafka"
	kafka_middleware "bureau/pkg/kafka/middleware"
)

const ServiceName = "calendar-sync"

func main() {
	cfg := config.Load(ServiceName)
	if !cfg.Kafka.Enabled() {
		cfg.Log.Fatal("Calendar sync requires KAFKA_BROKERS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	backend, err := bootstrap.Backend(initCtx, cfg)
	cancel()
	if err != nil {
		cfg.Log.Fatal("Failed to initialize store", "error", err, "driver", cfg.StoreDriver)
	}
	defer cfg.Client.GracefulShutdown(cfg.Log)

	handler := calendarsync.NewHandler(backend, backend, bootstrap.Calendar(cfg, backend), cfg.Log)
	consumer, err := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.BookingEventsTopic,
		cfg.Kafka.CalendarSyncGroupID,
		cfg.Kafka.CalendarSyncDLQTopic,
		handler.Handle,
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))

	cfg.Log.Info("Starting calendar sync worker",
		"topic", cfg.Kafka.BookingEventsTopic,
		"group_id", cfg.Kafka.CalendarSyncGroupID,
	)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Calendar sync worker stopped", "error", err)
	}
	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close Kafka consumer", "error", err)
	}
	cfg.Log.Info("Calendar sync worker stopped")
}
