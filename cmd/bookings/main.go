package main

import (
	"context"
	"time"

	"bureau/internal/availability"
	"bureau/internal/bookings/handler"
	"bureau/internal/bookings/service"
	"bureau/internal/bookings/validator"
	"bureau/internal/bootstrap"
	"bureau/pkg/app"
	"bureau/pkg/config"
	"bureau/pkg/kafka"
	kafka_middleware "bureau/pkg/kafka/middleware"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)

	cfg.Log.Info("Starting Bookings service")
	serverApp := app.NewApplication(cfg)
	bookingService := initServices(cfg, serverApp)
	serverApp.SetApp(handler.NewBookingHandler(bookingService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config, serverApp *app.Application) service.BookingService {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	backend, err := bootstrap.Backend(ctx, cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize store", "error", err, "driver", cfg.StoreDriver)
	}
	gateway := bootstrap.Calendar(cfg, backend)
	publisher, closePublisher := initPublisher(cfg)

	resolver := availability.NewResolver(backend, backend, gateway, availability.Options{Location: cfg.Location}, cfg.Log)
	bookingService := service.NewBookingService(
		backend,
		backend,
		resolver,
		gateway,
		publisher,
		validator.NewBookingValidator(cfg.Log),
		service.Options{
			SyncTimeout:    cfg.CalendarSyncTimeout,
			PublishTimeout: cfg.EventPublishTimeout,
			PhoneRegion:    cfg.PhoneRegion,
		},
		cfg.Log,
	)

	// Pending publications and calendar registrations still use the producer.
	serverApp.OnShutdown(func() {
		bookingService.Wait()
		closePublisher()
	})

	cfg.Log.Info("Booking service initialized", "store", cfg.StoreDriver)
	return bookingService
}

func initPublisher(cfg *config.Config) (service.EventPublisher, func()) {
	if !cfg.Kafka.Enabled() {
		cfg.Log.Info("Kafka not configured, booking events are not published")
		return service.NoopPublisher{}, func() {}
	}

	producer, err := kafka.NewProducer(cfg.Kafka, cfg.Kafka.BookingEventsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	return producer, func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	}
}
