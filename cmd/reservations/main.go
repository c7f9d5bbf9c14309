package main

import (
	"courtside/internal/reservations/events"
	"courtside/internal/reservations/handler"
	"courtside/internal/reservations/repository"
	"courtside/internal/reservations/service"
	"courtside/internal/reservations/validator"
	"courtside/pkg/app"
	"courtside/pkg/config"
	"courtside/pkg/kafka"
	kafka_config "courtside/pkg/kafka/config"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}

	cfg.LogConfiguration()

	cfg.Log.Info("Starting Reservations service")
	cfg.SetMongo()
	defer cfg.Client.GracefulShutdown()

	reservationService := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewReservationHandler(reservationService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.ReservationService {
	bookingValidator := validator.NewBookingValidator(cfg.Log)
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	ruleRepo := repository.NewMongoRuleRepository(cfg)
	principalRepo := repository.NewMongoPrincipalRepository(cfg)

	reservationService := service.NewReservationService(
		bookingRepo,
		ruleRepo,
		principalRepo,
		bookingValidator,
		initPublisher(cfg),
		cfg,
	)

	cfg.Log.Info("Reservation service initialized", "database", cfg.MongoDatabaseName)
	return reservationService
}

func initPublisher(cfg *config.Config) events.Publisher {
	if !cfg.EventsEnabled {
		cfg.Log.Info("Booking event publishing disabled")
		return events.NewNoopPublisher()
	}

	kafkaCfg := kafka_config.Load()
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, events.TopicBookings, events.TopicDLQ)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	cfg.Log.Info("Booking event publishing enabled", "topic", events.TopicBookings)
	return events.NewKafkaPublisher(producer, cfg.Log)
}
