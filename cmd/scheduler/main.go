package main

import (
	"context"

	bookinghandler "medsched/internal/bookings/handler"
	bookingrepository "medsched/internal/bookings/repository"
	bookingservice "medsched/internal/bookings/service"
	bookingvalidator "medsched/internal/bookings/validator"
	mirrorrepository "medsched/internal/mirror/repository"
	mirrorservice "medsched/internal/mirror/service"
	"medsched/internal/reconcile"
	schedulehandler "medsched/internal/schedule/handler"
	schedulerepository "medsched/internal/schedule/repository"
	scheduleservice "medsched/internal/schedule/service"
	schedulevalidator "medsched/internal/schedule/validator"
	slothandler "medsched/internal/slots/handler"
	slotservice "medsched/internal/slots/service"
	"medsched/pkg/app"
	"medsched/pkg/clock"
	"medsched/pkg/config"
	"medsched/pkg/kafka"
	kafka_config "medsched/pkg/kafka/config"
	kafka_middleware "medsched/pkg/kafka/middleware"
	"medsched/pkg/locking"
)

const ServiceName = "scheduler"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting scheduler service")

	services := initServices(cfg)

	if cfg.KafkaEnabled {
		startReconciler(cfg, services.bookings)
	}

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		schedulehandler.NewAvailabilityHandler(services.schedules, cfg.Log),
		slothandler.NewSlotHandler(services.slots, cfg, cfg.Log),
		bookinghandler.NewBookingHandler(services.bookings, cfg, cfg.Log),
	)
	serverApp.Run()
}

type services struct {
	schedules scheduleservice.ScheduleService
	slots     slotservice.SlotService
	bookings  bookingservice.BookingService
}

func initServices(cfg *config.Config) services {
	clk := clock.System()

	scheduleRepo := schedulerepository.NewMongoAvailabilityRepository(cfg)
	schedules := scheduleservice.NewScheduleService(
		scheduleRepo,
		schedulevalidator.NewAvailabilityValidator(cfg.Log),
		cfg,
	)

	mirrorRepo := mirrorrepository.NewMongoMirrorRepository(cfg)
	mirror := mirrorservice.NewMirrorService(mirrorRepo, newMirrorPublisher(cfg), cfg)

	bookingRepo := bookingrepository.NewMongoBookingRepository(cfg)
	lockCollection := cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection("Booking_locks")
	locks := locking.NewMongoProvider(lockCollection, cfg.LockTTL)

	bookings := bookingservice.NewBookingService(
		bookingRepo,
		mirror,
		locks,
		bookingvalidator.NewBookingValidator(cfg.Log),
		clk,
		cfg,
	)

	slots := slotservice.NewSlotService(schedules, bookingRepo, mirror, clk, cfg)

	cfg.Log.Info("Scheduler services initialized", "database", cfg.MongoDatabaseName)
	return services{
		schedules: schedules,
		slots:     slots,
		bookings:  bookings,
	}
}

// newMirrorPublisher returns the Kafka producer for mirror events, or nil
// when eventing is disabled so mirror appends stay Mongo-only.
func newMirrorPublisher(cfg *config.Config) mirrorservice.EventPublisher {
	if !cfg.KafkaEnabled {
		return nil
	}

	kcfg := kafka_config.Load()
	producer, err := kafka.NewProducer(kcfg, cfg.KafkaMirrorTopic, cfg.KafkaMirrorTopic+".dlq")
	if err != nil {
		cfg.Log.Fatal("Failed to create mirror event producer", "error", err)
	}
	if kcfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware())
	}
	return producer
}

func startReconciler(cfg *config.Config, bookings bookingservice.BookingService) {
	consumer, err := reconcile.NewConsumer(cfg, bookings)
	if err != nil {
		cfg.Log.Fatal("Failed to create reconciliation consumer", "error", err)
	}

	go func() {
		cfg.Log.Info("Reconciliation consumer started",
			"topic", cfg.KafkaReconcileTopic,
			"group", cfg.KafkaReconcileGroup,
		)
		if err := consumer.Start(context.Background()); err != nil && err != context.Canceled {
			cfg.Log.Error("Reconciliation consumer stopped", "error", err)
		}
	}()
}
