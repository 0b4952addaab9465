package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "medsched"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	// The clinic's canonical zone. Every timestamp is normalized to it at
	// the ingestion boundary.
	DefaultTimeZone = "Asia/Kolkata"

	DefaultBookingHorizonDays  = 14
	DefaultSlotDurationMinutes = 30
	DefaultMaxSlotResults      = 100

	DefaultLockWaitTimeout = 30 * time.Second
	DefaultLockTTL         = 10 * time.Second

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultKafkaMirrorTopic    = "mirror-events"
	DefaultKafkaReconcileTopic = "booking-confirmations"
	DefaultKafkaReconcileGroup = "medsched-reconciler"

	DefaultPaginationLimit = 100
)
