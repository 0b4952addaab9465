package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvTimeZone            = "TIME_ZONE"
	EnvBookingHorizonDays  = "BOOKING_HORIZON_DAYS"
	EnvDefaultSlotDuration = "DEFAULT_SLOT_DURATION_MIN"
	EnvMaxSlotResults      = "MAX_SLOT_RESULTS"

	EnvLockWaitTimeout = "LOCK_WAIT_TIMEOUT"
	EnvLockTTL         = "LOCK_TTL"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvKafkaEnabled        = "KAFKA_ENABLED"
	EnvKafkaMirrorTopic    = "KAFKA_MIRROR_TOPIC"
	EnvKafkaReconcileTopic = "KAFKA_RECONCILE_TOPIC"
	EnvKafkaReconcileGroup = "KAFKA_RECONCILE_GROUP"
)
