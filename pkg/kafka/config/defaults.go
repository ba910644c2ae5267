package kafka_config

import "time"

const (
	// Empty brokers disable event publishing.
	DefaultKafkaBrokers = ""

	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerRequireAcks  = -1
	DefaultProducerCompression  = "snappy"

	DefaultConsumerStartOffset    = -2 // oldest, so no sync failure is skipped
	DefaultConsumerMaxWait        = 500 * time.Millisecond
	DefaultConsumerCommitInterval = 0 // synchronous commits
	DefaultConsumerMaxRetries     = 5
	DefaultConsumerRetryBackoff   = 2 * time.Second

	DefaultBookingEventsTopic   = "bookings.events"
	DefaultCalendarSyncGroupID  = "calendar-sync"
	DefaultCalendarSyncDLQTopic = "bookings.calendar-sync.dlq"
)
