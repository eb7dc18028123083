package config

import "time"

const defaultPort = 8080

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "myuser",
	Pass: "mypassword",
	Name: "test_db",
}

var defaultDispatch = Dispatch{
	AcceptTimeout:    3 * time.Minute,
	PreOrderInterval: 30 * time.Minute,
	UrgencyInterval:  10 * time.Minute,
	UrgencyThreshold: time.Hour,
	Timezone:         "UTC",
	JobPollInterval:  time.Second,
	JobBatchSize:     32,
	JobLease:         30 * time.Second,
	JobMaxAttempts:   5,
	OperationTimeout: 3 * time.Second,
}

var defaultOutbox = Outbox{
	PollInterval: time.Second,
	BatchSize:    100,
	MaxAttempts:  10,
}

var defaultKafka = Kafka{
	OrdersTopic: "orders.lifecycle",
	GroupID:     "shipper-dispatch",
	EventsTopic: "dispatch.events",
}

var defaultRateLimit = RateLimit{
	Enabled:    false,
	Rate:       20,
	Burst:      40,
	TTL:        5 * time.Minute,
	MaxBuckets: 10000,
}

var defaultPprof = PprofConfig{
	Enabled: false,
	Addr:    "127.0.0.1:6060",
}

var defaultLog = Log{
	Backend: "slog",
	Level:   "info",
}

// DefaultPort returns the default port.
func DefaultPort() int {
	return defaultPort
}

// DefaultDB returns the default database settings.
func DefaultDB() DB {
	return defaultDB
}

// DefaultDispatch returns the default dispatch timing.
func DefaultDispatch() Dispatch {
	return defaultDispatch
}

// DefaultOutbox returns the default outbox publisher settings.
func DefaultOutbox() Outbox {
	return defaultOutbox
}
