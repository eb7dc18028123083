package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config stores service settings.
type Config struct {
	Port      int
	DB        DB
	Dispatch  Dispatch
	Outbox    Outbox
	Kafka     Kafka
	RateLimit RateLimit
	Pprof     PprofConfig
	Log       Log
}

// DB stores Postgres connection settings.
type DB struct {
	Host        string
	Port        string
	User        string
	Pass        string
	Name        string
	AutoMigrate bool
}

// DSN returns a pgx connection string.
func (d DB) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Pass),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Dispatch stores the timing of the dispatch core.
type Dispatch struct {
	AcceptTimeout    time.Duration
	PreOrderInterval time.Duration
	UrgencyInterval  time.Duration
	UrgencyThreshold time.Duration
	Timezone         string
	JobPollInterval  time.Duration
	JobBatchSize     int
	JobLease         time.Duration
	JobMaxAttempts   int
	OperationTimeout time.Duration
}

// Location resolves Timezone; "today" for sweeps is computed in it.
func (d Dispatch) Location() (*time.Location, error) {
	return time.LoadLocation(d.Timezone)
}

// Outbox stores outbox publisher settings.
type Outbox struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// Kafka stores broker settings. Empty brokers disable Kafka entirely.
type Kafka struct {
	Brokers     []string
	OrdersTopic string
	GroupID     string
	EventsTopic string
}

// Enabled reports whether brokers are configured.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

// RateLimit stores per-IP token bucket settings.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// PprofConfig stores pprof server settings.
type PprofConfig struct {
	Enabled bool
	Addr    string
	User    string
	Pass    string
}

// Log stores logger settings.
type Log struct {
	Backend string
	Level   string
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := &Config{
		Port:      defaultPort,
		DB:        defaultDB,
		Dispatch:  defaultDispatch,
		Outbox:    defaultOutbox,
		Kafka:     defaultKafka,
		RateLimit: defaultRateLimit,
		Pprof:     defaultPprof,
		Log:       defaultLog,
	}

	var env envReader
	env.setInt("PORT", &cfg.Port)

	env.setString("POSTGRES_HOST", &cfg.DB.Host)
	env.setString("POSTGRES_PORT", &cfg.DB.Port)
	env.setString("POSTGRES_USER", &cfg.DB.User)
	env.setString("POSTGRES_PASSWORD", &cfg.DB.Pass)
	env.setString("POSTGRES_DB", &cfg.DB.Name)
	env.setBool("DB_AUTO_MIGRATE", &cfg.DB.AutoMigrate)

	env.setDuration("DISPATCH_ACCEPT_TIMEOUT", &cfg.Dispatch.AcceptTimeout)
	env.setDuration("DISPATCH_PREORDER_INTERVAL", &cfg.Dispatch.PreOrderInterval)
	env.setDuration("DISPATCH_URGENCY_INTERVAL", &cfg.Dispatch.UrgencyInterval)
	env.setDuration("DISPATCH_URGENCY_THRESHOLD", &cfg.Dispatch.UrgencyThreshold)
	env.setString("DISPATCH_TIMEZONE", &cfg.Dispatch.Timezone)
	env.setDuration("DISPATCH_JOB_POLL_INTERVAL", &cfg.Dispatch.JobPollInterval)
	env.setInt("DISPATCH_JOB_BATCH", &cfg.Dispatch.JobBatchSize)
	env.setDuration("DISPATCH_JOB_LEASE", &cfg.Dispatch.JobLease)
	env.setInt("DISPATCH_JOB_MAX_ATTEMPTS", &cfg.Dispatch.JobMaxAttempts)
	env.setDuration("DISPATCH_OPERATION_TIMEOUT", &cfg.Dispatch.OperationTimeout)

	env.setDuration("OUTBOX_POLL_INTERVAL", &cfg.Outbox.PollInterval)
	env.setInt("OUTBOX_BATCH", &cfg.Outbox.BatchSize)
	env.setInt("OUTBOX_MAX_ATTEMPTS", &cfg.Outbox.MaxAttempts)

	env.setList("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	env.setString("KAFKA_ORDERS_TOPIC", &cfg.Kafka.OrdersTopic)
	env.setString("KAFKA_GROUP_ID", &cfg.Kafka.GroupID)
	env.setString("KAFKA_EVENTS_TOPIC", &cfg.Kafka.EventsTopic)

	env.setBool("RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled)
	env.setFloat("RATE_LIMIT_RATE", &cfg.RateLimit.Rate)
	env.setInt("RATE_LIMIT_BURST", &cfg.RateLimit.Burst)
	env.setDuration("RATE_LIMIT_TTL", &cfg.RateLimit.TTL)
	env.setInt("RATE_LIMIT_MAX_BUCKETS", &cfg.RateLimit.MaxBuckets)

	env.setBool("PPROF_ENABLED", &cfg.Pprof.Enabled)
	env.setString("PPROF_ADDR", &cfg.Pprof.Addr)
	env.setString("PPROF_USER", &cfg.Pprof.User)
	env.setString("PPROF_PASSWORD", &cfg.Pprof.Pass)

	env.setString("LOG_BACKEND", &cfg.Log.Backend)
	env.setString("LOG_LEVEL", &cfg.Log.Level)

	if env.err != nil {
		return nil, env.err
	}

	pflag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	pflag.DurationVar(&cfg.Dispatch.AcceptTimeout, "accept-timeout", cfg.Dispatch.AcceptTimeout, "time a shipper has to accept an offer")
	pflag.StringVar(&cfg.Dispatch.Timezone, "timezone", cfg.Dispatch.Timezone, "timezone that defines the delivery calendar day")
	if err := pflag.CommandLine.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if p, err := strconv.Atoi(c.DB.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("invalid POSTGRES_PORT: %q", c.DB.Port)
	}
	d := c.Dispatch
	if d.AcceptTimeout <= 0 || d.PreOrderInterval <= 0 || d.UrgencyInterval <= 0 ||
		d.UrgencyThreshold <= 0 || d.JobPollInterval <= 0 || d.JobLease <= 0 {
		return fmt.Errorf("dispatch durations must be positive")
	}
	if d.JobBatchSize <= 0 || d.JobMaxAttempts <= 0 {
		return fmt.Errorf("dispatch job batch and attempts must be positive")
	}
	if _, err := d.Location(); err != nil {
		return fmt.Errorf("invalid DISPATCH_TIMEZONE %q: %w", d.Timezone, err)
	}
	if c.Outbox.PollInterval <= 0 || c.Outbox.BatchSize <= 0 || c.Outbox.MaxAttempts <= 0 {
		return fmt.Errorf("outbox settings must be positive")
	}
	switch c.Log.Backend {
	case "slog", "zap":
	default:
		return fmt.Errorf("invalid LOG_BACKEND: %q", c.Log.Backend)
	}
	return nil
}

// envReader collects the first parse error so Load can report it once.
type envReader struct{ err error }

func (e *envReader) lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func (e *envReader) fail(key, v string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) setFloat(key string, dst *float64) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = f
}

func (e *envReader) setBool(key string, dst *bool) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = b
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = d
}

func (e *envReader) setList(key string, dst *[]string) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	out := make([]string, 0, 4)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
