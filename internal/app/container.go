package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/dig"

	"shipper-dispatch/internal/config"
	"shipper-dispatch/internal/http/handlers"
	"shipper-dispatch/internal/http/middleware"
	"shipper-dispatch/internal/http/middleware/ratelimit"
	"shipper-dispatch/internal/http/pprofserver"
	"shipper-dispatch/internal/http/router"
	"shipper-dispatch/internal/logx"
	"shipper-dispatch/internal/metrics"
	"shipper-dispatch/internal/outbox"
	"shipper-dispatch/internal/repository"
	"shipper-dispatch/internal/scheduler"
	"shipper-dispatch/internal/service/dispatch"
	"shipper-dispatch/internal/service/orders"
	"shipper-dispatch/internal/service/shipper"
	"shipper-dispatch/internal/service/sweeper"
	"shipper-dispatch/internal/transport/kafka"
)

type dbConnectFunc func(ctx context.Context, logger logx.Logger, dsn string, retries int, delay time.Duration) (*pgxpool.Pool, error)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	dbConnect dbConnectFunc
	logFatalf func(string, ...interface{})
}

// NewContainerBuilder returns a new dig container builder
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		dbConnect: connectDbWithRetry,
		logFatalf: log.Fatalf,
	}
}

// WithDBConnect sets the database connection function
func (b *ContainerBuilder) WithDBConnect(fn dbConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds the container of the HTTP service: API, timeout poller,
// sweeps and outbox publisher.
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx, registerHTTP, registerBackground)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

// MustBuildWorker builds the container of the order lifecycle worker.
func (b *ContainerBuilder) MustBuildWorker(ctx context.Context) *dig.Container {
	container, err := b.build(ctx, registerKafka)
	if err != nil {
		b.logFatalf("failed to build worker container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) build(ctx context.Context, extra ...func(*dig.Container) error) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerMetrics(container); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if err := registerDb(container, b.dbConnect); err != nil {
		return nil, fmt.Errorf("DB: %w", err)
	}
	if err := registerDomainServices(container); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	for _, register := range extra {
		if err := register(container); err != nil {
			return nil, err
		}
	}
	return container, nil
}

// MustBuildContainer builds and returns a new dig container
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

// MustBuildWorkerContainer builds and returns a new worker dig container
func MustBuildWorkerContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuildWorker(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context) error {
	return provideAll(container,
		func() context.Context { return ctx },
		config.Load,
		NewLogger,
		func(cfg *config.Config) (*time.Location, error) { return cfg.Dispatch.Location() },
	)
}

func registerMetrics(container *dig.Container) error {
	return provideAll(container,
		func() prometheus.Registerer { return prometheus.DefaultRegisterer },
		func() prometheus.Gatherer { return prometheus.DefaultGatherer },
		provideMetrics,
	)
}

func registerDb(container *dig.Container, dbConnect dbConnectFunc) error {
	providerDB := func(ctx context.Context, cfg *config.Config, logger logx.Logger) (*pgxpool.Pool, error) {
		pool, err := dbConnect(ctx, logger, cfg.DB.DSN(), 10, time.Second)
		if err != nil {
			return nil, err
		}
		if cfg.DB.AutoMigrate {
			if err := repository.EnsureSchema(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("ensure schema: %w", err)
			}
			logger.Info("database schema ensured")
		}
		return pool, nil
	}
	return provideAll(container,
		providerDB,
		repository.NewDispatchRepo,
		repository.NewShipperRepo,
		repository.NewOrderRepo,
		repository.NewJobRepo,
		repository.NewOutboxRepo,
	)
}

func registerDomainServices(container *dig.Container) error {
	return provideAll(container,
		func(cfg *config.Config) *scheduler.Scheduler {
			return scheduler.New(cfg.Dispatch.AcceptTimeout)
		},
		func(
			repo *repository.DispatchRepo,
			sch *scheduler.Scheduler,
			cfg *config.Config,
			loc *time.Location,
			m *metrics.Dispatch,
			logger logx.Logger,
		) *dispatch.Service {
			return dispatch.NewService(repo, sch, cfg.Dispatch.OperationTimeout, logger,
				dispatch.WithLocation(loc),
				dispatch.WithMetrics(m),
			)
		},
		func(repo *repository.OrderRepo, cfg *config.Config) *dispatch.Query {
			return dispatch.NewQuery(repo, cfg.Dispatch.OperationTimeout)
		},
		func(repo *repository.ShipperRepo, cfg *config.Config, logger logx.Logger) *shipper.Registry {
			return shipper.NewRegistry(repo, cfg.Dispatch.OperationTimeout, logger)
		},
		func(repo *repository.OutboxRepo, logger logx.Logger) *outbox.Sink {
			return outbox.NewSink(repo, logger)
		},
		func(
			repo *repository.OrderRepo,
			svc *dispatch.Service,
			sink *outbox.Sink,
			m *metrics.Sweeps,
			loc *time.Location,
			logger logx.Logger,
		) *sweeper.PreOrderSweeper {
			return sweeper.NewPreOrderSweeper(repo, svc, sink, m, loc, logger)
		},
		func(
			repo *repository.OrderRepo,
			sink *outbox.Sink,
			m *metrics.Sweeps,
			cfg *config.Config,
			loc *time.Location,
			logger logx.Logger,
		) *sweeper.UrgencyMonitor {
			return sweeper.NewUrgencyMonitor(repo, sink, m, cfg.Dispatch.UrgencyThreshold, loc, logger)
		},
	)
}

func registerBackground(container *dig.Container) error {
	return provideAll(container,
		func(repo *repository.JobRepo, svc *dispatch.Service, cfg *config.Config, logger logx.Logger) *scheduler.Poller {
			d := cfg.Dispatch
			return scheduler.NewPoller(repo, svc.HandleTimeout, scheduler.PollerConfig{
				Interval:    d.JobPollInterval,
				Lease:       d.JobLease,
				BatchSize:   d.JobBatchSize,
				MaxAttempts: d.JobMaxAttempts,
			}, logger)
		},
		newEventProducer,
		func(
			repo *repository.OutboxRepo,
			producer outbox.Producer,
			m *metrics.Outbox,
			cfg *config.Config,
			logger logx.Logger,
		) *outbox.Publisher {
			return outbox.NewPublisher(repo, producer, m, outbox.Config{
				Topic:        cfg.Kafka.EventsTopic,
				PollInterval: cfg.Outbox.PollInterval,
				BatchSize:    cfg.Outbox.BatchSize,
				MaxAttempts:  cfg.Outbox.MaxAttempts,
			}, logger)
		},
	)
}

// newEventProducer publishes to Kafka when brokers are configured and to the log otherwise.
func newEventProducer(cfg *config.Config, logger logx.Logger) (outbox.Producer, error) {
	if !cfg.Kafka.Enabled() {
		logger.Warn("kafka brokers not configured, dispatch events go to the log")
		return kafka.NewLogProducer(logger), nil
	}
	p, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return p, nil
}

func registerKafka(container *dig.Container) error {
	return provideAll(container,
		func(svc *dispatch.Service, logger logx.Logger) *orders.Processor {
			return orders.NewProcessor(svc, logger)
		},
		makeOrdersKafka,
		func(cfg *config.Config, logger logx.Logger, h kafka.HandleFunc) (*kafka.Consumer, error) {
			k := cfg.Kafka
			return kafka.NewConsumer(logger, k.Brokers, k.GroupID, k.OrdersTopic, h)
		},
	)
}

type routerIn struct {
	dig.In

	Logger    logx.Logger
	Gatherer  prometheus.Gatherer
	HTTP      *metrics.HTTP
	RateLimit *ratelimit.Middleware
	Base      *handlers.Handlers
	Dispatch  *handlers.DispatchHandler
	Shippers  *handlers.ShipperHandler
	Sweeps    *handlers.SweepHandler
}

func newRouter(in routerIn) http.Handler {
	return router.New(router.Routes{
		Base:     in.Base,
		Dispatch: in.Dispatch,
		Shippers: in.Shippers,
		Sweeps:   in.Sweeps,
		Metrics:  promhttp.HandlerFor(in.Gatherer, promhttp.HandlerOpts{}),
		Middlewares: []func(http.Handler) http.Handler{
			middleware.Observability(in.Logger, in.HTTP),
			in.RateLimit.Handler(),
		},
	})
}

type serversOut struct {
	dig.Out

	Main  *http.Server
	Pprof *http.Server `name:"pprof_server"`
}

func newServers(cfg *config.Config, mux http.Handler, logger logx.Logger) serversOut {
	out := serversOut{
		Main: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
	if cfg.Pprof.Enabled {
		out.Pprof = pprofserver.New(pprofserver.Config{
			Addr: cfg.Pprof.Addr,
			User: cfg.Pprof.User,
			Pass: cfg.Pprof.Pass,
		}, logger)
	}
	return out
}

func registerHTTP(container *dig.Container) error {
	return provideAll(container,
		handlers.New,
		func(l logx.Logger, svc *dispatch.Service, q *dispatch.Query) *handlers.DispatchHandler {
			return handlers.NewDispatchHandler(l, svc, q)
		},
		func(l logx.Logger, r *shipper.Registry) *handlers.ShipperHandler {
			return handlers.NewShipperHandler(l, r)
		},
		func(l logx.Logger, p *sweeper.PreOrderSweeper, u *sweeper.UrgencyMonitor) *handlers.SweepHandler {
			return handlers.NewSweepHandler(l, p, u)
		},
		newRateLimiter,
		newRateLimitMiddleware,
		newRouter,
		newServers,
	)
}
