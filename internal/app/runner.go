package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"
	"golang.org/x/sync/errgroup"

	"shipper-dispatch/internal/config"
	"shipper-dispatch/internal/logx"
	"shipper-dispatch/internal/outbox"
	"shipper-dispatch/internal/scheduler"
	"shipper-dispatch/internal/service/sweeper"
)

const shutdownTimeout = 15 * time.Second

// Runner runs the HTTP service and its background loops.
type Runner struct {
	runFn func(*dig.Container) error
}

// NewRunner returns a new Runner
func NewRunner() *Runner {
	return &Runner{runFn: run}
}

// MustRun starts the service using the provided DI container and blocks until shutdown.
func (r *Runner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil {
		return
	}
	var logger logx.Logger = logx.Nop()
	_ = container.Invoke(func(l logx.Logger) { logger = l })
	defer func() { _ = logger.Sync() }()

	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("shutdown requested, exiting")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("startup aborted: startup timeout exceeded")
	default:
		logger.Error("run error", logx.Err(err))
		log.Fatalf("run error: %v", err)
	}
}

type appIn struct {
	dig.In

	Ctx       context.Context
	Cfg       *config.Config
	Logger    logx.Logger
	Pool      *pgxpool.Pool
	Server    *http.Server
	Pprof     *http.Server `name:"pprof_server" optional:"true"`
	Poller    *scheduler.Poller
	Publisher *outbox.Publisher
	PreOrders *sweeper.PreOrderSweeper
	Urgency   *sweeper.UrgencyMonitor
}

func run(container *dig.Container) error {
	return container.Invoke(appRun)
}

// appRun runs every component under one errgroup: the first failure cancels the rest.
// It returns ctx.Err() after a requested shutdown.
func appRun(in appIn) error {
	g, gctx := errgroup.WithContext(in.Ctx)

	startServer(g, in.Server, in.Logger, "http server")
	if in.Pprof != nil {
		startServer(g, in.Pprof, in.Logger, "pprof server")
	}
	g.Go(func() error { return in.Poller.Run(gctx) })
	g.Go(func() error { return in.Publisher.Run(gctx) })
	g.Go(func() error {
		return runEvery(gctx, in.Logger, "pre_order_sweep", in.Cfg.Dispatch.PreOrderInterval, func(ctx context.Context) error {
			_, err := in.PreOrders.SweepToday(ctx)
			return err
		})
	})
	g.Go(func() error {
		return runEvery(gctx, in.Logger, "urgency_sweep", in.Cfg.Dispatch.UrgencyInterval, func(ctx context.Context) error {
			_, err := in.Urgency.SweepUrgent(ctx)
			return err
		})
	})
	g.Go(func() error {
		waitForShutdown(gctx, in.Logger)
		gracefulShutdown(in.Server, in.Logger, shutdownTimeout)
		if in.Pprof != nil {
			gracefulShutdown(in.Pprof, in.Logger, shutdownTimeout)
		}
		return nil
	})

	err := g.Wait()
	closeResources(in.Pool, in.Logger)
	if err != nil {
		return err
	}
	return in.Ctx.Err()
}

func startServer(g *errgroup.Group, server *http.Server, logger logx.Logger, name string) {
	g.Go(func() error {
		logger.Info(name+" listening", logx.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
}

func waitForShutdown(ctx context.Context, logger logx.Logger) {
	<-ctx.Done()
	logger.Info("shutting down service-dispatch")
}

func gracefulShutdown(srv *http.Server, logger logx.Logger, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Error("graceful shutdown error", logx.String("addr", srv.Addr), logx.Err(err))
	}
}

func closeResources(pool *pgxpool.Pool, logger logx.Logger) {
	if pool != nil {
		pool.Close()
	}
	logger.Info("resources closed")
}
