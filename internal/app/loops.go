package app

import (
	"context"
	"time"

	"shipper-dispatch/internal/logx"
)

// runEvery calls fn on every tick until ctx is cancelled. Errors are logged
// and the loop keeps going; a sweep that fails now is retried on the next tick.
func runEvery(ctx context.Context, logger logx.Logger, name string, interval time.Duration, fn func(context.Context) error) error {
	logger = logger.With(logx.String("loop", name))
	logger.Info("periodic loop started", logx.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("periodic loop stopped")
			return nil
		case <-ticker.C:
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				logger.Error("periodic loop iteration failed", logx.Err(err))
			}
		}
	}
}
