package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"shipper-dispatch/internal/metrics"
)

type metricsOut struct {
	dig.Out

	RateLimitExceededTotal prometheus.Counter `name:"rate_limit_exceeded_total"`
	Dispatch               *metrics.Dispatch
	Sweeps                 *metrics.Sweeps
	Outbox                 *metrics.Outbox
	HTTP                   *metrics.HTTP
}

// provideMetrics registers every collector once; a second container in the
// same process reuses the collectors already registered.
func provideMetrics(reg prometheus.Registerer) (metricsOut, error) {
	rl, err := metrics.Register(reg, metrics.NewRateLimitExceededTotal())
	if err != nil {
		return metricsOut{}, fmt.Errorf("register rate limit counter: %w", err)
	}
	return metricsOut{
		RateLimitExceededTotal: rl,
		Dispatch:               metrics.NewDispatch().MustRegister(reg),
		Sweeps:                 metrics.NewSweeps().MustRegister(reg),
		Outbox:                 metrics.NewOutbox().MustRegister(reg),
		HTTP:                   metrics.NewHTTP().MustRegister(reg),
	}, nil
}
