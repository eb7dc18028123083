package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"shipper-dispatch/internal/domain"
)

// NewRateLimitExceededTotal returns a Prometheus counter for the number of rejected HTTP requests due to rate limiting
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of rejected HTTP requests due to rate limiting",
	})
}

// Register registers c, reusing an already registered collector of the same shape.
// The returned collector is the one that is actually exported.
func Register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

// Dispatch counts outcomes of offers, timeouts and pickup confirmations.
type Dispatch struct {
	Offers        *prometheus.CounterVec
	Timeouts      *prometheus.CounterVec
	Confirmations *prometheus.CounterVec
}

// NewDispatch creates unregistered dispatch collectors.
func NewDispatch() *Dispatch {
	return &Dispatch{
		Offers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_offers_total",
			Help: "Offer attempts by outcome",
		}, []string{"outcome"}),
		Timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_timeouts_total",
			Help: "Acceptance timeouts by outcome",
		}, []string{"outcome"}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_confirmations_total",
			Help: "Pickup confirmations by outcome",
		}, []string{"outcome"}),
	}
}

// MustRegister registers all collectors, tolerating repeated registration.
func (d *Dispatch) MustRegister(reg prometheus.Registerer) *Dispatch {
	d.Offers = must(Register(reg, d.Offers))
	d.Timeouts = must(Register(reg, d.Timeouts))
	d.Confirmations = must(Register(reg, d.Confirmations))
	return d
}

func (d *Dispatch) Offer(o domain.Outcome)        { d.Offers.WithLabelValues(string(o)).Inc() }
func (d *Dispatch) Timeout(o domain.Outcome)      { d.Timeouts.WithLabelValues(string(o)).Inc() }
func (d *Dispatch) Confirmation(o domain.Outcome) { d.Confirmations.WithLabelValues(string(o)).Inc() }

// Sweeps tracks the periodic pre-order and urgency sweeps.
type Sweeps struct {
	Duration *prometheus.HistogramVec
	Urgent   prometheus.Gauge
}

// NewSweeps creates unregistered sweep collectors.
func NewSweeps() *Sweeps {
	return &Sweeps{
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispatch_sweep_duration_seconds",
			Help:    "Duration of periodic sweeps",
			Buckets: prometheus.DefBuckets,
		}, []string{"sweep"}),
		Urgent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_urgent_orders",
			Help: "Orders flagged urgent by the last urgency sweep",
		}),
	}
}

// MustRegister registers all collectors, tolerating repeated registration.
func (s *Sweeps) MustRegister(reg prometheus.Registerer) *Sweeps {
	s.Duration = must(Register(reg, s.Duration))
	s.Urgent = must(Register(reg, s.Urgent))
	return s
}

func (s *Sweeps) SweepDuration(sweep string, d time.Duration) {
	s.Duration.WithLabelValues(sweep).Observe(d.Seconds())
}

func (s *Sweeps) UrgentOrders(n int) { s.Urgent.Set(float64(n)) }

// Outbox counts outbox publish attempts by result.
type Outbox struct {
	Events *prometheus.CounterVec
}

// NewOutbox creates unregistered outbox collectors.
func NewOutbox() *Outbox {
	return &Outbox{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_published_total",
			Help: "Outbox publish attempts by result",
		}, []string{"result"}),
	}
}

// MustRegister registers all collectors, tolerating repeated registration.
func (o *Outbox) MustRegister(reg prometheus.Registerer) *Outbox {
	o.Events = must(Register(reg, o.Events))
	return o
}

func (o *Outbox) Published(result string) { o.Events.WithLabelValues(result).Inc() }

// HTTP holds request collectors for the observability middleware.
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewHTTP creates unregistered HTTP collectors.
func NewHTTP() *HTTP {
	return &HTTP{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
}

// MustRegister registers all collectors, tolerating repeated registration.
func (h *HTTP) MustRegister(reg prometheus.Registerer) *HTTP {
	h.Requests = must(Register(reg, h.Requests))
	h.Duration = must(Register(reg, h.Duration))
	return h
}

// Observe records one served request.
func (h *HTTP) Observe(method, path, status string, d time.Duration) {
	h.Requests.WithLabelValues(method, path, status).Inc()
	h.Duration.WithLabelValues(method, path, status).Observe(d.Seconds())
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
