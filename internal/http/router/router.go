package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"shipper-dispatch/internal/http/handlers"
)

// Routes groups the handlers and extra middleware mounted by New.
type Routes struct {
	Base     *handlers.Handlers
	Dispatch *handlers.DispatchHandler
	Shippers *handlers.ShipperHandler
	Sweeps   *handlers.SweepHandler
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Middlewares run after request id, real ip and recoverer, in order.
	Middlewares []func(http.Handler) http.Handler
	Timeout     time.Duration
}

// New constructs a chi-based http.Handler with base middleware and routes.
func New(rt Routes) http.Handler {
	if rt.Timeout <= 0 {
		rt.Timeout = 5 * time.Second
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	for _, mw := range rt.Middlewares {
		r.Use(mw)
	}
	r.Use(middleware.Timeout(rt.Timeout))

	r.Get("/ping", rt.Base.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(rt.Base.HealthcheckHead))
	if rt.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.Metrics)
	}

	r.Route("/orders/{id}", func(r chi.Router) {
		r.Post("/dispatch", rt.Dispatch.Dispatch)
		r.Post("/reassign", rt.Dispatch.Reassign)
		r.Post("/confirm-pickup", rt.Dispatch.ConfirmPickup)
		r.Get("/assignments", rt.Dispatch.Assignments)
	})

	r.Route("/shippers", func(r chi.Router) {
		r.Get("/", rt.Shippers.List)
		r.Post("/", rt.Shippers.Register)
		r.Get("/eligible", rt.Shippers.ListEligible)
		r.Get("/{id}", rt.Shippers.GetByID)
		r.Put("/{id}/working", rt.Shippers.SetWorking)
		r.Post("/{id}/recompute-load", rt.Shippers.RecomputeLoad)
	})

	r.Route("/sweeps", func(r chi.Router) {
		r.Post("/pre-orders", rt.Sweeps.PreOrders)
		r.Post("/urgent", rt.Sweeps.Urgent)
	})

	r.NotFound(http.HandlerFunc(rt.Base.NotFound))
	r.MethodNotAllowed(http.HandlerFunc(rt.Base.MethodNotAllowed))

	return r
}
