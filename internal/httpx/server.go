package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	Logger         *slog.Logger
	RequestTimeout time.Duration
	JWTSecret      string
}

// Handlers that are nil are simply not mounted.
type Handlers struct {
	Checkout *CheckoutHandler
	Payments *PaymentsHandler
	Orders   *OrdersHandler
}

func NewRouter(opts Options, h Handlers) *chi.Mux {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(opts.Logger), middleware.Recoverer, Metrics)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// The provider authenticates with the payload signature, not a session.
	if h.Payments != nil {
		h.Payments.Register(r)
	}
	r.Group(func(r chi.Router) {
		r.Use(Auth(opts.JWTSecret))
		if h.Checkout != nil {
			h.Checkout.Register(r)
		}
		if h.Orders != nil {
			h.Orders.Register(r)
		}
	})
	return r
}
