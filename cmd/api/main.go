package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-checkout-orders.git/internal/catalog"
	"github.com/ariefcatur/go-checkout-orders.git/internal/checkout"
	"github.com/ariefcatur/go-checkout-orders.git/internal/config"
	"github.com/ariefcatur/go-checkout-orders.git/internal/flitt"
	"github.com/ariefcatur/go-checkout-orders.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-checkout-orders.git/internal/kafka"
	"github.com/ariefcatur/go-checkout-orders.git/internal/logging"
	"github.com/ariefcatur/go-checkout-orders.git/internal/orders"
	"github.com/ariefcatur/go-checkout-orders.git/internal/postgres"
	"github.com/ariefcatur/go-checkout-orders.git/internal/reconcile"
	"github.com/ariefcatur/go-checkout-orders.git/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Base().Error("config", "err", err)
		os.Exit(1)
	}
	log := logging.Init(cfg.App.Name, cfg.App.LogFile, cfg.App.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}
	fee, _ := cfg.DeliveryFee()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.Redis.Addr, cfg.Redis.Password)
	defer rdb.Close()

	// Kafka producers, one per topic
	producers := map[string]*kafkax.Producer{
		orders.EventOrderCreated:    kafkax.NewProducer(cfg.Kafka.Brokers, orders.TopicOrderCreated, 1024),
		orders.EventOrderSettled:    kafkax.NewProducer(cfg.Kafka.Brokers, orders.TopicOrderSettled, 1024),
		orders.EventSettlementShort: kafkax.NewProducer(cfg.Kafka.Brokers, orders.TopicSettlementShort, 256),
	}
	events := orders.Fanout{}
	for ev, p := range producers {
		p.Start(ctx)
		events[ev] = p
	}

	orderRepo := &orders.Repo{DB: db}
	gateway := flitt.NewClient(flitt.Config{
		Endpoint:   cfg.Flitt.CheckoutURL,
		MerchantID: cfg.Flitt.MerchantID,
		SecretKey:  cfg.Flitt.SecretKey,
		Currency:   cfg.Flitt.Currency,
		Timeout:    cfg.Flitt.Timeout,
	})
	statusCache := redisx.NewStatusCache(rdb, cfg.Checkout.StatusCacheTTL)

	checkoutSvc := &checkout.Service{
		Catalog: &catalog.Repo{DB: db},
		Orders:  orderRepo,
		Gateway: gateway,
		Idem:    redisx.NewIdempotencyStore(rdb, cfg.Checkout.IdempotencyTTL),
		Events:  events,
		Cfg: checkout.Config{
			Currency:       cfg.Flitt.Currency,
			DeliveryFee:    fee,
			CallbackURL:    cfg.CallbackURL(),
			ResponseURL:    cfg.ResponseURL(),
			AssetsURL:      cfg.Checkout.AssetsURL,
			OrderRefPrefix: cfg.Checkout.OrderRefPrefix,
			ServiceName:    cfg.App.Name,
		},
	}
	reconciler := &reconcile.Reconciler{
		Verifier:    gateway.Signer(),
		Store:       orderRepo,
		Events:      events,
		Cache:       statusCache,
		ServiceName: cfg.App.Name,
	}

	router := httpx.NewRouter(httpx.Options{
		Logger:         logging.New("http"),
		RequestTimeout: cfg.HTTP.RequestTimeout,
		JWTSecret:      cfg.Auth.JWTSecret,
	}, httpx.Handlers{
		Checkout: &httpx.CheckoutHandler{Service: checkoutSvc},
		Payments: &httpx.PaymentsHandler{Reconciler: reconciler},
		Orders:   &httpx.OrdersHandler{Orders: orderRepo, Cache: statusCache},
	})

	// HTTP server
	srv := &http.Server{Addr: cfg.App.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("http listening", "addr", cfg.App.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "err", err)
			cancel()
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	for _, p := range producers {
		p.Close() // close inbox, flush and close writer
	}
	for _, p := range producers {
		p.WaitClosed()
	}
}
