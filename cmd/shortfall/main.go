package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-checkout-orders.git/internal/config"
	kafkax "github.com/ariefcatur/go-checkout-orders.git/internal/kafka"
	"github.com/ariefcatur/go-checkout-orders.git/internal/logging"
	"github.com/ariefcatur/go-checkout-orders.git/internal/orders"
	"github.com/ariefcatur/go-checkout-orders.git/internal/postgres"
	"github.com/ariefcatur/go-checkout-orders.git/internal/redisx"
	"github.com/ariefcatur/go-checkout-orders.git/internal/shortfall"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Base().Error("config", "err", err)
		os.Exit(1)
	}
	log := logging.Init(cfg.App.Name+"-shortfall", cfg.App.LogFile, cfg.App.LogLevel)
	if err := cfg.ValidateWorker(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redisx.New(cfg.Redis.Addr, cfg.Redis.Password)
	defer rdb.Close()

	svc := &shortfall.Service{
		Store:       &shortfall.Store{DB: db},
		Redis:       rdb,
		ServiceName: "shortfall",
	}

	group, workers := cfg.Shortfall.Group, cfg.Shortfall.Workers
	cons := kafkax.NewConsumer(cfg.Kafka.Brokers, group, orders.TopicSettlementShort, workers)
	log.Info("shortfall consumer started", "group", group, "topic", orders.TopicSettlementShort, "workers", workers)
	if err := cons.Start(ctx, svc.Handle); err != nil {
		log.Error("consumer exit", "err", err)
		os.Exit(1)
	}
	log.Info("shortfall consumer stopped")
}
