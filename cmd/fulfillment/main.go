package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/poscart/fulfillment/internal/catalog"
	"github.com/poscart/fulfillment/internal/config"
	"github.com/poscart/fulfillment/internal/fulfillment"
	"github.com/poscart/fulfillment/internal/kafkax"
	"github.com/poscart/fulfillment/internal/orders"
	"github.com/poscart/fulfillment/internal/postgres"
	"github.com/poscart/fulfillment/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", cfg.ServiceName+"-fulfillment")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producers: fulfilled & rejected results on separate topics
	pOK := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderFulfilled, 1024, log)
	pOK.Start(ctx)
	pRJ := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicFulfillmentRejected, 1024, log)
	pRJ.Start(ctx)

	svc := &fulfillment.Service{
		Orders:         &orders.Repo{DB: db},
		Catalog:        &catalog.Repo{DB: db},
		Redis:          rdb,
		Cache:          &orders.StatusCache{RDB: rdb},
		ProducerOK:     pOK,
		ProducerReject: pRJ,
		ServiceName:    cfg.ServiceName + "-fulfillment",
		Log:            log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.FulfillmentGroup,
		orders.TopicOrderPaid, cfg.FulfillmentWorkers, log)

	go func() {
		log.Info("fulfillment consumer started",
			"group", cfg.FulfillmentGroup, "topic", orders.TopicOrderPaid,
			"workers", cfg.FulfillmentWorkers)
		if err := cons.Start(ctx, svc.HandleOrderPaid); err != nil {
			log.Error("consumer exit", "error", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down consumer")
	cancel()
	time.Sleep(500 * time.Millisecond)
	pOK.Close()
	pRJ.Close()
	pOK.WaitClosed()
	pRJ.WaitClosed()
}
