package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/poscart/fulfillment/internal/auth"
	"github.com/poscart/fulfillment/internal/cart"
	"github.com/poscart/fulfillment/internal/catalog"
	"github.com/poscart/fulfillment/internal/checkout"
	"github.com/poscart/fulfillment/internal/config"
	"github.com/poscart/fulfillment/internal/httpx"
	"github.com/poscart/fulfillment/internal/kafkax"
	"github.com/poscart/fulfillment/internal/metrics"
	"github.com/poscart/fulfillment/internal/orders"
	"github.com/poscart/fulfillment/internal/payment"
	"github.com/poscart/fulfillment/internal/postgres"
	"github.com/poscart/fulfillment/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", cfg.ServiceName)
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

	// Kafka producer: paid orders into the fulfillment queue
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024, log)
	prod.Start(ctx)

	// Services
	authSvc := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	catalogRepo := &catalog.Repo{DB: db}
	orderRepo := &orders.Repo{DB: db}
	statusCache := &orders.StatusCache{RDB: rdb}
	engine := &cart.Engine{
		Carts:   &cart.Store{RDB: rdb},
		Catalog: catalogRepo,
		Log:     log,
	}
	checkoutSvc := &checkout.Service{
		Orders: orderRepo,
		Cache:  statusCache,
		QR: payment.NewQRClient(cfg.PaymentAPIURL, cfg.PaymentBankBIN,
			cfg.PaymentAccountNo, cfg.PaymentAccountName, cfg.PaymentTimeout),
		Log: log,
	}

	// Router & handlers
	m := metrics.NewServerMetrics("api")
	router := httpx.NewRouter()
	router.Use(m.Middleware)
	router.Handle("/metrics", metrics.Handler())

	(&httpx.AuthHandler{Auth: authSvc, Log: log}).Register(router)
	(&httpx.ProductsHandler{Catalog: catalogRepo}).Register(router)
	(&httpx.CartHandler{Engine: engine}).Register(router, authSvc.Middleware)
	(&httpx.OrdersHandler{
		Checkout:      checkoutSvc,
		Orders:        orderRepo,
		Cache:         statusCache,
		Producer:      prod,
		WebhookSecret: cfg.WebhookSecret,
		Service:       cfg.ServiceName,
		Log:           log,
	}).Register(router, authSvc.Middleware)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()
	cancel()
	prod.WaitClosed()
}
