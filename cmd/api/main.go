package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/lamvt/go-shop-orders/internal/cart"
	"github.com/lamvt/go-shop-orders/internal/config"
	"github.com/lamvt/go-shop-orders/internal/httpx"
	kafkax "github.com/lamvt/go-shop-orders/internal/kafka"
	"github.com/lamvt/go-shop-orders/internal/orders"
	"github.com/lamvt/go-shop-orders/internal/payments"
	"github.com/lamvt/go-shop-orders/internal/postgres"
	"github.com/lamvt/go-shop-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	log.SetFormatter(&log.JSONFormatter{})

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// One producer per topic; the order code partition key keeps per-order
	// event ordering.
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	pPaid := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatus, 1024)
	for _, p := range []*kafkax.Producer{pCreated, pPaid, pCancelled, pStatus} {
		p.Start(ctx)
	}

	orderRepo := &orders.Repo{DB: db}
	orderSvc := &orders.Service{
		Carts: &cart.Repo{DB: db},
		Store: orderRepo,
		Pricing: orders.Pricing{
			FreeShippingThreshold: cfg.FreeShippingThreshold,
			ShippingFee:           cfg.ShippingFee,
		},
		Service:       cfg.ServiceName,
		Cache:         rdb,
		Created:       pCreated,
		Paid:          pPaid,
		Cancelled:     pCancelled,
		StatusChanged: pStatus,
	}

	sepay := &payments.SepayProvider{
		BankCode:      cfg.BankCode,
		AccountNumber: cfg.BankAccountNumber,
		AccountName:   cfg.BankAccountName,
	}
	var online payments.Provider = &payments.MockProvider{BaseURL: cfg.MockPayURL}
	if cfg.OnlineProvider == "gateway" {
		online = payments.NewGatewayProvider(cfg.GatewayURL)
	}

	payRepo := &payments.Repo{DB: db}
	registry := &payments.Registry{
		Orders: orderRepo,
		Store:  payRepo,
		Providers: map[orders.PaymentMethod]payments.Provider{
			orders.MethodBankTransfer: sepay,
			orders.MethodOnline:       online,
		},
	}
	reconciler := &payments.Reconciler{
		Store: payRepo,
		Providers: map[string]payments.Provider{
			sepay.Name():  sepay,
			online.Name(): online,
		},
		Cache:   rdb,
		Paid:    pPaid,
		Service: cfg.ServiceName,
	}

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Svc: orderSvc, Redis: rdb}).Register(router)
	(&httpx.PaymentsHandler{Registry: registry, Reconciler: reconciler, Redis: rdb}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	// Close inboxes first so the flush goroutines drain and exit before the
	// deferred cancel runs.
	for _, p := range []*kafkax.Producer{pCreated, pPaid, pCancelled, pStatus} {
		p.Close()
	}
	for _, p := range []*kafkax.Producer{pCreated, pPaid, pCancelled, pStatus} {
		p.WaitClosed()
	}
}
