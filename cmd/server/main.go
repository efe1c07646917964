package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mcoutinho/atelie-shop/internal/config"
	"github.com/mcoutinho/atelie-shop/internal/es"
	"github.com/mcoutinho/atelie-shop/internal/handlers"
	"github.com/mcoutinho/atelie-shop/internal/handlers/cart"
	"github.com/mcoutinho/atelie-shop/internal/handlers/order"
	"github.com/mcoutinho/atelie-shop/internal/logging"
	"github.com/mcoutinho/atelie-shop/internal/mykafka"
	"github.com/mcoutinho/atelie-shop/internal/payment"
	"github.com/mcoutinho/atelie-shop/internal/service"
	"github.com/mcoutinho/atelie-shop/internal/shipping"
	httpserver "github.com/mcoutinho/atelie-shop/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LogLevel)

	db, err := config.InitDB(context.Background(), cfg)
	if err != nil {
		log.Fatalf("inicializando banco: %v", err)
	}

	var producer *mykafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = mykafka.NewProducer(cfg.KafkaBrokers)
	}

	esClient, err := es.NewClient(cfg)
	if err != nil {
		log.Fatalf("inicializando elasticsearch: %v", err)
	}

	tokens := &service.TokenService{
		DB:            db,
		JWTSecret:     []byte(cfg.JWTSecret),
		RefreshSecret: []byte(cfg.RefreshSecret),
	}
	paymentClient := payment.NewClient(cfg.PaymentURL, cfg.PaymentToken)

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), logging.RequestLogger(logger))

	deps := httpserver.Deps{
		AuthHandler:    &handlers.AuthHandler{DB: db, Tokens: tokens, Producer: producer},
		ProductHandler: &handlers.ProductHandler{DB: db, ES: esClient, Producer: producer},
		CartHandler:    &cart.CartHandler{DB: db, Producer: producer},
		OrderHandler:   &order.OrderHandler{DB: db, Producer: producer},
		FreteHandler: &shipping.FreteHandler{
			DB:        db,
			Client:    shipping.NewClient(cfg.FreteURL, cfg.FreteToken),
			OriginCEP: cfg.LojaCEP,
		},
		PaymentHandler: &payment.PaymentHandler{DB: db, Client: paymentClient, Producer: producer},
		Tokens:         tokens,
	}
	httpserver.Register(e, &deps)

	pollCtx, stopPoller := context.WithCancel(context.Background())
	poller := &payment.Poller{
		DB:       db,
		Provider: paymentClient,
		Producer: producer,
		Interval: cfg.PaymentPollInterval,
		Logger:   logger,
	}
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Run(pollCtx)
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	stopPoller()
	<-pollerDone

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	log.Println("shutdown complete")
}
