package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rawconnect/marketplace/internal/cart"
	"github.com/rawconnect/marketplace/internal/catalog"
	"github.com/rawconnect/marketplace/internal/checkout"
	"github.com/rawconnect/marketplace/internal/config"
	"github.com/rawconnect/marketplace/internal/db"
	"github.com/rawconnect/marketplace/internal/events"
	"github.com/rawconnect/marketplace/internal/geo"
	httpapi "github.com/rawconnect/marketplace/internal/http"
	"github.com/rawconnect/marketplace/internal/media"
	"github.com/rawconnect/marketplace/internal/order"
	"github.com/rawconnect/marketplace/internal/payment"
	"github.com/rawconnect/marketplace/internal/review"
)

func main() {
	logger := log.New(os.Stdout, "[rawconnect] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
		logger.Fatalf("db migrate: %v", err)
	}

	sqlDB := db.MustOpen(cfg.DatabaseDSN)
	defer sqlDB.Close()

	pool := db.MustOpenPool(ctx, cfg.DatabaseDSN)
	defer pool.Close()

	// --- AMQP ---
	conn := events.MustDialRabbit(cfg.RabbitURL)
	defer conn.Close()

	publisher, err := events.NewPublisher(conn, events.NewSequenceRepository(sqlDB))
	if err != nil {
		logger.Fatalf("events: %v", err)
	}

	// --- repositories and services ---
	catalogRepo := catalog.NewPostgresRepository(pool)
	cartSvc := cart.NewService(cart.NewRepository(sqlDB))
	orderRepo := order.NewRepository(sqlDB)
	orderSvc := order.NewService(orderRepo, publisher, logger)
	checkoutSvc := checkout.NewService(pool, publisher, logger)
	reviewSvc := review.NewService(pool, catalogRepo)
	cardRepo := payment.NewCardRepository(sqlDB)

	// --- external collaborators ---
	upstream := &http.Client{Timeout: cfg.UpstreamTimeout}

	paymentClient, err := payment.NewClient(cfg.PaymentProxyURL, upstream)
	if err != nil {
		logger.Fatalf("payment client: %v", err)
	}
	geocoder := geo.NewGeocoder(cfg.GeocodeBaseURL, cfg.GeocodeAPIKey, upstream)
	uploader := media.NewUploader(cfg.MediaUploadURL, os.Getenv("MEDIA_UPLOAD_KEY"), upstream)

	router := httpapi.NewRouter(httpapi.Deps{
		Logger: logger,

		Products: httpapi.NewProductHandler(catalogRepo, uploader),
		Cart:     httpapi.NewCartHandler(cartSvc, catalogRepo),
		Checkout: httpapi.NewCheckoutHandler(checkoutSvc, cardRepo, paymentClient),
		Orders:   httpapi.NewOrderHandler(orderRepo, orderSvc),
		Reviews:  httpapi.NewReviewHandler(reviewSvc),
		Payments: httpapi.NewPaymentHandler(cardRepo, paymentClient),
		Geo:      httpapi.NewGeoHandler(geocoder),

		CORSAllowOrigins: cfg.CORSAllowOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Printf("listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown error: %v", err)
	}
	logger.Printf("shutdown complete")
}
