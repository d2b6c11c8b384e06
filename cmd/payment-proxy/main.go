package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rawconnect/marketplace/internal/paymentproxy"
)

func main() {
	logger := log.New(os.Stdout, "[payment-proxy] ", log.LstdFlags|log.Lmicroseconds)

	port := env("PORT", "3001")
	cfg := paymentproxy.Config{
		ClientID:        os.Getenv("PAYPAL_CLIENT_ID"),
		Secret:          os.Getenv("PAYPAL_SECRET"),
		PayPalBaseURL:   os.Getenv("PAYPAL_BASE_URL"),
		RedirectBaseURL: env("REDIRECT_BASE_URL", "http://localhost:"+port),
		CurrencyCode:    os.Getenv("CURRENCY_CODE"),
	}
	if cfg.ClientID == "" || cfg.Secret == "" {
		logger.Fatal("PAYPAL_CLIENT_ID and PAYPAL_SECRET must be set")
	}

	server := paymentproxy.NewServer(cfg, logger)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Printf("listening on :%s", port)
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

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
