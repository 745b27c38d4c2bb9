// GCMT Shop Payments Service
//
// This is the main entry point for the hosted-checkout payment service.
// It wires up all dependencies and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/gcmtshop/cca-payments/config"
	"github.com/gcmtshop/cca-payments/internal/api"
	"github.com/gcmtshop/cca-payments/internal/domain"
	"github.com/gcmtshop/cca-payments/internal/metrics"
	"github.com/gcmtshop/cca-payments/internal/payment"
	"github.com/gcmtshop/cca-payments/internal/platform/ccavenue"
	"github.com/gcmtshop/cca-payments/internal/platform/shopcore"
	"github.com/gcmtshop/cca-payments/internal/platform/store"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg.Log)
	log.Info("Starting GCMT Shop Payments Service...")

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Configuration error")
	}
	log.WithFields(logrus.Fields{
		"port":        cfg.Server.Port,
		"merchant_id": cfg.Gateway.MerchantID,
		"shop_core":   cfg.Core.BaseURL,
	}).Info("Configuration loaded")

	// Infrastructure Layer
	db, err := store.OpenMySQL(store.DBOptions{
		DSN:             cfg.Database.DSN,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	if cfg.Database.AutoMigrate {
		if err := store.AutoMigrate(db); err != nil {
			log.WithError(err).Fatal("Failed to migrate database")
		}
	}
	orders := store.NewOrderRepository(db)

	gateway, err := ccavenue.NewAdapter(cfg.Gateway.WorkingKey, cfg.Gateway.AccessCode)
	if err != nil {
		log.WithError(err).Fatal("Failed to configure gateway")
	}

	var notifier domain.ShopNotifier
	if cfg.Core.BaseURL != "" {
		notifier = shopcore.NewClient(cfg.Core.BaseURL, cfg.Core.APIKey)
	} else {
		log.Warn("SHOP_CORE_URL not set, shop backend will not be notified")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Service Layer
	paymentService := payment.NewService(
		orders,  // implements domain.OrderRepository
		gateway, // implements domain.PaymentGateway
		notifier,
		payment.Settings{
			MerchantID:      cfg.Gateway.MerchantID,
			RedirectURL:     cfg.Gateway.RedirectURL,
			CancelURL:       cfg.Gateway.CancelURL,
			DefaultCurrency: cfg.Gateway.Currency,
			DefaultLanguage: cfg.Gateway.Language,
			WriteTimeout:    cfg.Server.WriteTimeout,
		},
		log,
		metrics.New(reg),
	)

	// API Layer
	handler := api.NewHandler(paymentService, api.Redirects{
		SuccessBase: cfg.Frontend.SuccessURL,
		FailureBase: cfg.Frontend.FailureURL,
	}, log)
	router := api.SetupRouter(handler, api.RouterConfig{
		GinMode:        cfg.Server.GinMode,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
		Limiter:        api.NewIPRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
		Log:            log,
		Gatherer:       reg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infof("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server shutdown")
	}
	paymentService.Wait()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("Server stopped")
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
