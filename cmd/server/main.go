package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sundarv/curryleaf/internal/cache"
	"github.com/sundarv/curryleaf/internal/config"
	"github.com/sundarv/curryleaf/internal/es"
	"github.com/sundarv/curryleaf/internal/geo"
	"github.com/sundarv/curryleaf/internal/handlers"
	"github.com/sundarv/curryleaf/internal/handlers/cart"
	"github.com/sundarv/curryleaf/internal/handlers/checkout"
	"github.com/sundarv/curryleaf/internal/logging"
	"github.com/sundarv/curryleaf/internal/middleware/csrf"
	"github.com/sundarv/curryleaf/internal/middleware/loggingmw"
	"github.com/sundarv/curryleaf/internal/mykafka"
	"github.com/sundarv/curryleaf/internal/pricing"
	"github.com/sundarv/curryleaf/internal/service/token"
	"github.com/sundarv/curryleaf/internal/service/tracking"
	httpserver "github.com/sundarv/curryleaf/internal/transport/http"
)

const menuIndex = "menu_items"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("api", cfg.LogLevel)

	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Error("database init failed", "error", err)
		os.Exit(1)
	}

	// Optional backends degrade to nil clients instead of refusing to boot.
	var menuCache *cache.Client
	if cfg.REDIS_URL != "" {
		menuCache, err = cache.New(cfg.REDIS_URL, time.Duration(cfg.CacheTTLSeconds)*time.Second)
		if err != nil {
			logger.Warn("menu cache disabled", "error", err)
			menuCache = nil
		}
	}

	var producer *mykafka.Producer
	if cfg.KAFKA_ADDRESS != "" {
		producer, err = mykafka.NewProducer([]string{cfg.KAFKA_ADDRESS})
		if err != nil {
			logger.Warn("event publishing disabled", "error", err)
			producer = nil
		}
	}

	var esClient *elasticsearch.Client
	if cfg.ES_URL != "" {
		esClient, err = es.NewClient(cfg)
		if err != nil {
			logger.Warn("search disabled", "error", err)
			esClient = nil
		} else if err := es.EnsureMenuIndex(esClient, menuIndex); err != nil {
			logger.Warn("menu index bootstrap failed", "error", err)
		}
	}

	hub := tracking.NewHub()
	listenerCtx, stopListener := context.WithCancel(context.Background())
	defer stopListener()
	if db.Dialector.Name() == "postgres" {
		listener := tracking.NewListener(cfg.DatabaseDSN(), hub, logger)
		go func() {
			if err := listener.Run(listenerCtx); err != nil {
				logger.Error("order event listener stopped", "error", err)
			}
		}()
	}

	tokens := &token.Service{
		DB:            db,
		JWTSecret:     []byte(cfg.JWT_SECRET),
		RefreshSecret: []byte(cfg.REFRESH_SECRET),
	}
	validator := geo.Validator{
		OriginLat: cfg.RestaurantLat,
		OriginLng: cfg.RestaurantLng,
		MaxKm:     cfg.DeliveryRadius,
	}
	calculator := pricing.Calculator{
		TaxRate:     cfg.TaxRate,
		DeliveryFee: cfg.DeliveryFee,
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	csrfCfg := csrf.DefaultConfig()
	csrfCfg.SkipPaths = []string{
		"/health/live", "/health/ready",
		"/api/v1/register", "/api/v1/login", "/api/v1/logout",
	}
	e.Use(csrf.Middleware(csrfCfg))

	deps := httpserver.Deps{
		DB:     db,
		Tokens: tokens,
		Auth: &handlers.AuthHandler{
			DB:            db,
			JWTSecret:     tokens.JWTSecret,
			RefreshSecret: tokens.RefreshSecret,
			Producer:      producer,
		},
		Menu: &handlers.MenuHandler{
			DB:       db,
			Producer: producer,
			Cache:    menuCache,
			ES:       esClient,
			ESIndex:  menuIndex,
		},
		Search: handlers.NewSearchHandler(esClient, menuIndex),
		Orders: &handlers.OrderHandler{DB: db, Producer: producer},
		Track:  handlers.NewTrackHandler(db, hub),
		Push:   &handlers.PushHandler{DB: db, VAPIDPublic: cfg.VAPID_PUBLIC},
		Cart:   &cart.CartHandler{DB: db, Producer: producer, Pricing: calculator},
		Checkout: &checkout.CheckoutHandler{
			DB:       db,
			Producer: producer,
			Geo:      validator,
			Pricing:  calculator,
		},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 2)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	// A second signal skips the graceful path.
	go func() {
		<-quit
		logger.Error("forced exit")
		os.Exit(1)
	}()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	stopListener()

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}
	if err := menuCache.Close(); err != nil {
		logger.Error("cache close error", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
