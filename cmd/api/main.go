package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/estimax/estimax-api/internal/config"
	"github.com/estimax/estimax-api/internal/domain/admin"
	"github.com/estimax/estimax-api/internal/domain/ledger"
	"github.com/estimax/estimax-api/internal/domain/purchase"
	"github.com/estimax/estimax-api/internal/domain/sysconfig"
	"github.com/estimax/estimax-api/internal/domain/user"
	"github.com/estimax/estimax-api/internal/middleware"
	"github.com/estimax/estimax-api/internal/pkg/database"
	"github.com/estimax/estimax-api/internal/pkg/jwt"
	"github.com/estimax/estimax-api/internal/pkg/logger"
	"github.com/estimax/estimax-api/internal/pkg/response"
	"github.com/estimax/estimax-api/internal/pkg/revenuecat"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Estimax API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, running without config cache")
		redis = nil
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTTokenTTL)

	rcClient := revenuecat.NewClient(revenuecat.Config{
		APIKey:        cfg.RevenueCatAPIKey,
		WebhookSecret: cfg.RevenueCatWebhookSecret,
	})

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	sysconfigRepo := sysconfig.NewRepository(db)
	adminRepo := admin.NewRepository(db)

	// ---------- Services ----------
	sysconfigService := sysconfig.NewService(sysconfigRepo, redis)
	ledgerService := ledger.NewService(ledgerRepo, sysconfigService)
	purchaseService := purchase.NewService(userRepo, ledgerRepo, rcClient)
	adminService := admin.NewService(adminRepo, jwtService, sysconfigService)

	// ---------- Handlers ----------
	ledgerHandler := ledger.NewHandler(ledgerService)
	purchaseHandler := purchase.NewHandler(purchaseService, rcClient)
	adminHandler := admin.NewHandler(adminService, jwtService)

	// ---------- Background workers ----------
	sweeper := ledger.NewSweeper(ledgerRepo, cfg.ReservationTTL, cfg.SweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/ledger", func(r chi.Router) {
			r.Use(middleware.DeviceID)
			r.Post("/init", ledgerHandler.InitUser)
			r.Get("/status", ledgerHandler.GetStatus)
			r.Post("/reserve", ledgerHandler.Reserve)
			r.Post("/finalize", ledgerHandler.Finalize)
			r.Post("/rollback", ledgerHandler.Rollback)
			r.Post("/restore", purchaseHandler.Restore)
			r.Get("/transactions", ledgerHandler.Transactions)
		})
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/revenuecat", purchaseHandler.Webhook)
	})

	r.Mount("/api/admin", adminHandler.Routes())

	// ---------- Server ----------
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}

	log.Info().Msg("Server stopped")
}
