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

	"github.com/tripline/tripline-api/internal/config"
	"github.com/tripline/tripline-api/internal/domain/booking"
	"github.com/tripline/tripline-api/internal/domain/giftcard"
	"github.com/tripline/tripline-api/internal/domain/refund"
	"github.com/tripline/tripline-api/internal/domain/wallet"
	"github.com/tripline/tripline-api/internal/middleware"
	"github.com/tripline/tripline-api/internal/pkg/database"
	"github.com/tripline/tripline-api/internal/pkg/jwt"
	"github.com/tripline/tripline-api/internal/pkg/logger"
	"github.com/tripline/tripline-api/internal/pkg/notifier"
	pkgresponse "github.com/tripline/tripline-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Tripline ledger API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)
	events := notifier.New(redis, cfg.NotifyChannel)

	// ---------- Repositories ----------
	walletRepo := wallet.NewRepository(db)
	giftcardRepo := giftcard.NewRepository(db)
	bookingRepo := booking.NewRepository(db)

	// ---------- Services ----------
	walletService := wallet.NewService(walletRepo)
	giftcardService := giftcard.NewService(db, giftcardRepo, walletRepo, events)
	bonusCalculator := refund.NewBonusCalculator(bookingRepo)
	refundEngine := refund.NewEngine(db, bookingRepo, giftcardService, events)

	// ---------- Handlers ----------
	walletHandler := wallet.NewHandler(walletService)
	giftcardHandler := giftcard.NewHandler(giftcardService)
	refundHandler := refund.NewHandler(refundEngine, bonusCalculator)

	authMiddleware := middleware.Auth(jwtService)
	adminMiddleware := middleware.RequireAdmin()

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(chimw.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/wallet", walletHandler.Routes(authMiddleware))
		r.Mount("/giftcards", giftcardHandler.Routes(authMiddleware))
		r.Mount("/bookings", refundHandler.Routes(authMiddleware))
		r.Mount("/loyalty", refundHandler.LoyaltyRoutes(authMiddleware))
		r.Mount("/admin", giftcardHandler.AdminRoutes(authMiddleware, adminMiddleware))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
