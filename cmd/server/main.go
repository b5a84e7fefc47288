package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"rehearsalplanner/config"
	"rehearsalplanner/internal/adapters/auth"
	"rehearsalplanner/internal/adapters/push"
	"rehearsalplanner/internal/adapters/realtime"
	"rehearsalplanner/internal/adapters/sanitize"
	delivery "rehearsalplanner/internal/delivery/http"
	"rehearsalplanner/internal/delivery/http/controllers"
	"rehearsalplanner/internal/delivery/http/middleware"
	"rehearsalplanner/internal/domain"
	"rehearsalplanner/internal/repository/postgres"
	"rehearsalplanner/internal/services"
)

const (
	serviceTimeout  = 10 * time.Second
	shutdownTimeout = 15 * time.Second
	bcryptCost      = 12
)

// @title Rehearsal Planner API
// @version 1.0
// @description Rehearsal scheduling with draft/publish lifecycle, invitee sync, and notification reconciliation.
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := config.NewLogger()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	rehearsalRepo := postgres.NewRehearsalRepository(db)
	inviteeRepo := postgres.NewInviteeRepository(db)
	memberRepo := postgres.NewMemberRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)

	hasher := auth.NewBcryptHasher(bcryptCost)
	tokens := auth.NewJWTTokens(cfg.JWTSecret)
	sanitizer := sanitize.NewDescriptionSanitizer()
	hub := realtime.NewHub(logger)
	pushSender, err := push.NewSender(cfg.Push, memberRepo, logger)
	if err != nil {
		log.Fatalf("Failed to create push sender: %v", err)
	}
	clock := domain.SystemClock{}

	memberService := services.NewMemberService(memberRepo, hasher, tokens, cfg.TokenExpiry, serviceTimeout)
	notificationService := services.NewNotificationService(notificationRepo, hub, pushSender, clock, logger, serviceTimeout)
	rehearsalService := services.NewRehearsalService(rehearsalRepo, inviteeRepo, memberRepo, notificationService, sanitizer, clock, logger, serviceTimeout)

	authController := controllers.NewAuthController(logger, memberService)
	rehearsalController := controllers.NewRehearsalController(logger, rehearsalService)
	notificationController := controllers.NewNotificationController(logger, notificationService)
	availabilityController := controllers.NewAvailabilityController(logger, memberService)
	realtimeController := controllers.NewRealtimeController(logger, hub)

	mux := delivery.NewRouter(
		tokens,
		authController,
		rehearsalController,
		notificationController,
		availabilityController,
		realtimeController,
	)

	handler := middleware.CORS(cfg.AllowedOrigins, middleware.LoggingMiddleware(logger, mux))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "err", err)
	}
}
