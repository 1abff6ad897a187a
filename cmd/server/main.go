package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/cccs/finance-portal/docs"
	"github.com/cccs/finance-portal/internal/audit"
	"github.com/cccs/finance-portal/internal/config"
	"github.com/cccs/finance-portal/internal/database"
	"github.com/cccs/finance-portal/internal/events"
	"github.com/cccs/finance-portal/internal/handlers"
	"github.com/cccs/finance-portal/internal/logger"
	"github.com/cccs/finance-portal/internal/metrics"
	mW "github.com/cccs/finance-portal/internal/middleware"
	"github.com/cccs/finance-portal/internal/scheduler"
	"github.com/cccs/finance-portal/internal/services"
)

// @title Finance Portal API
// @version 1.0
// @description Student finance accounts, PayPal payment records and balance history
// @host localhost:5000
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	docs.SwaggerInfo.Host = "localhost:" + cfg.Port
	docs.SwaggerInfo.BasePath = "/api"

	ctx := context.Background()

	db, err := database.InitDB(ctx, zlog)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		zlog.Fatal("Failed to apply schema", zap.Error(err))
	}

	redisClient := database.InitRedis(ctx, zlog)
	if redisClient != nil {
		defer redisClient.Close()
	}

	collector := metrics.NewCollector(zlog)
	auditLogger := audit.NewLogger(zlog)

	publisher := events.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, zlog)
	defer publisher.Close()

	authService := services.NewAuthService(db, redisClient, zlog, services.AuthSettings{
		DefaultBalance:   cfg.Portal.DefaultBalance,
		LoginMaxAttempts: cfg.Portal.LoginMaxAttempts,
		LoginLockout:     cfg.Portal.LoginLockout,
	}).WithMetrics(collector)
	accountService := services.NewAccountService(db, auditLogger, zlog)
	ledgerService := services.NewLedgerService(db, zlog)
	paymentService := services.NewPaymentService(db, publisher, auditLogger, collector, zlog)
	reconciliationService := services.NewReconciliationService(db, auditLogger, collector, zlog)

	accountHandler := handlers.NewAccountHandler(authService, accountService, ledgerService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	reconciliationHandler := handlers.NewReconciliationHandler(reconciliationService)

	mW.InitAuthMiddleware(redisClient, zlog)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(collector.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	r.Handle("/metrics", collector.GetHandler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api", func(r chi.Router) {
		handlers.RegisterRoutes(r, accountHandler, paymentHandler, reconciliationHandler)
	})

	jobs := scheduler.New(zlog)
	if err := jobs.Register("reconciliation", cfg.Reconciliation.Schedule, reconciliationService.Run); err != nil {
		zlog.Fatal("Invalid RECONCILIATION_SCHEDULE", zap.Error(err))
	}
	jobs.Start()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("Server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}

	// let a running reconciliation finish before the database closes
	select {
	case <-jobs.Stop().Done():
	case <-shutdownCtx.Done():
	}

	zlog.Info("Server stopped")
}
