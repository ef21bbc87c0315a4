// Package main is the entry point for the booking API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/studylane/studylane/internal/api"
	"github.com/studylane/studylane/internal/auth"
	"github.com/studylane/studylane/internal/booking"
	"github.com/studylane/studylane/internal/config"
	"github.com/studylane/studylane/internal/conversation"
	"github.com/studylane/studylane/internal/db"
	"github.com/studylane/studylane/internal/health"
	"github.com/studylane/studylane/internal/middleware"
	"github.com/studylane/studylane/internal/payment"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("StudyLane Booking API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx := context.Background()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	bookings := booking.NewPostgresRepository(conn)
	conversations := conversation.NewPostgresRepository(conn)
	ledger := payment.NewPostgresEventLedger(conn)

	gateway := payment.NewStripeClient(cfg.StripeAPIKey)
	service := booking.NewService(bookings, conversations, gateway, cfg.BaseURL, cfg.PaymentCurrency)

	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)

	metrics := middleware.NewMetrics()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("metrics registration failed", "error", err)
		os.Exit(1)
	}

	// A Redis-backed rate limit store shares counters across replicas. When
	// Redis is not configured, each replica falls back to a local store.
	var globalStore, writeStore middleware.RateLimitStore
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid redis url", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		store := middleware.NewRedisRateLimitStore(redisClient).WithMetrics(metrics)
		globalStore, writeStore = store, store
		logger.Info("rate limiting backed by redis")
	} else {
		memStore := middleware.NewInMemoryRateLimitStore()
		globalStore, writeStore = memStore, memStore
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				memStore.Cleanup()
			}
		}()
	}

	globalLimit := middleware.DefaultGlobalLimit()
	if cfg.RateLimitPerMinute > 0 {
		globalLimit.RequestsPerWindow = cfg.RateLimitPerMinute
	}

	authenticate := middleware.Authenticate(jwtService)
	writeLimit := middleware.RateLimiter(writeStore, middleware.DefaultBookingWriteLimit(), middleware.UserKeyFunc())

	// Booking routes sit behind authentication and a tighter per-user limit,
	// since the commands call out to Stripe.
	bookingMux := http.NewServeMux()
	api.NewBookingHandlers(service).Register(bookingMux)
	protected := authenticate(writeLimit(bookingMux))

	healthConfig := api.HealthHandlersConfig{
		DBChecker: health.NewDBChecker(conn),
	}
	if redisClient != nil {
		healthConfig.RedisChecker = health.NewRedisChecker(redisClient)
	}
	if cfg.StripeAPIKey != "" {
		healthConfig.StripeChecker = health.NewStripeChecker("")
	}
	healthHandlers := api.NewHealthHandlers(healthConfig)
	webhookHandlers := api.NewWebhookHandlers(cfg.StripeWebhookSecret, ledger, bookings, metrics)

	mux := http.NewServeMux()
	mux.Handle("/bookings", protected)
	mux.Handle("/bookings/", protected)
	mux.Handle("/conversations/", protected)
	// Stripe signs webhook requests; they carry no user token.
	mux.HandleFunc("POST /internal/stripe", webhookHandlers.HandleStripeWebhook)
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"studylane-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Apply middleware: RequestID -> Logging -> HTTPMetrics -> global rate limit
	handler := middleware.RequestID(
		middleware.Logging(logger)(
			middleware.HTTPMetrics(metrics)(
				middleware.RateLimiter(globalStore, globalLimit, middleware.IPKeyFunc())(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
