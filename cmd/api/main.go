// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cabinet-legal/case-messaging/internal/config"
	"github.com/cabinet-legal/case-messaging/internal/directory"
	"github.com/cabinet-legal/case-messaging/internal/events"
	"github.com/cabinet-legal/case-messaging/internal/handler"
	"github.com/cabinet-legal/case-messaging/internal/messaging"
	"github.com/cabinet-legal/case-messaging/internal/middleware"
	"github.com/cabinet-legal/case-messaging/internal/notify"
	"github.com/cabinet-legal/case-messaging/internal/readstate"
	"github.com/cabinet-legal/case-messaging/internal/routing"
	"github.com/cabinet-legal/case-messaging/internal/sms"
	"github.com/cabinet-legal/case-messaging/internal/store"
	"github.com/cabinet-legal/case-messaging/internal/store/postgres"
	"github.com/cabinet-legal/case-messaging/internal/trash"
	"github.com/cabinet-legal/case-messaging/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting API server")

	ctx := context.Background()

	// Open the backing store
	var (
		backingStore store.Store
		pinger       interface{ Ping() error }
	)
	switch cfg.StoreDriver {
	case "memory":
		mem := store.NewMemory()
		backingStore = mem
		pinger = mem
		log.Warn("using in-memory store, data will not survive restarts")
	default:
		repo, err := postgres.New(cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to connect to postgres", zap.Error(err))
			os.Exit(1)
		}
		defer repo.Close()
		backingStore = repo
		pinger = repo
	}

	// Connect to NATS when the event bus is enabled
	var (
		natsClient *events.Client
		publisher  events.Publisher = events.Noop{}
	)
	if cfg.NATSEnabled {
		natsClient, err = events.Connect(ctx, events.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsClient.Close()

		streamPublisher := events.NewStreamPublisher(natsClient)
		if err := streamPublisher.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure stream", zap.Error(err))
			os.Exit(1)
		}
		publisher = streamPublisher
	}

	// Directory service client
	dir := directory.NewHTTPClient(cfg.DirectoryBaseURL, cfg.DirectoryAPIKey, cfg.DirectoryTimeout)
	defer dir.Close()

	// SMS dispatch rides the event bus; without it SMS is disabled.
	var smsDispatcher sms.Dispatcher = sms.Noop{}
	if cfg.NATSEnabled {
		smsDispatcher = sms.NewEventDispatcher(publisher, log)
	}

	// Initialize services
	routingPolicy := routing.New(dir, dir)
	tracker := readstate.New(backingStore)
	fanout := notify.New(backingStore, dir, smsDispatcher, publisher, log)
	notifySvc := notify.NewService(backingStore)
	trashSvc := trash.NewService(backingStore, backingStore)
	messagingSvc := messaging.New(backingStore, routingPolicy, tracker, fanout, trashSvc, publisher, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(pinger, natsClient)
	messageHandler := handler.NewMessageHandler(messagingSvc, log)
	notificationHandler := handler.NewNotificationHandler(notifySvc, log)
	trashHandler := handler.NewTrashHandler(trashSvc, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Messages and threads
		r.Get("/threads/{id}", messageHandler.Thread)

		r.Route("/messages", func(r chi.Router) {
			r.Post("/", messageHandler.Create)
			r.Get("/inbox", messageHandler.Inbox)
			r.Put("/read", messageHandler.BatchMarkRead)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/read", messageHandler.MarkRead)
				r.Delete("/read", messageHandler.MarkUnread)
				r.Put("/archive", messageHandler.Archive)
				r.Delete("/archive", messageHandler.Unarchive)
				r.Delete("/", messageHandler.Delete)
			})
		})

		// Notifications
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.List)
			r.Put("/read", notificationHandler.MarkAllRead)
			r.Put("/{id}/read", notificationHandler.MarkRead)
			r.Delete("/{id}", notificationHandler.Delete)
		})

		// Trash: everyone sees their own deletions, restore is staff only
		r.Route("/trash", func(r chi.Router) {
			r.Get("/", trashHandler.List)
			r.With(middleware.RequireStaff).Post("/{id}/restore", trashHandler.Restore)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
