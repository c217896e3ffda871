package main

import (
	"complaintdesk/backend/internal/api/handler"
	"complaintdesk/backend/internal/assignment"
	"complaintdesk/backend/internal/bulk"
	"complaintdesk/backend/internal/chathub"
	"complaintdesk/backend/internal/complaint"
	"complaintdesk/backend/internal/config"
	"complaintdesk/backend/internal/identity"
	"complaintdesk/backend/internal/lifecycle"
	"complaintdesk/backend/internal/notify"
	"complaintdesk/backend/internal/storage"
	"complaintdesk/backend/internal/thread"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func setupDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gorm.DB, *redis.Client, error) {
	// 1. PostgreSQL
	db, err := storage.Open(cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect PostgreSQL: %w", err)
	}

	// 2. Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, nil, fmt.Errorf("connect Redis: %w", err)
	}

	// 3. Migrations
	if err := storage.AutoMigrate(db); err != nil {
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("database and redis connections established, migrations complete")
	return db, rdb, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET is not set")
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("starting complaint desk backend")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Dependencies
	db, rdb, err := setupDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	s := storage.NewStorageService(db, logger)

	// 2. Live channel
	hub := chathub.NewHub(chathub.NewRedisBroker(rdb, logger), logger)
	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("chat hub stopped", "error", err)
			stop()
		}
	}()

	notifier, err := notify.FromConfig(cfg, logger)
	if err != nil {
		logger.Error("notifier setup failed", "notifier", cfg.Notifier, "error", err)
		os.Exit(1)
	}
	if tg, ok := notifier.(*notify.TelegramNotifier); ok {
		// Staff message the bot to learn the chat id for their profile.
		go func() {
			if err := tg.Run(ctx); err != nil {
				logger.Error("telegram updates stopped", "error", err)
			}
		}()
	}

	// 3. Services
	machine := lifecycle.NewMachine(lifecycle.Policy{ClosedTerminal: cfg.ClosedTerminal})
	complaints := complaint.NewService(s, machine, hub, logger)
	threads := thread.NewService(s, hub, logger)
	assignments := assignment.NewService(s, complaints, notifier, logger)
	bulkSvc := bulk.NewService(s, machine, hub, logger)
	tokens := identity.NewProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.TokenTTL, s)

	// 4. Gin and routes
	r := gin.Default()
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	handler.NewHandler(tokens, complaints, threads, assignments, bulkSvc, logger).Register(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", "error", err)
		}
	}()

	logger.Info("listening", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
}
