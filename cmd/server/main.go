package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cipherchat/internal/api/handlers"
	"cipherchat/internal/api/middleware"
	"cipherchat/internal/api/routes"
	"cipherchat/internal/config"
	"cipherchat/internal/crypto"
	"cipherchat/internal/database"
	"cipherchat/internal/history"
	"cipherchat/internal/notify"
	"cipherchat/internal/presence"
	"cipherchat/internal/realtime"
	"cipherchat/internal/repositories/postgres"
	"cipherchat/internal/services"
	"cipherchat/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Refuse to start without a usable encryption key. Falling back to
	// plaintext storage is never acceptable.
	cipher, err := crypto.New(cfg.Cipher.Key)
	if err != nil {
		logger.Error("invalid CIPHERCHAT_ENCRYPTION_KEY", "error", err)
		os.Exit(1)
	}

	redis, err := store.NewRedis(cfg.Redis.URL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redis.Close()

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	userRepo := postgres.NewUserRepository(db)
	conversationRepo := postgres.NewConversationRepository(db)
	messageRepo := postgres.NewMessageRepository(db)

	registry := presence.NewRegistry(redis, logger)
	buffer := history.NewBuffer(redis, cfg.Realtime.HistoryCap, logger)
	bus := notify.NewBus(redis)

	authService := services.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.ExpirationTime)
	conversationService := services.NewConversationService(conversationRepo, bus, logger)
	messageService := services.NewMessageService(messageRepo, conversationRepo, cipher, bus, logger)

	hub := realtime.NewHub(conversationRepo, bus, logger)
	sessions := realtime.NewSessionHandler(
		hub,
		cipher,
		buffer,
		registry,
		bus,
		conversationRepo,
		cfg.Realtime.IdleTimeout,
		cfg.Realtime.HistoryReplay,
		logger,
	)

	authMW := middleware.NewAuthMiddleware(authService)
	router := routes.NewRouter(
		handlers.NewAuthHandler(authService),
		handlers.NewConversationHandler(conversationService),
		handlers.NewMessageHandler(messageService),
		handlers.NewPresenceHandler(registry),
		handlers.NewWebSocketHandler(sessions, authService, logger),
		authMW,
	)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	hub.Stop()
	logger.Info("server stopped")
}
