// Toolbot - Telegram wizard for saving AI tools to Airtable
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/pintegram/toolbot/internal/airtable"
	"github.com/pintegram/toolbot/internal/api"
	"github.com/pintegram/toolbot/internal/config"
	"github.com/pintegram/toolbot/internal/store"
	"github.com/pintegram/toolbot/internal/telegram"
	"github.com/pintegram/toolbot/internal/wizard"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting toolbot", "port", cfg.Port, "table", cfg.Airtable.Table)

	// Initialize dependencies.
	mirror, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize mirror database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := mirror.Close(); closeErr != nil {
			slog.Error("Failed to close mirror database", "error", closeErr)
		}
	}()

	if err := mirror.Ping(context.Background()); err != nil {
		slog.Error("Mirror database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Mirror database connected")

	records, err := airtable.NewClient(
		airtable.DefaultConfig(cfg.Airtable.APIKey, cfg.Airtable.BaseID, cfg.Airtable.Table),
		logger,
	)
	if err != nil {
		slog.Error("Failed to initialize Airtable client", "error", err)
		os.Exit(1)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		slog.Error("Failed to connect to Telegram", "error", err)
		os.Exit(1)
	}
	slog.Info("Telegram connected", "username", botAPI.Self.UserName)

	// Initialize the wizard.
	controller := wizard.NewController(
		records,
		mirror,
		telegram.NewMessenger(botAPI, logger),
		wizard.NewScheduler(),
		wizard.Options{
			SessionTTL:       cfg.Wizard.SessionTTL,
			AutoApproveDelay: cfg.Wizard.AutoApproveDelay,
			CleanupDelay:     cfg.Wizard.CleanupDelay,
			NoticeDelay:      cfg.Wizard.NoticeDelay,
		},
		logger,
	)

	bot := telegram.NewBot(botAPI, controller, logger)
	bot.RegisterCommands()

	// Setup the ops router.
	handler := api.NewHandler(mirror)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	handler.RegisterHealth(r)
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the update loop.
	go bot.Run(ctx)

	// Start the ops server.
	go func() {
		slog.Info("Ops server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Ops server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Ops server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Toolbot stopped successfully")
}
