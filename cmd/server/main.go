package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SP-Shreya-SP/MyChat-app/internal/api"
	"github.com/SP-Shreya-SP/MyChat-app/internal/chat"
	"github.com/SP-Shreya-SP/MyChat-app/internal/config"
	"github.com/SP-Shreya-SP/MyChat-app/internal/db"
	"github.com/SP-Shreya-SP/MyChat-app/internal/inference"
	"github.com/SP-Shreya-SP/MyChat-app/internal/search"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	if cfg.HFToken == "" {
		logger.Warn("HUGGINGFACE_TOKEN is not set, inference calls will fail")
	}

	// A missing durable backend degrades to a no-op store instead of
	// aborting startup.
	store := db.Open(cfg.DBPath, logger)

	inferenceClient, err := inference.NewHF(cfg.HFBaseURL, cfg.HFToken, cfg.ChatModel, cfg.ImageModel, logger)
	if err != nil {
		logger.Fatal("failed to initialize inference client", zap.Error(err))
	}

	searchClient := search.NewClient(cfg.SearchBaseURL, cfg.SearchTimeout, logger)

	controller := chat.NewController(store, inferenceClient, searchClient, chat.Options{
		MaxTokens:          cfg.MaxTokens,
		HistoryTokenBudget: cfg.HistoryTokenBudget,
		StreamIdleTimeout:  cfg.StreamIdleTimeout,
	}, logger)

	handler := api.NewHandler(controller, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/message", handler.HandleMessage)
	mux.HandleFunc("/api/sessions", handler.GetSessions)
	mux.HandleFunc("/api/messages", handler.GetMessages)
	mux.HandleFunc("/api/sessions/delete", handler.DeleteSession)
	mux.HandleFunc("/api/sessions/update", handler.UpdateSession)
	mux.HandleFunc("/api/reset", handler.Reset)

	// Serve static files
	fs := http.FileServer(http.Dir(cfg.WebDir))
	mux.Handle("/", fs)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown did not finish cleanly", zap.Error(err))
	}
}
