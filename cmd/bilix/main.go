package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakkabuar/bilix-bot/internal/backend"
	"github.com/sakkabuar/bilix-bot/internal/config"
	"github.com/sakkabuar/bilix-bot/internal/httpapi"
	"github.com/sakkabuar/bilix-bot/internal/ingest"
	"github.com/sakkabuar/bilix-bot/internal/line"
	"github.com/sakkabuar/bilix-bot/internal/ocr"
	"github.com/sakkabuar/bilix-bot/internal/ocr/vision"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result, err := backend.Create(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize ledger backend", "error", err, "backend", cfg.LedgerBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}()
	}

	lineClient := line.NewClient(cfg.LineChannelToken)

	// Without OCR the bot still records text commands; photos get the
	// generic failure reply.
	var recognizer ocr.Recognizer
	if cfg.OCREnabled {
		recognizer, err = vision.NewFromEnv(ctx)
		if err != nil {
			logger.Warn("Failed to initialize Vision OCR, receipt photos disabled", "error", err)
			recognizer = nil
		} else {
			logger.Info("Vision OCR initialized")
		}
	} else {
		logger.Info("OCR disabled by configuration")
	}

	coordinator := ingest.New(result.Store, recognizer, lineClient, lineClient)

	srv := httpapi.NewServer(":"+cfg.Port, cfg.LineChannelSecret, coordinator, lineClient, cfg.EventTimeout)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting bilix server", "port", cfg.Port, "backend", cfg.LedgerBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
