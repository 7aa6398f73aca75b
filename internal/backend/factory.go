// Package backend assembles the configured ledger store with its supporting
// pieces. The sqlite backend optionally wires the AMQP mirror publisher; the
// sheets backend writes the spreadsheet directly with no mirror.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakkabuar/bilix-bot/internal/amqp"
	"github.com/sakkabuar/bilix-bot/internal/config"
	"github.com/sakkabuar/bilix-bot/internal/ledger"
	"github.com/sakkabuar/bilix-bot/internal/ledger/memory"
	"github.com/sakkabuar/bilix-bot/internal/ledger/sheets"
	"github.com/sakkabuar/bilix-bot/internal/ledger/sqlite"
)

// Result bundles the assembled store with its teardown. Cleanup may be nil.
type Result struct {
	Store   ledger.Store
	Cleanup func() error
}

// Create builds the ledger store named by cfg.LedgerBackend.
func Create(ctx context.Context, cfg *config.Config) (*Result, error) {
	switch cfg.LedgerBackend {
	case "sqlite":
		return createSQLite(cfg)
	case "sheets":
		return createSheets(ctx, cfg)
	case "memory":
		slog.Info("Initialized memory backend; entries are lost on restart")
		return &Result{Store: memory.New()}, nil
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", cfg.LedgerBackend)
	}
}

func createSQLite(cfg *config.Config) (*Result, error) {
	store, err := sqlite.New(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize sqlite store: %w", err)
	}

	// AMQP is optional; without it the mirror worker falls back to its
	// periodic sweep over the unmirrored rows.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			slog.Warn("Failed to initialize AMQP client, continuing without mirror messages", "error", err)
			amqpClient = nil
		} else {
			slog.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	slog.Info("Initialized SQLite backend",
		"db_path", cfg.SQLiteDBPath, "amqp_enabled", amqpClient != nil)

	if amqpClient == nil {
		return &Result{Store: store, Cleanup: store.Close}, nil
	}

	mirrored := ledger.NewMirroredStore(store, amqpClient)
	cleanup := func() error {
		amqpClient.Close()
		return store.Close()
	}
	return &Result{Store: mirrored, Cleanup: cleanup}, nil
}

func createSheets(ctx context.Context, cfg *config.Config) (*Result, error) {
	cli, err := sheets.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	slog.Info("Initialized Google Sheets backend", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return &Result{Store: cli}, nil
}
