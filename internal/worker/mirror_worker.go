// Package worker mirrors ledger entries from the primary SQLite store into
// the Google Sheets ledger. It runs as its own process, fed by AMQP mirror
// messages with a periodic database sweep as the safety net for lost ones.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakkabuar/bilix-bot/internal/amqp"
	"github.com/sakkabuar/bilix-bot/internal/core"
	"github.com/sakkabuar/bilix-bot/internal/ledger"
	"github.com/sakkabuar/bilix-bot/internal/ledger/sqlite"
)

// MirrorSource is the slice of the SQLite store the worker needs.
type MirrorSource interface {
	GetMirrorEntry(ctx context.Context, eventID string) (sqlite.MirrorEntry, error)
	ListUnmirrored(ctx context.Context, limit int) ([]string, error)
	MarkMirrored(ctx context.Context, eventID string) error
	MarkMirrorError(ctx context.Context, eventID string) error
}

// SheetWriter is the slice of the sheets adapter the worker needs.
type SheetWriter interface {
	EnsureLedger(ctx context.Context, conversationID, displayName string) (ledger.Handle, error)
	AppendEntry(ctx context.Context, h ledger.Handle, e core.Entry) error
}

type MirrorWorker struct {
	source    MirrorSource
	sheet     SheetWriter
	batchSize int
}

func NewMirrorWorker(source MirrorSource, sheet SheetWriter, batchSize int) *MirrorWorker {
	return &MirrorWorker{
		source:    source,
		sheet:     sheet,
		batchSize: batchSize,
	}
}

// HandleMirrorMessage mirrors the single entry named by an AMQP message.
func (w *MirrorWorker) HandleMirrorMessage(ctx context.Context, msg *amqp.EntryMirrorMessage) error {
	slog.InfoContext(ctx, "Processing mirror message", "event_id", msg.EventID)
	return w.mirrorOne(ctx, msg.EventID)
}

func (w *MirrorWorker) mirrorOne(ctx context.Context, eventID string) error {
	me, err := w.source.GetMirrorEntry(ctx, eventID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			// The row vanished; nothing to mirror and nothing to retry.
			slog.WarnContext(ctx, "Mirror target not found, dropping", "event_id", eventID)
			return nil
		}
		return fmt.Errorf("get entry from storage: %w", err)
	}

	h, err := w.sheet.EnsureLedger(ctx, me.ConversationID, me.DisplayName)
	if err != nil {
		w.markError(ctx, eventID)
		return fmt.Errorf("ensure sheet ledger: %w", err)
	}

	if err := w.sheet.AppendEntry(ctx, h, me.Entry); err != nil {
		if !errors.Is(err, ledger.ErrDuplicateEntry) {
			w.markError(ctx, eventID)
			return fmt.Errorf("append to sheet: %w", err)
		}
	}

	if err := w.source.MarkMirrored(ctx, eventID); err != nil {
		return fmt.Errorf("mark mirrored: %w", err)
	}

	slog.InfoContext(ctx, "Entry mirrored to sheet",
		"event_id", eventID, "conversation_id", me.ConversationID)
	return nil
}

// ProcessPending mirrors entries that never got a message, one batch per call.
// Failures are logged and counted per entry so one bad row cannot stall the
// sweep.
func (w *MirrorWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.source.ListUnmirrored(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unmirrored entries: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing unmirrored entries", "count", len(pending))
	for _, eventID := range pending {
		if err := w.mirrorOne(ctx, eventID); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror entry", "event_id", eventID, "error", err)
		}
	}
	return nil
}

// StartupCheck drains the mirror backlog accumulated while the worker was
// down, using a larger batch than the periodic sweep.
func (w *MirrorWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.source.ListUnmirrored(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list unmirrored entries for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No unmirrored entries found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found unmirrored entries on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0
	for _, eventID := range pending {
		if err := w.mirrorOne(ctx, eventID); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror entry during startup",
				"event_id", eventID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup mirror check completed",
		"total", len(pending), "mirrored", successCount, "errors", errorCount)
	return nil
}

func (w *MirrorWorker) markError(ctx context.Context, eventID string) {
	if err := w.source.MarkMirrorError(ctx, eventID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark mirror error", "event_id", eventID, "error", err)
	}
}
