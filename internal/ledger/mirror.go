package ledger

import (
	"context"
	"log/slog"

	"github.com/sakkabuar/bilix-bot/internal/core"
)

// MirrorPublisher enqueues an entry for asynchronous mirroring to the
// external spreadsheet. Implemented by the AMQP client.
type MirrorPublisher interface {
	PublishEntryMirror(ctx context.Context, eventID string) error
}

// MirroredStore decorates a Store so every successful append is announced on
// the mirror queue. Publish failures never fail the append: the entry is
// already durable locally and the mirror worker sweeps unmirrored entries as
// a fallback.
type MirroredStore struct {
	Store
	publisher MirrorPublisher
}

func NewMirroredStore(s Store, p MirrorPublisher) *MirroredStore {
	return &MirroredStore{Store: s, publisher: p}
}

func (m *MirroredStore) AppendEntry(ctx context.Context, h Handle, e core.Entry) error {
	if err := m.Store.AppendEntry(ctx, h, e); err != nil {
		return err
	}
	if m.publisher == nil {
		return nil
	}
	if err := m.publisher.PublishEntryMirror(ctx, e.EventID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish mirror message",
			"event_id", e.EventID, "error", err)
	}
	return nil
}
