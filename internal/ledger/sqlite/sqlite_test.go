package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sakkabuar/bilix-bot/internal/core"
	"github.com/sakkabuar/bilix-bot/internal/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "bilix.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func entry(eventID string, satang int64) core.Entry {
	return core.Entry{
		EventID:    eventID,
		RecordedAt: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		Vendor:     "MAKRO",
		Category:   core.CategorySupplies,
		Amount:     core.Money{Satang: satang},
		SenderID:   "U1",
		Note:       "note",
	}
}

func TestEnsureLedgerIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	h1, err := s.EnsureLedger(ctx, "C1", "ครัวบ้านยาย")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	h2, err := s.EnsureLedger(ctx, "C1", "ครัวบ้านยาย")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected same handle, got %q and %q", h1, h2)
	}

	other, err := s.EnsureLedger(ctx, "C2", "")
	if err != nil {
		t.Fatalf("ensure other: %v", err)
	}
	if other == h1 {
		t.Fatalf("distinct conversations share a handle")
	}
}

func TestAppendAndTotal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	h, _ := s.EnsureLedger(ctx, "C1", "")

	for i, satang := range []int64{32000, 0, 125050} {
		e := entry("ev-"+string(rune('a'+i)), satang)
		if err := s.AppendEntry(ctx, h, e); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	total, err := s.ReadTotal(ctx, h)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.Satang != 157050 {
		t.Fatalf("expected 157050, got %d", total.Satang)
	}
}

func TestAppendDuplicateEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	h, _ := s.EnsureLedger(ctx, "C1", "")

	if err := s.AppendEntry(ctx, h, entry("ev-1", 100)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendEntry(ctx, h, entry("ev-1", 100)); err != ledger.ErrDuplicateEntry {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
	total, _ := s.ReadTotal(ctx, h)
	if total.Satang != 100 {
		t.Fatalf("duplicate changed total: %d", total.Satang)
	}
}

func TestUnknownHandle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AppendEntry(ctx, "9999", entry("e", 1)); err != ledger.ErrNotFound {
		t.Fatalf("expected ErrNotFound on append, got %v", err)
	}
	if _, err := s.ReadTotal(ctx, "9999"); err != ledger.ErrNotFound {
		t.Fatalf("expected ErrNotFound on total, got %v", err)
	}
	if err := s.AppendEntry(ctx, "garbage", entry("e", 1)); err != ledger.ErrNotFound {
		t.Fatalf("expected ErrNotFound on bad handle, got %v", err)
	}
}

func TestMirrorBookkeeping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	h, _ := s.EnsureLedger(ctx, "C1", "ร้านป้า")

	if err := s.AppendEntry(ctx, h, entry("ev-1", 32000)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendEntry(ctx, h, entry("ev-2", 8500)); err != nil {
		t.Fatalf("append: %v", err)
	}

	pending, err := s.ListUnmirrored(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 2 || pending[0] != "ev-1" || pending[1] != "ev-2" {
		t.Fatalf("unexpected pending: %v", pending)
	}

	me, err := s.GetMirrorEntry(ctx, "ev-1")
	if err != nil {
		t.Fatalf("get mirror entry: %v", err)
	}
	if me.ConversationID != "C1" || me.DisplayName != "ร้านป้า" {
		t.Fatalf("unexpected conversation: %+v", me)
	}
	if me.Entry.Amount.Satang != 32000 || me.Entry.Category != core.CategorySupplies {
		t.Fatalf("unexpected entry: %+v", me.Entry)
	}

	if err := s.MarkMirrored(ctx, "ev-1"); err != nil {
		t.Fatalf("mark mirrored: %v", err)
	}
	pending, _ = s.ListUnmirrored(ctx, 10)
	if len(pending) != 1 || pending[0] != "ev-2" {
		t.Fatalf("unexpected pending after mark: %v", pending)
	}

	if err := s.MarkMirrorError(ctx, "ev-2"); err != nil {
		t.Fatalf("mark mirror error: %v", err)
	}
	// An errored entry stays in the sweep.
	pending, _ = s.ListUnmirrored(ctx, 10)
	if len(pending) != 1 {
		t.Fatalf("errored entry dropped from sweep: %v", pending)
	}

	if _, err := s.GetMirrorEntry(ctx, "missing"); err != ledger.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
