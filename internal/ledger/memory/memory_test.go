package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/sakkabuar/bilix-bot/internal/core"
	"github.com/sakkabuar/bilix-bot/internal/ledger"
)

func entry(eventID string, satang int64) core.Entry {
	return core.Entry{
		EventID:  eventID,
		Vendor:   core.DefaultVendor,
		Category: core.CategoryGeneral,
		Amount:   core.Money{Satang: satang},
	}
}

func TestEnsureLedgerIdempotent(t *testing.T) {
	s := New()
	h1, err := s.EnsureLedger(context.Background(), "C1", "")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	h2, err := s.EnsureLedger(context.Background(), "C1", "")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected same handle, got %q and %q", h1, h2)
	}
	if s.LedgerCount() != 1 {
		t.Fatalf("expected 1 ledger, got %d", s.LedgerCount())
	}
}

func TestAppendAndTotal(t *testing.T) {
	s := New()
	ctx := context.Background()
	h, _ := s.EnsureLedger(ctx, "C1", "")

	amounts := []int64{0, 32000, 125050, 1}
	for i, a := range amounts {
		if err := s.AppendEntry(ctx, h, entry(string(rune('a'+i)), a)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	total, err := s.ReadTotal(ctx, h)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.Satang != 157051 {
		t.Fatalf("expected 157051, got %d", total.Satang)
	}
}

func TestAppendRejectsDuplicates(t *testing.T) {
	s := New()
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
	s := New()
	ctx := context.Background()
	if err := s.AppendEntry(ctx, "missing", entry("e", 1)); err != ledger.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.ReadTotal(ctx, "missing"); err != ledger.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentFirstUse(t *testing.T) {
	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := s.EnsureLedger(ctx, "new-conv", "")
			if err != nil {
				t.Errorf("ensure: %v", err)
				return
			}
			if err := s.AppendEntry(ctx, h, entry(string(rune('A'+i)), 100)); err != nil {
				t.Errorf("append: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if s.LedgerCount() != 1 {
		t.Fatalf("expected exactly one ledger, got %d", s.LedgerCount())
	}
	total, _ := s.ReadTotal(ctx, ledger.Handle("new-conv"))
	if total.Satang != 1600 {
		t.Fatalf("expected 1600, got %d", total.Satang)
	}
}
