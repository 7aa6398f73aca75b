// Package memory is the in-process ledger store used for tests and local
// development without external storage.
package memory

import (
	"context"
	"sync"

	"github.com/sakkabuar/bilix-bot/internal/core"
	"github.com/sakkabuar/bilix-bot/internal/ledger"
)

type conversationLedger struct {
	displayName string
	entries     []core.Entry
	seen        map[string]struct{} // event ids already appended
}

type Store struct {
	mu      sync.Mutex
	ledgers map[string]*conversationLedger
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{ledgers: make(map[string]*conversationLedger)}
}

func (s *Store) EnsureLedger(_ context.Context, conversationID, displayName string) (ledger.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ledgers[conversationID]; !ok {
		s.ledgers[conversationID] = &conversationLedger{
			displayName: displayName,
			seen:        make(map[string]struct{}),
		}
	}
	return ledger.Handle(conversationID), nil
}

func (s *Store) AppendEntry(_ context.Context, h ledger.Handle, e core.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[string(h)]
	if !ok {
		return ledger.ErrNotFound
	}
	if _, dup := l.seen[e.EventID]; dup {
		return ledger.ErrDuplicateEntry
	}
	l.seen[e.EventID] = struct{}{}
	l.entries = append(l.entries, e)
	return nil
}

func (s *Store) ReadTotal(_ context.Context, h ledger.Handle) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[string(h)]
	if !ok {
		return core.Money{}, ledger.ErrNotFound
	}
	var total core.Money
	for _, e := range l.entries {
		total = total.Add(e.Amount)
	}
	return total, nil
}

// Entries returns a copy of the ledger's entries in arrival order. Test
// helper; not part of the Store port.
func (s *Store) Entries(conversationID string) []core.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[conversationID]
	if !ok {
		return nil
	}
	out := make([]core.Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// LedgerCount reports how many distinct ledgers exist. Test helper.
func (s *Store) LedgerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledgers)
}
