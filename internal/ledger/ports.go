// Package ledger defines the port toward the expense ledger store and the
// error conditions adapters are expected to surface. Adapters live in the
// subpackages (memory, sqlite, sheets).
package ledger

import (
	"context"
	"errors"

	"github.com/sakkabuar/bilix-bot/internal/core"
)

// Handle is an opaque reference to one conversation's ledger, valid for the
// adapter that issued it.
type Handle string

var (
	// ErrNotFound reports a handle that no longer maps to a ledger, e.g. a
	// sheet deleted out of band.
	ErrNotFound = errors.New("ledger not found")

	// ErrUnavailable reports a transient store failure (network, backing
	// service). The current event fails; nothing is retried here.
	ErrUnavailable = errors.New("ledger store unavailable")

	// ErrDuplicateEntry reports an append whose event id was already recorded
	// in the ledger, i.e. a redelivered event.
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// Store is the per-conversation append-only expense log.
type Store interface {
	// EnsureLedger returns the handle for conversationID, provisioning an
	// empty ledger on first use. Idempotent, and safe under concurrent first
	// use for the same conversation: at most one ledger is ever created.
	EnsureLedger(ctx context.Context, conversationID, displayName string) (Handle, error)

	// AppendEntry appends e to the ledger. Prior entries are never mutated;
	// arrival order of calls from this process is preserved. Returns
	// ErrDuplicateEntry when e.EventID was appended before.
	AppendEntry(ctx context.Context, h Handle, e core.Entry) error

	// ReadTotal returns the sum of all amounts appended so far. It reflects
	// every AppendEntry that completed before the call started.
	ReadTotal(ctx context.Context, h Handle) (core.Money, error)
}
