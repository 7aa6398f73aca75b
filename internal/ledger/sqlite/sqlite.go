// Package sqlite is the durable local ledger store. It is the primary
// backend: entries land here first and are mirrored to the external
// spreadsheet asynchronously. The UNIQUE (ledger_id, event_id) constraint
// makes redelivered events a no-op instead of a double count.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sakkabuar/bilix-bot/internal/core"
	"github.com/sakkabuar/bilix-bot/internal/ledger"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

var _ ledger.Store = (*Store)(nil)

func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) EnsureLedger(ctx context.Context, conversationID, displayName string) (ledger.Handle, error) {
	// Insert-or-ignore then select keeps concurrent first use down to a
	// single row; the UNIQUE constraint resolves the race.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ledgers (conversation_id, display_name) VALUES (?, ?)
		 ON CONFLICT (conversation_id) DO NOTHING`,
		conversationID, displayName)
	if err != nil {
		return "", fmt.Errorf("%w: provision ledger: %v", ledger.ErrUnavailable, err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM ledgers WHERE conversation_id = ?`, conversationID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%w: lookup ledger: %v", ledger.ErrUnavailable, err)
	}
	return ledger.Handle(strconv.FormatInt(id, 10)), nil
}

func (s *Store) AppendEntry(ctx context.Context, h ledger.Handle, e core.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	ledgerID, err := parseHandle(h)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (ledger_id, event_id, recorded_at, vendor, category, amount_satang, sender_id, note)
		 SELECT l.id, ?, ?, ?, ?, ?, ?, ? FROM ledgers l WHERE l.id = ?`,
		e.EventID, e.RecordedAt.UTC(), e.Vendor, e.Category, e.Amount.Satang, e.SenderID, e.Note, ledgerID)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicateEntry
		}
		return fmt.Errorf("%w: append entry: %v", ledger.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: append entry: %v", ledger.ErrUnavailable, err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}

	slog.InfoContext(ctx, "Entry saved to SQLite",
		"ledger_id", ledgerID,
		"event_id", e.EventID,
		"category", e.Category,
		"amount_satang", e.Amount.Satang)
	return nil
}

func (s *Store) ReadTotal(ctx context.Context, h ledger.Handle) (core.Money, error) {
	ledgerID, err := parseHandle(h)
	if err != nil {
		return core.Money{}, err
	}

	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM ledgers WHERE id = ?)`, ledgerID).Scan(&exists)
	if err != nil {
		return core.Money{}, fmt.Errorf("%w: check ledger: %v", ledger.ErrUnavailable, err)
	}
	if !exists {
		return core.Money{}, ledger.ErrNotFound
	}

	var total int64
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_satang), 0) FROM entries WHERE ledger_id = ?`, ledgerID).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("%w: read total: %v", ledger.ErrUnavailable, err)
	}
	return core.Money{Satang: total}, nil
}

// MirrorEntry is one entry joined with its conversation, as needed by the
// sheet-mirror worker.
type MirrorEntry struct {
	Entry          core.Entry
	ConversationID string
	DisplayName    string
}

// GetMirrorEntry loads an entry by event id for mirroring.
func (s *Store) GetMirrorEntry(ctx context.Context, eventID string) (MirrorEntry, error) {
	var (
		me         MirrorEntry
		recordedAt time.Time
		satang     int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT e.event_id, e.recorded_at, e.vendor, e.category, e.amount_satang, e.sender_id, e.note,
		        l.conversation_id, l.display_name
		 FROM entries e JOIN ledgers l ON l.id = e.ledger_id
		 WHERE e.event_id = ?`, eventID).
		Scan(&me.Entry.EventID, &recordedAt, &me.Entry.Vendor, &me.Entry.Category,
			&satang, &me.Entry.SenderID, &me.Entry.Note, &me.ConversationID, &me.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return MirrorEntry{}, ledger.ErrNotFound
	}
	if err != nil {
		return MirrorEntry{}, fmt.Errorf("%w: load mirror entry: %v", ledger.ErrUnavailable, err)
	}
	me.Entry.RecordedAt = recordedAt
	me.Entry.Amount = core.Money{Satang: satang}
	return me, nil
}

// ListUnmirrored returns event ids of entries not yet mirrored, oldest first.
// Backup sweep for lost queue messages.
func (s *Store) ListUnmirrored(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id FROM entries WHERE mirrored = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list unmirrored: %v", ledger.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan unmirrored: %v", ledger.ErrUnavailable, err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// MarkMirrored flags an entry as present in the external sheet.
func (s *Store) MarkMirrored(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE entries SET mirrored = 1, mirror_error = 0 WHERE event_id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("%w: mark mirrored: %v", ledger.ErrUnavailable, err)
	}
	return nil
}

// MarkMirrorError records a failed mirror attempt without blocking the sweep.
func (s *Store) MarkMirrorError(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE entries SET mirror_error = mirror_error + 1 WHERE event_id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("%w: mark mirror error: %v", ledger.ErrUnavailable, err)
	}
	return nil
}

func parseHandle(h ledger.Handle) (int64, error) {
	id, err := strconv.ParseInt(string(h), 10, 64)
	if err != nil {
		return 0, ledger.ErrNotFound
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
