package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakkabuar/bilix-bot/internal/amqp"
	"github.com/sakkabuar/bilix-bot/internal/core"
	"github.com/sakkabuar/bilix-bot/internal/ledger"
	"github.com/sakkabuar/bilix-bot/internal/ledger/sqlite"
)

type fakeSource struct {
	entries    map[string]sqlite.MirrorEntry
	unmirrored []string
	mirrored   []string
	errored    []string
	listErr    error
}

func (f *fakeSource) GetMirrorEntry(_ context.Context, eventID string) (sqlite.MirrorEntry, error) {
	me, ok := f.entries[eventID]
	if !ok {
		return sqlite.MirrorEntry{}, ledger.ErrNotFound
	}
	return me, nil
}

func (f *fakeSource) ListUnmirrored(context.Context, int) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.unmirrored, nil
}

func (f *fakeSource) MarkMirrored(_ context.Context, eventID string) error {
	f.mirrored = append(f.mirrored, eventID)
	return nil
}

func (f *fakeSource) MarkMirrorError(_ context.Context, eventID string) error {
	f.errored = append(f.errored, eventID)
	return nil
}

type fakeSheet struct {
	appended  []core.Entry
	ensureErr error
	appendErr error
}

func (f *fakeSheet) EnsureLedger(_ context.Context, conversationID, _ string) (ledger.Handle, error) {
	if f.ensureErr != nil {
		return "", f.ensureErr
	}
	return ledger.Handle(conversationID), nil
}

func (f *fakeSheet) AppendEntry(_ context.Context, _ ledger.Handle, e core.Entry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, e)
	return nil
}

func mirrorEntry(eventID string) sqlite.MirrorEntry {
	return sqlite.MirrorEntry{
		Entry: core.Entry{
			EventID:    eventID,
			RecordedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			Vendor:     "ตลาดสด",
			Category:   core.CategorySupplies,
			Amount:     core.FromBahtUnits(450),
			SenderID:   "Usender1",
			Note:       "ผักรวม",
		},
		ConversationID: "Cgroup1",
	}
}

func TestHandleMirrorMessage(t *testing.T) {
	source := &fakeSource{entries: map[string]sqlite.MirrorEntry{"e1": mirrorEntry("e1")}}
	sheet := &fakeSheet{}
	w := NewMirrorWorker(source, sheet, 10)

	err := w.HandleMirrorMessage(context.Background(), amqp.NewEntryMirrorMessage("e1"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sheet.appended) != 1 || sheet.appended[0].EventID != "e1" {
		t.Fatalf("expected one appended entry, got %+v", sheet.appended)
	}
	if len(source.mirrored) != 1 || source.mirrored[0] != "e1" {
		t.Fatalf("entry should be marked mirrored, got %v", source.mirrored)
	}
}

func TestHandleMirrorMessageMissingEntryDropped(t *testing.T) {
	source := &fakeSource{entries: map[string]sqlite.MirrorEntry{}}
	sheet := &fakeSheet{}
	w := NewMirrorWorker(source, sheet, 10)

	if err := w.HandleMirrorMessage(context.Background(), amqp.NewEntryMirrorMessage("gone")); err != nil {
		t.Fatalf("missing entries must not requeue forever: %v", err)
	}
	if len(sheet.appended) != 0 {
		t.Fatalf("nothing should be appended for a missing entry")
	}
}

func TestHandleMirrorMessageSheetFailure(t *testing.T) {
	source := &fakeSource{entries: map[string]sqlite.MirrorEntry{"e1": mirrorEntry("e1")}}
	sheet := &fakeSheet{appendErr: ledger.ErrUnavailable}
	w := NewMirrorWorker(source, sheet, 10)

	if err := w.HandleMirrorMessage(context.Background(), amqp.NewEntryMirrorMessage("e1")); err == nil {
		t.Fatal("sheet failures should propagate so the message requeues")
	}
	if len(source.errored) != 1 || source.errored[0] != "e1" {
		t.Fatalf("failed mirror should be counted, got %v", source.errored)
	}
	if len(source.mirrored) != 0 {
		t.Fatalf("failed mirror must not be marked mirrored")
	}
}

func TestHandleMirrorMessageDuplicateOnSheet(t *testing.T) {
	source := &fakeSource{entries: map[string]sqlite.MirrorEntry{"e1": mirrorEntry("e1")}}
	sheet := &fakeSheet{appendErr: ledger.ErrDuplicateEntry}
	w := NewMirrorWorker(source, sheet, 10)

	if err := w.HandleMirrorMessage(context.Background(), amqp.NewEntryMirrorMessage("e1")); err != nil {
		t.Fatalf("an already mirrored entry is success: %v", err)
	}
	if len(source.mirrored) != 1 {
		t.Fatalf("duplicate on sheet should still mark mirrored, got %v", source.mirrored)
	}
}

func TestProcessPending(t *testing.T) {
	source := &fakeSource{
		entries: map[string]sqlite.MirrorEntry{
			"e1": mirrorEntry("e1"),
			"e2": mirrorEntry("e2"),
		},
		unmirrored: []string{"e1", "e2"},
	}
	sheet := &fakeSheet{}
	w := NewMirrorWorker(source, sheet, 10)

	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("process pending: %v", err)
	}
	if len(sheet.appended) != 2 {
		t.Fatalf("expected both entries mirrored, got %d", len(sheet.appended))
	}
}

func TestProcessPendingContinuesPastFailures(t *testing.T) {
	source := &fakeSource{
		entries: map[string]sqlite.MirrorEntry{
			// e1 missing from the map, e2 present.
			"e2": mirrorEntry("e2"),
		},
		unmirrored: []string{"e1", "e2"},
	}
	sheet := &fakeSheet{}
	w := NewMirrorWorker(source, sheet, 10)

	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("process pending: %v", err)
	}
	if len(sheet.appended) != 1 || sheet.appended[0].EventID != "e2" {
		t.Fatalf("the sweep should continue past bad rows, got %+v", sheet.appended)
	}
}

func TestProcessPendingListFailure(t *testing.T) {
	source := &fakeSource{listErr: errors.New("disk io")}
	w := NewMirrorWorker(source, &fakeSheet{}, 10)

	if err := w.ProcessPending(context.Background()); err == nil {
		t.Fatal("list failures should propagate")
	}
}

func TestStartupCheck(t *testing.T) {
	source := &fakeSource{
		entries: map[string]sqlite.MirrorEntry{
			"e1": mirrorEntry("e1"),
			"e2": mirrorEntry("e2"),
			"e3": mirrorEntry("e3"),
		},
		unmirrored: []string{"e1", "e2", "e3"},
	}
	sheet := &fakeSheet{}
	w := NewMirrorWorker(source, sheet, 10)

	if err := w.StartupCheck(context.Background()); err != nil {
		t.Fatalf("startup check: %v", err)
	}
	if len(source.mirrored) != 3 {
		t.Fatalf("expected all backlog mirrored, got %v", source.mirrored)
	}
}
