package core

import (
	"errors"
	"strings"
	"time"
)

const (
	TextEvent  EventKind = "text"
	ImageEvent EventKind = "image"
)

// Fixed category set used for classified (receipt) entries. Text commands
// carry an arbitrary user-supplied label instead; the two representations are
// intentionally kept separate.
const (
	CategoryFood      = "อาหาร"
	CategoryTransport = "เดินทาง"
	CategorySupplies  = "วัตถุดิบ"
	CategoryEquipment = "อุปกรณ์"
	CategoryGeneral   = "อื่นๆ"
)

// DefaultVendor is recorded when no vendor can be read off the source text.
const DefaultVendor = "ไม่ระบุ"

// maxNoteLen bounds the audit excerpt stored with each entry.
const maxNoteLen = 200

type (
	EventKind string

	// Event is one normalized inbound chat event. It is constructed from a
	// webhook payload, consumed synchronously by the ingestion coordinator and
	// discarded after the reply is sent.
	Event struct {
		ID             string // stable per-event identifier, dedupe key on redelivery
		ConversationID string
		SenderID       string // may be empty in private/anonymous contexts
		Kind           EventKind
		Text           string // message text, TEXT events only
		MessageID      string // content reference, IMAGE events only
		ReplyToken     string // consumed exactly once per event
	}

	// Entry is one recorded expense.
	Entry struct {
		EventID    string
		RecordedAt time.Time
		Vendor     string
		Category   string
		Amount     Money
		SenderID   string
		Note       string
	}
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrMissingEventID = errors.New("missing event id")
	ErrEmptyCategory  = errors.New("empty category")
)

func (e Entry) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return ErrMissingEventID
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if e.Amount.Satang < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Note builds the bounded audit excerpt stored alongside an entry.
func Note(source string) string {
	source = strings.TrimSpace(source)
	runes := []rune(source)
	if len(runes) <= maxNoteLen {
		return source
	}
	return string(runes[:maxNoteLen])
}
