// Package ingest drives one inbound chat event from parsing through the
// ledger to the reply. Each event walks a small state machine:
//
//	received -> parsed -> ledgered -> replied
//
// with two early exits: rejected (the message carried nothing recordable;
// the user gets guidance) and failed (a collaborator broke after parsing;
// the user gets a generic apology). Every terminal state sends exactly one
// reply against the event's reply token.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakkabuar/bilix-bot/internal/core"
	"github.com/sakkabuar/bilix-bot/internal/ledger"
	"github.com/sakkabuar/bilix-bot/internal/ocr"
	"github.com/sakkabuar/bilix-bot/internal/parse"
)

// User-facing replies, in the voice of the original BILIX bot.
const (
	replyUsageHint  = "พิมพ์ <หมวด> <จำนวนเงิน> เช่น \"อาหาร 320\"\nหรือส่งรูปบิลเข้ามาได้เลยครับ"
	replyRetryPhoto = "อ่านยอดเงินจากรูปไม่ได้ครับ 🙏\nลองถ่ายใหม่ให้ชัดขึ้น หรือพิมพ์ <หมวด> <จำนวนเงิน> แทนก็ได้"
	replyFailure    = "ระบบขัดข้องชั่วคราว บันทึกไม่สำเร็จครับ\nลองส่งอีกครั้งนะครับ"
)

type State string

const (
	StateReplied  State = "replied"
	StateRejected State = "rejected"
	StateFailed   State = "failed"
)

// Result reports how an event terminated. Entry and Total are set only for
// StateReplied.
type Result struct {
	State State
	Entry *core.Entry
	Total core.Money
}

// Replier delivers the single reply tied to an event's acknowledgement
// token. Fire-and-forget: the coordinator does not act on its result beyond
// logging.
type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// ContentFetcher downloads the binary payload of an image message.
type ContentFetcher interface {
	Content(ctx context.Context, messageID string) ([]byte, error)
}

// Coordinator owns no state of its own; everything it touches is either the
// event in flight or a constructor-injected collaborator, so events process
// independently and concurrently.
type Coordinator struct {
	store      ledger.Store
	recognizer ocr.Recognizer
	content    ContentFetcher
	replier    Replier
	classifier *parse.Classifier
	now        func() time.Time
}

func New(store ledger.Store, recognizer ocr.Recognizer, content ContentFetcher, replier Replier) *Coordinator {
	return &Coordinator{
		store:      store,
		recognizer: recognizer,
		content:    content,
		replier:    replier,
		classifier: parse.NewClassifier(parse.DefaultRules()),
		now:        time.Now,
	}
}

// Handle processes one event to a terminal state and sends its reply.
func (c *Coordinator) Handle(ctx context.Context, ev core.Event) Result {
	entry, rejectText, err := c.parseEvent(ctx, ev)
	if err != nil {
		slog.ErrorContext(ctx, "Event processing failed before ledger",
			"event_id", ev.ID, "conversation_id", ev.ConversationID, "error", err)
		return c.fail(ctx, ev)
	}
	if rejectText != "" {
		slog.InfoContext(ctx, "Event rejected",
			"event_id", ev.ID, "conversation_id", ev.ConversationID, "kind", ev.Kind)
		c.reply(ctx, ev, rejectText)
		return Result{State: StateRejected}
	}

	total, err := c.ledgerEntry(ctx, ev, entry)
	if err != nil {
		slog.ErrorContext(ctx, "Ledger operation failed",
			"event_id", ev.ID, "conversation_id", ev.ConversationID, "error", err)
		return c.fail(ctx, ev)
	}

	c.reply(ctx, ev, fmt.Sprintf("🧾 บันทึกแล้ว: %s %s บาท\nยอดรวม %s บาท",
		entry.Category, entry.Amount, total))
	return Result{State: StateReplied, Entry: &entry, Total: total}
}

// parseEvent turns the event into an entry. A non-empty rejectText means the
// event is rejected with that guidance; err means a collaborator failed.
func (c *Coordinator) parseEvent(ctx context.Context, ev core.Event) (entry core.Entry, rejectText string, err error) {
	switch ev.Kind {
	case core.TextEvent:
		label, amount, ok := parse.ParseCommand(ev.Text)
		if !ok {
			return core.Entry{}, replyUsageHint, nil
		}
		return core.Entry{
			EventID:    ev.ID,
			RecordedAt: c.now(),
			Vendor:     core.DefaultVendor,
			Category:   label,
			Amount:     amount,
			SenderID:   ev.SenderID,
			Note:       core.Note(ev.Text),
		}, "", nil

	case core.ImageEvent:
		if c.content == nil || c.recognizer == nil {
			return core.Entry{}, "", errors.New("image processing not configured")
		}
		image, err := c.content.Content(ctx, ev.MessageID)
		if err != nil {
			return core.Entry{}, "", fmt.Errorf("fetch image content: %w", err)
		}
		text, err := c.recognizer.RecognizeText(ctx, image)
		if err != nil {
			return core.Entry{}, "", fmt.Errorf("recognize text: %w", err)
		}
		if text == "" {
			return core.Entry{}, replyRetryPhoto, nil
		}
		amount, found := parse.ExtractAmount(text)
		if !found {
			return core.Entry{}, replyRetryPhoto, nil
		}
		return core.Entry{
			EventID:    ev.ID,
			RecordedAt: c.now(),
			Vendor:     parse.Vendor(text),
			Category:   c.classifier.Classify(text),
			Amount:     amount,
			SenderID:   ev.SenderID,
			Note:       core.Note(text),
		}, "", nil

	default:
		return core.Entry{}, "", fmt.Errorf("unsupported event kind %q", ev.Kind)
	}
}

// ledgerEntry appends the entry and reads back the running total. The total
// is read only after the append is acknowledged, so the reply never
// understates the ledger. A duplicate append means the event was redelivered
// and the entry is already recorded; the reply proceeds with the current
// total instead of double counting.
func (c *Coordinator) ledgerEntry(ctx context.Context, ev core.Event, entry core.Entry) (core.Money, error) {
	h, err := c.store.EnsureLedger(ctx, ev.ConversationID, "")
	if err != nil {
		return core.Money{}, fmt.Errorf("ensure ledger: %w", err)
	}

	if err := c.store.AppendEntry(ctx, h, entry); err != nil {
		if errors.Is(err, ledger.ErrDuplicateEntry) {
			slog.InfoContext(ctx, "Duplicate event already ledgered",
				"event_id", ev.ID, "conversation_id", ev.ConversationID)
		} else {
			return core.Money{}, fmt.Errorf("append entry: %w", err)
		}
	}

	total, err := c.store.ReadTotal(ctx, h)
	if err != nil {
		return core.Money{}, fmt.Errorf("read total: %w", err)
	}
	return total, nil
}

func (c *Coordinator) fail(ctx context.Context, ev core.Event) Result {
	c.reply(ctx, ev, replyFailure)
	return Result{State: StateFailed}
}

func (c *Coordinator) reply(ctx context.Context, ev core.Event, text string) {
	if c.replier == nil {
		return
	}
	if err := c.replier.Reply(ctx, ev.ReplyToken, text); err != nil {
		slog.ErrorContext(ctx, "Failed to send reply",
			"event_id", ev.ID, "conversation_id", ev.ConversationID, "error", err)
	}
}
