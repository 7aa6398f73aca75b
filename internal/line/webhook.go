// Package line talks to the LINE Messaging API: webhook payload parsing and
// signature validation on the way in, replies and message-content downloads
// on the way out.
package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/sakkabuar/bilix-bot/internal/core"
)

// Webhook payload shapes as delivered by the LINE platform.
type (
	WebhookRequest struct {
		Destination string         `json:"destination"`
		Events      []WebhookEvent `json:"events"`
	}

	WebhookEvent struct {
		Type            string          `json:"type"`
		WebhookEventID  string          `json:"webhookEventId"`
		DeliveryContext DeliveryContext `json:"deliveryContext"`
		Timestamp       int64           `json:"timestamp"`
		ReplyToken      string          `json:"replyToken"`
		Source          Source          `json:"source"`
		Message         *Message        `json:"message,omitempty"`
	}

	DeliveryContext struct {
		IsRedelivery bool `json:"isRedelivery"`
	}

	Source struct {
		Type    string `json:"type"` // user | group | room
		UserID  string `json:"userId"`
		GroupID string `json:"groupId"`
		RoomID  string `json:"roomId"`
	}

	Message struct {
		ID   string `json:"id"`
		Type string `json:"type"` // text | image | ...
		Text string `json:"text"`
	}
)

// ParseWebhook decodes a webhook request body.
func ParseWebhook(body []byte) (WebhookRequest, error) {
	var req WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return WebhookRequest{}, fmt.Errorf("decode webhook body: %w", err)
	}
	return req, nil
}

// ValidateSignature checks the X-Line-Signature header: base64 of the
// HMAC-SHA256 of the raw body keyed with the channel secret.
func ValidateSignature(channelSecret string, body []byte, signature string) bool {
	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}

// ConversationID returns the identifier scoping a ledger: the group or room
// when present, the user otherwise.
func (s Source) ConversationID() string {
	switch {
	case s.GroupID != "":
		return s.GroupID
	case s.RoomID != "":
		return s.RoomID
	default:
		return s.UserID
	}
}

// ToEvent normalizes a webhook event into a core.Event. ok is false for
// events the ingestion pipeline does not consume (non-message events,
// unsupported message types).
func ToEvent(we WebhookEvent) (core.Event, bool) {
	if we.Type != "message" || we.Message == nil {
		return core.Event{}, false
	}

	ev := core.Event{
		ID:             we.WebhookEventID,
		ConversationID: we.Source.ConversationID(),
		SenderID:       we.Source.UserID,
		ReplyToken:     we.ReplyToken,
	}
	if ev.ID == "" {
		// Older payloads lack webhookEventId; the message id is stable too.
		ev.ID = we.Message.ID
	}
	if ev.ID == "" {
		// The dedupe key must never be empty. A synthetic id forfeits
		// redelivery detection for this one event but keeps it recordable.
		ev.ID = uuid.NewString()
	}

	switch we.Message.Type {
	case "text":
		ev.Kind = core.TextEvent
		ev.Text = we.Message.Text
	case "image":
		ev.Kind = core.ImageEvent
		ev.MessageID = we.Message.ID
	default:
		return core.Event{}, false
	}
	return ev, true
}
