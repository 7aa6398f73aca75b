package line

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sakkabuar/bilix-bot/internal/core"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidateSignature(t *testing.T) {
	body := []byte(`{"events":[]}`)
	sig := sign("secret", body)
	if !ValidateSignature("secret", body, sig) {
		t.Fatalf("expected valid signature")
	}
	if ValidateSignature("other", body, sig) {
		t.Fatalf("expected invalid signature for wrong secret")
	}
	if ValidateSignature("secret", []byte(`tampered`), sig) {
		t.Fatalf("expected invalid signature for tampered body")
	}
	if ValidateSignature("secret", body, "not-base64!!!") {
		t.Fatalf("expected invalid signature for malformed header")
	}
}

func TestParseWebhookAndToEvent(t *testing.T) {
	body := []byte(`{
		"destination": "Ubotdest",
		"events": [
			{
				"type": "message",
				"webhookEventId": "01H0000000000000000000000A",
				"deliveryContext": {"isRedelivery": false},
				"replyToken": "rt-1",
				"source": {"type": "group", "groupId": "Cgroup1", "userId": "Usender1"},
				"message": {"id": "m1", "type": "text", "text": "อาหาร 320"}
			},
			{
				"type": "message",
				"webhookEventId": "01H0000000000000000000000B",
				"replyToken": "rt-2",
				"source": {"type": "user", "userId": "Usender2"},
				"message": {"id": "m2", "type": "image"}
			},
			{
				"type": "message",
				"replyToken": "rt-3",
				"source": {"type": "user", "userId": "Usender3"},
				"message": {"id": "m3", "type": "sticker"}
			},
			{
				"type": "follow",
				"replyToken": "rt-4",
				"source": {"type": "user", "userId": "Usender4"}
			}
		]
	}`)

	req, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(req.Events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(req.Events))
	}

	ev, ok := ToEvent(req.Events[0])
	if !ok {
		t.Fatalf("expected text event to convert")
	}
	want := core.Event{
		ID:             "01H0000000000000000000000A",
		ConversationID: "Cgroup1",
		SenderID:       "Usender1",
		Kind:           core.TextEvent,
		Text:           "อาหาร 320",
		ReplyToken:     "rt-1",
	}
	if ev != want {
		t.Fatalf("unexpected event: %+v", ev)
	}

	ev, ok = ToEvent(req.Events[1])
	if !ok || ev.Kind != core.ImageEvent || ev.MessageID != "m2" {
		t.Fatalf("unexpected image event: %+v ok=%v", ev, ok)
	}
	if ev.ConversationID != "Usender2" {
		t.Fatalf("private chat should scope to the user, got %q", ev.ConversationID)
	}

	if _, ok := ToEvent(req.Events[2]); ok {
		t.Fatalf("sticker messages should not convert")
	}
	if _, ok := ToEvent(req.Events[3]); ok {
		t.Fatalf("follow events should not convert")
	}
}

func TestToEventFallsBackToMessageID(t *testing.T) {
	ev, ok := ToEvent(WebhookEvent{
		Type:       "message",
		ReplyToken: "rt",
		Source:     Source{Type: "user", UserID: "U1"},
		Message:    &Message{ID: "m9", Type: "text", Text: "x 1"},
	})
	if !ok || ev.ID != "m9" {
		t.Fatalf("expected message id fallback, got %+v", ev)
	}
}

func TestClientReply(t *testing.T) {
	var got replyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/bot/message/reply" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("unexpected auth %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("tok").WithEndpoints(srv.URL, srv.URL)
	if err := c.Reply(context.Background(), "rt-1", "บันทึกแล้ว"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if got.ReplyToken != "rt-1" || len(got.Messages) != 1 || got.Messages[0].Text != "บันทึกแล้ว" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestClientReplyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Invalid reply token"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("tok").WithEndpoints(srv.URL, srv.URL)
	if err := c.Reply(context.Background(), "used", "x"); err == nil {
		t.Fatalf("expected error on 400")
	}
}

func TestClientContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/bot/message/m42/content" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte{0xFF, 0xD8, 0xFF})
	}))
	defer srv.Close()

	c := NewClient("tok").WithEndpoints(srv.URL, srv.URL)
	data, err := c.Content(context.Background(), "m42")
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if len(data) != 3 || data[0] != 0xFF {
		t.Fatalf("unexpected content: %v", data)
	}
}
