// Package httpapi exposes the webhook endpoint the chat platform calls and
// the health probes the deployment watches.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sakkabuar/bilix-bot/internal/core"
	"github.com/sakkabuar/bilix-bot/internal/ingest"
	"github.com/sakkabuar/bilix-bot/internal/line"
)

const (
	// Webhook payloads are small; anything past this is not LINE.
	maxWebhookBody = 1 << 20

	greetingText = "🧾 BILIX พร้อมบันทึกบิลแล้วครับ\nส่งรูปบิลเข้ามาได้เลย"
)

// EventHandler processes one chat event to completion, reply included.
type EventHandler interface {
	Handle(ctx context.Context, ev core.Event) ingest.Result
}

// Greeter sends the welcome message on follow and join events.
type Greeter interface {
	Reply(ctx context.Context, replyToken, text string) error
}

type Server struct {
	http.Server

	channelSecret string
	handler       EventHandler
	greeter       Greeter
	eventTimeout  time.Duration

	// Tracks in-flight event goroutines so shutdown can wait for them.
	wg sync.WaitGroup
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr, channelSecret string, handler EventHandler, greeter Greeter, eventTimeout time.Duration) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		channelSecret: channelSecret,
		handler:       handler,
		greeter:       greeter,
		eventTimeout:  eventTimeout,
	}

	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /healthz", handleHealth)

	return s
}

// handleWebhook acknowledges the delivery as soon as the signature checks out
// and the payload parses. Events are processed in the background; the
// platform retries on slow acknowledgements, not on processing failures.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to read webhook body", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Line-Signature")
	if !line.ValidateSignature(s.channelSecret, body, signature) {
		slog.WarnContext(r.Context(), "Webhook signature rejected",
			"remote_addr", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	req, err := line.ParseWebhook(body)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to parse webhook payload", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	for _, whEvent := range req.Events {
		s.dispatch(whEvent)
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) dispatch(whEvent line.WebhookEvent) {
	switch whEvent.Type {
	case "follow", "join":
		if s.greeter == nil || whEvent.ReplyToken == "" {
			return
		}
		s.spawn(func(ctx context.Context) {
			if err := s.greeter.Reply(ctx, whEvent.ReplyToken, greetingText); err != nil {
				slog.ErrorContext(ctx, "Failed to send greeting", "error", err)
			}
		})

	default:
		ev, ok := line.ToEvent(whEvent)
		if !ok {
			return
		}
		s.spawn(func(ctx context.Context) {
			res := s.handler.Handle(ctx, ev)
			slog.InfoContext(ctx, "Event processed",
				"event_id", ev.ID, "conversation_id", ev.ConversationID, "state", res.State)
		})
	}
}

// spawn runs fn on its own goroutine with the event timeout. The request
// context is not reused; it dies when the webhook response is written.
func (s *Server) spawn(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.eventTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// Shutdown stops accepting requests, then waits for in-flight events.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
