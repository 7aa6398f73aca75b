package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultEndpointBase     = "https://api.line.me"
	defaultDataEndpointBase = "https://api-data.line.me"

	// Receipt photos; LINE caps image messages well below this.
	maxContentBytes = 10 << 20
)

// Client is a minimal LINE Messaging API client: reply and content download.
type Client struct {
	http             *http.Client
	channelToken     string
	endpointBase     string
	dataEndpointBase string
}

func NewClient(channelToken string) *Client {
	return &Client{
		http:             &http.Client{Timeout: 30 * time.Second},
		channelToken:     channelToken,
		endpointBase:     defaultEndpointBase,
		dataEndpointBase: defaultDataEndpointBase,
	}
}

// WithEndpoints overrides the API hosts. Used in tests.
func (c *Client) WithEndpoints(endpointBase, dataEndpointBase string) *Client {
	c.endpointBase = endpointBase
	c.dataEndpointBase = dataEndpointBase
	return c
}

type replyRequest struct {
	ReplyToken string         `json:"replyToken"`
	Messages   []replyMessage `json:"messages"`
}

type replyMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Reply sends one text message against a reply token. Reply tokens are single
// use; the coordinator calls this exactly once per event.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	body, err := json.Marshal(replyRequest{
		ReplyToken: replyToken,
		Messages:   []replyMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpointBase+"/v2/bot/message/reply", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.channelToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("reply rejected: status %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// Content downloads the binary payload of a message (receipt photo).
func (c *Client) Content(ctx context.Context, messageID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v2/bot/message/%s/content", c.dataEndpointBase, messageID), nil)
	if err != nil {
		return nil, fmt.Errorf("build content request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.channelToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("content rejected: status %d: %s", resp.StatusCode, detail)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes))
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return data, nil
}
