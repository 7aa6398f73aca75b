// Package sheets is the Google Sheets ledger adapter. One spreadsheet holds
// every conversation; each conversation gets its own tab with a fixed header
// row and one row per entry in arrival order:
//
//	[timestamp, vendor, category, amount, sender, note]
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sakkabuar/bilix-bot/internal/core"
	"github.com/sakkabuar/bilix-bot/internal/ledger"

	"golang.org/x/sync/singleflight"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var headerRow = []any{"Timestamp", "Vendor", "Category", "Amount", "Sender", "Note"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	// Concurrent first use of the same conversation collapses to one
	// provisioning call; the known map short-circuits repeat lookups.
	provision singleflight.Group
	mu        sync.Mutex
	known     map[string]ledger.Handle
}

var _ ledger.Store = (*Client)(nil)

// NewFromEnv creates a Sheets ledger client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID, plus service account credentials via
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		known:         make(map[string]ledger.Handle),
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) EnsureLedger(ctx context.Context, conversationID, displayName string) (ledger.Handle, error) {
	c.mu.Lock()
	if h, ok := c.known[conversationID]; ok {
		c.mu.Unlock()
		return h, nil
	}
	c.mu.Unlock()

	v, err, _ := c.provision.Do(conversationID, func() (any, error) {
		title := sheetTitle(conversationID)
		exists, err := c.sheetExists(ctx, title)
		if err != nil {
			return nil, err
		}
		if !exists {
			if err := c.createSheet(ctx, title, displayName); err != nil {
				return nil, err
			}
		}
		return ledger.Handle(title), nil
	})
	if err != nil {
		return "", err
	}

	h := v.(ledger.Handle)
	c.mu.Lock()
	c.known[conversationID] = h
	c.mu.Unlock()
	return h, nil
}

func (c *Client) AppendEntry(ctx context.Context, h ledger.Handle, e core.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	row := []any{
		e.RecordedAt.UTC().Format(time.RFC3339),
		e.Vendor,
		e.Category,
		e.Amount.Baht(),
		e.SenderID,
		e.Note,
	}
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	rng := fmt.Sprintf("%s!A:F", string(h))

	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return mapAPIError("append entry", err)
	}

	slog.InfoContext(ctx, "Entry appended to sheet",
		"sheet", string(h),
		"event_id", e.EventID,
		"category", e.Category,
		"amount_satang", e.Amount.Satang)
	return nil
}

func (c *Client) ReadTotal(ctx context.Context, h ledger.Handle) (core.Money, error) {
	rng := fmt.Sprintf("%s!D2:D", string(h))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return core.Money{}, mapAPIError("read total", err)
	}

	var total int64
	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		satang, ok := parseAmountCell(fmt.Sprint(row[0]))
		if !ok {
			continue
		}
		total += satang
	}
	return core.Money{Satang: total}, nil
}

func (c *Client) sheetExists(ctx context.Context, title string) (bool, error) {
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, mapAPIError("list sheets", err)
	}
	for _, sh := range meta.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) createSheet(ctx context.Context, title, displayName string) error {
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: title},
			},
		}},
	}
	_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		// Another process may have provisioned the tab between lookup and
		// create; an existing tab is success.
		if isAlreadyExists(err) {
			return nil
		}
		return mapAPIError("create sheet", err)
	}

	vr := &gsheet.ValueRange{Values: [][]any{headerRow}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, fmt.Sprintf("%s!A1:F1", title), vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return mapAPIError("write header", err)
	}

	slog.InfoContext(ctx, "Provisioned conversation sheet",
		"sheet", title, "display_name", displayName)
	return nil
}

// sheetTitle derives a stable tab title from the conversation id. Sheet tab
// titles max out at 100 characters; LINE ids are well under that.
func sheetTitle(conversationID string) string {
	title := strings.TrimSpace(conversationID)
	if len(title) > 100 {
		title = title[:100]
	}
	return title
}

// parseAmountCell reads an amount cell back as satang. Cells may come back as
// numbers ("1250", "1250.5") or formatted strings ("1,250.00").
func parseAmountCell(s string) (int64, bool) {
	satang, err := core.ParseDecimalToSatang(s)
	if err != nil {
		return 0, false
	}
	return satang, true
}

func mapAPIError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 404 {
			return fmt.Errorf("%w: %s: %v", ledger.ErrNotFound, op, err)
		}
		// 400 with "Unable to parse range" means the tab disappeared.
		if apiErr.Code == 400 && strings.Contains(apiErr.Message, "Unable to parse range") {
			return fmt.Errorf("%w: %s: %v", ledger.ErrNotFound, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", ledger.ErrUnavailable, op, err)
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 400 && strings.Contains(apiErr.Message, "already exists")
	}
	return false
}
