package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	ports "financas/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultSeenTTL = 5 * time.Minute

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID   string
	SheetName       string // default "Ledger"
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string

	// Record keys already present in the sheet, refreshed every seenTTL.
	mu          sync.Mutex
	seen        map[string]struct{}
	seenExpires time.Time
	seenTTL     time.Duration
}

var _ ports.Ledger = (*Client)(nil)

// New creates a ledger client. Extra client options replace the service
// account credentials, which tests use to point the client at a fake server.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Ledger"
	}

	if len(opts) == 0 {
		creds, err := credentialsJSON(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets ledger ready", "spreadsheet_id", spreadsheetID, "sheet", sheet)

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		seenTTL:       defaultSeenTTL,
	}, nil
}

// credentialsJSON resolves service account credentials from the inline JSON,
// the credentials file or GOOGLE_APPLICATION_CREDENTIALS, in that order.
func credentialsJSON(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// EnsureHeader writes the column header when the sheet is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:F1", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", c.sheet, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	vr := &gsheet.ValueRange{Values: [][]any{ports.LedgerHeader}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header of %s: %w", c.sheet, err)
	}
	return nil
}

// AppendRow adds the row after the last non-empty line of the sheet.
func (c *Client) AppendRow(ctx context.Context, row ports.LedgerRow) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:F", c.sheet)
	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.sheet, err)
	}

	c.mu.Lock()
	if c.seen != nil {
		c.seen[recordKey(row.Kind, row.RecordID)] = struct{}{}
	}
	c.mu.Unlock()
	return nil
}

func (c *Client) HasRecord(ctx context.Context, kind, recordID string) (bool, error) {
	c.mu.Lock()
	if c.seen != nil && time.Now().Before(c.seenExpires) {
		_, ok := c.seen[recordKey(kind, recordID)]
		c.mu.Unlock()
		return ok, nil
	}
	c.mu.Unlock()

	rng := fmt.Sprintf("%s!C:D", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", rng, err)
	}
	seen := parseRecordKeys(resp.Values)

	c.mu.Lock()
	c.seen = seen
	c.seenExpires = time.Now().Add(c.seenTTL)
	c.mu.Unlock()

	_, ok := seen[recordKey(kind, recordID)]
	return ok, nil
}

// invalidateSeen forces the next HasRecord to re-read the sheet.
func (c *Client) invalidateSeen() {
	c.mu.Lock()
	c.seen = nil
	c.seenExpires = time.Time{}
	c.mu.Unlock()
}
