package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"financas/internal/core"
	ports "financas/internal/sheets"

	goption "google.golang.org/api/option"
)

// fakeSheets is a minimal stand-in for the Sheets values API.
type fakeSheets struct {
	mu     sync.Mutex
	rows   [][]any
	reads  int
	header bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got := r.URL.Query().Get("valueInputOption"); got != "USER_ENTERED" {
			http.Error(w, "bad valueInputOption "+got, http.StatusBadRequest)
			return
		}
		f.rows = append(f.rows, body.Values...)
		writeJSON(w, map[string]any{"spreadsheetId": "sid", "updates": map[string]any{"updatedRows": len(body.Values)}})
	case r.Method == http.MethodPut:
		f.header = true
		writeJSON(w, map[string]any{"spreadsheetId": "sid", "updatedRows": 1})
	case r.Method == http.MethodGet && strings.HasSuffix(path, "!C:D"):
		f.reads++
		values := [][]any{{"kind", "id"}}
		for _, row := range f.rows {
			values = append(values, []any{row[2], row[3]})
		}
		writeJSON(w, map[string]any{"range": "Ledger!C:D", "values": values})
	case r.Method == http.MethodGet && strings.HasSuffix(path, "!A1:F1"):
		var values [][]any
		if f.header {
			values = [][]any{ports.LedgerHeader}
		}
		writeJSON(w, map[string]any{"range": "Ledger!A1:F1", "values": values})
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{SpreadsheetID: "sid"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "sid"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sid", CredentialsFile: t.TempDir() + "/nope.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_AppendRow(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)
	ctx := context.Background()

	row := ports.LedgerRow{
		Timestamp:   time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
		UserID:      "u1",
		Kind:        "purchase",
		RecordID:    "p1",
		Description: "Compra (PIX)",
		Amount:      core.Money{Cents: 12345},
	}
	if err := c.AppendRow(ctx, row); err != nil {
		t.Fatalf("AppendRow: %v", err)
	}

	if len(fake.rows) != 1 {
		t.Fatalf("expected 1 appended row, got %d", len(fake.rows))
	}
	got := fake.rows[0]
	if got[0] != "2026-10-14T09:00:00Z" || got[2] != "purchase" || got[3] != "p1" {
		t.Fatalf("unexpected row %v", got)
	}
	if amount, ok := got[5].(float64); !ok || amount != 123.45 {
		t.Fatalf("amount = %v, want 123.45", got[5])
	}
}

func TestClient_HasRecordCachesKeys(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)
	ctx := context.Background()

	ok, err := c.HasRecord(ctx, "bill", "b1")
	if err != nil || ok {
		t.Fatalf("HasRecord on empty sheet = %v, %v", ok, err)
	}
	if err := c.AppendRow(ctx, ports.LedgerRow{Kind: "bill", RecordID: "b1"}); err != nil {
		t.Fatal(err)
	}
	ok, err = c.HasRecord(ctx, "bill", "b1")
	if err != nil || !ok {
		t.Fatalf("HasRecord after append = %v, %v", ok, err)
	}
	if fake.reads != 1 {
		t.Fatalf("expected cached lookup, sheet read %d times", fake.reads)
	}

	c.invalidateSeen()
	if ok, _ := c.HasRecord(ctx, "bill", "b1"); !ok {
		t.Fatal("record missing after reload")
	}
	if fake.reads != 2 {
		t.Fatalf("expected reload after invalidation, reads = %d", fake.reads)
	}
}

func TestClient_EnsureHeader(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	if err := c.EnsureHeader(context.Background()); err != nil {
		t.Fatalf("EnsureHeader: %v", err)
	}
	if !fake.header {
		t.Fatal("header not written")
	}
	if err := c.EnsureHeader(context.Background()); err != nil {
		t.Fatalf("second EnsureHeader: %v", err)
	}
}
