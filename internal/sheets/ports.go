package sheets

import (
	"context"
	"time"

	"financas/internal/core"
)

// LedgerHeader is the first row of a ledger sheet.
var LedgerHeader = []any{"timestamp", "user", "kind", "id", "description", "amount"}

// LedgerRow is one line of the append-only ledger kept outside the record store.
type LedgerRow struct {
	Timestamp   time.Time
	UserID      string
	Kind        string // event type, e.g. purchase.created
	RecordID    string
	Description string
	Amount      core.Money
}

// Values renders the row in LedgerHeader column order. Amounts are written
// as plain numbers so the sheet can sum them.
func (r LedgerRow) Values() []any {
	return []any{
		r.Timestamp.UTC().Format(time.RFC3339),
		r.UserID,
		r.Kind,
		r.RecordID,
		r.Description,
		r.Amount.Reais(),
	}
}

// Ports for outbound adapters.
type (
	LedgerWriter interface {
		AppendRow(ctx context.Context, row LedgerRow) error
	}

	// LedgerReader answers whether a row for a record was already written,
	// so redelivered events do not produce duplicates.
	LedgerReader interface {
		HasRecord(ctx context.Context, kind, recordID string) (bool, error)
	}

	Ledger interface {
		LedgerWriter
		LedgerReader
	}
)
