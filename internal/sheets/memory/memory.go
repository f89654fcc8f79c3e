// Package memory keeps the ledger in process. The worker falls back to it
// when no spreadsheet is configured.
package memory

import (
	"context"
	"sync"

	"financas/internal/sheets"
)

type Ledger struct {
	mu   sync.Mutex
	rows []sheets.LedgerRow
}

var _ sheets.Ledger = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{}
}

func (l *Ledger) AppendRow(_ context.Context, row sheets.LedgerRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, row)
	return nil
}

func (l *Ledger) HasRecord(_ context.Context, kind, recordID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.rows {
		if r.Kind == kind && r.RecordID == recordID {
			return true, nil
		}
	}
	return false, nil
}

// Rows returns a copy of every appended row.
func (l *Ledger) Rows() []sheets.LedgerRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]sheets.LedgerRow(nil), l.rows...)
}
