package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/metrics"
	"financas/internal/records"
	"financas/internal/sheets"
)

// LedgerWorker turns finance events into ledger rows. Each event is looked
// up in the record store so the ledger always reflects persisted state.
type LedgerWorker struct {
	store   records.Gateway
	ledger  sheets.Ledger
	metrics *metrics.Metrics
}

func NewLedgerWorker(store records.Gateway, ledger sheets.Ledger, m *metrics.Metrics) *LedgerWorker {
	return &LedgerWorker{
		store:   store,
		ledger:  ledger,
		metrics: m,
	}
}

// HandleEvent appends the row for one event. Events whose record is gone or
// whose row already exists are acknowledged without writing; only ledger
// and store failures are returned so the message is requeued.
func (w *LedgerWorker) HandleEvent(ctx context.Context, ev *amqp.FinanceEvent) error {
	slog.InfoContext(ctx, "Processing finance event",
		"type", ev.Type,
		"record_id", ev.RecordID)

	row, err := w.buildRow(ctx, ev)
	if errors.Is(err, records.ErrNotFound) {
		slog.WarnContext(ctx, "Record for event not found, dropping",
			"type", ev.Type, "record_id", ev.RecordID, "user_id", ev.UserID)
		return nil
	}
	if errors.Is(err, errUnknownEvent) {
		slog.WarnContext(ctx, "Ignoring unknown event type", "type", ev.Type)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}

	exists, err := w.ledger.HasRecord(ctx, row.Kind, row.RecordID)
	if err != nil {
		return fmt.Errorf("check ledger: %w", err)
	}
	if exists {
		slog.DebugContext(ctx, "Ledger row already present", "kind", row.Kind, "record_id", row.RecordID)
		return nil
	}

	if err := w.ledger.AppendRow(ctx, row); err != nil {
		w.metrics.LedgerAppend(false)
		return fmt.Errorf("append ledger row: %w", err)
	}
	w.metrics.LedgerAppend(true)

	slog.InfoContext(ctx, "Ledger row appended",
		"kind", row.Kind,
		"record_id", row.RecordID,
		"amount_cents", row.Amount.Cents)
	return nil
}

var errUnknownEvent = errors.New("unknown event type")

func (w *LedgerWorker) buildRow(ctx context.Context, ev *amqp.FinanceEvent) (sheets.LedgerRow, error) {
	row := sheets.LedgerRow{
		Timestamp: ev.Timestamp,
		UserID:    ev.UserID,
		Kind:      string(ev.Type),
		RecordID:  ev.RecordID,
	}

	switch ev.Type {
	case amqp.EventPurchaseCreated:
		p, err := w.store.GetPurchase(ctx, ev.UserID, ev.RecordID)
		if err != nil {
			return row, err
		}
		row.Description = fmt.Sprintf("Compra %s (%s)", p.Date.Format("02/01/2006"), p.PaymentMethod.Label())
		row.Amount = p.Total

	case amqp.EventBillCreated, amqp.EventBillUpdated:
		b, err := w.store.GetBill(ctx, ev.UserID, ev.RecordID)
		if err != nil {
			return row, err
		}
		row.Description = fmt.Sprintf("%s (%s)", b.Name, b.Category.Label())
		if !b.Active {
			row.Description += " inativa"
		}
		row.Amount = b.Amount
		if ev.Type == amqp.EventBillUpdated {
			// A bill is updated many times; every update gets its own row.
			row.RecordID = ev.RecordID + "@" + ev.Timestamp.UTC().Format(time.RFC3339Nano)
		}

	case amqp.EventSalaryRegistered:
		s, err := w.store.GetSalary(ctx, ev.UserID, ev.RecordID)
		if err != nil {
			return row, err
		}
		row.Description = "Salário " + core.MonthName(s.Year, s.Month)
		row.Amount = s.Amount

	case amqp.EventTitheCreated, amqp.EventTithePaid:
		t, err := w.store.GetTithe(ctx, ev.UserID, ev.RecordID)
		if err != nil {
			return row, err
		}
		row.Amount = t.Amount
		row.Description = "Dízimo pendente"
		if ev.Type == amqp.EventTithePaid {
			row.Description = "Dízimo pago"
			if t.PaidAt != nil {
				row.Timestamp = *t.PaidAt
			}
		}

	default:
		return row, errUnknownEvent
	}
	return row, nil
}
