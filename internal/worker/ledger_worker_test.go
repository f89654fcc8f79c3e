package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/records/memory"
	"financas/internal/sheets"
	sheetsmem "financas/internal/sheets/memory"
)

type failingLedger struct {
	*sheetsmem.Ledger
}

func (failingLedger) AppendRow(context.Context, sheets.LedgerRow) error {
	return errors.New("quota exceeded")
}

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	store := memory.New()

	if err := store.CreatePurchase(ctx, core.Purchase{
		ID: "p1", UserID: "u1", Date: core.NewDate(2026, 10, 12), Total: core.Money{Cents: 15075},
		PaymentMethod: core.PaymentFoodVoucher, CreatedAt: now,
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateBill(ctx, core.Bill{
		ID: "b1", UserID: "u1", Name: "Aluguel", Amount: core.Money{Cents: 150000},
		Category: core.CategoryHousing, Type: core.BillFixed, DueDay: 5, Active: true, CreatedAt: now,
	}); err != nil {
		t.Fatal(err)
	}
	sal := core.Salary{ID: "s1", UserID: "u1", Amount: core.Money{Cents: 500000}, Month: 10, Year: 2026, CreatedAt: now}
	if err := store.RegisterSalaryWithTithe(ctx, sal, core.DeriveTithe(sal, "t1", now)); err != nil {
		t.Fatal(err)
	}
	return store
}

func event(typ amqp.EventType, id string) *amqp.FinanceEvent {
	return &amqp.FinanceEvent{Type: typ, UserID: "u1", RecordID: id, Timestamp: time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)}
}

func TestHandleEventAppendsRows(t *testing.T) {
	ctx := context.Background()
	ledger := sheetsmem.New()
	w := NewLedgerWorker(seedStore(t), ledger, nil)

	tests := []struct {
		ev       *amqp.FinanceEvent
		wantDesc string
		wantCent int64
	}{
		{event(amqp.EventPurchaseCreated, "p1"), "Compra 12/10/2026 (Vale Alimentação)", 15075},
		{event(amqp.EventBillCreated, "b1"), "Aluguel (Moradia)", 150000},
		{event(amqp.EventSalaryRegistered, "s1"), "Salário outubro 2026", 500000},
		{event(amqp.EventTitheCreated, "t1"), "Dízimo pendente", 50000},
	}
	for _, tt := range tests {
		t.Run(string(tt.ev.Type), func(t *testing.T) {
			if err := w.HandleEvent(ctx, tt.ev); err != nil {
				t.Fatalf("HandleEvent: %v", err)
			}
			rows := ledger.Rows()
			last := rows[len(rows)-1]
			if last.Description != tt.wantDesc || last.Amount.Cents != tt.wantCent {
				t.Fatalf("row = %+v, want %q %d", last, tt.wantDesc, tt.wantCent)
			}
			if last.Kind != string(tt.ev.Type) || last.UserID != "u1" {
				t.Fatalf("row identity = %s/%s", last.Kind, last.UserID)
			}
		})
	}
}

func TestHandleEventIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger := sheetsmem.New()
	w := NewLedgerWorker(seedStore(t), ledger, nil)

	ev := event(amqp.EventPurchaseCreated, "p1")
	for i := 0; i < 3; i++ {
		if err := w.HandleEvent(ctx, ev); err != nil {
			t.Fatalf("HandleEvent #%d: %v", i, err)
		}
	}
	if n := len(ledger.Rows()); n != 1 {
		t.Fatalf("redelivered event appended %d rows, want 1", n)
	}
}

func TestHandleEventBillUpdatesGetOwnRows(t *testing.T) {
	ctx := context.Background()
	ledger := sheetsmem.New()
	w := NewLedgerWorker(seedStore(t), ledger, nil)

	first := event(amqp.EventBillUpdated, "b1")
	second := event(amqp.EventBillUpdated, "b1")
	second.Timestamp = second.Timestamp.Add(time.Minute)
	for _, ev := range []*amqp.FinanceEvent{first, second, first} {
		if err := w.HandleEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}
	rows := ledger.Rows()
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if !strings.HasPrefix(rows[0].RecordID, "b1@") {
		t.Fatalf("update row id = %q", rows[0].RecordID)
	}
}

func TestHandleEventTithePaidUsesPaymentTime(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)
	paidAt := time.Date(2026, 10, 20, 18, 30, 0, 0, time.UTC)
	if err := store.MarkTithePaid(ctx, "u1", "t1", paidAt); err != nil {
		t.Fatal(err)
	}
	ledger := sheetsmem.New()
	w := NewLedgerWorker(store, ledger, nil)

	if err := w.HandleEvent(ctx, event(amqp.EventTithePaid, "t1")); err != nil {
		t.Fatal(err)
	}
	row := ledger.Rows()[0]
	if row.Description != "Dízimo pago" || !row.Timestamp.Equal(paidAt) {
		t.Fatalf("row = %+v", row)
	}
}

func TestHandleEventDropsUnknownAndMissing(t *testing.T) {
	ctx := context.Background()
	ledger := sheetsmem.New()
	w := NewLedgerWorker(seedStore(t), ledger, nil)

	for _, ev := range []*amqp.FinanceEvent{
		event(amqp.EventPurchaseCreated, "missing"),
		event(amqp.EventType("purchase.archived"), "p1"),
	} {
		if err := w.HandleEvent(ctx, ev); err != nil {
			t.Fatalf("HandleEvent(%s) = %v, want nil", ev.Type, err)
		}
	}
	if n := len(ledger.Rows()); n != 0 {
		t.Fatalf("expected no rows, got %d", n)
	}
}

func TestHandleEventReturnsLedgerFailure(t *testing.T) {
	w := NewLedgerWorker(seedStore(t), failingLedger{sheetsmem.New()}, nil)
	if err := w.HandleEvent(context.Background(), event(amqp.EventBillCreated, "b1")); err == nil {
		t.Fatal("expected append failure to be returned for requeue")
	}
}
