package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"financas/internal/amqp"
	"financas/internal/cache"
	"financas/internal/core"
	"financas/internal/records"
	"financas/internal/records/memory"
	"financas/internal/session"
)

var alice = session.Session{UserID: "user-alice", Email: "alice@example.com"}

type fakePublisher struct {
	mu     sync.Mutex
	events []amqp.FinanceEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, ev amqp.FinanceEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) types() []amqp.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]amqp.EventType, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Type
	}
	return out
}

func newTestService(store records.Gateway, now time.Time, opts ...Option) *FinanceService {
	n := 0
	base := []Option{
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	}
	return NewFinanceService(store, append(base, opts...)...)
}

func brl(cents int64) core.Money { return core.Money{Cents: cents} }

func TestRegisterSalaryDerivesTithe(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	pub := &fakePublisher{}
	svc := newTestService(memory.New(), now, WithPublisher(pub))

	sal, tithe, err := svc.RegisterSalary(ctx, alice, brl(300000), 10, 2026)
	if err != nil {
		t.Fatalf("RegisterSalary: %v", err)
	}
	if tithe.Amount.Cents != 30000 || tithe.Paid || tithe.PaidAt != nil {
		t.Fatalf("unexpected tithe %+v", tithe)
	}
	if tithe.SalaryID != sal.ID || tithe.UserID != alice.UserID {
		t.Fatalf("tithe not linked to salary: %+v", tithe)
	}

	later := now.Add(time.Hour)
	svc.now = func() time.Time { return later }
	paid, err := svc.MarkTithePaid(ctx, alice, tithe.ID)
	if err != nil {
		t.Fatalf("MarkTithePaid: %v", err)
	}
	if !paid.Paid || paid.PaidAt == nil || !paid.PaidAt.Equal(later) {
		t.Fatalf("tithe not paid at action time: %+v", paid)
	}

	if _, err := svc.MarkTithePaid(ctx, alice, tithe.ID); !errors.Is(err, core.ErrTitheAlreadyPaid) {
		t.Fatalf("second MarkTithePaid err = %v, want ErrTitheAlreadyPaid", err)
	}

	want := []amqp.EventType{amqp.EventSalaryRegistered, amqp.EventTitheCreated, amqp.EventTithePaid}
	got := pub.types()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestRegisterSalaryRejectsDuplicateMonth(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(memory.New(), time.Now())

	if _, _, err := svc.RegisterSalary(ctx, alice, brl(100000), 3, 2026); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, _, err := svc.RegisterSalary(ctx, alice, brl(200000), 3, 2026); !errors.Is(err, records.ErrSalaryExists) {
		t.Fatalf("err = %v, want ErrSalaryExists", err)
	}
}

func TestRegisterSalaryValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(memory.New(), time.Now())

	tests := []struct {
		name   string
		amount core.Money
		month  int
		year   int
		field  string
	}{
		{"negative amount", brl(-1), 1, 2026, "amount"},
		{"month zero", brl(100), 0, 2026, "month"},
		{"month thirteen", brl(100), 13, 2026, "month"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.RegisterSalary(ctx, alice, tt.amount, tt.month, tt.year)
			var verr *core.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("err = %v, want validation error on %s", err, tt.field)
			}
		})
	}
}

func TestRegisterSalaryPartialFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	store.FailTitheCreate = errors.New("disk full")
	// Hide RegisterSalaryWithTithe to force the two-step path.
	svc := newTestService(struct{ records.Gateway }{store}, time.Now())

	sal, _, err := svc.RegisterSalary(ctx, alice, brl(250000), 5, 2026)
	var inconsistency *DerivationInconsistencyError
	if !errors.As(err, &inconsistency) {
		t.Fatalf("err = %v, want DerivationInconsistencyError", err)
	}
	if inconsistency.Salary.ID != sal.ID {
		t.Fatalf("error carries salary %q, want %q", inconsistency.Salary.ID, sal.ID)
	}

	missing, err := svc.FindSalariesWithoutTithe(ctx, alice)
	if err != nil || len(missing) != 1 {
		t.Fatalf("missing = %v err = %v", missing, err)
	}

	store.FailTitheCreate = nil
	repaired, err := svc.RepairMissingTithes(ctx, alice)
	if err != nil {
		t.Fatalf("RepairMissingTithes: %v", err)
	}
	if len(repaired) != 1 || repaired[0].Amount.Cents != 25000 {
		t.Fatalf("repaired = %+v", repaired)
	}
	if missing, _ := svc.FindSalariesWithoutTithe(ctx, alice); len(missing) != 0 {
		t.Fatalf("salaries still missing tithe: %v", missing)
	}
}

func TestRegisterSalaryAtomicFailureLeavesNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	store.FailTitheCreate = errors.New("boom")
	svc := newTestService(store, time.Now())

	_, _, err := svc.RegisterSalary(ctx, alice, brl(100000), 1, 2026)
	if err == nil {
		t.Fatal("expected error")
	}
	var inconsistency *DerivationInconsistencyError
	if errors.As(err, &inconsistency) {
		t.Fatal("atomic registration must not report inconsistency")
	}
	salaries, _ := store.ListSalaries(ctx, alice.UserID)
	if len(salaries) != 0 {
		t.Fatalf("salary persisted despite failed transaction: %v", salaries)
	}
}

func TestMonthSummary(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	store := memory.New()
	svc := newTestService(store, now)

	mustPurchase(t, svc, core.NewDate(2026, 10, 2), 15050)
	mustPurchase(t, svc, core.NewDate(2026, 10, 31), 4950)
	mustPurchase(t, svc, core.NewDate(2026, 9, 30), 99999)
	rent := mustBill(t, svc, "Aluguel", 120000, core.CategoryHousing)
	mustBill(t, svc, "Internet", 10000, core.CategoryOther)
	if _, _, err := svc.RegisterSalary(ctx, alice, brl(500000), 10, 2026); err != nil {
		t.Fatal(err)
	}

	sum, err := svc.MonthSummary(ctx, alice, 2026, 10)
	if err != nil {
		t.Fatalf("MonthSummary: %v", err)
	}
	if sum.TotalPurchases.Cents != 20000 || sum.PurchaseCount != 2 {
		t.Fatalf("purchases = %d (%d), want 20000 (2)", sum.TotalPurchases.Cents, sum.PurchaseCount)
	}
	if sum.TotalBills.Cents != 130000 {
		t.Fatalf("bills = %d, want 130000", sum.TotalBills.Cents)
	}
	if sum.Balance.Cents != 500000-20000-130000 {
		t.Fatalf("balance = %d", sum.Balance.Cents)
	}

	if err := svc.DeactivateBill(ctx, alice, rent.ID); err != nil {
		t.Fatal(err)
	}
	sum, err = svc.MonthSummary(ctx, alice, 2026, 10)
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalBills.Cents != 10000 {
		t.Fatalf("inactive bill still counted: %d", sum.TotalBills.Cents)
	}

	empty, err := svc.MonthSummary(ctx, alice, 2026, 8)
	if err != nil {
		t.Fatal(err)
	}
	if empty.SalaryAmount.Cents != 0 || core.PercentSpent(empty) != 0 {
		t.Fatalf("month without salary: %+v", empty)
	}
}

func TestMonthSummaryCacheInvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	c := cache.NewLRUCache[core.PeriodSummary](16, time.Hour)
	svc := newTestService(memory.New(), now, WithSummaryCache(c))

	mustPurchase(t, svc, core.NewDate(2026, 10, 1), 1000)
	if _, err := svc.MonthSummary(ctx, alice, 2026, 10); err != nil {
		t.Fatal(err)
	}
	if c.Size() != 1 {
		t.Fatalf("summary not cached")
	}

	mustPurchase(t, svc, core.NewDate(2026, 10, 2), 500)
	sum, err := svc.MonthSummary(ctx, alice, 2026, 10)
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalPurchases.Cents != 1500 {
		t.Fatalf("stale summary served: %d", sum.TotalPurchases.Cents)
	}
}

func TestTrailingReport(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	svc := newTestService(memory.New(), now)

	mustBill(t, svc, "Aluguel", 50000, core.CategoryHousing)
	mustBill(t, svc, "Condomínio", 20000, core.CategoryHousing)
	mustBill(t, svc, "Mercado", 30000, core.CategoryFood)
	mustPurchase(t, svc, core.NewDate(2026, 8, 10), 10000)
	mustPurchase(t, svc, core.NewDate(2026, 10, 1), 5000)
	mustPurchase(t, svc, core.NewDate(2026, 7, 31), 77700) // outside the window
	if _, _, err := svc.RegisterSalary(ctx, alice, brl(400000), 9, 2026); err != nil {
		t.Fatal(err)
	}

	in, err := svc.TrailingReport(ctx, alice, 3, now)
	if err != nil {
		t.Fatalf("TrailingReport: %v", err)
	}
	if len(in.Periods) != 3 || in.Periods[0].Month != 8 || in.Periods[2].Month != 10 {
		t.Fatalf("periods = %+v", in.Periods)
	}
	if in.Totals.TotalPurchases.Cents != 15000 {
		t.Fatalf("purchases total = %d", in.Totals.TotalPurchases.Cents)
	}
	if in.Totals.TotalBills.Cents != 3*100000 {
		t.Fatalf("bills total = %d", in.Totals.TotalBills.Cents)
	}
	if in.Totals.TotalSalary.Cents != 400000 {
		t.Fatalf("salary total = %d", in.Totals.TotalSalary.Cents)
	}
	if in.Categories.Total() != in.Totals.TotalBills {
		t.Fatalf("categories %v do not add up to bills %v", in.Categories.Total(), in.Totals.TotalBills)
	}
	if got := in.Categories.Amount(core.CategoryHousing).Cents; got != 3*70000 {
		t.Fatalf("housing = %d", got)
	}

	if _, err := svc.TrailingReport(ctx, alice, 0, now); err == nil {
		t.Fatal("expected error for empty window")
	}
}

func TestUpcomingBills(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 20, 15, 0, 0, 0, time.UTC)
	svc := newTestService(memory.New(), now)

	for _, b := range []struct {
		name string
		day  int
	}{{"Luz", 25}, {"Aluguel", 31}, {"Água", 5}, {"Hoje", 20}} {
		if _, err := svc.RecordBill(ctx, alice, BillInput{
			Name: b.name, Amount: brl(100), Category: core.CategoryHousing, Type: core.BillFixed, DueDay: b.day,
		}); err != nil {
			t.Fatal(err)
		}
	}

	upcoming, err := svc.UpcomingBills(ctx, alice, now, 10)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, u := range upcoming {
		names = append(names, fmt.Sprintf("%s@%s", u.Bill.Name, u.DueDate))
	}
	want := "[Hoje@2026-02-20 Luz@2026-02-25 Aluguel@2026-02-28]"
	if fmt.Sprint(names) != want {
		t.Fatalf("upcoming = %v, want %s", names, want)
	}
}

func TestUpdateBill(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(memory.New(), time.Now())
	b := mustBill(t, svc, "Luz", 10000, core.CategoryHousing)

	updated, err := svc.UpdateBill(ctx, alice, b.ID, BillInput{
		Name: "Energia", Amount: brl(12000), Category: core.CategoryHousing, Type: core.BillVariable, DueDay: 12,
	})
	if err != nil {
		t.Fatalf("UpdateBill: %v", err)
	}
	if updated.ID != b.ID || !updated.Active || updated.Name != "Energia" || updated.Type != core.BillVariable {
		t.Fatalf("unexpected update result %+v", updated)
	}

	if _, err := svc.UpdateBill(ctx, alice, "missing", BillInput{Name: "x", Category: core.CategoryOther, Type: core.BillFixed, DueDay: 1}); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	bob := session.Session{UserID: "user-bob"}
	if _, err := svc.UpdateBill(ctx, bob, b.ID, BillInput{Name: "x", Category: core.CategoryOther, Type: core.BillFixed, DueDay: 1}); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("other user could update bill: %v", err)
	}
}

func TestTitheOverview(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(memory.New(), time.Now())
	_, t1, err := svc.RegisterSalary(ctx, alice, brl(100000), 1, 2026)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.RegisterSalary(ctx, alice, brl(300000), 2, 2026); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.MarkTithePaid(ctx, alice, t1.ID); err != nil {
		t.Fatal(err)
	}

	ov, err := svc.TitheOverview(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(ov.Entries) != 2 || ov.Entries[0].Salary.Month != 2 {
		t.Fatalf("entries not newest first: %+v", ov.Entries)
	}
	if ov.Totals.Total.Cents != 40000 || ov.Totals.Paid.Cents != 10000 || ov.Totals.Pending.Cents != 30000 {
		t.Fatalf("totals = %+v", ov.Totals)
	}
	if ov.Totals.PercentPaid != 25 {
		t.Fatalf("percent paid = %v, want 25", ov.Totals.PercentPaid)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := newTestService(memory.New(), time.Now(), WithPublisher(pub))
	p := mustPurchase(t, svc, core.NewDate(2026, 1, 1), 100)
	if p.ID == "" {
		t.Fatal("purchase not recorded")
	}
}

func TestRequiresSession(t *testing.T) {
	svc := newTestService(memory.New(), time.Now())
	if _, err := svc.ListActiveBills(context.Background(), session.Session{}); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

func mustPurchase(t *testing.T, svc *FinanceService, d core.Date, cents int64) core.Purchase {
	t.Helper()
	p, err := svc.RecordPurchase(context.Background(), alice, PurchaseInput{
		Date: d, Total: brl(cents), DurationMinutes: 30, PaymentMethod: core.PaymentPIX,
	})
	if err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}
	return p
}

func mustBill(t *testing.T, svc *FinanceService, name string, cents int64, cat core.BillCategory) core.Bill {
	t.Helper()
	b, err := svc.RecordBill(context.Background(), alice, BillInput{
		Name: name, Amount: brl(cents), Category: cat, Type: core.BillFixed, DueDay: 10,
	})
	if err != nil {
		t.Fatalf("RecordBill: %v", err)
	}
	return b
}
