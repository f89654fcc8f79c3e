package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"financas/internal/core"
	"financas/internal/records"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

	t.Run("purchases round trip within range", func(t *testing.T) {
		for i, d := range []core.Date{core.NewDate(2026, 10, 3), core.NewDate(2026, 9, 30), core.NewDate(2026, 10, 31)} {
			p := core.Purchase{
				ID:              []string{"p1", "p0", "p2"}[i],
				UserID:          "u1",
				Date:            d,
				Total:           core.Money{Cents: int64(1000 * (i + 1))},
				DurationMinutes: 30,
				PaymentMethod:   core.PaymentPIX,
				CreatedAt:       now,
			}
			if err := store.CreatePurchase(ctx, p); err != nil {
				t.Fatalf("CreatePurchase failed: %v", err)
			}
		}
		from, to := core.MonthRange(2026, 10)
		got, err := store.ListPurchases(ctx, "u1", from, to)
		if err != nil {
			t.Fatalf("ListPurchases failed: %v", err)
		}
		if len(got) != 2 || got[0].ID != "p1" || got[1].ID != "p2" {
			t.Fatalf("unexpected purchases %+v", got)
		}
		if got[0].PaymentMethod != core.PaymentPIX || got[0].DurationMinutes != 30 || !got[0].CreatedAt.Equal(now) {
			t.Fatalf("fields not preserved: %+v", got[0])
		}
		one, err := store.GetPurchase(ctx, "u1", "p0")
		if err != nil || !one.Date.Equal(core.NewDate(2026, 9, 30).Time) {
			t.Fatalf("GetPurchase = %+v, %v", one, err)
		}
		if _, err := store.GetPurchase(ctx, "u2", "p0"); !errors.Is(err, records.ErrNotFound) {
			t.Fatalf("GetPurchase for other user err = %v, want ErrNotFound", err)
		}
	})

	t.Run("bills update and deactivate", func(t *testing.T) {
		b := core.Bill{ID: "b1", UserID: "u1", Name: "Internet", Amount: core.Money{Cents: 9990},
			Category: core.CategoryHousing, Type: core.BillFixed, DueDay: 15, Active: true, CreatedAt: now}
		if err := store.CreateBill(ctx, b); err != nil {
			t.Fatalf("CreateBill failed: %v", err)
		}
		b.Amount = core.Money{Cents: 11990}
		b.Active = false
		if err := store.UpdateBill(ctx, b); err != nil {
			t.Fatalf("UpdateBill failed: %v", err)
		}
		got, err := store.GetBill(ctx, "u1", "b1")
		if err != nil {
			t.Fatalf("GetBill failed: %v", err)
		}
		if got.Amount.Cents != 11990 || got.Active {
			t.Fatalf("update not persisted: %+v", got)
		}
		active, _ := store.ListBills(ctx, "u1", true)
		if len(active) != 0 {
			t.Fatalf("expected no active bills, got %d", len(active))
		}
		if _, err := store.GetBill(ctx, "u2", "b1"); !errors.Is(err, records.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := store.UpdateBill(ctx, core.Bill{ID: "missing", UserID: "u1"}); !errors.Is(err, records.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("salary with tithe is atomic and unique per month", func(t *testing.T) {
		sal := core.Salary{ID: "s1", UserID: "u1", Amount: core.Money{Cents: 300000}, Month: 10, Year: 2026, CreatedAt: now}
		tithe := core.DeriveTithe(sal, "t1", now)
		if err := store.RegisterSalaryWithTithe(ctx, sal, tithe); err != nil {
			t.Fatalf("RegisterSalaryWithTithe failed: %v", err)
		}

		dup := sal
		dup.ID = "s2"
		err := store.RegisterSalaryWithTithe(ctx, dup, core.DeriveTithe(dup, "t2", now))
		if !errors.Is(err, records.ErrSalaryExists) {
			t.Fatalf("expected ErrSalaryExists, got %v", err)
		}
		if _, err := store.TitheForSalary(ctx, "u1", "s2"); !errors.Is(err, records.ErrNotFound) {
			t.Fatalf("tithe of rejected salary persisted: %v", err)
		}

		got, err := store.SalaryForMonth(ctx, "u1", 2026, 10)
		if err != nil || got.ID != "s1" {
			t.Fatalf("SalaryForMonth = %+v, %v", got, err)
		}
		tt, err := store.TitheForSalary(ctx, "u1", "s1")
		if err != nil || tt.Amount.Cents != 30000 || tt.Paid || tt.PaidAt != nil {
			t.Fatalf("unexpected tithe %+v, %v", tt, err)
		}
	})

	t.Run("tithe marked paid once", func(t *testing.T) {
		at := now.Add(2 * time.Hour)
		if err := store.MarkTithePaid(ctx, "u1", "t1", at); err != nil {
			t.Fatalf("MarkTithePaid failed: %v", err)
		}
		err := store.MarkTithePaid(ctx, "u1", "t1", at.Add(time.Hour))
		if !errors.Is(err, core.ErrTitheAlreadyPaid) {
			t.Fatalf("expected ErrTitheAlreadyPaid, got %v", err)
		}
		got, _ := store.GetTithe(ctx, "u1", "t1")
		if !got.Paid || got.PaidAt == nil || !got.PaidAt.Equal(at) {
			t.Fatalf("unexpected tithe %+v", got)
		}
		if err := store.MarkTithePaid(ctx, "u1", "nope", at); !errors.Is(err, records.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("salary without tithe is listed", func(t *testing.T) {
		sal := core.Salary{ID: "s3", UserID: "u1", Amount: core.Money{Cents: 100000}, Month: 9, Year: 2026, CreatedAt: now}
		if err := store.CreateSalary(ctx, sal); err != nil {
			t.Fatalf("CreateSalary failed: %v", err)
		}
		list, err := store.ListSalaries(ctx, "u1")
		if err != nil || len(list) != 2 || list[0].Month != 10 {
			t.Fatalf("unexpected salaries %+v, %v", list, err)
		}
		if err := store.CreateTithe(ctx, core.Tithe{ID: "t3", UserID: "u1", SalaryID: "s1", CreatedAt: now}); !errors.Is(err, records.ErrTitheExists) {
			t.Fatalf("expected ErrTitheExists, got %v", err)
		}
	})
}

func TestForeignKeysOnEveryConnection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Hold several connections at once so the pool has to open new ones.
	conns := make([]*sql.Conn, 0, 3)
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()
	for i := 0; i < 3; i++ {
		c, err := store.db.Conn(ctx)
		if err != nil {
			t.Fatalf("Conn #%d: %v", i+1, err)
		}
		conns = append(conns, c)

		var on int
		if err := c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&on); err != nil {
			t.Fatalf("PRAGMA foreign_keys on conn #%d: %v", i+1, err)
		}
		if on != 1 {
			t.Fatalf("foreign_keys = %d on conn #%d, want 1", on, i+1)
		}
	}

	orphan := core.Tithe{ID: "t-orphan", UserID: "u1", SalaryID: "missing", Amount: core.Money{Cents: 100}, CreatedAt: time.Now()}
	if err := store.CreateTithe(ctx, orphan); err == nil {
		t.Fatal("tithe for an unknown salary was stored")
	}
}
