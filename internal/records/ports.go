// Package records defines the Record Store Gateway: the persistence ports
// the finance service uses for purchases, bills, salaries and tithes.
//
// Every operation is scoped to a single user id. Implementations live in
// records/memory, storage/sqlite and storage/postgres.
package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"financas/internal/core"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrSalaryExists = errors.New("salary already registered for this month")
	ErrTitheExists  = errors.New("tithe already exists for this salary")
)

// StoreError wraps an infrastructure failure coming from a gateway.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Wrap returns err as a StoreError for op unless it is nil or already one
// of the domain sentinels.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrSalaryExists) ||
		errors.Is(err, ErrTitheExists) || errors.Is(err, core.ErrTitheAlreadyPaid) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// Ports for the record store.
type (
	PurchaseStore interface {
		CreatePurchase(ctx context.Context, p core.Purchase) error
		GetPurchase(ctx context.Context, userID, id string) (core.Purchase, error)
		// ListPurchases returns purchases dated within [from, to], oldest first.
		ListPurchases(ctx context.Context, userID string, from, to core.Date) ([]core.Purchase, error)
	}

	BillStore interface {
		CreateBill(ctx context.Context, b core.Bill) error
		GetBill(ctx context.Context, userID, id string) (core.Bill, error)
		UpdateBill(ctx context.Context, b core.Bill) error
		// ListBills returns bills by creation order; activeOnly filters inactive ones.
		ListBills(ctx context.Context, userID string, activeOnly bool) ([]core.Bill, error)
	}

	SalaryStore interface {
		// CreateSalary fails with ErrSalaryExists when the month is taken.
		CreateSalary(ctx context.Context, s core.Salary) error
		GetSalary(ctx context.Context, userID, id string) (core.Salary, error)
		// SalaryForMonth returns ErrNotFound when no salary was registered.
		SalaryForMonth(ctx context.Context, userID string, year, month int) (core.Salary, error)
		// ListSalaries returns salaries newest month first.
		ListSalaries(ctx context.Context, userID string) ([]core.Salary, error)
	}

	TitheStore interface {
		// CreateTithe fails with ErrTitheExists when the salary already has one.
		CreateTithe(ctx context.Context, t core.Tithe) error
		GetTithe(ctx context.Context, userID, id string) (core.Tithe, error)
		TitheForSalary(ctx context.Context, userID, salaryID string) (core.Tithe, error)
		ListTithes(ctx context.Context, userID string) ([]core.Tithe, error)
		// MarkTithePaid flips a pending tithe to paid. It returns
		// core.ErrTitheAlreadyPaid when the tithe is already paid.
		MarkTithePaid(ctx context.Context, userID, id string, at time.Time) error
	}

	// Gateway is the full record store used by the service layer.
	Gateway interface {
		PurchaseStore
		BillStore
		SalaryStore
		TitheStore
		Ping(ctx context.Context) error
		Close() error
	}

	// SalaryTitheRegistrar is implemented by stores that can persist a
	// salary and its derived tithe in a single transaction.
	SalaryTitheRegistrar interface {
		RegisterSalaryWithTithe(ctx context.Context, s core.Salary, t core.Tithe) error
	}
)
