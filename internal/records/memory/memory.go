// Package memory is an in-process Record Store Gateway used for tests and
// the memory backend. Data is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"financas/internal/core"
	"financas/internal/records"
)

type Store struct {
	mu        sync.Mutex
	purchases []core.Purchase
	bills     []core.Bill
	salaries  []core.Salary
	tithes    []core.Tithe

	// FailTitheCreate makes CreateTithe return this error. Tests use it to
	// exercise partial salary registration.
	FailTitheCreate error
}

func New() *Store {
	return &Store{}
}

var (
	_ records.Gateway              = (*Store)(nil)
	_ records.SalaryTitheRegistrar = (*Store)(nil)
)

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) CreatePurchase(_ context.Context, p core.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purchases = append(s.purchases, p)
	return nil
}

func (s *Store) GetPurchase(_ context.Context, userID, id string) (core.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.purchases {
		if p.ID == id && p.UserID == userID {
			return p, nil
		}
	}
	return core.Purchase{}, records.ErrNotFound
}

func (s *Store) ListPurchases(_ context.Context, userID string, from, to core.Date) ([]core.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Purchase
	for _, p := range s.purchases {
		if p.UserID != userID {
			continue
		}
		if p.Date.Before(from.Time) || p.Date.After(to.Time) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (s *Store) CreateBill(_ context.Context, b core.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bills = append(s.bills, b)
	return nil
}

func (s *Store) GetBill(_ context.Context, userID, id string) (core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bills {
		if b.ID == id && b.UserID == userID {
			return b, nil
		}
	}
	return core.Bill{}, records.ErrNotFound
}

func (s *Store) UpdateBill(_ context.Context, b core.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bills {
		if s.bills[i].ID == b.ID && s.bills[i].UserID == b.UserID {
			b.CreatedAt = s.bills[i].CreatedAt
			s.bills[i] = b
			return nil
		}
	}
	return records.ErrNotFound
}

func (s *Store) ListBills(_ context.Context, userID string, activeOnly bool) ([]core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Bill
	for _, b := range s.bills {
		if b.UserID != userID || (activeOnly && !b.Active) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) CreateSalary(_ context.Context, sal core.Salary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertSalary(sal)
}

func (s *Store) insertSalary(sal core.Salary) error {
	for _, x := range s.salaries {
		if x.UserID == sal.UserID && x.Year == sal.Year && x.Month == sal.Month {
			return records.ErrSalaryExists
		}
	}
	s.salaries = append(s.salaries, sal)
	return nil
}

func (s *Store) GetSalary(_ context.Context, userID, id string) (core.Salary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.salaries {
		if x.ID == id && x.UserID == userID {
			return x, nil
		}
	}
	return core.Salary{}, records.ErrNotFound
}

func (s *Store) SalaryForMonth(_ context.Context, userID string, year, month int) (core.Salary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.salaries {
		if x.UserID == userID && x.Year == year && x.Month == month {
			return x, nil
		}
	}
	return core.Salary{}, records.ErrNotFound
}

func (s *Store) ListSalaries(_ context.Context, userID string) ([]core.Salary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Salary
	for _, x := range s.salaries {
		if x.UserID == userID {
			out = append(out, x)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	return out, nil
}

func (s *Store) CreateTithe(_ context.Context, t core.Tithe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailTitheCreate != nil {
		return s.FailTitheCreate
	}
	return s.insertTithe(t)
}

func (s *Store) insertTithe(t core.Tithe) error {
	for _, x := range s.tithes {
		if x.SalaryID == t.SalaryID {
			return records.ErrTitheExists
		}
	}
	s.tithes = append(s.tithes, t)
	return nil
}

func (s *Store) GetTithe(_ context.Context, userID, id string) (core.Tithe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tithes {
		if t.ID == id && t.UserID == userID {
			return copyTithe(t), nil
		}
	}
	return core.Tithe{}, records.ErrNotFound
}

func (s *Store) TitheForSalary(_ context.Context, userID, salaryID string) (core.Tithe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tithes {
		if t.SalaryID == salaryID && t.UserID == userID {
			return copyTithe(t), nil
		}
	}
	return core.Tithe{}, records.ErrNotFound
}

func (s *Store) ListTithes(_ context.Context, userID string) ([]core.Tithe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Tithe
	for _, t := range s.tithes {
		if t.UserID == userID {
			out = append(out, copyTithe(t))
		}
	}
	return out, nil
}

func (s *Store) MarkTithePaid(_ context.Context, userID, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tithes {
		if s.tithes[i].ID == id && s.tithes[i].UserID == userID {
			return s.tithes[i].MarkPaid(at)
		}
	}
	return records.ErrNotFound
}

// RegisterSalaryWithTithe stores both records or neither.
func (s *Store) RegisterSalaryWithTithe(_ context.Context, sal core.Salary, t core.Tithe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailTitheCreate != nil {
		return s.FailTitheCreate
	}
	for _, x := range s.tithes {
		if x.SalaryID == t.SalaryID {
			return records.ErrTitheExists
		}
	}
	if err := s.insertSalary(sal); err != nil {
		return err
	}
	s.tithes = append(s.tithes, t)
	return nil
}

// copyTithe detaches PaidAt so callers cannot mutate stored state.
func copyTithe(t core.Tithe) core.Tithe {
	if t.PaidAt != nil {
		at := *t.PaidAt
		t.PaidAt = &at
	}
	return t
}
