package core

import (
	"github.com/shopspring/decimal"
)

// PeriodSummary is the aggregate of one period (usually a calendar month).
type PeriodSummary struct {
	TotalPurchases Money
	TotalBills     Money
	SalaryAmount   Money
	Balance        Money // SalaryAmount - TotalPurchases - TotalBills
	PurchaseCount  int
}

// CategoryAmount represents an amount aggregated by bill category.
type CategoryAmount struct {
	Category BillCategory
	Amount   Money
}

// CategoryBreakdown keeps category totals in order of first appearance.
type CategoryBreakdown []CategoryAmount

// LabeledSummary is a PeriodSummary tagged with its calendar month.
type LabeledSummary struct {
	Year    int
	Month   int // 1-12
	Summary PeriodSummary
}

// Totals sums a sequence of periods.
type Totals struct {
	TotalSalary    Money
	TotalPurchases Money
	TotalBills     Money
	Balance        Money
}

// Aggregate sums purchases and active bills for a period and derives the
// balance against the salary. A nil salary counts as zero. Inputs are not
// modified and amounts are summed as given.
func Aggregate(purchases []Purchase, bills []Bill, salary *Salary) PeriodSummary {
	var s PeriodSummary
	for _, p := range purchases {
		s.TotalPurchases = s.TotalPurchases.Add(p.Total)
	}
	s.PurchaseCount = len(purchases)
	for _, b := range bills {
		if !b.Active {
			continue
		}
		s.TotalBills = s.TotalBills.Add(b.Amount)
	}
	if salary != nil {
		s.SalaryAmount = salary.Amount
	}
	s.Balance = s.SalaryAmount.Sub(s.TotalPurchases).Sub(s.TotalBills)
	return s
}

// AggregateCategories groups active bills by category.
func AggregateCategories(bills []Bill) CategoryBreakdown {
	var out CategoryBreakdown
	for _, b := range bills {
		if !b.Active {
			continue
		}
		out = out.add(b.Category, b.Amount)
	}
	return out
}

func (cb CategoryBreakdown) add(cat BillCategory, amount Money) CategoryBreakdown {
	for i := range cb {
		if cb[i].Category == cat {
			cb[i].Amount = cb[i].Amount.Add(amount)
			return cb
		}
	}
	return append(cb, CategoryAmount{Category: cat, Amount: amount})
}

// Merge returns a new breakdown with other's amounts accumulated into cb.
// Categories new to cb are appended in other's order.
func (cb CategoryBreakdown) Merge(other CategoryBreakdown) CategoryBreakdown {
	out := make(CategoryBreakdown, len(cb), len(cb)+len(other))
	copy(out, cb)
	for _, ca := range other {
		out = out.add(ca.Category, ca.Amount)
	}
	return out
}

// Amount returns the total for cat, zero when absent.
func (cb CategoryBreakdown) Amount(cat BillCategory) Money {
	for _, ca := range cb {
		if ca.Category == cat {
			return ca.Amount
		}
	}
	return Money{}
}

func (cb CategoryBreakdown) Total() Money {
	var t Money
	for _, ca := range cb {
		t = t.Add(ca.Amount)
	}
	return t
}

// PercentSpent is the share of the salary consumed by purchases and bills,
// rounded to two decimals. It is 0 when there is no positive salary.
func PercentSpent(s PeriodSummary) float64 {
	if s.SalaryAmount.Cents <= 0 {
		return 0
	}
	spent := s.TotalPurchases.Add(s.TotalBills)
	return ratio(spent.Cents, s.SalaryAmount.Cents)
}

// ratio returns 100*num/den rounded to two decimals; den must be non-zero.
func ratio(num, den int64) float64 {
	v, _ := decimal.NewFromInt(num).Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(den), 2).Float64()
	return v
}

// SumPeriods adds up every period. The balance is recomputed from the sums.
func SumPeriods(periods []LabeledSummary) Totals {
	var t Totals
	for _, p := range periods {
		t.TotalSalary = t.TotalSalary.Add(p.Summary.SalaryAmount)
		t.TotalPurchases = t.TotalPurchases.Add(p.Summary.TotalPurchases)
		t.TotalBills = t.TotalBills.Add(p.Summary.TotalBills)
	}
	t.Balance = t.TotalSalary.Sub(t.TotalPurchases).Sub(t.TotalBills)
	return t
}

// AverageDurationMinutes is the mean store visit length, rounded half up.
// It is 0 when there are no purchases.
func AverageDurationMinutes(purchases []Purchase) int {
	if len(purchases) == 0 {
		return 0
	}
	sum := 0
	for _, p := range purchases {
		sum += max(p.DurationMinutes, 0)
	}
	n := len(purchases)
	return (2*sum + n) / (2 * n)
}
