package core

import "time"

// TitheRate is the share of a salary owed as tithe, in percent.
const TitheRate = 10

// TitheTotals summarises a set of tithes.
type TitheTotals struct {
	Total       Money
	Paid        Money
	Pending     Money
	PercentPaid float64
}

// DeriveTithe builds the pending tithe owed for salary. The amount is
// TitheRate percent of the salary rounded half-up to whole cents.
func DeriveTithe(salary Salary, id string, now time.Time) Tithe {
	return Tithe{
		ID:        id,
		UserID:    salary.UserID,
		SalaryID:  salary.ID,
		Amount:    salary.Amount.Percent(TitheRate),
		CreatedAt: now,
	}
}

// MarkPaid moves the tithe from pending to paid. A paid tithe cannot be
// paid again and keeps its original PaidAt.
func (t *Tithe) MarkPaid(at time.Time) error {
	if t.Paid {
		return ErrTitheAlreadyPaid
	}
	paidAt := at
	t.Paid = true
	t.PaidAt = &paidAt
	return nil
}

// SumTithes totals tithes by payment status.
func SumTithes(tithes []Tithe) TitheTotals {
	var tt TitheTotals
	for _, t := range tithes {
		tt.Total = tt.Total.Add(t.Amount)
		if t.Paid {
			tt.Paid = tt.Paid.Add(t.Amount)
		}
	}
	tt.Pending = tt.Total.Sub(tt.Paid)
	if tt.Total.Cents > 0 {
		tt.PercentPaid = ratio(tt.Paid.Cents, tt.Total.Cents)
	}
	return tt
}
