package http

import (
	"time"

	"financas/internal/core"
	"financas/internal/services"
)

// JSON shapes returned by the API. Amounts carry cents for clients that
// compute and a pt-BR string for clients that only display.

type moneyView struct {
	Cents     int64  `json:"cents"`
	Formatted string `json:"formatted"`
}

func newMoneyView(m core.Money) moneyView {
	return moneyView{Cents: m.Cents, Formatted: core.FormatBRL(m)}
}

type purchaseView struct {
	ID              string    `json:"id"`
	Date            string    `json:"date"`
	Total           moneyView `json:"total"`
	DurationMinutes int       `json:"duration_minutes"`
	Duration        string    `json:"duration"`
	PaymentMethod   string    `json:"payment_method"`
	PaymentLabel    string    `json:"payment_label"`
	CreatedAt       time.Time `json:"created_at"`
}

func newPurchaseView(p core.Purchase) purchaseView {
	return purchaseView{
		ID:              p.ID,
		Date:            p.Date.String(),
		Total:           newMoneyView(p.Total),
		DurationMinutes: p.DurationMinutes,
		Duration:        core.FormatDuration(p.DurationMinutes),
		PaymentMethod:   string(p.PaymentMethod),
		PaymentLabel:    p.PaymentMethod.Label(),
		CreatedAt:       p.CreatedAt,
	}
}

type billView struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Amount        moneyView `json:"amount"`
	Category      string    `json:"category"`
	CategoryLabel string    `json:"category_label"`
	Type          string    `json:"type"`
	TypeLabel     string    `json:"type_label"`
	DueDay        int       `json:"due_day"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

func newBillView(b core.Bill) billView {
	return billView{
		ID:            b.ID,
		Name:          b.Name,
		Amount:        newMoneyView(b.Amount),
		Category:      string(b.Category),
		CategoryLabel: b.Category.Label(),
		Type:          string(b.Type),
		TypeLabel:     b.Type.Label(),
		DueDay:        b.DueDay,
		Active:        b.Active,
		CreatedAt:     b.CreatedAt,
	}
}

type upcomingBillView struct {
	billView
	DueDate   string `json:"due_date"`
	DaysUntil int    `json:"days_until"`
}

type salaryView struct {
	ID        string    `json:"id"`
	Month     int       `json:"month"`
	Year      int       `json:"year"`
	Period    string    `json:"period"`
	Amount    moneyView `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

func newSalaryView(s core.Salary) salaryView {
	return salaryView{
		ID:        s.ID,
		Month:     s.Month,
		Year:      s.Year,
		Period:    core.MonthName(s.Year, s.Month),
		Amount:    newMoneyView(s.Amount),
		CreatedAt: s.CreatedAt,
	}
}

type titheView struct {
	ID        string     `json:"id"`
	SalaryID  string     `json:"salary_id"`
	Amount    moneyView  `json:"amount"`
	Status    string     `json:"status"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func newTitheView(t core.Tithe) titheView {
	status := "pending"
	if t.Paid {
		status = "paid"
	}
	return titheView{
		ID:        t.ID,
		SalaryID:  t.SalaryID,
		Amount:    newMoneyView(t.Amount),
		Status:    status,
		PaidAt:    t.PaidAt,
		CreatedAt: t.CreatedAt,
	}
}

type titheTotalsView struct {
	Total       moneyView `json:"total"`
	Paid        moneyView `json:"paid"`
	Pending     moneyView `json:"pending"`
	PercentPaid float64   `json:"percent_paid"`
}

type titheEntryView struct {
	Salary salaryView `json:"salary"`
	Tithe  *titheView `json:"tithe"`
}

func newTitheOverviewView(o services.TitheOverview) any {
	entries := make([]titheEntryView, 0, len(o.Entries))
	for _, e := range o.Entries {
		entry := titheEntryView{Salary: newSalaryView(e.Salary)}
		if e.Tithe != nil {
			tv := newTitheView(*e.Tithe)
			entry.Tithe = &tv
		}
		entries = append(entries, entry)
	}
	return struct {
		Entries []titheEntryView `json:"entries"`
		Totals  titheTotalsView  `json:"totals"`
	}{
		Entries: entries,
		Totals: titheTotalsView{
			Total:       newMoneyView(o.Totals.Total),
			Paid:        newMoneyView(o.Totals.Paid),
			Pending:     newMoneyView(o.Totals.Pending),
			PercentPaid: o.Totals.PercentPaid,
		},
	}
}

type summaryView struct {
	TotalPurchases moneyView `json:"total_purchases"`
	TotalBills     moneyView `json:"total_bills"`
	Salary         moneyView `json:"salary"`
	Balance        moneyView `json:"balance"`
	PurchaseCount  int       `json:"purchase_count"`
}

func newSummaryView(s core.PeriodSummary) summaryView {
	return summaryView{
		TotalPurchases: newMoneyView(s.TotalPurchases),
		TotalBills:     newMoneyView(s.TotalBills),
		Salary:         newMoneyView(s.SalaryAmount),
		Balance:        newMoneyView(s.Balance),
		PurchaseCount:  s.PurchaseCount,
	}
}

type categoryView struct {
	Category string    `json:"category"`
	Label    string    `json:"label"`
	Amount   moneyView `json:"amount"`
}

func newCategoryViews(cb core.CategoryBreakdown) []categoryView {
	out := make([]categoryView, 0, len(cb))
	for _, c := range cb {
		out = append(out, categoryView{
			Category: string(c.Category),
			Label:    c.Category.Label(),
			Amount:   newMoneyView(c.Amount),
		})
	}
	return out
}

type periodView struct {
	Year    int         `json:"year"`
	Month   int         `json:"month"`
	Label   string      `json:"label"`
	Summary summaryView `json:"summary"`
}

type reportView struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Months      int            `json:"months"`
	Periods     []periodView   `json:"periods"`
	Categories  []categoryView `json:"categories"`
	Totals      struct {
		Salary    moneyView `json:"salary"`
		Purchases moneyView `json:"purchases"`
		Bills     moneyView `json:"bills"`
		Balance   moneyView `json:"balance"`
	} `json:"totals"`
}

func newReportView(in core.ReportInput) reportView {
	v := reportView{
		GeneratedAt: in.GeneratedAt,
		Months:      in.Months,
		Periods:     make([]periodView, 0, len(in.Periods)),
		Categories:  newCategoryViews(in.Categories),
	}
	for _, p := range in.Periods {
		v.Periods = append(v.Periods, periodView{
			Year:    p.Year,
			Month:   p.Month,
			Label:   core.PeriodLabel(p.Year, p.Month),
			Summary: newSummaryView(p.Summary),
		})
	}
	v.Totals.Salary = newMoneyView(in.Totals.TotalSalary)
	v.Totals.Purchases = newMoneyView(in.Totals.TotalPurchases)
	v.Totals.Bills = newMoneyView(in.Totals.TotalBills)
	v.Totals.Balance = newMoneyView(in.Totals.Balance)
	return v
}
