package core

import (
	"fmt"
	"strings"
	"time"
)

var monthAbbrev = [12]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}

var monthNames = [12]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

const reportRule = "================================================="

// ReportInput is everything the text report needs. It carries no clock of
// its own besides GeneratedAt, which only appears in the header.
type ReportInput struct {
	GeneratedAt time.Time
	Months      int
	Periods     []LabeledSummary // oldest first
	Categories  CategoryBreakdown
	Totals      Totals
}

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month int // 1-12
}

// PeriodLabel renders a month as "out/26".
func PeriodLabel(year, month int) string {
	if month < 1 || month > 12 {
		return fmt.Sprintf("%02d/%02d", month, year%100)
	}
	return fmt.Sprintf("%s/%02d", monthAbbrev[month-1], year%100)
}

// MonthName renders a month as "outubro 2026".
func MonthName(year, month int) string {
	if month < 1 || month > 12 {
		return fmt.Sprintf("%02d/%d", month, year)
	}
	return fmt.Sprintf("%s %d", monthNames[month-1], year)
}

// TrailingMonths returns the n calendar months ending with the month of now,
// oldest first.
func TrailingMonths(now time.Time, n int) []YearMonth {
	if n <= 0 {
		return nil
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]YearMonth, 0, n)
	for i := n - 1; i >= 0; i-- {
		m := first.AddDate(0, -i, 0)
		out = append(out, YearMonth{Year: m.Year(), Month: int(m.Month())})
	}
	return out
}

// MonthRange returns the first and last day of a month.
func MonthRange(year, month int) (Date, Date) {
	first := NewDate(year, month, 1)
	return first, Date{Time: first.AddDate(0, 1, -1)}
}

// FormatReport renders the plain-text financial report. The output depends
// only on in, so identical input yields identical text.
func FormatReport(in ReportInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "RELATÓRIO FINANCEIRO - %s\n", in.GeneratedAt.Format("02/01/2006"))
	b.WriteString(reportRule + "\n\n")

	fmt.Fprintf(&b, "RESUMO DO PERÍODO (%d meses):\n", in.Months)
	fmt.Fprintf(&b, "- Total de Salários: %s\n", FormatBRL(in.Totals.TotalSalary))
	fmt.Fprintf(&b, "- Total de Compras: %s\n", FormatBRL(in.Totals.TotalPurchases))
	fmt.Fprintf(&b, "- Total de Contas: %s\n", FormatBRL(in.Totals.TotalBills))
	fmt.Fprintf(&b, "- Saldo Final: %s\n\n", FormatBRL(in.Totals.Balance))

	b.WriteString("GASTOS POR CATEGORIA:\n")
	for _, ca := range in.Categories {
		fmt.Fprintf(&b, "- %s: %s\n", ca.Category.Label(), FormatBRL(ca.Amount))
	}
	b.WriteString("\n")

	b.WriteString("EVOLUÇÃO MENSAL:\n")
	for _, p := range in.Periods {
		fmt.Fprintf(&b, "%s: Salário %s | Compras %s | Contas %s\n",
			PeriodLabel(p.Year, p.Month),
			FormatBRL(p.Summary.SalaryAmount),
			FormatBRL(p.Summary.TotalPurchases),
			FormatBRL(p.Summary.TotalBills))
	}
	return b.String()
}

// ReportFilename is the download name of the text report generated at t.
func ReportFilename(t time.Time) string {
	return "relatorio-financeiro-" + t.Format(time.DateOnly) + ".txt"
}

// ReportXLSXFilename is the download name of the spreadsheet report.
func ReportXLSXFilename(t time.Time) string {
	return "relatorio-financeiro-" + t.Format(time.DateOnly) + ".xlsx"
}
