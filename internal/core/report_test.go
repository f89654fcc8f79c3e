package core

import (
	"strings"
	"testing"
	"time"
)

func sampleReport() ReportInput {
	periods := []LabeledSummary{
		{Year: 2026, Month: 9, Summary: Aggregate(
			[]Purchase{{Total: cents(45000)}},
			[]Bill{{Category: CategoryHousing, Amount: cents(150000), Active: true}},
			&Salary{Amount: cents(500000)})},
		{Year: 2026, Month: 10, Summary: Aggregate(
			[]Purchase{{Total: cents(30000)}},
			[]Bill{{Category: CategoryHousing, Amount: cents(150000), Active: true}},
			nil)},
	}
	return ReportInput{
		GeneratedAt: time.Date(2026, 10, 14, 18, 30, 0, 0, time.UTC),
		Months:      2,
		Periods:     periods,
		Categories:  CategoryBreakdown{{CategoryHousing, cents(300000)}},
		Totals:      SumPeriods(periods),
	}
}

func TestFormatReport(t *testing.T) {
	got := FormatReport(sampleReport())
	want := `RELATÓRIO FINANCEIRO - 14/10/2026
=================================================

RESUMO DO PERÍODO (2 meses):
- Total de Salários: R$ 5.000,00
- Total de Compras: R$ 750,00
- Total de Contas: R$ 3.000,00
- Saldo Final: R$ 1.250,00

GASTOS POR CATEGORIA:
- Moradia: R$ 3.000,00

EVOLUÇÃO MENSAL:
set/26: Salário R$ 5.000,00 | Compras R$ 450,00 | Contas R$ 1.500,00
out/26: Salário R$ 0,00 | Compras R$ 300,00 | Contas R$ 1.500,00
`
	if got != want {
		t.Fatalf("report mismatch\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestFormatReportDeterministic(t *testing.T) {
	in := sampleReport()
	if FormatReport(in) != FormatReport(in) {
		t.Fatalf("report output is not deterministic")
	}
}

func TestFormatReportEmpty(t *testing.T) {
	got := FormatReport(ReportInput{GeneratedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), Months: 6})
	if !strings.Contains(got, "RESUMO DO PERÍODO (6 meses):") || !strings.Contains(got, "- Saldo Final: R$ 0,00") {
		t.Fatalf("unexpected empty report:\n%s", got)
	}
	if !strings.HasSuffix(got, "EVOLUÇÃO MENSAL:\n") {
		t.Fatalf("empty report should end with the monthly heading:\n%s", got)
	}
}

func TestReportFilename(t *testing.T) {
	ts := time.Date(2026, 3, 5, 23, 0, 0, 0, time.UTC)
	if got := ReportFilename(ts); got != "relatorio-financeiro-2026-03-05.txt" {
		t.Fatalf("got %q", got)
	}
	if got := ReportXLSXFilename(ts); got != "relatorio-financeiro-2026-03-05.xlsx" {
		t.Fatalf("got %q", got)
	}
}

func TestPeriodLabels(t *testing.T) {
	if got := PeriodLabel(2026, 10); got != "out/26" {
		t.Fatalf("got %q", got)
	}
	if got := PeriodLabel(2030, 2); got != "fev/30" {
		t.Fatalf("got %q", got)
	}
	if got := MonthName(2026, 3); got != "março 2026" {
		t.Fatalf("got %q", got)
	}
}

func TestTrailingMonths(t *testing.T) {
	got := TrailingMonths(time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), 3)
	want := []YearMonth{{2025, 12}, {2026, 1}, {2026, 2}}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}
	if TrailingMonths(time.Now(), 0) != nil {
		t.Fatalf("expected nil for n=0")
	}
}

func TestMonthRange(t *testing.T) {
	first, last := MonthRange(2028, 2)
	if first.String() != "2028-02-01" || last.String() != "2028-02-29" {
		t.Fatalf("got %s..%s", first, last)
	}
}
