package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"financas/internal/core"
)

func sampleReport() core.ReportInput {
	periods := []core.LabeledSummary{
		{Year: 2026, Month: 9, Summary: core.Aggregate(
			[]core.Purchase{{Total: core.Money{Cents: 12050}}},
			[]core.Bill{{Amount: core.Money{Cents: 100000}, Category: core.CategoryHousing, Active: true}},
			&core.Salary{Amount: core.Money{Cents: 500000}},
		)},
		{Year: 2026, Month: 10, Summary: core.Aggregate(
			nil,
			[]core.Bill{{Amount: core.Money{Cents: 100000}, Category: core.CategoryHousing, Active: true}},
			nil,
		)},
	}
	return core.ReportInput{
		GeneratedAt: time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC),
		Months:      2,
		Periods:     periods,
		Categories:  core.CategoryBreakdown{{Category: core.CategoryHousing, Amount: core.Money{Cents: 200000}}},
		Totals:      core.SumPeriods(periods),
	}
}

func TestWriteReportXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReportXLSX(&buf, sampleReport()); err != nil {
		t.Fatalf("WriteReportXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != SummarySheet || sheets[1] != CategoriesSheet {
		t.Fatalf("sheets = %v", sheets)
	}

	raw := excelize.Options{RawCellValue: true}
	tests := []struct {
		sheet, cell, want string
	}{
		{SummarySheet, "A1", "Relatório financeiro - 14/10/2026"},
		{SummarySheet, "A4", "Mês"},
		{SummarySheet, "A5", "set/26"},
		{SummarySheet, "B5", "5000"},
		{SummarySheet, "C5", "120.5"},
		{SummarySheet, "A6", "out/26"},
		{SummarySheet, "E6", "-1000"},
		{SummarySheet, "A7", "Total"},
		{SummarySheet, "D7", "2000"},
		{CategoriesSheet, "A2", "Moradia"},
		{CategoriesSheet, "B2", "2000"},
		{CategoriesSheet, "A3", "Total"},
	}
	for _, tt := range tests {
		got, err := f.GetCellValue(tt.sheet, tt.cell, raw)
		if err != nil {
			t.Fatalf("GetCellValue(%s!%s): %v", tt.sheet, tt.cell, err)
		}
		if got != tt.want {
			t.Errorf("%s!%s = %q, want %q", tt.sheet, tt.cell, got, tt.want)
		}
	}
}

func TestWriteReportXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	in := core.ReportInput{GeneratedAt: time.Now(), Months: 3}
	if err := WriteReportXLSX(&buf, in); err != nil {
		t.Fatalf("WriteReportXLSX: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("empty workbook output")
	}
}
