// Package export renders reports as spreadsheet workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"financas/internal/core"
)

const (
	SummarySheet    = "Resumo"
	CategoriesSheet = "Categorias"

	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var brlFormat = `"R$" #,##0.00;"R$" -#,##0.00`

// WriteReportXLSX writes the trailing report as a workbook with one sheet
// for the monthly evolution and totals and one for the bill categories.
// Amounts are stored as numbers in reais so they stay summable.
func WriteReportXLSX(w io.Writer, in core.ReportInput) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(CategoriesSheet); err != nil {
		return fmt.Errorf("create categories sheet: %w", err)
	}

	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &brlFormat})
	if err != nil {
		return fmt.Errorf("money style: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	if err := writeSummary(f, in, money, bold); err != nil {
		return err
	}
	if err := writeCategories(f, in.Categories, money, bold); err != nil {
		return err
	}

	idx, err := f.GetSheetIndex(SummarySheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, in core.ReportInput, money, bold int) error {
	sh := SummarySheet
	set := func(cell string, v any) {
		f.SetCellValue(sh, cell, v)
	}

	set("A1", fmt.Sprintf("Relatório financeiro - %s", in.GeneratedAt.Format("02/01/2006")))
	set("A2", fmt.Sprintf("Período: %d meses", in.Months))

	headers := []string{"Mês", "Salário", "Compras", "Contas", "Saldo"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		set(cell, h)
	}
	if err := f.SetCellStyle(sh, "A4", "E4", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	row := 5
	for _, p := range in.Periods {
		set(fmt.Sprintf("A%d", row), core.PeriodLabel(p.Year, p.Month))
		set(fmt.Sprintf("B%d", row), p.Summary.SalaryAmount.Reais())
		set(fmt.Sprintf("C%d", row), p.Summary.TotalPurchases.Reais())
		set(fmt.Sprintf("D%d", row), p.Summary.TotalBills.Reais())
		set(fmt.Sprintf("E%d", row), p.Summary.Balance.Reais())
		row++
	}

	set(fmt.Sprintf("A%d", row), "Total")
	set(fmt.Sprintf("B%d", row), in.Totals.TotalSalary.Reais())
	set(fmt.Sprintf("C%d", row), in.Totals.TotalPurchases.Reais())
	set(fmt.Sprintf("D%d", row), in.Totals.TotalBills.Reais())
	set(fmt.Sprintf("E%d", row), in.Totals.Balance.Reais())
	if err := f.SetCellStyle(sh, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), bold); err != nil {
		return fmt.Errorf("style totals: %w", err)
	}

	if err := f.SetCellStyle(sh, "B5", fmt.Sprintf("E%d", row), money); err != nil {
		return fmt.Errorf("style amounts: %w", err)
	}
	return f.SetColWidth(sh, "A", "E", 16)
}

func writeCategories(f *excelize.File, cats core.CategoryBreakdown, money, bold int) error {
	sh := CategoriesSheet
	f.SetCellValue(sh, "A1", "Categoria")
	f.SetCellValue(sh, "B1", "Valor")
	if err := f.SetCellStyle(sh, "A1", "B1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	row := 2
	for _, c := range cats {
		f.SetCellValue(sh, fmt.Sprintf("A%d", row), c.Category.Label())
		f.SetCellValue(sh, fmt.Sprintf("B%d", row), c.Amount.Reais())
		row++
	}
	f.SetCellValue(sh, fmt.Sprintf("A%d", row), "Total")
	f.SetCellValue(sh, fmt.Sprintf("B%d", row), cats.Total().Reais())

	if err := f.SetCellStyle(sh, "B2", fmt.Sprintf("B%d", row), money); err != nil {
		return fmt.Errorf("style amounts: %w", err)
	}
	return f.SetColWidth(sh, "A", "B", 18)
}
