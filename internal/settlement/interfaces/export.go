package interfaces

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	settlement "wecar-diagnosis/internal/settlement/domain"
)

// BuildSettlementXLSX renders an aggregation as a workbook: data rows
// per day, a subtotal row after each day, and a grand total.
func BuildSettlementXLSX(agg *settlement.Aggregation) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "settlement"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", fmt.Sprintf("Settlement %d-%02d", agg.Year, agg.Month))
	_ = f.SetCellValue(sheet, "A2", fmt.Sprintf("Period %s ~ %s", agg.StartDate, agg.EndDate))

	headers := []string{"Date", "Evaluator", "Count", "Amount", "VAT", "Total"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		_ = f.SetCellValue(sheet, cell, header)
	}

	row := 5
	writeRow := func(date, name string, t settlement.Totals, label string) {
		if label != "" {
			name = label
		}
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), date)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), name)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), t.Count)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), t.Amount)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), t.VAT)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), t.TotalAmount)
		row++
	}

	for _, day := range agg.Days {
		for _, r := range day.Rows {
			writeRow(r.Date, r.EvaluatorName, settlement.Totals{
				Count:       r.Count,
				Amount:      r.Amount,
				VAT:         r.VAT,
				TotalAmount: r.TotalAmount,
			}, "")
		}
		writeRow(day.Date, "", day.Subtotal, "Subtotal")
	}
	writeRow("", "", agg.Totals, "Total")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildSettlementPDF renders an aggregation as a PDF table. Evaluator
// names outside latin-1 are dropped to their id form by the built-in
// fonts; the XLSX export is the faithful document.
func BuildSettlementPDF(agg *settlement.Aggregation) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, fmt.Sprintf("Settlement %d-%02d", agg.Year, agg.Month))
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s ~ %s", agg.StartDate, agg.EndDate))
	pdf.Ln(10)

	writeHeader := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(25, 6, "Date", "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, "Evaluator", "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, "Count", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Amount", "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, "VAT", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Total", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}
	writeTotals := func(date, name string, t settlement.Totals) {
		pdf.CellFormat(25, 6, date, "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", t.Count), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", t.Amount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", t.VAT), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", t.TotalAmount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	writeHeader()
	for _, day := range agg.Days {
		for _, r := range day.Rows {
			name := r.EvaluatorName
			if !isLatin1(name) {
				name = fmt.Sprintf("evaluator %d", r.EvaluatorID)
			}
			writeTotals(r.Date, name, settlement.Totals{
				Count:       r.Count,
				Amount:      r.Amount,
				VAT:         r.VAT,
				TotalAmount: r.TotalAmount,
			})
		}
		pdf.SetFont("Arial", "B", 9)
		writeTotals(day.Date, "Subtotal", day.Subtotal)
		pdf.SetFont("Arial", "", 9)
	}
	pdf.SetFont("Arial", "B", 9)
	writeTotals("", "Total", agg.Totals)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isLatin1(s string) bool {
	for _, r := range s {
		if r > 0xFF {
			return false
		}
	}
	return true
}
