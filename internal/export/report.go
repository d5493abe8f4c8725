// Package export renders income reports as XLSX workbooks and PDF documents.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"umkm/internal/core"
	"umkm/internal/income"
)

type Format string

const (
	XLSX Format = "xlsx"
	PDF  Format = "pdf"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case XLSX, "":
		return XLSX, nil
	case PDF:
		return PDF, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

func (f Format) ContentType() string {
	if f == PDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename names a report generated at now.
func (f Format) Filename(now time.Time) string {
	return fmt.Sprintf("laporan-pendapatan-%s.%s", now.Format("2006-01-02"), f)
}

const (
	summarySheet = "summary"
	seriesSheet  = "series"
	recordsSheet = "records"
)

// BuildIncomeXLSX writes the overview, its monthly series and the records
// behind it to three sheets.
func BuildIncomeXLSX(ov income.Overview, records []core.Income) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{seriesSheet, recordsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	_ = f.SetCellValue(summarySheet, "A1", "Laporan Pendapatan")
	summary := [][2]any{
		{"Total Pendapatan", ov.TotalIncome.Float64()},
		{"Rata-rata Pendapatan", ov.AverageIncome.Float64()},
		{"Bulan Ini", ov.CurrentMonthIncome.Float64()},
		{"Bulan Lalu", ov.PreviousMonthIncome.Float64()},
		{"Perubahan (%)", ov.PercentageChange},
		{"Bulan Tertinggi", ov.HighestMonth.Month},
		{"Pendapatan Tertinggi", ov.HighestMonth.Amount.Float64()},
	}
	for i, kv := range summary {
		row := i + 3
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), kv[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), kv[1])
	}

	_ = f.SetCellValue(seriesSheet, "A1", "Bulan")
	_ = f.SetCellValue(seriesSheet, "B1", "Pendapatan")
	for i, p := range ov.MonthlySeries {
		row := i + 2
		_ = f.SetCellValue(seriesSheet, fmt.Sprintf("A%d", row), p.Month)
		_ = f.SetCellValue(seriesSheet, fmt.Sprintf("B%d", row), p.Amount.Float64())
	}

	for col, h := range []string{"ID", "Tanggal", "Sumber", "Jumlah", "Catatan"} {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(recordsSheet, cell, h)
	}
	for i, r := range records {
		row := i + 2
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("A%d", row), string(r.ID))
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("B%d", row), r.Date)
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("C%d", row), r.Source)
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("D%d", row), r.Amount.Float64())
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("E%d", row), r.Notes)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildIncomePDF renders a one-document income report for profileName.
func BuildIncomePDF(profileName string, ov income.Overview, records []core.Income) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, "Laporan Pendapatan")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	if profileName != "" {
		pdf.Cell(0, 6, fmt.Sprintf("UMKM: %s", profileName))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Total: %s", core.FormatIDR(ov.TotalIncome)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Rata-rata: %s", core.FormatIDR(ov.AverageIncome)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Bulan ini: %s (%.2f%%)", core.FormatIDR(ov.CurrentMonthIncome), ov.PercentageChange))
	pdf.Ln(5)
	if ov.HighestMonth.Month != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Bulan tertinggi: %s, %s", ov.HighestMonth.Month, core.FormatIDR(ov.HighestMonth.Amount)))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Bulan", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Pendapatan", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, p := range ov.MonthlySeries {
		pdf.CellFormat(50, 6, p.Month, "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 6, core.FormatIDR(p.Amount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if len(records) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(30, 6, "Tanggal", "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 6, "Sumber", "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, "Jumlah", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, r := range records {
			pdf.CellFormat(30, 6, r.Date, "1", 0, "C", false, 0, "")
			pdf.CellFormat(60, 6, r.Source, "1", 0, "L", false, 0, "")
			pdf.CellFormat(50, 6, core.FormatIDR(r.Amount), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
