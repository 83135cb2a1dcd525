// Package export renders statements and obligations into downloadable files.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/carlosmourajunior/minhasfinancas/internal/models"
)

// Format is a statement export format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

// StatementDocument is everything a statement export shows.
type StatementDocument struct {
	Statement  *models.Statement
	Card       *models.Card
	Purchases  []models.Obligation
	Settlement string
}

// Filename returns the download name of the document.
func (d StatementDocument) Filename(f Format) string {
	name := "card"
	if d.Card != nil && d.Card.Name != "" {
		name = d.Card.Name
	}
	return fmt.Sprintf("statement-%s-%s.%s", slug(name), d.Statement.ClosingDate.Format("2006-01"), f)
}

// Render renders the document in the given format.
func Render(d StatementDocument, f Format) ([]byte, error) {
	switch f {
	case FormatPDF:
		return BuildStatementPDF(d)
	case FormatXLSX:
		return BuildStatementXLSX(d)
	}
	return nil, fmt.Errorf("unsupported export format %q", f)
}

// BuildStatementPDF renders a statement and its purchases as a PDF.
func BuildStatementPDF(d StatementDocument) ([]byte, error) {
	stmt := d.Statement
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.Cell(0, 8, "Card Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	if d.Card != nil {
		pdf.Cell(0, 6, tr(fmt.Sprintf("Card: %s %s", d.Card.Name, d.Card.Brand)))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s to %s", stmt.PeriodStart.Format(time.DateOnly), stmt.PeriodEnd.Format(time.DateOnly)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Closing: %s", stmt.ClosingDate.Format(time.DateOnly)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Due: %s", stmt.DueDate.Format(time.DateOnly)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s (%s)", stmt.Status, d.Settlement))
	pdf.Ln(5)

	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("Predicted Amount: %s", stmt.PredictedAmount.StringFixed(2)))
	pdf.Ln(5)
	if stmt.ActualAmount.Valid {
		pdf.Cell(0, 6, fmt.Sprintf("Actual Amount: %s", stmt.ActualAmount.Decimal.StringFixed(2)))
		pdf.Ln(5)
	}
	pdf.Ln(3)

	// Purchases table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Due", "1", 0, "C", false, 0, "")
	pdf.CellFormat(110, 6, "Description", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, p := range d.Purchases {
		pdf.CellFormat(30, 6, p.DueDate.Format(time.DateOnly), "1", 0, "C", false, 0, "")
		pdf.CellFormat(110, 6, tr(truncate(p.Description, 60)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, p.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStatementXLSX renders a statement and its purchases as a workbook
// with a summary sheet and a purchases sheet.
func BuildStatementXLSX(d StatementDocument) ([]byte, error) {
	stmt := d.Statement
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	purchasesSheet := "purchases"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(purchasesSheet); err != nil {
		return nil, err
	}

	cardName := ""
	if d.Card != nil {
		cardName = d.Card.Name
	}
	actual := ""
	if stmt.ActualAmount.Valid {
		actual = stmt.ActualAmount.Decimal.StringFixed(2)
	}

	summary := [][2]any{
		{"Card", cardName},
		{"Period Start", stmt.PeriodStart.Format(time.DateOnly)},
		{"Period End", stmt.PeriodEnd.Format(time.DateOnly)},
		{"Closing Date", stmt.ClosingDate.Format(time.DateOnly)},
		{"Due Date", stmt.DueDate.Format(time.DateOnly)},
		{"Status", string(stmt.Status)},
		{"Settlement", d.Settlement},
		{"Predicted Amount", stmt.PredictedAmount.InexactFloat64()},
		{"Actual Amount", actual},
	}
	_ = f.SetCellValue(summarySheet, "A1", "Card Statement")
	for i, row := range summary {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+3), row[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+3), row[1])
	}

	_ = f.SetCellValue(purchasesSheet, "A1", "Due Date")
	_ = f.SetCellValue(purchasesSheet, "B1", "Description")
	_ = f.SetCellValue(purchasesSheet, "C1", "Amount")
	_ = f.SetCellValue(purchasesSheet, "D1", "Status")
	for i, p := range d.Purchases {
		row := i + 2
		_ = f.SetCellValue(purchasesSheet, fmt.Sprintf("A%d", row), p.DueDate.Format(time.DateOnly))
		_ = f.SetCellValue(purchasesSheet, fmt.Sprintf("B%d", row), p.Description)
		_ = f.SetCellValue(purchasesSheet, fmt.Sprintf("C%d", row), p.Amount.InexactFloat64())
		_ = f.SetCellValue(purchasesSheet, fmt.Sprintf("D%d", row), string(p.Status))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func slug(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case len(out) > 0 && out[len(out)-1] != '-':
			out = append(out, '-')
		}
	}
	for len(out) > 0 && out[len(out)-1] == '-' {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return "card"
	}
	return string(out)
}
