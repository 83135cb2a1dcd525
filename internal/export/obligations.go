package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/carlosmourajunior/minhasfinancas/internal/models"
)

// ObligationRow is one line of the obligations CSV export.
type ObligationRow struct {
	ID          string `csv:"id"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	DueDate     string `csv:"due_date"`
	PaymentDate string `csv:"payment_date"`
	Status      string `csv:"status"`
	Kind        string `csv:"kind"`
	Category    string `csv:"category"`
	Card        string `csv:"card"`
	Installment string `csv:"installment"`
	Recurring   bool   `csv:"recurring"`
	Predicted   string `csv:"predicted_amount"`
	Paid        string `csv:"paid_amount"`
	Notes       string `csv:"notes"`
}

// NewObligationRow flattens an obligation. Category and Card are read from
// the preloaded relations when present.
func NewObligationRow(o *models.Obligation, today time.Time) ObligationRow {
	row := ObligationRow{
		ID:          o.ID,
		Description: o.Description,
		Amount:      o.Amount.StringFixed(2),
		DueDate:     o.DueDate.Format(time.DateOnly),
		Status:      string(o.EffectiveStatus(today)),
		Kind:        string(o.Kind),
		Recurring:   o.IsRecurring,
		Notes:       o.Notes,
	}
	if o.PaymentDate != nil {
		row.PaymentDate = o.PaymentDate.Format(time.DateOnly)
	}
	if o.Category != nil {
		row.Category = o.Category.Name
	}
	if o.Card != nil {
		row.Card = o.Card.Name
	}
	if o.IsInstallment {
		row.Installment = fmt.Sprintf("%d/%d", o.InstallmentIndex, o.InstallmentCount)
	}
	if o.PredictedAmount.Valid {
		row.Predicted = o.PredictedAmount.Decimal.StringFixed(2)
	}
	if o.PaidAmount.Valid {
		row.Paid = o.PaidAmount.Decimal.StringFixed(2)
	}
	return row
}

// WriteObligationsCSV writes obligations as CSV with a header row.
func WriteObligationsCSV(w io.Writer, obligations []models.Obligation, today time.Time) error {
	rows := make([]ObligationRow, 0, len(obligations))
	for i := range obligations {
		rows = append(rows, NewObligationRow(&obligations[i], today))
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("error writing obligations CSV: %w", err)
	}
	return nil
}

// ImportColumns is the header an obligations spreadsheet must carry.
var ImportColumns = []string{"description", "amount", "due_date", "category", "card", "notes"}

// ImportRow is one parsed spreadsheet row.
type ImportRow struct {
	Line        int
	Description string
	Amount      decimal.Decimal
	DueDate     time.Time
	Category    string
	Card        string
	Notes       string
}

// RowError reports a spreadsheet line that could not be parsed or imported.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// dateLayouts are the due date spellings accepted on import.
var dateLayouts = []string{time.DateOnly, "02/01/2006", "2/1/2006", "01-02-06"}

// ReadObligationRows parses the first sheet of an XLSX workbook. Column
// order is free; header names are matched case-insensitively. Blank rows
// are skipped. Parse failures are returned per line alongside the rows that
// did parse.
func ReadObligationRows(r io.Reader) ([]ImportRow, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("error reading sheet %s: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"description", "amount", "due_date"} {
		if _, ok := index[required]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q (expected %s)", required, strings.Join(ImportColumns, ", "))
		}
	}

	cell := func(record []string, column string) string {
		i, ok := index[column]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []ImportRow
	var rowErrs []RowError
	for i, record := range records[1:] {
		line := i + 2
		if strings.TrimSpace(strings.Join(record, "")) == "" {
			continue
		}

		row := ImportRow{
			Line:        line,
			Description: cell(record, "description"),
			Category:    cell(record, "category"),
			Card:        cell(record, "card"),
			Notes:       cell(record, "notes"),
		}
		if row.Description == "" {
			rowErrs = append(rowErrs, RowError{Line: line, Message: "description is required"})
			continue
		}

		amount, err := decimal.NewFromString(strings.ReplaceAll(cell(record, "amount"), ",", "."))
		if err != nil || !amount.IsPositive() {
			rowErrs = append(rowErrs, RowError{Line: line, Message: fmt.Sprintf("invalid amount %q", cell(record, "amount"))})
			continue
		}
		row.Amount = amount

		due, ok := parseDate(cell(record, "due_date"))
		if !ok {
			rowErrs = append(rowErrs, RowError{Line: line, Message: fmt.Sprintf("invalid due_date %q", cell(record, "due_date"))})
			continue
		}
		row.DueDate = due

		rows = append(rows, row)
	}
	return rows, rowErrs, nil
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
