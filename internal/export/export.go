// Package export renders transaction statements as CSV or XLSX files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/reconciler"
	"github.com/xuri/excelize/v2"
)

// Format is a statement file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const sheetName = "Transactions"

var header = []string{"Date", "Account", "Account Type", "Type", "Category", "Description", "Amount", "Balance Effect"}

// ParseFormat accepts "csv" or "xlsx" in any case. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", domain.Invalid("format", "must be csv or xlsx")
}

// ContentType returns the MIME type of files in format f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	return string(f)
}

// Write renders views to w in format f.
func Write(w io.Writer, f Format, views []domain.TransactionView) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, views)
	case FormatXLSX:
		return WriteXLSX(w, views)
	}
	return fmt.Errorf("unsupported format %q", f)
}

// WriteCSV writes a header row and one row per transaction.
func WriteCSV(w io.Writer, views []domain.TransactionView) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("WriteCSV: header: %w", err)
	}
	for _, v := range views {
		if err := cw.Write(record(v)); err != nil {
			return fmt.Errorf("WriteCSV: transaction %s: %w", v.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: flush: %w", err)
	}
	return nil
}

// WriteXLSX writes a single-sheet workbook with numeric amount columns.
func WriteXLSX(w io.Writer, views []domain.TransactionView) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("WriteXLSX: rename sheet: %w", err)
	}

	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
	}

	for i, v := range views {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), v.Date.Format(domain.DateLayout))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), v.AccountName)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), string(v.AccountType))
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), string(v.Type))
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), v.Category)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), v.Description)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), v.Amount.InexactFloat64())
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), reconciler.Effect(v.Type, v.Amount).InexactFloat64())
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}
	return nil
}

func record(v domain.TransactionView) []string {
	return []string{
		v.Date.Format(domain.DateLayout),
		v.AccountName,
		string(v.AccountType),
		string(v.Type),
		v.Category,
		v.Description,
		v.Amount.StringFixed(2),
		reconciler.Effect(v.Type, v.Amount).StringFixed(2),
	}
}
