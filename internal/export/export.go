// Package export renders an account's transactions as CSV or XLSX.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/finchat/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx", case-insensitively. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("ParseFormat: unsupported format %q", s)
	}
}

// Extension is the file extension without the dot.
func (f Format) Extension() string {
	return string(f)
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Header is the first row of every export.
var Header = []string{"Data", "Tipo", "Categoria", "Descrição", "Valor", "Moeda"}

const sheetName = "Transações"

// Build renders txs of account, oldest first.
func Build(format Format, account domain.Account, categories []domain.Category, txs []domain.Transaction) ([]byte, error) {
	rows := buildRows(account, categories, txs)
	switch format {
	case FormatCSV:
		return writeCSV(rows)
	case FormatXLSX:
		return writeXLSX(rows)
	default:
		return nil, fmt.Errorf("Build: unsupported format %q", format)
	}
}

type row struct {
	date        string
	kind        string
	category    string
	description string
	amount      float64
	amountText  string
	currency    string
}

func buildRows(account domain.Account, categories []domain.Category, txs []domain.Transaction) []row {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	sorted := make([]domain.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	rows := make([]row, 0, len(sorted))
	for _, tx := range sorted {
		amount := tx.Amount
		if tx.Type == domain.TransactionTypeExpense {
			amount = amount.Neg()
		}
		rows = append(rows, row{
			date:        tx.Date.Format("2006-01-02"),
			kind:        typeLabel(tx.Type),
			category:    names[tx.CategoryID],
			description: tx.Description,
			amount:      amount.InexactFloat64(),
			amountText:  amount.StringFixed(2),
			currency:    account.Currency,
		})
	}
	return rows
}

func typeLabel(t domain.TransactionType) string {
	if t == domain.TransactionTypeIncome {
		return "Receita"
	}
	return "Despesa"
}

func writeCSV(rows []row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("writeCSV: header: %w", err)
	}
	for _, r := range rows {
		if err := w.Write([]string{r.date, r.kind, r.category, r.description, r.amountText, r.currency}); err != nil {
			return nil, fmt.Errorf("writeCSV: row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("writeCSV: flush: %w", err)
	}
	return buf.Bytes(), nil
}

func writeXLSX(rows []row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("writeXLSX: rename sheet: %w", err)
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("writeXLSX: header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("writeXLSX: header style: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", "F1", bold); err != nil {
		return nil, fmt.Errorf("writeXLSX: header style: %w", err)
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, fmt.Errorf("writeXLSX: money style: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("writeXLSX: cell name: %w", err)
		}
		values := []interface{}{r.date, r.kind, r.category, r.description, r.amount, r.currency}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("writeXLSX: row %d: %w", i+2, err)
		}
	}
	if len(rows) > 0 {
		last, _ := excelize.CoordinatesToCellName(5, len(rows)+1)
		if err := f.SetCellStyle(sheetName, "E2", last, money); err != nil {
			return nil, fmt.Errorf("writeXLSX: money style: %w", err)
		}
	}
	if err := f.SetColWidth(sheetName, "D", "D", 40); err != nil {
		return nil, fmt.Errorf("writeXLSX: column width: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("writeXLSX: write: %w", err)
	}
	return buf.Bytes(), nil
}
