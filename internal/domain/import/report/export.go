package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/parser"
)

// ErrorColumn is appended to the template columns in correction workbooks.
const ErrorColumn = "Error"

// errorRecord is the CSV layout of a rejected row.
type errorRecord struct {
	Row         int    `csv:"Baris"`
	Kind        string `csv:"Jenis Error"`
	Error       string `csv:"Error"`
	Member      string `csv:"Nama Anggota"`
	Direction   string `csv:"Jenis Transaksi"`
	Category    string `csv:"Kategori"`
	Amount      string `csv:"Jumlah"`
	Account     string `csv:"Rekening/Pinjaman"`
	Date        string `csv:"Tanggal"`
	Description string `csv:"Deskripsi"`
}

// canonicalData re-keys raw row values by template column.
func canonicalData(data map[string]string) map[string]string {
	out := make(map[string]string, len(parser.TemplateColumns))
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if col := parser.CanonicalColumn(k); col != "" {
			if _, seen := out[col]; !seen {
				out[col] = data[k]
			}
		}
	}
	return out
}

// WriteErrorsCSV writes the rejected rows as CSV.
func WriteErrorsCSV(w io.Writer, result *ImportResult) error {
	records := make([]*errorRecord, 0, len(result.Errors))
	for _, e := range result.Errors {
		data := canonicalData(e.Data)
		records = append(records, &errorRecord{
			Row:         e.Row,
			Kind:        string(e.Kind),
			Error:       e.Error,
			Member:      data[parser.ColumnMember],
			Direction:   data[parser.ColumnDirection],
			Category:    data[parser.ColumnCategory],
			Amount:      data[parser.ColumnAmount],
			Account:     data[parser.ColumnAccount],
			Date:        data[parser.ColumnDate],
			Description: data[parser.ColumnDescription],
		})
	}
	if err := gocsv.Marshal(&records, w); err != nil {
		return fmt.Errorf("failed to write error report: %w", err)
	}
	return nil
}

// WriteCorrectionWorkbook writes the rejected rows in the import template
// layout with an extra Error column, so the sheet can be fixed and
// re-imported as is.
func WriteCorrectionWorkbook(w io.Writer, result *ImportResult) error {
	const sheet = "Koreksi"

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name correction sheet: %w", err)
	}

	header := make([]any, 0, len(parser.TemplateColumns)+1)
	for _, c := range parser.TemplateColumns {
		header = append(header, c)
	}
	header = append(header, ErrorColumn)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write correction header: %w", err)
	}

	for i, e := range result.Errors {
		data := canonicalData(e.Data)
		row := make([]any, 0, len(header))
		for _, c := range parser.TemplateColumns {
			row = append(row, data[c])
		}
		row = append(row, e.Error)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write correction row %d: %w", e.Row, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write correction workbook: %w", err)
	}
	return nil
}
