// Package parser reads ledger import workbooks.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/importerr"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/sniffer"
)

// Cell is one raw spreadsheet value.
type Cell struct {
	Text string `json:"text"`
	// Numeric is true when the workbook stored a number rather than text.
	Numeric bool `json:"numeric,omitempty"`
}

// Record is one data row keyed by header text.
type Record struct {
	// Row is the 1-based position among data rows.
	Row    int             `json:"row"`
	Values map[string]Cell `json:"values"`
}

// Get returns the cell under header, or an empty cell.
func (r Record) Get(header string) Cell {
	return r.Values[header]
}

// Raw flattens the record for error reports.
func (r Record) Raw() map[string]string {
	out := make(map[string]string, len(r.Values))
	for k, v := range r.Values {
		out[k] = v.Text
	}
	return out
}

// Sheet is the decoded first worksheet.
type Sheet struct {
	Name        string   `json:"name"`
	Headers     []string `json:"headers"`
	Fingerprint string   `json:"fingerprint"`
	Records     []Record `json:"records"`
}

// ExcelParser decodes the first worksheet of a workbook.
type ExcelParser struct{}

// NewExcelParser creates a new Excel parser
func NewExcelParser() *ExcelParser {
	return &ExcelParser{}
}

// Parse reads every data row of the first worksheet in input order. Later
// sheets are ignored. The only error it returns is a ParseError.
func (p *ExcelParser) Parse(reader io.Reader) (*Sheet, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, importerr.Wrap(importerr.KindParse, "", "gagal membaca file", err)
	}
	return p.ParseBytes(data)
}

// ParseBytes is Parse over an in-memory workbook.
func (p *ExcelParser) ParseBytes(data []byte) (*Sheet, error) {
	switch sniffer.DetectFormat(data) {
	case sniffer.FormatXLSX:
	case sniffer.FormatXLS:
		return nil, importerr.New(importerr.KindParse, "", "format .xls lama tidak didukung, simpan ulang sebagai .xlsx")
	default:
		return nil, importerr.New(importerr.KindParse, "", "file bukan workbook Excel (.xlsx)")
	}

	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, importerr.Wrap(importerr.KindParse, "", "gagal membuka workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, importerr.New(importerr.KindParse, "", "workbook tidak memiliki sheet")
	}
	sheet := &Sheet{Name: sheets[0]}

	rows, err := f.GetRows(sheet.Name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, importerr.Wrap(importerr.KindParse, "", fmt.Sprintf("gagal membaca sheet %s", sheet.Name), err)
	}

	for i, cols := range rows {
		sheetRow := i + 1
		if isBlank(cols) {
			continue
		}

		if sheet.Headers == nil {
			sheet.Headers = trimAll(cols)
			sheet.Fingerprint = sniffer.Fingerprint(sheet.Headers)
			continue
		}

		record := Record{
			Row:    len(sheet.Records) + 1,
			Values: make(map[string]Cell, len(sheet.Headers)),
		}
		for col, header := range sheet.Headers {
			if _, dup := record.Values[header]; header == "" || dup {
				continue
			}
			text := ""
			if col < len(cols) {
				text = strings.TrimSpace(cols[col])
			}
			record.Values[header] = Cell{
				Text:    text,
				Numeric: text != "" && isNumericCell(f, sheet.Name, col+1, sheetRow, text),
			}
		}
		sheet.Records = append(sheet.Records, record)
	}

	return sheet, nil
}

// isNumericCell reports whether the stored cell is a number. Cells without a
// type attribute are numbers in the xlsx format.
func isNumericCell(f *excelize.File, sheet string, col, row int, text string) bool {
	if _, err := strconv.ParseFloat(text, 64); err != nil {
		return false
	}
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}
	cellType, err := f.GetCellType(sheet, name)
	if err != nil {
		return false
	}
	switch cellType {
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate:
		return true
	}
	return false
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimAll(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

// IsParseError reports whether err came from Parse.
func IsParseError(err error) bool {
	return errors.Is(err, importerr.ErrParse)
}
