package parser

import (
	"sort"
	"strings"
)

// Canonical column names of the transaction import template.
const (
	ColumnMember      = "Nama Anggota"
	ColumnDirection   = "Jenis Transaksi"
	ColumnCategory    = "Kategori"
	ColumnAmount      = "Jumlah"
	ColumnAccount     = "Rekening/Pinjaman"
	ColumnDate        = "Tanggal"
	ColumnDescription = "Deskripsi"
)

// TemplateColumns lists the template columns in sheet order.
var TemplateColumns = []string{
	ColumnMember,
	ColumnDirection,
	ColumnCategory,
	ColumnAmount,
	ColumnAccount,
	ColumnDate,
	ColumnDescription,
}

// headerAliases maps lowercased header spellings onto canonical columns.
var headerAliases = map[string]string{
	"nama anggota":      ColumnMember,
	"nama":              ColumnMember,
	"anggota":           ColumnMember,
	"member":            ColumnMember,
	"member name":       ColumnMember,
	"jenis transaksi":   ColumnDirection,
	"tipe transaksi":    ColumnDirection,
	"jenis":             ColumnDirection,
	"direction":         ColumnDirection,
	"kategori":          ColumnCategory,
	"category":          ColumnCategory,
	"jumlah":            ColumnAmount,
	"nominal":           ColumnAmount,
	"amount":            ColumnAmount,
	"rekening/pinjaman": ColumnAccount,
	"rekening":          ColumnAccount,
	"pinjaman":          ColumnAccount,
	"akun":              ColumnAccount,
	"account":           ColumnAccount,
	"tanggal":           ColumnDate,
	"tanggal transaksi": ColumnDate,
	"date":              ColumnDate,
	"deskripsi":         ColumnDescription,
	"keterangan":        ColumnDescription,
	"description":       ColumnDescription,
}

// ImportRow is one transaction row as read from the sheet, before any
// normalization.
type ImportRow struct {
	Row         int
	MemberName  Cell
	Direction   Cell
	Category    Cell
	Amount      Cell
	Account     Cell
	Date        Cell
	Description Cell
	Raw         map[string]string
}

// ToImportRow maps a record onto the template columns, reading headers in
// sheet order. When several headers alias one column the leftmost wins.
// Unknown headers are ignored and missing columns leave empty cells. Without
// headers the record's own keys are read in sorted order.
func ToImportRow(r Record, headers []string) ImportRow {
	if len(headers) == 0 {
		headers = make([]string, 0, len(r.Values))
		for header := range r.Values {
			headers = append(headers, header)
		}
		sort.Strings(headers)
	}

	row := ImportRow{Row: r.Row, Raw: r.Raw()}
	seen := make(map[string]bool, len(TemplateColumns))
	for _, header := range headers {
		cell, ok := r.Values[header]
		column := CanonicalColumn(header)
		if !ok || column == "" || seen[column] {
			continue
		}
		seen[column] = true

		switch column {
		case ColumnMember:
			row.MemberName = cell
		case ColumnDirection:
			row.Direction = cell
		case ColumnCategory:
			row.Category = cell
		case ColumnAmount:
			row.Amount = cell
		case ColumnAccount:
			row.Account = cell
		case ColumnDate:
			row.Date = cell
		case ColumnDescription:
			row.Description = cell
		}
	}
	return row
}

// CanonicalColumn resolves a header to its template column, or "".
func CanonicalColumn(header string) string {
	return headerAliases[strings.ToLower(strings.Join(strings.Fields(header), " "))]
}

// Rows converts every record of the sheet.
func (s *Sheet) Rows() []ImportRow {
	out := make([]ImportRow, 0, len(s.Records))
	for _, r := range s.Records {
		out = append(out, ToImportRow(r, s.Headers))
	}
	return out
}
