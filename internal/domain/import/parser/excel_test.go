package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/importerr"
)

func buildWorkbook(t *testing.T, sheets map[string][][]any, order ...string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			values := row
			require.NoError(t, f.SetSheetRow(name, cell, &values))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestExcelParser_ParseFirstSheet(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Transaksi": {
			{"Nama Anggota", "Jenis Transaksi", "Kategori", "Jumlah", "Rekening/Pinjaman", "Tanggal", "Deskripsi"},
			{"Siti Aminah", "masuk", "setoran", 1500000, "Tabungan Sukarela", 45292, "Setoran awal"},
			{"", "", "", "", "", "", ""},
			{"Budi Santoso", "keluar", "penarikan", "Rp 250.000", "Tabungan Wajib", "17 Agustus 2023", ""},
		},
		"Catatan": {
			{"ignored"},
			{"ignored too"},
		},
	}, "Transaksi", "Catatan")

	sheet, err := NewExcelParser().ParseBytes(data)
	require.NoError(t, err)

	assert.Equal(t, "Transaksi", sheet.Name)
	assert.Equal(t, TemplateColumns, sheet.Headers)
	assert.NotEmpty(t, sheet.Fingerprint)
	require.Len(t, sheet.Records, 2)

	first := sheet.Records[0]
	assert.Equal(t, 1, first.Row)
	assert.Equal(t, Cell{Text: "1500000", Numeric: true}, first.Get(ColumnAmount))
	assert.Equal(t, Cell{Text: "45292", Numeric: true}, first.Get(ColumnDate))
	assert.Equal(t, Cell{Text: "Siti Aminah"}, first.Get(ColumnMember))

	second := sheet.Records[1]
	assert.Equal(t, 2, second.Row)
	assert.Equal(t, Cell{Text: "Rp 250.000"}, second.Get(ColumnAmount))
	assert.False(t, second.Get(ColumnDate).Numeric)
	assert.Equal(t, "Budi Santoso", second.Raw()[ColumnMember])
}

func TestExcelParser_NumericText(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Sheet1": {
			{"Jumlah"},
			{"1500000"},
		},
	}, "Sheet1")

	sheet, err := NewExcelParser().ParseBytes(data)
	require.NoError(t, err)
	require.Len(t, sheet.Records, 1)
	assert.False(t, sheet.Records[0].Get("Jumlah").Numeric, "text cells stay text even when they look numeric")
}

func TestExcelParser_HeaderOnly(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Sheet1": {{"Nama Anggota", "Jumlah"}},
	}, "Sheet1")

	sheet, err := NewExcelParser().ParseBytes(data)
	require.NoError(t, err)
	assert.Empty(t, sheet.Records)
}

func TestExcelParser_RejectsNonWorkbook(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"csv text", []byte("Nama Anggota,Jumlah\nBudi,100\n")},
		{"legacy xls", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}},
		{"truncated zip", []byte{'P', 'K', 0x03, 0x04, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExcelParser().ParseBytes(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, importerr.ErrParse))
			assert.True(t, IsParseError(err))
		})
	}
}

func TestToImportRow_Aliases(t *testing.T) {
	record := Record{
		Row:    3,
		Values: map[string]Cell{
			"NAMA":            {Text: "Dewi"},
			"Tipe  Transaksi": {Text: "masuk"},
			"Nominal":         {Text: "100000", Numeric: true},
			"Rekening":        {Text: "Tabungan Umum"},
			"Keterangan":      {Text: "angsuran"},
			"Kolom Lain":      {Text: "x"},
		},
	}

	row := ToImportRow(record, nil)

	assert.Equal(t, 3, row.Row)
	assert.Equal(t, "Dewi", row.MemberName.Text)
	assert.Equal(t, "masuk", row.Direction.Text)
	assert.True(t, row.Amount.Numeric)
	assert.Equal(t, "Tabungan Umum", row.Account.Text)
	assert.Equal(t, "angsuran", row.Description.Text)
	assert.Empty(t, row.Date.Text)
	assert.Equal(t, "x", row.Raw["Kolom Lain"])
}

func TestToImportRow_FirstAliasWins(t *testing.T) {
	record := Record{
		Row: 1,
		Values: map[string]Cell{
			"Nama Anggota":      {Text: "Dewi"},
			"Nominal":           {Text: "5000", Numeric: true},
			"Jumlah":            {Text: "7000", Numeric: true},
			"Tanggal":           {Text: "01/05/2024"},
			"Tanggal Transaksi": {Text: "02/05/2024"},
		},
	}
	headers := []string{"Nama Anggota", "Nominal", "Tanggal Transaksi", "Jumlah", "Tanggal"}

	for i := 0; i < 20; i++ {
		row := ToImportRow(record, headers)
		require.Equal(t, "5000", row.Amount.Text)
		require.Equal(t, "02/05/2024", row.Date.Text)
	}

	reversed := []string{"Tanggal", "Jumlah", "Tanggal Transaksi", "Nominal", "Nama Anggota"}
	row := ToImportRow(record, reversed)
	assert.Equal(t, "7000", row.Amount.Text)
	assert.Equal(t, "01/05/2024", row.Date.Text)
}

func TestSheetRows_UsesHeaderOrder(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Nama Anggota", "Jenis Transaksi", "Nominal", "Jumlah", "Jumlah"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Dewi", "masuk", 5000, 7000, 9000}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	sheet, err := NewExcelParser().ParseBytes(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, sheet.Records, 1)
	assert.Equal(t, "7000", sheet.Records[0].Get("Jumlah").Text)

	rows := sheet.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "5000", rows[0].Amount.Text)
	assert.True(t, rows[0].Amount.Numeric)
}
