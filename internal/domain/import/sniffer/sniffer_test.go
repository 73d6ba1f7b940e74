package sniffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"xlsx zip container", []byte{'P', 'K', 0x03, 0x04, 0x14, 0x00}, FormatXLSX},
		{"legacy ole workbook", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0x00}, FormatXLS},
		{"csv text", []byte("Nama Anggota;Jumlah\nBudi;100000\n"), FormatCSV},
		{"binary noise", []byte{0x00, 0x01, 0x02, 0xFF}, FormatUnknown},
		{"empty", nil, FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.data))
		})
	}
}

func TestFingerprint_IgnoresCaseAndTrailingBlanks(t *testing.T) {
	a := Fingerprint([]string{"Nama Anggota", "Jumlah", "Tanggal"})
	b := Fingerprint([]string{" nama anggota ", "JUMLAH", "tanggal", "", ""})
	c := Fingerprint([]string{"Jumlah", "Nama Anggota", "Tanggal"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
