package normalizer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/importerr"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestDateNormalizer_FromSerial(t *testing.T) {
	n := NewDateNormalizer(time.UTC)

	tests := []struct {
		name   string
		serial float64
		want   time.Time
	}{
		{"first serial", 1, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"before leap bug", 59, time.Date(1900, 2, 28, 0, 0, 0, 0, time.UTC)},
		{"phantom leap day", 60, time.Date(1900, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"after leap bug", 61, time.Date(1900, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"known serial 44000", 44000, time.Date(2020, 6, 18, 0, 0, 0, 0, time.UTC)},
		{"with time of day", 45292.5, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := n.FromSerial(tt.serial)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}

	_, ok := n.FromSerial(0)
	assert.False(t, ok)
}

func TestDateNormalizer_Normalize(t *testing.T) {
	jakarta := LoadLocation("Asia/Jakarta")
	n := NewDateNormalizer(jakarta)

	tests := []struct {
		name    string
		value   string
		numeric bool
		want    time.Time
	}{
		{"numeric serial", "44000", true, time.Date(2020, 6, 18, 0, 0, 0, 0, jakarta)},
		{"indonesian month", "17 Agustus 2023", false, time.Date(2023, 8, 17, 0, 0, 0, 0, jakarta)},
		{"abbreviated month", "5 Okt 2022", false, time.Date(2022, 10, 5, 0, 0, 0, 0, jakarta)},
		{"ags abbreviation", "01-Ags-2021", false, time.Date(2021, 8, 1, 0, 0, 0, 0, jakarta)},
		{"mei", "3 mei 24", false, time.Date(2024, 5, 3, 0, 0, 0, 0, jakarta)},
		{"english month", "12 December 2023", false, time.Date(2023, 12, 12, 0, 0, 0, 0, jakarta)},
		{"iso date", "2024-01-15", false, time.Date(2024, 1, 15, 0, 0, 0, 0, jakarta)},
		{"day first slash", "15/01/2024", false, time.Date(2024, 1, 15, 0, 0, 0, 0, jakarta)},
		{"compact", "20240115", false, time.Date(2024, 1, 15, 0, 0, 0, 0, jakarta)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(tt.value, tt.numeric)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestDateNormalizer_FallsBackToNow(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	n := NewDateNormalizer(time.UTC).WithClock(fixedClock(now))

	for _, value := range []string{"", "kemarin", "31 Feb 2024", "15 Xyz 2024"} {
		t.Run(value, func(t *testing.T) {
			got, err := n.Normalize(value, false)
			require.Error(t, err)
			assert.True(t, errors.Is(err, importerr.ErrDateFormat))
			assert.True(t, now.Equal(got))
		})
	}
}

func TestLoadLocation_UnknownZone(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation("Mars/Olympus_Mons"))
}
