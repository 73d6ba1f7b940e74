// Package normalizer turns raw spreadsheet cells into typed ledger values.
package normalizer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/importerr"
)

// DefaultLocation is the cooperative's wall clock.
const DefaultLocation = "Asia/Jakarta"

// maxSerial is 9999-12-31 in spreadsheet serial days.
const maxSerial = 2958465

var monthPrefixes = []struct {
	prefix string
	month  time.Month
}{
	{"jan", time.January},
	{"feb", time.February},
	{"mar", time.March},
	{"apr", time.April},
	{"mei", time.May},
	{"may", time.May},
	{"jun", time.June},
	{"jul", time.July},
	{"ags", time.August},
	{"agu", time.August},
	{"agt", time.August},
	{"aug", time.August},
	{"sep", time.September},
	{"okt", time.October},
	{"oct", time.October},
	{"nov", time.November},
	{"des", time.December},
	{"dec", time.December},
}

var dayMonthYear = regexp.MustCompile(`^(\d{1,2})[\s\-/.]+([A-Za-z]+)\.?[\s\-/.,]+(\d{2}|\d{4})$`)

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2006/01/02",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"20060102",
}

// DateNormalizer parses the "Tanggal" column.
type DateNormalizer struct {
	loc *time.Location
	now func() time.Time
}

// NewDateNormalizer creates a normalizer anchored in loc. A nil loc means UTC.
func NewDateNormalizer(loc *time.Location) *DateNormalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &DateNormalizer{loc: loc, now: time.Now}
}

// WithClock overrides the fallback clock.
func (n *DateNormalizer) WithClock(now func() time.Time) *DateNormalizer {
	n.now = now
	return n
}

// Normalize parses a date cell. numeric is true when the cell held a number.
// A value that cannot be parsed yields the current time and a DateFormatError,
// which callers treat as a warning.
func (n *DateNormalizer) Normalize(value string, numeric bool) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return n.fallback(importerr.New(importerr.KindDateFormat, "Tanggal", "tanggal kosong, memakai waktu sekarang"))
	}

	if serial, err := strconv.ParseFloat(value, 64); err == nil && (numeric || serial <= maxSerial) {
		if t, ok := n.FromSerial(serial); ok {
			return t, nil
		}
	}

	if t, ok := n.parseDayMonthYear(value); ok {
		return t, nil
	}

	for _, layout := range dateFormats {
		if t, err := time.ParseInLocation(layout, value, n.loc); err == nil {
			return t, nil
		}
	}

	return n.fallback(importerr.New(importerr.KindDateFormat, "Tanggal",
		"format tanggal tidak dikenali: "+strconv.Quote(value)+", memakai waktu sekarang"))
}

// FromSerial converts a spreadsheet serial day number. Serials up to 60 are
// offset by one day and later ones by two, matching the 1900 leap-year bug.
func (n *DateNormalizer) FromSerial(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || serial < 1 || serial > maxSerial {
		return time.Time{}, false
	}
	whole := math.Floor(serial)
	days := int(whole) - 2
	if whole <= 60 {
		days = int(whole) - 1
	}
	base := time.Date(1900, time.January, 1, 0, 0, 0, 0, n.loc)
	t := base.AddDate(0, 0, days)
	if frac := serial - whole; frac > 0 {
		t = t.Add(time.Duration(math.Round(frac*86400)) * time.Second)
	}
	return t, true
}

func (n *DateNormalizer) parseDayMonthYear(value string) (time.Time, bool) {
	m := dayMonthYear.FindStringSubmatch(value)
	if m == nil {
		return time.Time{}, false
	}
	month, ok := lookupMonth(m[2])
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		year += 2000
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, n.loc)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

func lookupMonth(name string) (time.Month, bool) {
	name = strings.ToLower(name)
	if len(name) < 3 {
		return 0, false
	}
	for _, mp := range monthPrefixes {
		if strings.HasPrefix(name, mp.prefix) {
			return mp.month, true
		}
	}
	return 0, false
}

func (n *DateNormalizer) fallback(err error) (time.Time, error) {
	return n.now().In(n.loc), err
}

// LoadLocation resolves name, falling back to UTC when the zone database
// does not know it.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultLocation
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
