package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterTotal sums every series of a gathered counter family.
func counterTotal(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		total := 0.0
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestImportMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewImportMetrics(reg)

	m.Row(OutcomeCreated, "")
	m.Row(OutcomeCreated, "")
	m.Row(OutcomeError, "MemberNotFound")
	m.Duplicate()
	m.Batch("Berhasil", 2*time.Second)

	assert.Equal(t, 3.0, counterTotal(t, reg, "koperasi_import_rows_total"))
	assert.Equal(t, 1.0, counterTotal(t, reg, "koperasi_import_row_errors_total"))
	assert.Equal(t, 1.0, counterTotal(t, reg, "koperasi_import_likely_duplicates_total"))
	assert.Equal(t, 1.0, counterTotal(t, reg, "koperasi_import_batches_total"))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)
}

func TestImportMetrics_Nil(t *testing.T) {
	var m *ImportMetrics
	assert.NotPanics(t, func() {
		m.Row(OutcomeError, "x")
		m.Duplicate()
		m.Batch("Gagal", time.Second)
	})
}
