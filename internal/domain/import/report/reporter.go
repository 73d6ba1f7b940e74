// Package report accumulates per-row import outcomes into a batch result.
package report

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/importerr"
)

// RowError is one rejected row, kept with its raw values so an operator can
// correct and re-import it.
type RowError struct {
	Row       int               `json:"row"`
	Data      map[string]string `json:"data"`
	Error     string            `json:"error"`
	Kind      importerr.Kind    `json:"kind"`
	Skippable bool              `json:"skippable,omitempty"`
}

// Warning is an advisory note on a row that was still applied.
type Warning struct {
	Row     int    `json:"row"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Warning kinds.
const (
	WarnDateDefaulted   = "DateDefaulted"
	WarnDuplicate       = "LikelyDuplicate"
	WarnAmbiguousMember = "AmbiguousMember"
	WarnSnapshot        = "DuplicateSnapshotUnavailable"
)

// ImportResult is the outcome of one import batch.
type ImportResult struct {
	BatchID    uuid.UUID  `json:"batch_id"`
	Success    bool       `json:"success"`
	Message    string     `json:"message"`
	Processed  int        `json:"processed"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Errors     []RowError `json:"errors"`
	Warnings   []Warning  `json:"warnings,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// Duration returns how long the batch ran.
func (r *ImportResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ProgressFunc receives the completed percentage after every row.
type ProgressFunc func(percent int)

// Reporter collects outcomes for one batch. It is not safe for concurrent use.
type Reporter struct {
	result   ImportResult
	total    int
	last     int
	progress ProgressFunc
	finished bool
}

// NewReporter starts a report for a batch of total rows. progress may be nil.
func NewReporter(batchID uuid.UUID, total int, progress ProgressFunc, startedAt time.Time) *Reporter {
	return &Reporter{
		result: ImportResult{
			BatchID:   batchID,
			Errors:    []RowError{},
			StartedAt: startedAt,
		},
		total:    total,
		progress: progress,
	}
}

// Created records a cleanly reconciled row.
func (r *Reporter) Created(row int) {
	r.result.Created++
	r.step()
}

// Updated records a row that was applied with a duplicate warning.
func (r *Reporter) Updated(row int) {
	r.result.Updated++
	r.step()
}

// Failed records a rejected row.
func (r *Reporter) Failed(row int, data map[string]string, err error) {
	r.result.Errors = append(r.result.Errors, RowError{
		Row:       row,
		Data:      data,
		Error:     err.Error(),
		Kind:      importerr.KindOf(err),
		Skippable: importerr.IsSkippable(err),
	})
	r.step()
}

// Warn attaches an advisory note. It does not count as an outcome.
func (r *Reporter) Warn(row int, kind, message string) {
	r.result.Warnings = append(r.result.Warnings, Warning{Row: row, Kind: kind, Message: message})
}

func (r *Reporter) step() {
	r.result.Processed++
	if r.progress == nil || r.total <= 0 {
		return
	}
	pct := r.result.Processed * 100 / r.total
	if pct > 100 {
		pct = 100
	}
	if pct < r.last {
		pct = r.last
	}
	r.last = pct
	r.progress(pct)
}

// Snapshot returns a copy of the result so far.
func (r *Reporter) Snapshot() ImportResult {
	out := r.result
	out.Errors = append(make([]RowError, 0, len(r.result.Errors)), r.result.Errors...)
	out.Warnings = append([]Warning(nil), r.result.Warnings...)
	return out
}

// Finish seals the result. Calling it again returns the same values.
func (r *Reporter) Finish(finishedAt time.Time) *ImportResult {
	if !r.finished {
		r.finished = true
		r.result.FinishedAt = finishedAt
		r.result.Success = true
		r.result.Message = fmt.Sprintf("Successfully processed %d records. Created: %d, Updated: %d, Errors: %d",
			r.result.Processed, r.result.Created, r.result.Updated, len(r.result.Errors))
	}
	out := r.Snapshot()
	return &out
}
