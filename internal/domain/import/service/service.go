// Package service provides the import orchestration logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/duplicate"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/importerr"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/normalizer"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/parser"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/reconcile"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/report"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/resolver"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/koperasi-ledger/pkg/metrics"
	"github.com/FACorreiaa/koperasi-ledger/pkg/money"
	"github.com/FACorreiaa/koperasi-ledger/pkg/notify"
)

var tracer = otel.Tracer("koperasi-ledger/import")

// RunOptions describes one invocation of the engine.
type RunOptions struct {
	// Source names the uploaded file in logs and summaries.
	Source   string
	Progress report.ProgressFunc
}

// Engine runs import batches against one ledger store. Batches on the same
// engine run one at a time.
type Engine struct {
	// mu serializes batches so balance read-modify-writes never interleave.
	mu       sync.Mutex
	store    ledger.Store
	cfg      Config
	parser   *parser.ExcelParser
	dates    *normalizer.DateNormalizer
	members  *resolver.MemberResolver
	accounts *resolver.AccountResolver
	writer   *reconcile.Reconciler
	metrics  *metrics.ImportMetrics
	notifier notify.BatchNotifier
	logger   *slog.Logger
}

// NewEngine creates an engine over store. Capabilities are probed here, once.
func NewEngine(ctx context.Context, store ledger.Store, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.resolve(ctx, store, logger)

	return &Engine{
		store:    store,
		cfg:      cfg,
		parser:   parser.NewExcelParser(),
		dates:    normalizer.NewDateNormalizer(cfg.Location).WithClock(cfg.Now),
		members:  resolver.NewMemberResolver(store, cfg.MemberPolicy),
		accounts: resolver.NewAccountResolver(store, store, cfg.LoanCatalog),
		writer:   reconcile.NewReconciler(store, cfg.Reconcile, logger),
		logger:   logger,
	}
}

// WithMetrics records batch and row counters.
func (e *Engine) WithMetrics(m *metrics.ImportMetrics) *Engine {
	e.metrics = m
	return e
}

// WithNotifier sends a summary after every batch.
func (e *Engine) WithNotifier(n notify.BatchNotifier) *Engine {
	e.notifier = n
	return e
}

// Config returns the resolved configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Import reads a workbook and imports its first worksheet. A ParseError is
// the only error returned; every row failure ends up in the result.
func (e *Engine) Import(ctx context.Context, r io.Reader, opts RunOptions) (*report.ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, importerr.Wrap(importerr.KindParse, "", "gagal membaca file", err)
	}
	return e.ImportBytes(ctx, data, opts)
}

// ImportBytes is Import over an in-memory workbook.
func (e *Engine) ImportBytes(ctx context.Context, data []byte, opts RunOptions) (*report.ImportResult, error) {
	sheet, err := e.parser.ParseBytes(data)
	if err != nil {
		ctx = context.WithoutCancel(ctx)
		e.logger.Warn("import rejected", "source", opts.Source, "error", err)
		e.recordHistory(ctx, uuid.New(), 0, ledger.HistoryFailed, err.Error())
		e.metrics.Batch(ledger.HistoryFailed, 0)
		return nil, err
	}
	return e.ImportSheet(ctx, sheet, opts), nil
}

// batch is the state of one run.
type batch struct {
	id       uuid.UUID
	index    *duplicate.Index
	reporter *report.Reporter
	totals   *money.Totals
}

// ImportSheet imports already parsed rows. It runs to completion even if ctx
// is cancelled.
func (e *Engine) ImportSheet(ctx context.Context, sheet *parser.Sheet, opts RunOptions) *report.ImportResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	rows := sheet.Rows()
	b := &batch{id: uuid.New(), totals: money.NewTotals()}

	ctx, span := tracer.Start(ctx, "Engine.ImportSheet", trace.WithAttributes(
		attribute.String("import.batch_id", b.id.String()),
		attribute.Int("import.rows", len(rows)),
	))
	defer span.End()

	started := e.cfg.Now()
	b.reporter = report.NewReporter(b.id, len(rows), opts.Progress, started)
	e.logger.Info("import batch started", "batch_id", b.id, "source", opts.Source, "rows", len(rows))

	index, err := duplicate.Snapshot(ctx, e.store, started, e.cfg.Location, e.cfg.Tolerance)
	if err != nil {
		e.logger.Warn("duplicate check disabled for batch", "batch_id", b.id, "error", err)
		b.reporter.Warn(0, report.WarnSnapshot, "pemeriksaan duplikat tidak tersedia: "+err.Error())
		index = duplicate.NewIndex(nil, e.cfg.Tolerance)
	}
	b.index = index

	for _, row := range rows {
		e.processRow(ctx, b, row)
	}

	result := b.reporter.Finish(e.cfg.Now())
	e.finish(ctx, b, result, opts)
	span.SetAttributes(
		attribute.Int("import.created", result.Created),
		attribute.Int("import.updated", result.Updated),
		attribute.Int("import.errors", len(result.Errors)),
	)
	return result
}

// posting is a fully resolved row waiting to be written.
type posting struct {
	tx        *ledger.Transaction
	target    ledger.Target
	member    ledger.Member
	duplicate bool
	warnings  []report.Warning
}

func (e *Engine) processRow(ctx context.Context, b *batch, row parser.ImportRow) {
	ctx, span := tracer.Start(ctx, "Engine.processRow", trace.WithAttributes(attribute.Int("import.row", row.Row)))
	defer span.End()

	p, err := e.prepare(ctx, b, row)
	if err == nil {
		err = e.writer.Apply(ctx, p.tx, p.target)
	}
	if err != nil {
		e.fail(span, b, row, err)
		return
	}

	for _, w := range p.warnings {
		b.reporter.Warn(w.Row, w.Kind, w.Message)
	}
	b.totals.Add(p.tx.Direction == ledger.DirectionInbound, p.tx.Amount)

	if p.duplicate {
		b.reporter.Updated(row.Row)
		e.metrics.Row(metrics.OutcomeUpdated, "")
		e.metrics.Duplicate()
	} else {
		b.reporter.Created(row.Row)
		e.metrics.Row(metrics.OutcomeCreated, "")
	}
	e.notifyMember(ctx, p)

	e.logger.Debug("row imported",
		"batch_id", b.id,
		"row", row.Row,
		"transaction_id", p.tx.ID,
		"target", p.target.Type,
		"balance_after", p.tx.BalanceAfter.String(),
	)
}

func (e *Engine) fail(span trace.Span, b *batch, row parser.ImportRow, err error) {
	kind := importerr.KindOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))

	b.reporter.Failed(row.Row, row.Raw, err)
	e.metrics.Row(metrics.OutcomeError, string(kind))

	var pw *importerr.PartialWriteError
	if errors.As(err, &pw) && pw.NeedsManualReconciliation() {
		e.logger.Error("transaction needs manual reconciliation",
			"batch_id", b.id,
			"row", row.Row,
			"transaction_id", pw.TransactionID,
			"compensation", pw.Compensation,
			"error", err,
		)
		return
	}
	e.logger.Debug("row rejected", "batch_id", b.id, "row", row.Row, "kind", kind, "error", err)
}

// prepare normalizes and resolves a row into a transaction.
func (e *Engine) prepare(ctx context.Context, b *batch, row parser.ImportRow) (*posting, error) {
	p := &posting{}

	direction, ok := ledger.ParseDirection(row.Direction.Text)
	if !ok {
		return nil, importerr.New(importerr.KindInvalidDirection, parser.ColumnDirection,
			fmt.Sprintf("jenis transaksi harus 'masuk' atau 'keluar': %q", row.Direction.Text))
	}

	amount, err := normalizer.NormalizeAmount(row.Amount.Text, row.Amount.Numeric)
	if err != nil {
		return nil, err
	}

	postedAt, err := e.dates.Normalize(row.Date.Text, row.Date.Numeric)
	if err != nil {
		p.warnings = append(p.warnings, report.Warning{Row: row.Row, Kind: report.WarnDateDefaulted, Message: err.Error()})
	}

	match, err := e.members.Resolve(ctx, row.MemberName.Text)
	if err != nil {
		return nil, err
	}
	p.member = match.Member
	if match.Ambiguous {
		p.warnings = append(p.warnings, report.Warning{
			Row:  row.Row,
			Kind: report.WarnAmbiguousMember,
			Message: fmt.Sprintf("nama %q cocok dengan %d anggota, memakai %s",
				match.Query, len(match.Candidates), match.Member.Name),
		})
	}

	category := strings.TrimSpace(row.Category.Text)
	target, err := e.accounts.Resolve(ctx, resolver.AccountRequest{
		Member:    match.Member,
		Label:     row.Account.Text,
		Category:  category,
		Direction: direction,
	})
	if err != nil {
		return nil, err
	}
	p.target = target

	if prior, found := b.index.Match(duplicate.Candidate{
		MemberID:  match.Member.ID,
		Direction: direction,
		Target:    target.Type,
		Amount:    amount,
	}); found {
		msg := fmt.Sprintf("transaksi serupa sudah tercatat hari ini (%s)", prior.ReferenceNumber)
		if e.cfg.DuplicatePolicy == duplicate.PolicyBlock {
			dup := importerr.New(importerr.KindDuplicateRow, parser.ColumnAmount, msg)
			dup.Skippable = true
			return nil, dup
		}
		p.duplicate = true
		p.warnings = append(p.warnings, report.Warning{Row: row.Row, Kind: report.WarnDuplicate, Message: msg})
	}

	if category == "" {
		category = defaultCategory(target.Type, direction)
	}
	description := strings.TrimSpace(row.Description.Text)
	if description == "" {
		label := strings.TrimSpace(row.Account.Text)
		if label == "" {
			label = target.Label
		}
		description = "Import otomatis: " + label
	}

	batchID := b.id
	p.tx = &ledger.Transaction{
		ID:              uuid.New(),
		ReferenceNumber: ReferenceNumber(b.id, row.Row),
		MemberID:        match.Member.ID,
		Target:          target.Type,
		TargetID:        target.ID,
		Direction:       direction,
		Category:        category,
		Amount:          amount,
		Description:     description,
		BatchID:         &batchID,
		PostedAt:        postedAt,
		CreatedAt:       e.cfg.Now(),
	}
	return p, nil
}

// ReferenceNumber is the nomor_referensi of an imported row.
func ReferenceNumber(batchID uuid.UUID, row int) string {
	return fmt.Sprintf("IMP-%s-%d", strings.ToUpper(batchID.String()[:8]), row)
}

func defaultCategory(target ledger.TargetType, direction ledger.Direction) string {
	switch {
	case target == ledger.TargetLoan && direction == ledger.DirectionInbound:
		return ledger.CategoryLoanPayment
	case target == ledger.TargetLoan:
		return ledger.CategoryLoanDisbursement
	case direction == ledger.DirectionInbound:
		return ledger.CategoryDeposit
	default:
		return ledger.CategoryWithdrawal
	}
}

// notifyMember writes the staff notification for a posted row, best effort.
func (e *Engine) notifyMember(ctx context.Context, p *posting) {
	if !e.cfg.Capabilities.Notifications {
		return
	}
	n := ledger.Notification{
		ID:            uuid.New(),
		MemberID:      p.member.ID,
		TransactionID: p.tx.ID,
		Title:         "Transaksi " + string(p.tx.Direction),
		Message: fmt.Sprintf("%s melakukan transaksi %s sebesar %s pada %s",
			p.member.Name, p.tx.Direction, money.Format(p.tx.Amount), p.target.Label),
		CreatedAt: e.cfg.Now(),
	}
	if err := e.store.CreateNotification(ctx, n); err != nil {
		e.logger.Warn("failed to create transaction notification", "transaction_id", p.tx.ID, "error", err)
	}
}

func (e *Engine) finish(ctx context.Context, b *batch, result *report.ImportResult, opts RunOptions) {
	status := ledger.HistorySucceeded
	if result.Processed > 0 && result.Created+result.Updated == 0 {
		status = ledger.HistoryFailed
	}
	e.recordHistory(ctx, b.id, result.Created+result.Updated, status, result.Message)
	e.metrics.Batch(status, result.Duration())

	e.logger.Info("import batch finished",
		"batch_id", b.id,
		"status", status,
		"processed", result.Processed,
		"created", result.Created,
		"updated", result.Updated,
		"errors", len(result.Errors),
		"duration", result.Duration(),
	)

	if e.notifier == nil {
		return
	}
	summary := notify.Summary{
		BatchID:    b.id,
		Source:     opts.Source,
		Status:     status,
		Processed:  result.Processed,
		Created:    result.Created,
		Updated:    result.Updated,
		Errors:     len(result.Errors),
		Inbound:    money.ToDecimal(b.totals.Inbound),
		Outbound:   money.ToDecimal(b.totals.Outbound),
		FinishedAt: result.FinishedAt,
	}
	if err := e.notifier.NotifyBatch(ctx, summary); err != nil {
		e.logger.Warn("failed to send batch summary", "batch_id", b.id, "error", err)
	}
}

// recordHistory writes the import_history row, best effort.
func (e *Engine) recordHistory(ctx context.Context, batchID uuid.UUID, count int, status, details string) {
	if !e.cfg.Capabilities.History {
		return
	}
	entry := ledger.HistoryEntry{
		ID:        uuid.New(),
		BatchID:   batchID,
		Type:      e.cfg.BatchType,
		Count:     count,
		Status:    status,
		Details:   details,
		User:      e.cfg.User,
		CreatedAt: e.cfg.Now(),
	}
	if err := e.store.RecordImport(ctx, entry); err != nil {
		e.logger.Warn("failed to record import history", "batch_id", batchID, "error", err)
	}
}

// History lists recent batches, newest first. It is empty when the store has
// no import_history table.
func (e *Engine) History(ctx context.Context, limit int) ([]ledger.HistoryEntry, error) {
	if !e.cfg.Capabilities.History {
		return []ledger.HistoryEntry{}, nil
	}
	entries, err := e.store.ListImportHistory(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list import history: %w", err)
	}
	return entries, nil
}
