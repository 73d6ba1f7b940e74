// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/report"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/service"
	"github.com/FACorreiaa/koperasi-ledger/pkg/storage"
)

// DailyImportSpec runs the inbox import every day at 15:00.
const DailyImportSpec = "0 15 * * *"

// Importer runs one workbook through the import engine.
type Importer interface {
	Import(ctx context.Context, r io.Reader, opts service.RunOptions) (*report.ImportResult, error)
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	inbox    storage.Inbox
	importer Importer
	logger   *slog.Logger
}

// NewScheduler creates a new job scheduler. An empty spec means
// DailyImportSpec; loc is the zone the spec is read in.
func NewScheduler(inbox storage.Inbox, importer Importer, spec string, loc *time.Location, logger *slog.Logger) *Scheduler {
	if spec == "" {
		spec = DailyImportSpec
	}
	if loc == nil {
		loc = time.Local
	}
	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))),
	)

	return &Scheduler{
		cron:     c,
		spec:     spec,
		inbox:    inbox,
		importer: importer,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.importInbox)
	if err != nil {
		return fmt.Errorf("failed to schedule inbox import %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("spec", s.spec),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the inbox import.
func (s *Scheduler) RunNow() {
	go s.importInbox()
}

func (s *Scheduler) importInbox() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	s.logger.Info("starting scheduled inbox import")
	imported, failed, err := s.ImportPending(ctx)
	if err != nil {
		s.logger.Error("failed to list pending uploads", slog.Any("error", err))
		return
	}
	s.logger.Info("scheduled inbox import completed",
		slog.Int("files_imported", imported),
		slog.Int("files_failed", failed),
	)
}

// ImportPending imports every pending upload in order. Each upload is claimed
// first; one taken by a concurrent run or by the upload API is skipped. A file
// that cannot be parsed is marked failed and the rest still run.
func (s *Scheduler) ImportPending(ctx context.Context) (imported, failed int, err error) {
	files, err := s.inbox.Pending(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, f := range files {
		if _, err := s.inbox.Claim(ctx, f.ID); err != nil {
			s.logger.Debug("skipping upload", slog.String("file_id", f.ID.String()), slog.Any("error", err))
			continue
		}

		result, err := s.importFile(ctx, f)
		if err != nil {
			s.logger.Warn("failed to import upload",
				slog.String("file_id", f.ID.String()),
				slog.String("name", f.Name),
				slog.Any("error", err),
			)
			if markErr := s.inbox.MarkProcessed(ctx, f.ID, nil, storage.StatusFailed); markErr != nil {
				s.logger.Warn("failed to mark upload", slog.String("file_id", f.ID.String()), slog.Any("error", markErr))
			}
			failed++
			continue
		}

		batchID := result.BatchID
		if err := s.inbox.MarkProcessed(ctx, f.ID, &batchID, storage.StatusProcessed); err != nil {
			s.logger.Warn("failed to mark upload", slog.String("file_id", f.ID.String()), slog.Any("error", err))
		}
		s.logger.Debug("imported upload",
			slog.String("file_id", f.ID.String()),
			slog.String("batch_id", batchID.String()),
			slog.Int("created", result.Created),
			slog.Int("errors", len(result.Errors)),
		)
		imported++
	}
	return imported, failed, nil
}

func (s *Scheduler) importFile(ctx context.Context, f *storage.FileInfo) (*report.ImportResult, error) {
	rc, _, err := s.inbox.Open(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return s.importer.Import(ctx, rc, service.RunOptions{Source: f.Name})
}
