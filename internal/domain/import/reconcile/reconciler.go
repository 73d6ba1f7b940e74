// Package reconcile applies import rows to savings and loan balances.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/importerr"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/ledger"
)

// CompensationMode selects how an orphaned transaction record is handled.
type CompensationMode string

const (
	// CompensateFlag marks the record needs_reconciliation, or deletes it when
	// the store has no such column.
	CompensateFlag CompensationMode = "flag"
	// CompensateDelete removes the record.
	CompensateDelete CompensationMode = "delete"
)

// ParseCompensationMode falls back to CompensateFlag for unknown values.
func ParseCompensationMode(raw string) CompensationMode {
	if CompensationMode(raw) == CompensateDelete {
		return CompensateDelete
	}
	return CompensateFlag
}

// Options tunes how writes are persisted.
type Options struct {
	// Retries is how many times a failed balance write is retried.
	Retries   uint64
	RetryBase time.Duration
	Mode      CompensationMode
	// CanFlag is whether the store supports FlagForReconciliation.
	CanFlag bool
	// WritesPerSecond throttles ledger writes. Zero disables the limiter.
	WritesPerSecond float64
}

// DefaultOptions retries three times starting at 100ms.
func DefaultOptions() Options {
	return Options{
		Retries:   3,
		RetryBase: 100 * time.Millisecond,
		Mode:      CompensateFlag,
		CanFlag:   true,
	}
}

// Writer is the part of the ledger the reconciler mutates.
type Writer interface {
	ledger.TransactionLog
	ledger.SavingsLedger
	ledger.LoanLedger
}

// Reconciler persists one transaction and the balance it produces.
type Reconciler struct {
	store   Writer
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewReconciler creates a reconciler writing to store.
func NewReconciler(store Writer, opts Options, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 100 * time.Millisecond
	}
	if opts.Mode == "" {
		opts.Mode = CompensateFlag
	}
	r := &Reconciler{store: store, opts: opts, logger: logger}
	if opts.WritesPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.WritesPerSecond), 1)
	}
	return r
}

// Compute applies the directional rules to a target balance. Savings have no
// floor. A loan's remaining balance never drops below zero and a loan that
// reaches zero is paid off.
func Compute(target ledger.Target, direction ledger.Direction, amount decimal.Decimal) (decimal.Decimal, ledger.LoanStatus, error) {
	before := target.Balance
	switch target.Type {
	case ledger.TargetSavings:
		switch direction {
		case ledger.DirectionInbound:
			return before.Add(amount), "", nil
		case ledger.DirectionOutbound:
			return before.Sub(amount), "", nil
		}
	case ledger.TargetLoan:
		var after decimal.Decimal
		switch direction {
		case ledger.DirectionInbound:
			after = decimal.Max(before.Sub(amount), decimal.Zero)
		case ledger.DirectionOutbound:
			after = before.Add(amount)
		default:
			return decimal.Zero, "", importerr.New(importerr.KindInvalidDirection, "Jenis Transaksi", fmt.Sprintf("jenis transaksi tidak dikenal: %q", direction))
		}
		return after, loanStatus(target.LoanStatus, after), nil
	default:
		return decimal.Zero, "", fmt.Errorf("unknown target type %q", target.Type)
	}
	return decimal.Zero, "", importerr.New(importerr.KindInvalidDirection, "Jenis Transaksi", fmt.Sprintf("jenis transaksi tidak dikenal: %q", direction))
}

func loanStatus(current ledger.LoanStatus, remaining decimal.Decimal) ledger.LoanStatus {
	if !remaining.IsPositive() {
		return ledger.LoanPaidOff
	}
	if current == "" || current == ledger.LoanPaidOff {
		return ledger.LoanActive
	}
	return current
}

// Apply writes tx and then the new target balance. tx.Target, TargetID,
// Direction and Amount must be set; BalanceBefore and BalanceAfter are filled
// in from target.
//
// A failed insert is a LedgerWriteError and nothing was written. A failed
// balance write is retried, then the transaction record is compensated and a
// *importerr.PartialWriteError is returned. Re-applying a transaction whose
// ID is already stored is a no-op.
func (r *Reconciler) Apply(ctx context.Context, tx *ledger.Transaction, target ledger.Target) error {
	after, status, err := Compute(target, tx.Direction, tx.Amount)
	if err != nil {
		return err
	}
	tx.BalanceBefore = target.Balance
	tx.BalanceAfter = after

	if err := r.wait(ctx); err != nil {
		return importerr.Wrap(importerr.KindLedgerWrite, "", "gagal menyimpan transaksi", err)
	}
	inserted, err := r.store.InsertTransaction(ctx, tx)
	if err != nil {
		return importerr.Wrap(importerr.KindLedgerWrite, "", "gagal menyimpan transaksi", err)
	}
	if !inserted {
		r.logger.Debug("transaction already recorded, skipping balance update", "transaction_id", tx.ID)
		return nil
	}

	if err := r.writeBalance(ctx, target, after, status); err != nil {
		return r.compensate(ctx, tx, err)
	}
	return nil
}

func (r *Reconciler) writeBalance(ctx context.Context, target ledger.Target, after decimal.Decimal, status ledger.LoanStatus) error {
	backoff := retry.WithMaxRetries(r.opts.Retries, retry.NewExponential(r.opts.RetryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := r.wait(ctx); err != nil {
			return err
		}
		var err error
		switch target.Type {
		case ledger.TargetSavings:
			err = r.store.UpdateSavingsBalance(ctx, target.ID, after)
		case ledger.TargetLoan:
			err = r.store.UpdateLoanBalance(ctx, target.ID, after, status)
		default:
			return fmt.Errorf("unknown target type %q", target.Type)
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, ledger.ErrNotFound) {
			return err
		}
		r.logger.Warn("balance write failed, retrying", "target", target.Type, "target_id", target.ID, "error", err)
		return retry.RetryableError(err)
	})
}

func (r *Reconciler) compensate(ctx context.Context, tx *ledger.Transaction, cause error) error {
	pw := &importerr.PartialWriteError{TransactionID: tx.ID, Err: cause}

	var err error
	if r.opts.Mode == CompensateFlag && r.opts.CanFlag {
		err = r.store.FlagForReconciliation(ctx, tx.ID)
		pw.Compensation = importerr.CompensationFlagged
		tx.NeedsReconciliation = err == nil
	} else {
		err = r.store.DeleteTransaction(ctx, tx.ID)
		pw.Compensation = importerr.CompensationDeleted
	}
	if err != nil {
		pw.Compensation = importerr.CompensationFailed
		pw.CompensationErr = err
		r.logger.Error("failed to compensate orphaned transaction",
			"transaction_id", tx.ID, "error", err, "cause", cause)
		return pw
	}

	r.logger.Warn("balance write failed after transaction insert",
		"transaction_id", tx.ID, "compensation", pw.Compensation, "error", cause)
	return pw
}

func (r *Reconciler) wait(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}
