package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a row addressed by ID does not exist.
var ErrNotFound = errors.New("ledger: not found")

// MemberDirectory is the read-only member lookup.
type MemberDirectory interface {
	// FindMembersByExactName returns members whose name equals name exactly.
	FindMembersByExactName(ctx context.Context, name string) ([]Member, error)
	// SearchMembers returns members whose name contains fragment, ignoring case,
	// in store order.
	SearchMembers(ctx context.Context, fragment string, limit int) ([]Member, error)
}

// SavingsLedger reads and writes tabungan balances.
type SavingsLedger interface {
	ListSavingsAccounts(ctx context.Context, memberID uuid.UUID) ([]SavingsAccount, error)
	UpdateSavingsBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error
}

// LoanLedger reads and writes pembiayaan balances.
type LoanLedger interface {
	// ListLoans returns the member's loans, most recently created first.
	ListLoans(ctx context.Context, memberID uuid.UUID) ([]Loan, error)
	UpdateLoanBalance(ctx context.Context, loanID uuid.UUID, remaining decimal.Decimal, status LoanStatus) error
}

// TransactionLog is the append-only transaksi table.
type TransactionLog interface {
	// InsertTransaction stores tx. It reports false without error when a row
	// with the same ID already exists.
	InsertTransaction(ctx context.Context, tx *Transaction) (bool, error)
	DeleteTransaction(ctx context.Context, id uuid.UUID) error
	FlagForReconciliation(ctx context.Context, id uuid.UUID) error
	ListTransactionsCreatedBetween(ctx context.Context, from, to time.Time) ([]Transaction, error)
}

// HistoryRecorder keeps the import_history table.
type HistoryRecorder interface {
	RecordImport(ctx context.Context, entry HistoryEntry) error
	ListImportHistory(ctx context.Context, limit int) ([]HistoryEntry, error)
}

// NotificationWriter stores staff notifications about imported transactions.
type NotificationWriter interface {
	CreateNotification(ctx context.Context, n Notification) error
}

// Store bundles every collaborator the import engine needs.
type Store interface {
	MemberDirectory
	SavingsLedger
	LoanLedger
	TransactionLog
	HistoryRecorder
	NotificationWriter
}

// Capabilities describes optional schema features of a store. It is resolved
// once when an engine is built and never mutated afterwards.
type Capabilities struct {
	History            bool `json:"history"`
	Notifications      bool `json:"notifications"`
	ReconciliationFlag bool `json:"reconciliation_flag"`
}

// CapabilityProber is implemented by stores whose optional tables may be absent.
type CapabilityProber interface {
	ProbeCapabilities(ctx context.Context) (Capabilities, error)
}

// CapabilityAware is implemented by stores whose queries depend on the
// resolved capabilities.
type CapabilityAware interface {
	UseCapabilities(caps Capabilities)
}

// AllCapabilities is what a fully migrated schema offers.
func AllCapabilities() Capabilities {
	return Capabilities{History: true, Notifications: true, ReconciliationFlag: true}
}
