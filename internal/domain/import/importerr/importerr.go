// Package importerr defines the failure taxonomy of a ledger import run.
package importerr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind classifies an import failure.
type Kind string

const (
	KindParse            Kind = "ParseError"
	KindDateFormat       Kind = "DateFormatError"
	KindInvalidAmount    Kind = "InvalidAmount"
	KindInvalidDirection Kind = "InvalidDirection"
	KindMemberNotFound   Kind = "MemberNotFound"
	KindAccountNotFound  Kind = "AccountNotFound"
	KindDuplicateRow     Kind = "DuplicateRow"
	KindLedgerRead       Kind = "LedgerReadError"
	KindLedgerWrite      Kind = "LedgerWriteError"
	KindPartialWrite     Kind = "PartialWriteError"
	KindUnknown          Kind = "Unknown"
)

// Sentinels for errors.Is. Any *Error with the same Kind matches.
var (
	ErrParse            = &Error{Kind: KindParse}
	ErrDateFormat       = &Error{Kind: KindDateFormat}
	ErrInvalidAmount    = &Error{Kind: KindInvalidAmount}
	ErrInvalidDirection = &Error{Kind: KindInvalidDirection}
	ErrMemberNotFound   = &Error{Kind: KindMemberNotFound}
	ErrAccountNotFound  = &Error{Kind: KindAccountNotFound}
	ErrDuplicateRow     = &Error{Kind: KindDuplicateRow}
	ErrLedgerRead       = &Error{Kind: KindLedgerRead}
	ErrLedgerWrite      = &Error{Kind: KindLedgerWrite}
	ErrPartialWrite     = &Error{Kind: KindPartialWrite}
)

// Error is a classified import failure.
type Error struct {
	Kind Kind
	// Field is the spreadsheet column the failure relates to, if any.
	Field string
	Msg   string
	// Skippable marks rows that may be left out without operator action.
	Skippable bool
	Err       error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// New builds an *Error.
func New(kind Kind, field, msg string) *Error {
	return &Error{Kind: kind, Field: field, Msg: msg}
}

// Wrap builds an *Error around a cause.
func Wrap(kind Kind, field, msg string, err error) *Error {
	return &Error{Kind: kind, Field: field, Msg: msg, Err: err}
}

func MemberNotFound(name string) *Error {
	return New(KindMemberNotFound, "Nama Anggota", fmt.Sprintf("anggota %q tidak ditemukan", name))
}

func AccountNotFound(label, msg string) *Error {
	return New(KindAccountNotFound, "Rekening/Pinjaman", fmt.Sprintf("%s (%q)", msg, label))
}

func InvalidAmount(raw string) *Error {
	return New(KindInvalidAmount, "Jumlah", fmt.Sprintf("jumlah tidak valid: %q", raw))
}

// Compensation records what was done with an orphaned transaction record.
type Compensation string

const (
	CompensationNone    Compensation = "none"
	CompensationDeleted Compensation = "deleted"
	CompensationFlagged Compensation = "flagged"
	CompensationFailed  Compensation = "failed"
)

// PartialWriteError reports that the transaction record was written but the
// balance update was not.
type PartialWriteError struct {
	TransactionID uuid.UUID
	Compensation  Compensation
	// CompensationErr is set when Compensation is CompensationFailed.
	CompensationErr error
	Err             error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s: balance update failed after transaction %s was written (compensation: %s): %v",
		KindPartialWrite, e.TransactionID, e.Compensation, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

func (e *PartialWriteError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == KindPartialWrite
}

// NeedsManualReconciliation reports whether the ledger was left inconsistent.
func (e *PartialWriteError) NeedsManualReconciliation() bool {
	return e.Compensation != CompensationDeleted
}

// KindOf extracts the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var pw *PartialWriteError
	if errors.As(err, &pw) {
		return KindPartialWrite
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsSkippable reports whether err marks a row that may be skipped.
func IsSkippable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Skippable
}

// Retryable reports whether re-running the row cannot double-post it.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindPartialWrite:
		var pw *PartialWriteError
		errors.As(err, &pw)
		return pw.Compensation == CompensationDeleted
	case KindUnknown:
		return false
	default:
		return true
	}
}
