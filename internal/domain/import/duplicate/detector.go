// Package duplicate flags import rows that repeat a transaction already
// recorded today.
package duplicate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/ledger"
)

// Policy decides what happens to a row that looks like a duplicate.
type Policy string

const (
	// PolicyWarn applies the row and records a warning for manual review.
	PolicyWarn Policy = "warn"
	// PolicyBlock rejects the row with a DuplicateRow error.
	PolicyBlock Policy = "block"
)

// ParsePolicy falls back to PolicyWarn for unknown values.
func ParsePolicy(raw string) Policy {
	if Policy(strings.ToLower(strings.TrimSpace(raw))) == PolicyBlock {
		return PolicyBlock
	}
	return PolicyWarn
}

// DefaultTolerance is the amount difference under which two postings match.
var DefaultTolerance = decimal.NewFromFloat(0.01)

type key struct {
	member    uuid.UUID
	direction ledger.Direction
	target    ledger.TargetType
}

// Index holds the day's transactions grouped by member, direction and
// target type. Amounts within a group are compared linearly, so a lookup is
// O(k) in the number of same-key postings.
type Index struct {
	tolerance decimal.Decimal
	groups    map[key][]ledger.Transaction
	size      int
}

// NewIndex builds an index over txs.
func NewIndex(txs []ledger.Transaction, tolerance decimal.Decimal) *Index {
	if !tolerance.IsPositive() {
		tolerance = DefaultTolerance
	}
	idx := &Index{tolerance: tolerance, groups: make(map[key][]ledger.Transaction)}
	for _, tx := range txs {
		idx.Add(tx)
	}
	return idx
}

// Add indexes a transaction posted during the current batch.
func (i *Index) Add(tx ledger.Transaction) {
	if i == nil {
		return
	}
	k := key{member: tx.MemberID, direction: tx.Direction, target: tx.Target}
	i.groups[k] = append(i.groups[k], tx)
	i.size++
}

// Len returns the number of indexed transactions.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return i.size
}

// Candidate describes the posting a row is about to make.
type Candidate struct {
	MemberID  uuid.UUID
	Direction ledger.Direction
	Target    ledger.TargetType
	Amount    decimal.Decimal
}

// Match returns the first indexed transaction the candidate repeats.
func (i *Index) Match(c Candidate) (ledger.Transaction, bool) {
	if i == nil {
		return ledger.Transaction{}, false
	}
	for _, tx := range i.groups[key{member: c.MemberID, direction: c.Direction, target: c.Target}] {
		if tx.Amount.Sub(c.Amount).Abs().LessThan(i.tolerance) {
			return tx, true
		}
	}
	return ledger.Transaction{}, false
}

// Snapshot loads the transactions created during the calendar day of now in
// loc and indexes them.
func Snapshot(ctx context.Context, log ledger.TransactionLog, now time.Time, loc *time.Location, tolerance decimal.Decimal) (*Index, error) {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)

	txs, err := log.ListTransactionsCreatedBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load today's transactions: %w", err)
	}
	return NewIndex(txs, tolerance), nil
}
