package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Store used by tests and dry runs.
type MemoryStore struct {
	mu            sync.RWMutex
	members       []Member
	savings       map[uuid.UUID]*SavingsAccount
	savingsOrder  []uuid.UUID
	loans         map[uuid.UUID]*Loan
	transactions  []Transaction
	history       []HistoryEntry
	notifications []Notification
	caps          Capabilities

	// FailBalanceWrites makes the next N balance updates fail.
	FailBalanceWrites int
	// FailInserts makes the next N transaction inserts fail.
	FailInserts int
	// FailHistory makes every history write fail.
	FailHistory bool
	// FailSnapshot makes ListTransactionsCreatedBetween fail.
	FailSnapshot bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store offering every capability.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		savings: make(map[uuid.UUID]*SavingsAccount),
		loans:   make(map[uuid.UUID]*Loan),
		caps:    AllCapabilities(),
	}
}

// WithCapabilities overrides what ProbeCapabilities reports.
func (s *MemoryStore) WithCapabilities(caps Capabilities) *MemoryStore {
	s.caps = caps
	return s
}

// AddMember registers a member and returns it with an ID assigned.
func (s *MemoryStore) AddMember(m Member) Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.members = append(s.members, m)
	return m
}

// AddSavingsAccount registers a savings account.
func (s *MemoryStore) AddSavingsAccount(a SavingsAccount) SavingsAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.savings[a.ID] = &a
	s.savingsOrder = append(s.savingsOrder, a.ID)
	return a
}

// AddLoan registers a loan.
func (s *MemoryStore) AddLoan(l Loan) Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = LoanActive
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	s.loans[l.ID] = &l
	return l
}

// SavingsBalance returns the stored balance of a savings account.
func (s *MemoryStore) SavingsBalance(id uuid.UUID) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.savings[id]; ok {
		return a.Balance
	}
	return decimal.Zero
}

// Loan returns a copy of a stored loan.
func (s *MemoryStore) Loan(id uuid.UUID) (Loan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.loans[id]
	if !ok {
		return Loan{}, false
	}
	return *l, true
}

// Transactions returns a copy of every stored transaction in insert order.
func (s *MemoryStore) Transactions() []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Transaction(nil), s.transactions...)
}

// Notifications returns a copy of stored notifications.
func (s *MemoryStore) Notifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Notification(nil), s.notifications...)
}

func (s *MemoryStore) FindMembersByExactName(_ context.Context, name string) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Member
	for _, m := range s.members {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) SearchMembers(_ context.Context, fragment string, limit int) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(fragment)
	var out []Member
	for _, m := range s.members {
		if strings.Contains(strings.ToLower(m.Name), needle) {
			out = append(out, m)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) ListSavingsAccounts(_ context.Context, memberID uuid.UUID) ([]SavingsAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SavingsAccount
	for _, id := range s.savingsOrder {
		if a := s.savings[id]; a.MemberID == memberID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateSavingsBalance(_ context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailBalanceWrites > 0 {
		s.FailBalanceWrites--
		return errors.New("savings balance write rejected")
	}
	a, ok := s.savings[accountID]
	if !ok {
		return fmt.Errorf("savings account %s: %w", accountID, ErrNotFound)
	}
	a.Balance = balance
	return nil
}

func (s *MemoryStore) ListLoans(_ context.Context, memberID uuid.UUID) ([]Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Loan
	for _, l := range s.loans {
		if l.MemberID == memberID {
			out = append(out, *l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateLoanBalance(_ context.Context, loanID uuid.UUID, remaining decimal.Decimal, status LoanStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailBalanceWrites > 0 {
		s.FailBalanceWrites--
		return errors.New("loan balance write rejected")
	}
	l, ok := s.loans[loanID]
	if !ok {
		return fmt.Errorf("loan %s: %w", loanID, ErrNotFound)
	}
	l.RemainingBalance = remaining
	l.Status = status
	return nil
}

func (s *MemoryStore) InsertTransaction(_ context.Context, tx *Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInserts > 0 {
		s.FailInserts--
		return false, errors.New("transaction insert rejected")
	}
	for _, existing := range s.transactions {
		if existing.ID == tx.ID {
			return false, nil
		}
	}
	s.transactions = append(s.transactions, *tx)
	return true, nil
}

func (s *MemoryStore) DeleteTransaction(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.transactions {
		if t.ID == id {
			s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) FlagForReconciliation(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].ID == id {
			s.transactions[i].NeedsReconciliation = true
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) ListTransactionsCreatedBetween(_ context.Context, from, to time.Time) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailSnapshot {
		return nil, errors.New("snapshot query failed")
	}
	var out []Transaction
	for _, t := range s.transactions {
		if !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) RecordImport(_ context.Context, entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailHistory {
		return errors.New("import_history unavailable")
	}
	s.history = append(s.history, entry)
	return nil
}

func (s *MemoryStore) ListImportHistory(_ context.Context, limit int) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]HistoryEntry, 0, len(s.history))
	for i := len(s.history) - 1; i >= 0; i-- {
		out = append(out, s.history[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateNotification(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	return nil
}

// ProbeCapabilities reports the configured capabilities.
func (s *MemoryStore) ProbeCapabilities(context.Context) (Capabilities, error) {
	return s.caps, nil
}
