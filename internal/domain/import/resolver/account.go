package resolver

import (
	"context"
	"strings"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/importerr"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/normalizer"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/ledger"
)

// AccountRequest is what a row says about its posting target.
type AccountRequest struct {
	Member    ledger.Member
	Label     string
	Category  string
	Direction ledger.Direction
}

// loanPayment reports whether a missing loan may be skipped for this row.
func (r AccountRequest) loanPayment() bool {
	return ledger.IsLoanPaymentCategory(r.Category) || r.Direction == ledger.DirectionInbound
}

// AccountResolver picks the savings account or loan a row posts to.
type AccountResolver struct {
	savings ledger.SavingsLedger
	loans   ledger.LoanLedger
	catalog *LoanCatalog
}

// NewAccountResolver creates a resolver. A nil catalog uses DefaultLoanCatalog.
func NewAccountResolver(savings ledger.SavingsLedger, loans ledger.LoanLedger, catalog *LoanCatalog) *AccountResolver {
	if catalog == nil {
		catalog = DefaultLoanCatalog()
	}
	return &AccountResolver{savings: savings, loans: loans, catalog: catalog}
}

// Resolve returns the posting target for req. Labels naming a loan product
// resolve against the member's loans, everything else against savings.
func (r *AccountResolver) Resolve(ctx context.Context, req AccountRequest) (ledger.Target, error) {
	if _, term, ok := r.catalog.Classify(req.Label); ok {
		return r.resolveLoan(ctx, req, term)
	}
	return r.resolveSavings(ctx, req)
}

// resolveLoan prefers an active loan whose product label contains the row
// label, then one containing the catalog term, and falls back to the
// member's most recent loan of any status.
func (r *AccountResolver) resolveLoan(ctx context.Context, req AccountRequest, term string) (ledger.Target, error) {
	loans, err := r.loans.ListLoans(ctx, req.Member.ID)
	if err != nil {
		return ledger.Target{}, importerr.Wrap(importerr.KindLedgerRead, "Rekening/Pinjaman", "gagal membaca pinjaman anggota", err)
	}

	for _, needle := range []string{normalizer.CleanLabel(req.Label), term} {
		for _, l := range loans {
			if l.Status == ledger.LoanActive && strings.Contains(normalizer.CleanLabel(l.ProductLabel), needle) {
				return loanTarget(l), nil
			}
		}
	}
	if len(loans) > 0 {
		return loanTarget(loans[0]), nil
	}

	e := importerr.AccountNotFound(req.Label, "pinjaman anggota tidak ditemukan")
	e.Skippable = req.loanPayment()
	return ledger.Target{}, e
}

// resolveSavings matches the product name, then the default account, then
// the first active account.
func (r *AccountResolver) resolveSavings(ctx context.Context, req AccountRequest) (ledger.Target, error) {
	accounts, err := r.savings.ListSavingsAccounts(ctx, req.Member.ID)
	if err != nil {
		return ledger.Target{}, importerr.Wrap(importerr.KindLedgerRead, "Rekening/Pinjaman", "gagal membaca tabungan anggota", err)
	}

	active := make([]ledger.SavingsAccount, 0, len(accounts))
	for _, a := range accounts {
		if a.Active() {
			active = append(active, a)
		}
	}
	if len(active) == 0 {
		return ledger.Target{}, importerr.AccountNotFound(req.Label, "anggota tidak memiliki tabungan aktif")
	}

	if label := normalizer.CleanLabel(req.Label); label != "" {
		for _, a := range active {
			product := normalizer.CleanLabel(a.ProductName)
			if product == "" {
				continue
			}
			if strings.Contains(product, label) || strings.Contains(label, product) {
				return savingsTarget(a), nil
			}
		}
	}
	for _, a := range active {
		if a.IsDefault {
			return savingsTarget(a), nil
		}
	}
	return savingsTarget(active[0]), nil
}

func loanTarget(l ledger.Loan) ledger.Target {
	return ledger.Target{
		Type:       ledger.TargetLoan,
		ID:         l.ID,
		Label:      l.ProductLabel,
		Balance:    l.RemainingBalance,
		LoanStatus: l.Status,
	}
}

func savingsTarget(a ledger.SavingsAccount) ledger.Target {
	return ledger.Target{
		Type:    ledger.TargetSavings,
		ID:      a.ID,
		Label:   a.ProductName,
		Balance: a.Balance,
	}
}
