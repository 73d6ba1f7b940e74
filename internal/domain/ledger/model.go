// Package ledger holds the cooperative's ledger data model and the stores
// the import engine reads from and writes to.
package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction is the flow of money relative to the cooperative.
type Direction string

const (
	DirectionInbound  Direction = "masuk"
	DirectionOutbound Direction = "keluar"
)

// ParseDirection maps the spreadsheet "Jenis Transaksi" column onto a Direction.
func ParseDirection(raw string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "masuk", "in", "inbound", "setoran", "kredit":
		return DirectionInbound, true
	case "keluar", "out", "outbound", "penarikan", "debit":
		return DirectionOutbound, true
	default:
		return "", false
	}
}

// TargetType identifies which ledger a transaction posts to.
type TargetType string

const (
	TargetSavings TargetType = "tabungan"
	TargetLoan    TargetType = "pembiayaan"
)

// Transaction categories used by the cooperative.
const (
	CategoryDeposit          = "setoran"
	CategoryWithdrawal       = "penarikan"
	CategoryLoanPayment      = "pembayaran_pinjaman"
	CategoryLoanDisbursement = "pencairan_pinjaman"
	CategoryAdminFee         = "biaya_admin"
)

// IsLoanPaymentCategory reports whether a category names an installment payment.
func IsLoanPaymentCategory(category string) bool {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case CategoryLoanPayment, "angsuran", "angsuran_pinjaman", "loan_payment":
		return true
	}
	return false
}

// AccountStatus mirrors the status column shared by tabungan and anggota.
type AccountStatus string

const (
	StatusActive   AccountStatus = "aktif"
	StatusInactive AccountStatus = "nonaktif"
)

// LoanStatus is the lifecycle state of a financing product.
type LoanStatus string

const (
	LoanActive  LoanStatus = "aktif"
	LoanPaidOff LoanStatus = "lunas"
	LoanOverdue LoanStatus = "jatuh_tempo"
)

// Member is a cooperative member (anggota).
type Member struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"nama"`
	AccountNumber string    `json:"nomor_rekening"`
	CreatedAt     time.Time `json:"created_at"`
}

// SavingsAccount is a member's tabungan with its product name joined in.
type SavingsAccount struct {
	ID          uuid.UUID       `json:"id"`
	MemberID    uuid.UUID       `json:"anggota_id"`
	ProductID   uuid.UUID       `json:"jenis_tabungan_id"`
	ProductName string          `json:"jenis_tabungan"`
	Balance     decimal.Decimal `json:"saldo"`
	Status      AccountStatus   `json:"status"`
	IsDefault   bool            `json:"is_default"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Active reports whether the account accepts postings.
func (a SavingsAccount) Active() bool {
	return a.Status == StatusActive
}

// Loan is a member's pinjaman/pembiayaan.
type Loan struct {
	ID               uuid.UUID       `json:"id"`
	MemberID         uuid.UUID       `json:"anggota_id"`
	ProductLabel     string          `json:"jenis_pembiayaan"`
	TotalAmount      decimal.Decimal `json:"jumlah"`
	RemainingBalance decimal.Decimal `json:"sisa_pembayaran"`
	Status           LoanStatus      `json:"status"`
	DueDate          *time.Time      `json:"jatuh_tempo,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Target is the resolved posting destination of one import row.
type Target struct {
	Type    TargetType      `json:"type"`
	ID      uuid.UUID       `json:"id"`
	Label   string          `json:"label"`
	Balance decimal.Decimal `json:"balance"`
	// LoanStatus is set for loan targets.
	LoanStatus LoanStatus `json:"loan_status,omitempty"`
}

// Transaction is an append-only ledger entry (transaksi).
type Transaction struct {
	ID                  uuid.UUID       `json:"id"`
	ReferenceNumber     string          `json:"nomor_referensi"`
	MemberID            uuid.UUID       `json:"anggota_id"`
	Target              TargetType      `json:"source_type"`
	TargetID            uuid.UUID       `json:"target_id"`
	Direction           Direction       `json:"tipe_transaksi"`
	Category            string          `json:"kategori"`
	Amount              decimal.Decimal `json:"jumlah"`
	BalanceBefore       decimal.Decimal `json:"sebelum"`
	BalanceAfter        decimal.Decimal `json:"sesudah"`
	Description         string          `json:"deskripsi"`
	BatchID             *uuid.UUID      `json:"batch_id,omitempty"`
	NeedsReconciliation bool            `json:"needs_reconciliation"`
	PostedAt            time.Time       `json:"tanggal"`
	CreatedAt           time.Time       `json:"created_at"`
}

// SavingsAccountID returns the tabungan_id column value.
func (t Transaction) SavingsAccountID() *uuid.UUID {
	if t.Target != TargetSavings {
		return nil
	}
	id := t.TargetID
	return &id
}

// LoanID returns the pembiayaan_id column value.
func (t Transaction) LoanID() *uuid.UUID {
	if t.Target != TargetLoan {
		return nil
	}
	id := t.TargetID
	return &id
}

// Import history statuses.
const (
	HistorySucceeded = "Berhasil"
	HistoryFailed    = "Gagal"
)

// HistoryEntry summarises one import batch for the back office.
type HistoryEntry struct {
	ID        uuid.UUID `json:"id"`
	BatchID   uuid.UUID `json:"batch_id"`
	Type      string    `json:"type"`
	Count     int       `json:"count"`
	Status    string    `json:"status"`
	Details   string    `json:"details"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is a transaksi_notifikasi row shown to staff.
type Notification struct {
	ID            uuid.UUID `json:"id"`
	MemberID      uuid.UUID `json:"anggota_id"`
	TransactionID uuid.UUID `json:"transaksi_id"`
	Title         string    `json:"judul"`
	Message       string    `json:"pesan"`
	IsRead        bool      `json:"is_read"`
	CreatedAt     time.Time `json:"created_at"`
}
