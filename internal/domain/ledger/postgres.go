package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store against the cooperative schema. Until
// capabilities are probed or set, the needs_reconciliation column is assumed
// absent.
type PostgresStore struct {
	db            DBTX
	reconcileFlag atomic.Bool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres-backed ledger store
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ CapabilityAware = (*PostgresStore)(nil)

// UseCapabilities tells the store which optional schema features exist
// without probing.
func (s *PostgresStore) UseCapabilities(caps Capabilities) {
	s.reconcileFlag.Store(caps.ReconciliationFlag)
}

// numeric parses a NUMERIC column selected as text.
func numeric(column, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s %q: %w", column, raw, err)
	}
	return d, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes fragment match literally inside a LIKE pattern.
func escapeLike(fragment string) string {
	return likeEscaper.Replace(fragment)
}

// ============================================================================
// Members
// ============================================================================

func (s *PostgresStore) FindMembersByExactName(ctx context.Context, name string) ([]Member, error) {
	query := `
		SELECT id, nama, COALESCE(nomor_rekening, ''), created_at
		FROM anggota
		WHERE nama = $1
		ORDER BY created_at, id
	`
	return s.queryMembers(ctx, query, name)
}

func (s *PostgresStore) SearchMembers(ctx context.Context, fragment string, limit int) ([]Member, error) {
	query := `
		SELECT id, nama, COALESCE(nomor_rekening, ''), created_at
		FROM anggota
		WHERE nama ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY created_at, id
		LIMIT $2
	`
	return s.queryMembers(ctx, query, escapeLike(fragment), limit)
}

func (s *PostgresStore) queryMembers(ctx context.Context, query string, args ...any) ([]Member, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.AccountNumber, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ============================================================================
// Savings
// ============================================================================

func (s *PostgresStore) ListSavingsAccounts(ctx context.Context, memberID uuid.UUID) ([]SavingsAccount, error) {
	query := `
		SELECT t.id, t.anggota_id, t.jenis_tabungan_id, COALESCE(j.nama, ''),
			t.saldo::text, t.status, t.is_default, t.created_at
		FROM tabungan t
		LEFT JOIN jenis_tabungan j ON j.id = t.jenis_tabungan_id
		WHERE t.anggota_id = $1
		ORDER BY t.created_at, t.id
	`
	rows, err := s.db.Query(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to query savings accounts: %w", err)
	}
	defer rows.Close()

	var accounts []SavingsAccount
	for rows.Next() {
		var a SavingsAccount
		var balance, status string
		if err := rows.Scan(&a.ID, &a.MemberID, &a.ProductID, &a.ProductName,
			&balance, &status, &a.IsDefault, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan savings account: %w", err)
		}
		if a.Balance, err = numeric("saldo", balance); err != nil {
			return nil, err
		}
		a.Status = AccountStatus(status)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *PostgresStore) UpdateSavingsBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	query := `UPDATE tabungan SET saldo = $2, updated_at = now() WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, accountID, balance)
	if err != nil {
		return fmt.Errorf("failed to update savings balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("savings account %s: %w", accountID, ErrNotFound)
	}
	return nil
}

// ============================================================================
// Loans
// ============================================================================

func (s *PostgresStore) ListLoans(ctx context.Context, memberID uuid.UUID) ([]Loan, error) {
	query := `
		SELECT id, anggota_id, COALESCE(jenis_pembiayaan, ''), jumlah::text,
			sisa_pembayaran::text, status, jatuh_tempo, created_at
		FROM pembiayaan
		WHERE anggota_id = $1
		ORDER BY created_at DESC, id
	`
	rows, err := s.db.Query(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var loans []Loan
	for rows.Next() {
		var l Loan
		var total, remaining, status string
		if err := rows.Scan(&l.ID, &l.MemberID, &l.ProductLabel, &total,
			&remaining, &status, &l.DueDate, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		if l.TotalAmount, err = numeric("jumlah", total); err != nil {
			return nil, err
		}
		if l.RemainingBalance, err = numeric("sisa_pembayaran", remaining); err != nil {
			return nil, err
		}
		l.Status = LoanStatus(status)
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

func (s *PostgresStore) UpdateLoanBalance(ctx context.Context, loanID uuid.UUID, remaining decimal.Decimal, status LoanStatus) error {
	query := `
		UPDATE pembiayaan
		SET sisa_pembayaran = $2, status = $3, updated_at = now()
		WHERE id = $1
	`
	tag, err := s.db.Exec(ctx, query, loanID, remaining, string(status))
	if err != nil {
		return fmt.Errorf("failed to update loan balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("loan %s: %w", loanID, ErrNotFound)
	}
	return nil
}

// ============================================================================
// Transactions
// ============================================================================

func (s *PostgresStore) InsertTransaction(ctx context.Context, tx *Transaction) (bool, error) {
	query := `
		INSERT INTO transaksi (
			id, nomor_referensi, anggota_id, tipe_transaksi, kategori, source_type,
			tabungan_id, pembiayaan_id, jumlah, sebelum, sesudah, deskripsi,
			batch_id, tanggal, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := s.db.Exec(ctx, query,
		tx.ID,
		tx.ReferenceNumber,
		tx.MemberID,
		string(tx.Direction),
		tx.Category,
		string(tx.Target),
		tx.SavingsAccountID(),
		tx.LoanID(),
		tx.Amount,
		tx.BalanceBefore,
		tx.BalanceAfter,
		tx.Description,
		tx.BatchID,
		tx.PostedAt,
		tx.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM transaksi WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FlagForReconciliation(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `UPDATE transaksi SET needs_reconciliation = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to flag transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListTransactionsCreatedBetween(ctx context.Context, from, to time.Time) ([]Transaction, error) {
	flag := "false"
	if s.reconcileFlag.Load() {
		flag = "needs_reconciliation"
	}
	query := `
		SELECT id, COALESCE(nomor_referensi, ''), anggota_id, tipe_transaksi,
			COALESCE(kategori, ''), source_type, COALESCE(tabungan_id, pembiayaan_id),
			jumlah::text, sebelum::text, sesudah::text, COALESCE(deskripsi, ''),
			` + flag + ` AS needs_reconciliation, tanggal, created_at
		FROM transaksi
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at, id
	`
	rows, err := s.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var t Transaction
		var direction, target string
		var amount, before, after string
		if err := rows.Scan(&t.ID, &t.ReferenceNumber, &t.MemberID, &direction,
			&t.Category, &target, &t.TargetID, &amount, &before, &after,
			&t.Description, &t.NeedsReconciliation, &t.PostedAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Direction = Direction(direction)
		t.Target = TargetType(target)
		if t.Amount, err = numeric("jumlah", amount); err != nil {
			return nil, err
		}
		if t.BalanceBefore, err = numeric("sebelum", before); err != nil {
			return nil, err
		}
		if t.BalanceAfter, err = numeric("sesudah", after); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// ============================================================================
// History & notifications
// ============================================================================

func (s *PostgresStore) RecordImport(ctx context.Context, entry HistoryEntry) error {
	query := `
		INSERT INTO import_history (id, batch_id, type, count, status, details, "user", created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.Exec(ctx, query, entry.ID, entry.BatchID, entry.Type, entry.Count,
		entry.Status, entry.Details, entry.User, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record import history: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListImportHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	query := `
		SELECT id, batch_id, type, count, status, COALESCE(details, ''), COALESCE("user", ''), created_at
		FROM import_history
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query import history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.BatchID, &e.Type, &e.Count, &e.Status,
			&e.Details, &e.User, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) CreateNotification(ctx context.Context, n Notification) error {
	query := `
		INSERT INTO transaksi_notifikasi (id, anggota_id, transaksi_id, judul, pesan, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, false, $6)
	`
	_, err := s.db.Exec(ctx, query, n.ID, n.MemberID, n.TransactionID, n.Title, n.Message, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ProbeCapabilities checks which optional tables and columns exist. The
// result also decides which columns later queries select.
func (s *PostgresStore) ProbeCapabilities(ctx context.Context) (Capabilities, error) {
	query := `
		SELECT
			to_regclass('public.import_history') IS NOT NULL,
			to_regclass('public.transaksi_notifikasi') IS NOT NULL,
			EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'transaksi' AND column_name = 'needs_reconciliation'
			)
	`
	var caps Capabilities
	err := s.db.QueryRow(ctx, query).Scan(&caps.History, &caps.Notifications, &caps.ReconciliationFlag)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Capabilities{}, nil
		}
		return Capabilities{}, fmt.Errorf("failed to probe capabilities: %w", err)
	}
	s.reconcileFlag.Store(caps.ReconciliationFlag)
	return caps, nil
}
