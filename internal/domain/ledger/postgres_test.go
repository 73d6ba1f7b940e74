package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_SearchMembers(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	first, second := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT id, nama, COALESCE\(nomor_rekening, ''\), created_at\s+FROM anggota\s+WHERE nama ILIKE`).
		WithArgs("siti", 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "nama", "nomor_rekening", "created_at"}).
			AddRow(first, "Siti Aminah", "KOP-0001", now).
			AddRow(second, "Siti Nurhaliza", "KOP-0002", now))

	store := NewPostgresStore(mock)
	members, err := store.SearchMembers(context.Background(), "siti", 10)

	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, first, members[0].ID)
	assert.Equal(t, "Siti Nurhaliza", members[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SearchMembers_EscapesPattern(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`WHERE nama ILIKE '%' \|\| \$1 \|\| '%' ESCAPE '\\'`).
		WithArgs(`50\%\_a\\b`, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "nama", "nomor_rekening", "created_at"}))

	store := NewPostgresStore(mock)
	members, err := store.SearchMembers(context.Background(), `50%_a\b`, 5)

	require.NoError(t, err)
	assert.Empty(t, members)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindMembersByExactName_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM anggota\s+WHERE nama = \$1`).
		WithArgs("Budi").
		WillReturnError(errors.New("connection reset"))

	store := NewPostgresStore(mock)
	_, err = store.FindMembersByExactName(context.Background(), "Budi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query members")
}

func TestPostgresStore_ListSavingsAccounts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	memberID := uuid.New()
	accountID := uuid.New()
	productID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`FROM tabungan t\s+LEFT JOIN jenis_tabungan j`).
		WithArgs(memberID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "anggota_id", "jenis_tabungan_id", "nama", "saldo", "status", "is_default", "created_at",
		}).AddRow(accountID, memberID, productID, "Tabungan Sukarela", "250000.50", "aktif", true, now))

	store := NewPostgresStore(mock)
	accounts, err := store.ListSavingsAccounts(context.Background(), memberID)

	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "Tabungan Sukarela", accounts[0].ProductName)
	assert.True(t, accounts[0].Balance.Equal(decimal.RequireFromString("250000.5")))
	assert.True(t, accounts[0].Active())
	assert.True(t, accounts[0].IsDefault)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListLoans(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	memberID := uuid.New()
	loanID := uuid.New()
	now := time.Now()
	due := now.AddDate(1, 0, 0)

	mock.ExpectQuery(`FROM pembiayaan\s+WHERE anggota_id = \$1\s+ORDER BY created_at DESC`).
		WithArgs(memberID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "anggota_id", "jenis_pembiayaan", "jumlah", "sisa_pembayaran", "status", "jatuh_tempo", "created_at",
		}).AddRow(loanID, memberID, "Pinjaman Usaha", "10000000.00", "4000000.00", "aktif", &due, now))

	store := NewPostgresStore(mock)
	loans, err := store.ListLoans(context.Background(), memberID)

	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, LoanActive, loans[0].Status)
	assert.True(t, loans[0].RemainingBalance.Equal(decimal.NewFromInt(4000000)))
	require.NotNil(t, loans[0].DueDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLoanBalance_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	loanID := uuid.New()

	mock.ExpectExec(`UPDATE pembiayaan`).
		WithArgs(loanID, pgxmock.AnyArg(), "lunas").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewPostgresStore(mock)
	err = store.UpdateLoanBalance(context.Background(), loanID, decimal.Zero, LoanPaidOff)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateSavingsBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	accountID := uuid.New()

	mock.ExpectExec(`UPDATE tabungan SET saldo = \$2`).
		WithArgs(accountID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewPostgresStore(mock)
	err = store.UpdateSavingsBalance(context.Background(), accountID, decimal.NewFromInt(-5000))

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertTransaction(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		wantInserted bool
	}{
		{"new row", 1, true},
		{"replayed id", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tx := &Transaction{
				ID:        uuid.New(),
				MemberID:  uuid.New(),
				Target:    TargetSavings,
				TargetID:  uuid.New(),
				Direction: DirectionInbound,
				Category:  CategoryDeposit,
				Amount:    decimal.NewFromInt(100000),
				PostedAt:  time.Now(),
				CreatedAt: time.Now(),
			}

			args := make([]any, 15)
			for i := range args {
				args[i] = pgxmock.AnyArg()
			}
			mock.ExpectExec(`(?s)INSERT INTO transaksi.*ON CONFLICT \(id\) DO NOTHING`).
				WithArgs(args...).
				WillReturnResult(pgxmock.NewResult("INSERT", tt.rowsAffected))

			store := NewPostgresStore(mock)
			inserted, err := store.InsertTransaction(context.Background(), tx)

			require.NoError(t, err)
			assert.Equal(t, tt.wantInserted, inserted)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_ListLoans_BadNumeric(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	memberID := uuid.New()
	mock.ExpectQuery(`FROM pembiayaan`).
		WithArgs(memberID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "anggota_id", "jenis_pembiayaan", "jumlah", "sisa_pembayaran", "status", "jatuh_tempo", "created_at",
		}).AddRow(uuid.New(), memberID, "Pinjaman Usaha", "NaN", "0", "aktif", (*time.Time)(nil), time.Now()))

	store := NewPostgresStore(mock)
	_, err = store.ListLoans(context.Background(), memberID)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse jumlah")
}

func transactionRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "nomor_referensi", "anggota_id", "tipe_transaksi", "kategori", "source_type", "target_id",
		"jumlah", "sebelum", "sesudah", "deskripsi", "needs_reconciliation", "tanggal", "created_at",
	})
}

func TestPostgresStore_ListTransactionsCreatedBetween(t *testing.T) {
	from := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	tests := []struct {
		name    string
		caps    *Capabilities
		column  string
		flagged bool
	}{
		{"column absent", nil, `false AS needs_reconciliation`, false},
		{"column reported absent", &Capabilities{History: true}, `false AS needs_reconciliation`, false},
		{"column present", &Capabilities{ReconciliationFlag: true}, `needs_reconciliation AS needs_reconciliation`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			store := NewPostgresStore(mock)
			if tt.caps != nil {
				store.UseCapabilities(*tt.caps)
			}

			id, member, target := uuid.New(), uuid.New(), uuid.New()
			mock.ExpectQuery(`(?s)`+tt.column+`.*FROM transaksi\s+WHERE created_at >= \$1 AND created_at < \$2`).
				WithArgs(from, to).
				WillReturnRows(transactionRows().AddRow(id, "IMP-1", member, "masuk", CategoryDeposit, "tabungan", target,
					"1234567.89", "0.10", "1234567.99", "", tt.flagged, from, from.Add(time.Hour)))

			txs, err := store.ListTransactionsCreatedBetween(context.Background(), from, to)

			require.NoError(t, err)
			require.Len(t, txs, 1)
			assert.Equal(t, DirectionInbound, txs[0].Direction)
			assert.Equal(t, target, txs[0].TargetID)
			assert.Equal(t, "1234567.89", txs[0].Amount.StringFixed(2))
			assert.True(t, txs[0].BalanceAfter.Equal(decimal.RequireFromString("1234567.99")))
			assert.True(t, txs[0].BalanceBefore.Add(txs[0].Amount).Equal(txs[0].BalanceAfter))
			assert.Equal(t, tt.flagged, txs[0].NeedsReconciliation)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_CapabilityCheckSelectsReconciliationColumn(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`to_regclass`).
		WillReturnRows(pgxmock.NewRows([]string{"history", "notifications", "flag"}).
			AddRow(true, true, false))
	mock.ExpectQuery(`false AS needs_reconciliation`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(transactionRows())

	store := NewPostgresStore(mock)
	_, err = store.ProbeCapabilities(context.Background())
	require.NoError(t, err)

	txs, err := store.ListTransactionsCreatedBetween(context.Background(), time.Now(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteTransaction(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		wantErr      error
	}{
		{"deleted", 1, nil},
		{"missing", 0, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			id := uuid.New()
			mock.ExpectExec(`DELETE FROM transaksi WHERE id = \$1`).
				WithArgs(id).
				WillReturnResult(pgxmock.NewResult("DELETE", tt.rowsAffected))

			err = NewPostgresStore(mock).DeleteTransaction(context.Background(), id)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_FlagForReconciliation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	flagged, missing := uuid.New(), uuid.New()
	mock.ExpectExec(`UPDATE transaksi SET needs_reconciliation = true WHERE id = \$1`).
		WithArgs(flagged).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE transaksi SET needs_reconciliation = true`).
		WithArgs(missing).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewPostgresStore(mock)
	require.NoError(t, store.FlagForReconciliation(context.Background(), flagged))
	assert.ErrorIs(t, store.FlagForReconciliation(context.Background(), missing), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordImport(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	entry := HistoryEntry{
		ID:        uuid.New(),
		BatchID:   uuid.New(),
		Type:      "transaksi",
		Count:     12,
		Status:    HistorySucceeded,
		Details:   "12 baris",
		User:      "admin",
		CreatedAt: time.Now(),
	}
	mock.ExpectExec(`INSERT INTO import_history`).
		WithArgs(entry.ID, entry.BatchID, entry.Type, entry.Count, entry.Status, entry.Details, entry.User, entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO import_history`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("relation \"import_history\" does not exist"))

	store := NewPostgresStore(mock)
	require.NoError(t, store.RecordImport(context.Background(), entry))

	err = store.RecordImport(context.Background(), entry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record import history")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListImportHistory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	newest, oldest := uuid.New(), uuid.New()
	mock.ExpectQuery(`FROM import_history\s+ORDER BY created_at DESC\s+LIMIT \$1`).
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows([]string{"id", "batch_id", "type", "count", "status", "details", "user", "created_at"}).
			AddRow(newest, uuid.New(), "transaksi", 3, HistorySucceeded, "", "admin", now).
			AddRow(oldest, uuid.New(), "transaksi", 0, HistoryFailed, "ParseError: file kosong", "admin", now.Add(-time.Hour)))

	entries, err := NewPostgresStore(mock).ListImportHistory(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, newest, entries[0].ID)
	assert.Equal(t, 3, entries[0].Count)
	assert.Equal(t, HistoryFailed, entries[1].Status)
	assert.Equal(t, "ParseError: file kosong", entries[1].Details)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateNotification(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	n := Notification{
		ID:            uuid.New(),
		MemberID:      uuid.New(),
		TransactionID: uuid.New(),
		Title:         "Setoran diterima",
		Message:       "Setoran Rp 50.000 ke Tabungan Sukarela",
		CreatedAt:     time.Now(),
	}
	mock.ExpectExec(`INSERT INTO transaksi_notifikasi \(id, anggota_id, transaksi_id, judul, pesan, is_read, created_at\)`).
		WithArgs(n.ID, n.MemberID, n.TransactionID, n.Title, n.Message, n.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewPostgresStore(mock).CreateNotification(context.Background(), n)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ProbeCapabilities(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`to_regclass`).
		WillReturnRows(pgxmock.NewRows([]string{"history", "notifications", "flag"}).
			AddRow(true, false, true))

	store := NewPostgresStore(mock)
	caps, err := store.ProbeCapabilities(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Capabilities{History: true, Notifications: false, ReconciliationFlag: true}, caps)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_TargetColumns(t *testing.T) {
	id := uuid.New()
	savings := Transaction{Target: TargetSavings, TargetID: id}
	loan := Transaction{Target: TargetLoan, TargetID: id}

	require.NotNil(t, savings.SavingsAccountID())
	assert.Nil(t, savings.LoanID())
	require.NotNil(t, loan.LoanID())
	assert.Nil(t, loan.SavingsAccountID())
	assert.Equal(t, id, *loan.LoanID())
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		raw  string
		want Direction
		ok   bool
	}{
		{"masuk", DirectionInbound, true},
		{" Masuk ", DirectionInbound, true},
		{"KELUAR", DirectionOutbound, true},
		{"transfer", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseDirection(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
