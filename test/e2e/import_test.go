// Package e2etest runs whole import batches through the engine, the upload
// API and the scheduled inbox import against the in-memory ledger.
package e2etest

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/importerr"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/report"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/service"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/koperasi-ledger/pkg/cron"
	"github.com/FACorreiaa/koperasi-ledger/pkg/fixtures"
	"github.com/FACorreiaa/koperasi-ledger/pkg/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, store ledger.Store) *service.Engine {
	t.Helper()
	cfg := service.DefaultConfig()
	cfg.Location = time.UTC
	cfg.Reconcile.Retries = 1
	cfg.Reconcile.RetryBase = time.Millisecond
	return service.NewEngine(context.Background(), store, cfg, discardLogger())
}

func totalSavings(t *testing.T, store *ledger.MemoryStore, members []ledger.Member) decimal.Decimal {
	t.Helper()
	total := decimal.Zero
	for _, m := range members {
		accounts, err := store.ListSavingsAccounts(context.Background(), m.ID)
		require.NoError(t, err)
		for _, a := range accounts {
			total = total.Add(a.Balance)
		}
	}
	return total
}

// TestSeededBatch imports one deposit per generated member and checks that
// the ledger moved by exactly the imported total.
func TestSeededBatch(t *testing.T) {
	ctx := context.Background()
	gen := fixtures.NewGeneratorWithSeed(42)
	store := ledger.NewMemoryStore()
	members := gen.Seed(store, 12)

	before := totalSavings(t, store, members)

	rows := make([]fixtures.Row, 0, len(members))
	deposited := decimal.Zero
	for _, m := range members {
		accounts, err := store.ListSavingsAccounts(ctx, m.ID)
		require.NoError(t, err)
		require.NotEmpty(t, accounts)

		row := gen.DepositRow(m, accounts[0].ProductName)
		rows = append(rows, row)
		deposited = deposited.Add(decimal.NewFromInt(row.Amount.(int64)))
	}
	data, err := fixtures.Workbook(rows)
	require.NoError(t, err)

	var progress []int
	result, err := newEngine(t, store).ImportBytes(ctx, data, service.RunOptions{
		Source:   "seeded.xlsx",
		Progress: func(p int) { progress = append(progress, p) },
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, len(rows), result.Processed)
	assert.Empty(t, result.Errors)
	assert.Equal(t, len(rows), result.Created+result.Updated)
	require.NotEmpty(t, progress)
	assert.Equal(t, 100, progress[len(progress)-1])
	assert.IsNonDecreasing(t, progress)

	txs := store.Transactions()
	require.Len(t, txs, len(rows))
	for _, tx := range txs {
		require.NotNil(t, tx.BatchID)
		assert.Equal(t, result.BatchID, *tx.BatchID)
		assert.True(t, tx.BalanceAfter.Equal(tx.BalanceBefore.Add(tx.Amount)),
			"row %s: %s + %s != %s", tx.ReferenceNumber, tx.BalanceBefore, tx.Amount, tx.BalanceAfter)
	}

	after := totalSavings(t, store, members)
	assert.True(t, after.Equal(before.Add(deposited)), "before %s + %s != after %s", before, deposited, after)

	history, err := store.ListImportHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ledger.HistorySucceeded, history[0].Status)
	assert.Equal(t, len(rows), history[0].Count)
}

// TestCorrectionRoundTrip exports the rejected rows, fixes them in the
// correction workbook and imports that workbook as a new batch.
func TestCorrectionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	ani := store.AddMember(ledger.Member{Name: "Ani Rahmawati"})
	account := store.AddSavingsAccount(ledger.SavingsAccount{
		MemberID:    ani.ID,
		ProductName: "Tabungan Sukarela",
		Balance:     decimal.NewFromInt(200000),
		Status:      ledger.StatusActive,
		IsDefault:   true,
	})

	data, err := fixtures.Workbook([]fixtures.Row{
		{Member: "Ani Rahmawati", Direction: "masuk", Category: "setoran", Amount: 25000, Account: "Tabungan Sukarela", Date: "03/06/2024"},
		{Member: "Anu Rahmawatu", Direction: "masuk", Category: "setoran", Amount: 10000, Account: "Tabungan Sukarela", Date: "03/06/2024"},
		{Member: "Ani Rahmawati", Direction: "keluar", Category: "penarikan", Amount: "dua ribu", Account: "Tabungan Sukarela", Date: "03/06/2024"},
	})
	require.NoError(t, err)

	engine := newEngine(t, store)
	first, err := engine.ImportBytes(ctx, data, service.RunOptions{Source: "juni.xlsx"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)
	require.Len(t, first.Errors, 2)
	assert.Equal(t, importerr.KindMemberNotFound, first.Errors[0].Kind)
	assert.Equal(t, importerr.KindInvalidAmount, first.Errors[1].Kind)

	var buf bytes.Buffer
	require.NoError(t, report.WriteCorrectionWorkbook(&buf, first))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	sheet := f.GetSheetList()[0]
	require.NoError(t, f.SetCellValue(sheet, "A2", "Ani Rahmawati"))
	require.NoError(t, f.SetCellValue(sheet, "D3", 2000))
	fixed, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	second, err := engine.ImportBytes(ctx, fixed.Bytes(), service.RunOptions{Source: "juni-koreksi.xlsx"})
	require.NoError(t, err)
	assert.Empty(t, second.Errors)
	assert.Equal(t, 2, second.Created)

	// 200000 + 25000 + 10000 - 2000
	assert.True(t, store.SavingsBalance(account.ID).Equal(decimal.NewFromInt(233000)))
	assert.Len(t, store.Transactions(), 3)
}

// TestScheduledInboxImport drives the daily job over a real engine.
func TestScheduledInboxImport(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	budi := store.AddMember(ledger.Member{Name: "Budi Hartono"})
	store.AddSavingsAccount(ledger.SavingsAccount{
		MemberID:    budi.ID,
		ProductName: "Tabungan Wajib",
		Balance:     decimal.Zero,
		Status:      ledger.StatusActive,
		IsDefault:   true,
	})

	inbox, err := storage.NewLocalInbox(t.TempDir())
	require.NoError(t, err)

	data, err := fixtures.Workbook([]fixtures.Row{
		{Member: "Budi Hartono", Direction: "masuk", Category: "setoran", Amount: 50000, Account: "Tabungan Wajib", Date: "10/06/2024"},
	})
	require.NoError(t, err)
	saved, err := inbox.Save(ctx, "harian.xlsx", "", bytes.NewReader(data))
	require.NoError(t, err)
	_, err = inbox.Save(ctx, "catatan.txt", "", bytes.NewReader([]byte("bukan workbook")))
	require.NoError(t, err)

	scheduler := cron.NewScheduler(inbox, newEngine(t, store), "", time.UTC, discardLogger())
	imported, failed, err := scheduler.ImportPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, failed)

	rc, info, err := inbox.Open(ctx, saved.ID)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, storage.StatusProcessed, info.Status)
	require.NotNil(t, info.BatchID)

	txs := store.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, info.BatchID, txs[0].BatchID)

	history, err := store.ListImportHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
}
