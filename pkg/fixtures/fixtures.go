// Package fixtures generates realistic cooperative ledger data and import
// workbooks for tests and local demos.
package fixtures

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/ledger"
)

// Generator builds members, accounts and import rows using gofakeit.
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator creates a generator with a random seed.
func NewGenerator() *Generator {
	return &Generator{faker: gofakeit.New(0)}
}

// NewGeneratorWithSeed creates a generator with a specific seed for reproducibility.
func NewGeneratorWithSeed(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// ============================================================================
// Ledger entities
// ============================================================================

var savingsProducts = []string{"Tabungan Wajib", "Tabungan Pokok", "Tabungan Sukarela", "Tabungan Berjangka"}

var loanProducts = []string{"Pinjaman Umum", "Pinjaman Usaha", "Pinjaman Pendidikan", "Pinjaman Darurat", "Pinjaman Kendaraan"}

// Member returns a member with a unique-looking name and account number.
func (g *Generator) Member() ledger.Member {
	return ledger.Member{
		Name:          g.faker.FirstName() + " " + g.faker.LastName(),
		AccountNumber: g.faker.Numerify("KSP-########"),
	}
}

// Rupiah returns a whole-thousand amount between min and max rupiah.
func (g *Generator) Rupiah(min, max int64) decimal.Decimal {
	thousands := g.faker.Number(int(min/1000), int(max/1000))
	return decimal.NewFromInt(int64(thousands) * 1000)
}

// SavingsAccount returns an active savings account for member.
func (g *Generator) SavingsAccount(member ledger.Member, isDefault bool) ledger.SavingsAccount {
	return ledger.SavingsAccount{
		MemberID:    member.ID,
		ProductName: savingsProducts[g.faker.Number(0, len(savingsProducts)-1)],
		Balance:     g.Rupiah(100000, 10000000),
		Status:      ledger.StatusActive,
		IsDefault:   isDefault,
	}
}

// Loan returns an active loan for member with part of the principal repaid.
func (g *Generator) Loan(member ledger.Member) ledger.Loan {
	total := g.Rupiah(1000000, 50000000)
	paid := total.Mul(decimal.NewFromFloat(g.faker.Float64Range(0, 0.8))).Round(-3)
	due := time.Now().AddDate(0, g.faker.Number(3, 36), 0)
	return ledger.Loan{
		MemberID:         member.ID,
		ProductLabel:     loanProducts[g.faker.Number(0, len(loanProducts)-1)],
		TotalAmount:      total,
		RemainingBalance: total.Sub(paid),
		Status:           ledger.LoanActive,
		DueDate:          &due,
	}
}

// Seed registers count members, each with one default savings account and,
// for every other member, a loan.
func (g *Generator) Seed(store *ledger.MemoryStore, count int) []ledger.Member {
	members := make([]ledger.Member, 0, count)
	for i := 0; i < count; i++ {
		m := store.AddMember(g.Member())
		store.AddSavingsAccount(g.SavingsAccount(m, true))
		if i%2 == 0 {
			store.AddLoan(g.Loan(m))
		}
		members = append(members, m)
	}
	return members
}

// ============================================================================
// Import rows
// ============================================================================

// Row is one line of the transaction import template. Amount and Date may be
// strings or numbers, matching what operators actually type.
type Row struct {
	Member      string
	Direction   string
	Category    string
	Amount      any
	Account     string
	Date        any
	Description string
}

// Header is the import template header row.
var Header = []any{"Nama Anggota", "Jenis Transaksi", "Kategori", "Jumlah", "Rekening/Pinjaman", "Tanggal", "Deskripsi"}

// DepositRow returns a savings deposit for member dated within the last month.
func (g *Generator) DepositRow(member ledger.Member, product string) Row {
	date := g.faker.DateRange(time.Now().AddDate(0, -1, 0), time.Now())
	return Row{
		Member:      member.Name,
		Direction:   string(ledger.DirectionInbound),
		Category:    ledger.CategoryDeposit,
		Amount:      g.Rupiah(10000, 2000000).IntPart(),
		Account:     product,
		Date:        date.Format("02/01/2006"),
		Description: g.faker.RandomString([]string{"Setoran bulanan", "Setoran tunai", ""}),
	}
}

// Workbook renders rows into an xlsx file with the template header.
func Workbook(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	header := append([]any(nil), Header...)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []any{r.Member, r.Direction, r.Category, r.Amount, r.Account, r.Date, r.Description}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
