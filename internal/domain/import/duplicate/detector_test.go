package duplicate

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/ledger"
)

func TestIndex_Match(t *testing.T) {
	member := uuid.New()
	other := uuid.New()
	existing := ledger.Transaction{
		ID:        uuid.New(),
		MemberID:  member,
		Target:    ledger.TargetSavings,
		Direction: ledger.DirectionInbound,
		Amount:    decimal.NewFromInt(150000),
	}
	idx := NewIndex([]ledger.Transaction{existing}, decimal.Zero)
	assert.Equal(t, 1, idx.Len())

	tests := []struct {
		name string
		c    Candidate
		want bool
	}{
		{"same posting", Candidate{member, ledger.DirectionInbound, ledger.TargetSavings, decimal.NewFromInt(150000)}, true},
		{"within tolerance", Candidate{member, ledger.DirectionInbound, ledger.TargetSavings, decimal.RequireFromString("150000.005")}, true},
		{"outside tolerance", Candidate{member, ledger.DirectionInbound, ledger.TargetSavings, decimal.RequireFromString("150000.02")}, false},
		{"other member", Candidate{other, ledger.DirectionInbound, ledger.TargetSavings, decimal.NewFromInt(150000)}, false},
		{"other direction", Candidate{member, ledger.DirectionOutbound, ledger.TargetSavings, decimal.NewFromInt(150000)}, false},
		{"other target", Candidate{member, ledger.DirectionInbound, ledger.TargetLoan, decimal.NewFromInt(150000)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, ok := idx.Match(tt.c)
			assert.Equal(t, tt.want, ok)
			if ok {
				assert.Equal(t, existing.ID, tx.ID)
			}
		})
	}
}

func TestIndex_Nil(t *testing.T) {
	var idx *Index
	_, ok := idx.Match(Candidate{Amount: decimal.NewFromInt(1)})
	assert.False(t, ok)
	assert.Zero(t, idx.Len())
}

func TestSnapshot_TodayOnly(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	now := time.Date(2024, 3, 12, 9, 30, 0, 0, loc)
	store := ledger.NewMemoryStore()
	member := uuid.New()

	insert := func(createdAt time.Time) {
		_, err := store.InsertTransaction(context.Background(), &ledger.Transaction{
			ID:        uuid.New(),
			MemberID:  member,
			Target:    ledger.TargetSavings,
			Direction: ledger.DirectionInbound,
			Amount:    decimal.NewFromInt(1000),
			CreatedAt: createdAt,
		})
		require.NoError(t, err)
	}
	insert(time.Date(2024, 3, 12, 0, 5, 0, 0, loc))
	insert(time.Date(2024, 3, 11, 23, 59, 0, 0, loc))
	insert(time.Date(2024, 3, 13, 0, 0, 0, 0, loc))

	idx, err := Snapshot(context.Background(), store, now, loc, DefaultTolerance)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
}

func TestSnapshot_Error(t *testing.T) {
	store := ledger.NewMemoryStore()
	store.FailSnapshot = true

	_, err := Snapshot(context.Background(), store, time.Now(), time.UTC, DefaultTolerance)
	require.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, PolicyBlock, ParsePolicy(" Block "))
	assert.Equal(t, PolicyWarn, ParsePolicy("warn"))
	assert.Equal(t, PolicyWarn, ParsePolicy(""))
}

func TestIndex_Add(t *testing.T) {
	idx := NewIndex(nil, DefaultTolerance)
	member := uuid.New()
	c := Candidate{member, ledger.DirectionOutbound, ledger.TargetSavings, decimal.NewFromInt(50000)}

	_, ok := idx.Match(c)
	require.False(t, ok)

	idx.Add(ledger.Transaction{MemberID: member, Direction: ledger.DirectionOutbound, Target: ledger.TargetSavings, Amount: decimal.NewFromInt(50000)})
	_, ok = idx.Match(c)
	assert.True(t, ok)
	assert.Equal(t, 1, idx.Len())
}
