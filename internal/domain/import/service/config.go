package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/duplicate"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/normalizer"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/reconcile"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/resolver"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/ledger"
)

// BatchType is the import_history type of transaction imports.
const BatchType = "Data Transaksi"

// Config is everything an Engine decides once, at construction.
type Config struct {
	Location        *time.Location
	DuplicatePolicy duplicate.Policy
	Tolerance       decimal.Decimal
	MemberPolicy    resolver.MemberPolicy
	Reconcile       reconcile.Options
	// Capabilities is probed from the store when nil.
	Capabilities *ledger.Capabilities
	LoanCatalog  *resolver.LoanCatalog
	// User is recorded on import history rows.
	User      string
	BatchType string
	// Now is the engine clock.
	Now func() time.Time
}

// DefaultConfig warns on duplicates, prefers the closest member name and
// flags partially written transactions.
func DefaultConfig() Config {
	return Config{
		Location:        normalizer.LoadLocation(normalizer.DefaultLocation),
		DuplicatePolicy: duplicate.PolicyWarn,
		Tolerance:       duplicate.DefaultTolerance,
		MemberPolicy:    resolver.PolicyClosest,
		Reconcile:       reconcile.DefaultOptions(),
		User:            "Admin",
		BatchType:       BatchType,
		Now:             time.Now,
	}
}

// resolve fills unset fields and probes capabilities.
func (c Config) resolve(ctx context.Context, store ledger.Store, logger *slog.Logger) Config {
	def := DefaultConfig()
	if c.Location == nil {
		c.Location = def.Location
	}
	if c.DuplicatePolicy == "" {
		c.DuplicatePolicy = def.DuplicatePolicy
	}
	if !c.Tolerance.IsPositive() {
		c.Tolerance = def.Tolerance
	}
	if c.MemberPolicy == "" {
		c.MemberPolicy = def.MemberPolicy
	}
	if c.Reconcile.Mode == "" {
		c.Reconcile.Mode = def.Reconcile.Mode
	}
	if c.User == "" {
		c.User = def.User
	}
	if c.BatchType == "" {
		c.BatchType = def.BatchType
	}
	if c.Now == nil {
		c.Now = def.Now
	}
	if c.LoanCatalog == nil {
		c.LoanCatalog = resolver.DefaultLoanCatalog()
	}

	if c.Capabilities == nil {
		caps := ledger.Capabilities{}
		if prober, ok := store.(ledger.CapabilityProber); ok {
			probed, err := prober.ProbeCapabilities(ctx)
			if err != nil {
				logger.Warn("failed to probe ledger capabilities, optional tables disabled", "error", err)
			} else {
				caps = probed
			}
		} else {
			caps = ledger.AllCapabilities()
		}
		c.Capabilities = &caps
	}
	if aware, ok := store.(ledger.CapabilityAware); ok {
		aware.UseCapabilities(*c.Capabilities)
	}
	c.Reconcile.CanFlag = c.Capabilities.ReconciliationFlag
	return c
}
