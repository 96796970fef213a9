package testutil

import (
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/brokerage"
	"github.com/jmertens/fund-accounting-engine/internal/config"
	"github.com/jmertens/fund-accounting-engine/internal/repository"
	"github.com/jmertens/fund-accounting-engine/internal/service"
)

// MakeID returns a fresh UUID string.
func MakeID() string {
	return uuid.New().String()
}

// MustDate parses a YYYY-MM-DD date, failing the test on bad input.
func MustDate(t *testing.T, date string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		t.Fatalf("failed to parse date %q: %v", date, err)
	}
	return parsed
}

// SilentLogger returns a logger that discards everything, for wiring services
// under test.
func SilentLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// WithholdingTaxConfig returns the default tax configuration used by tests:
// withholding policy at a 37% flat rate.
func WithholdingTaxConfig() config.TaxConfig {
	return config.TaxConfig{
		Policy: config.TaxPolicyWithholding,
		Rate:   decimal.RequireFromString("0.37"),
	}
}

// QuarterlyTaxConfig returns a quarterly-policy tax configuration at a 37%
// flat rate.
func QuarterlyTaxConfig() config.TaxConfig {
	return config.TaxConfig{
		Policy: config.TaxPolicyQuarterly,
		Rate:   decimal.RequireFromString("0.37"),
	}
}

// NewTestTaxService wires a TaxService against the test database.
func NewTestTaxService(t *testing.T, db *sql.DB, cfg config.TaxConfig) *service.TaxService {
	t.Helper()
	return service.NewTaxService(repository.NewTaxEventRepository(db), cfg)
}

// NewTestLedgerService wires a LedgerService against the test database.
func NewTestLedgerService(t *testing.T, db *sql.DB, cfg config.TaxConfig) *service.LedgerService {
	t.Helper()

	taxRepo := repository.NewTaxEventRepository(db)
	return service.NewLedgerService(
		db,
		repository.NewLedgerRepository(db),
		repository.NewInvestorRepository(db),
		taxRepo,
		service.NewTaxService(taxRepo, cfg),
		SilentLogger(),
	)
}

// NewTestFundFlowService wires a FundFlowService against the test database.
func NewTestFundFlowService(t *testing.T, db *sql.DB, cfg config.TaxConfig) *service.FundFlowService {
	t.Helper()

	taxRepo := repository.NewTaxEventRepository(db)
	taxService := service.NewTaxService(taxRepo, cfg)
	ledgerService := service.NewLedgerService(
		db,
		repository.NewLedgerRepository(db),
		repository.NewInvestorRepository(db),
		taxRepo,
		taxService,
		SilentLogger(),
	)
	return service.NewFundFlowService(
		db,
		repository.NewFundFlowRepository(db),
		repository.NewInvestorRepository(db),
		repository.NewRawTransactionRepository(db),
		repository.NewNavRepository(db),
		ledgerService,
		taxService,
		SilentLogger(),
	)
}

// NewTestEtlService wires an EtlService against the test database. Sources may
// be empty for transform/load-only tests.
func NewTestEtlService(t *testing.T, db *sql.DB, sources ...brokerage.Source) *service.EtlService {
	t.Helper()

	return service.NewEtlService(
		brokerage.NewRegistry(sources...),
		repository.NewRawTransactionRepository(db),
		repository.NewTradeRepository(db),
		SilentLogger(),
	)
}
