package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/config"
	"github.com/jmertens/fund-accounting-engine/internal/model"
	"github.com/jmertens/fund-accounting-engine/internal/repository"
)

// TaxService books realized gains on redemptions and aggregates them for
// quarterly settlement. The active policy decides when tax is collected:
// "withholding" deducts it from proceeds at processing time, "quarterly"
// books the gain with zero tax due and settles per calendar quarter.
type TaxService struct {
	taxRepo *repository.TaxEventRepository
	cfg     config.TaxConfig
}

// NewTaxService creates a new TaxService with the provided dependencies.
func NewTaxService(taxRepo *repository.TaxEventRepository, cfg config.TaxConfig) *TaxService {
	return &TaxService{taxRepo: taxRepo, cfg: cfg}
}

// Policy returns the active collection policy.
func (s *TaxService) Policy() string {
	return string(s.cfg.Policy)
}

// Rate returns the flat tax rate applied to realized gains.
func (s *TaxService) Rate() decimal.Decimal {
	return s.cfg.Rate
}

// ComputeAndRecord books the realized-gain event for one redemption, inside the
// caller's transaction so the event commits or rolls back with the ledger entry
// that produced it. currentValue and netInvestment are the investor's position
// BEFORE the redemption was applied. Returns nil without writing anything when
// the redemption realizes no gain.
//
// The realized portion is proportional: withdrawing x of a position worth v
// realizes x/v of the whole unrealized gain.
func (s *TaxService) ComputeAndRecord(
	ctx context.Context,
	tx *sql.Tx,
	investorID string,
	date time.Time,
	withdrawalAmount, currentValue, netInvestment decimal.Decimal,
	ledgerEntryID string,
) (*model.TaxEvent, error) {
	realized := realizedGain(withdrawalAmount, currentValue, netInvestment)
	if !realized.IsPositive() {
		return nil, nil
	}

	taxDue := decimal.Zero
	if s.cfg.Policy == config.TaxPolicyWithholding {
		taxDue = realized.Mul(s.cfg.Rate).Round(2)
	}

	event := &model.TaxEvent{
		ID:               uuid.New().String(),
		InvestorID:       investorID,
		Date:             date,
		WithdrawalAmount: withdrawalAmount,
		RealizedGain:     realized,
		TaxDue:           taxDue,
		Policy:           string(s.cfg.Policy),
		LedgerEntryID:    ledgerEntryID,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.taxRepo.WithTx(tx).Insert(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// Compensate books the negating counterpart of an existing event when the
// redemption that produced it is reversed, inside the caller's transaction.
func (s *TaxService) Compensate(ctx context.Context, tx *sql.Tx, original *model.TaxEvent, date time.Time, reversalEntryID string) (*model.TaxEvent, error) {
	event := &model.TaxEvent{
		ID:               uuid.New().String(),
		InvestorID:       original.InvestorID,
		Date:             date,
		WithdrawalAmount: original.WithdrawalAmount.Neg(),
		RealizedGain:     original.RealizedGain.Neg(),
		TaxDue:           original.TaxDue.Neg(),
		Policy:           original.Policy,
		LedgerEntryID:    reversalEntryID,
		CompensationOf:   original.ID,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.taxRepo.WithTx(tx).Insert(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// Preview estimates the after-tax amount an investor could withdraw today.
// The estimate always applies the flat rate, regardless of policy: under the
// quarterly policy the tax is deferred, not avoided.
func (s *TaxService) Preview(investor *model.Investor, nav *model.NavRecord) *model.EligibleWithdrawal {
	currentValue := investor.CurrentShares.Mul(nav.NavPerShare).Round(2)
	unrealized := currentValue.Sub(investor.NetInvestment)
	if unrealized.IsNegative() {
		unrealized = decimal.Zero
	}
	estimatedTax := unrealized.Mul(s.cfg.Rate).Round(2)

	return &model.EligibleWithdrawal{
		InvestorID:     investor.ID,
		CurrentValue:   currentValue,
		NetInvestment:  investor.NetInvestment,
		UnrealizedGain: unrealized,
		EstimatedTax:   estimatedTax,
		Eligible:       currentValue.Sub(estimatedTax),
		NavPerShare:    nav.NavPerShare,
		NavDate:        nav.Date,
	}
}

// QuarterlySummary aggregates realized gains for one settlement quarter.
// Compensating events carry negative gains and net out naturally. The quarter's
// tax due is recomputed from the net gain so that withheld and deferred events
// aggregate the same way; a net loss owes nothing.
func (s *TaxService) QuarterlySummary(ctx context.Context, year, quarter int) (*model.QuarterlyTaxSummary, error) {
	events, err := s.taxRepo.GetByQuarter(ctx, year, quarter)
	if err != nil {
		return nil, err
	}

	total := repository.SumRealizedGains(events)
	taxDue := decimal.Zero
	if total.IsPositive() {
		taxDue = total.Mul(s.cfg.Rate).Round(2)
	}

	return &model.QuarterlyTaxSummary{
		Year:              year,
		Quarter:           quarter,
		TotalRealizedGain: total,
		TaxDue:            taxDue,
		EventCount:        len(events),
	}, nil
}

// EventsForInvestor returns the investor's tax events in posting order.
func (s *TaxService) EventsForInvestor(ctx context.Context, investorID string) ([]model.TaxEvent, error) {
	return s.taxRepo.GetByInvestor(ctx, investorID)
}

// realizedGain computes the gain realized by withdrawing withdrawalAmount from
// a position currently worth currentValue with cost basis netInvestment.
func realizedGain(withdrawalAmount, currentValue, netInvestment decimal.Decimal) decimal.Decimal {
	if !currentValue.IsPositive() {
		return decimal.Zero
	}
	unrealized := currentValue.Sub(netInvestment)
	if !unrealized.IsPositive() {
		return decimal.Zero
	}
	proportion := withdrawalAmount.Div(currentValue)
	return unrealized.Mul(proportion).Round(2)
}
