package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
	"github.com/jmertens/fund-accounting-engine/internal/model"
	"github.com/jmertens/fund-accounting-engine/internal/repository"
)

// LedgerService owns the append-only share ledger and the investor aggregates
// derived from it. Every posting pairs a ledger insert with the aggregate
// update in one transaction so the two can never drift apart.
type LedgerService struct {
	db           *sql.DB
	ledgerRepo   *repository.LedgerRepository
	investorRepo *repository.InvestorRepository
	taxRepo      *repository.TaxEventRepository
	tax          *TaxService
	log          zerolog.Logger
}

// NewLedgerService creates a new LedgerService with the provided dependencies.
func NewLedgerService(
	db *sql.DB,
	ledgerRepo *repository.LedgerRepository,
	investorRepo *repository.InvestorRepository,
	taxRepo *repository.TaxEventRepository,
	tax *TaxService,
	log zerolog.Logger,
) *LedgerService {
	return &LedgerService{
		db:           db,
		ledgerRepo:   ledgerRepo,
		investorRepo: investorRepo,
		taxRepo:      taxRepo,
		tax:          tax,
		log:          log,
	}
}

// Post appends one ledger entry in its own transaction. amount is the positive
// dollar figure of the movement; the entry's stored signs follow from kind.
func (s *LedgerService) Post(ctx context.Context, investorID, kind string, amount, navPerShare decimal.Decimal, date time.Time) (*model.LedgerEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	investor, err := s.investorRepo.WithTx(tx).GetInvestor(ctx, investorID)
	if err != nil {
		return nil, err
	}

	entry, err := s.PostInTx(ctx, tx, investor, kind, amount, navPerShare, "", date)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entry, nil
}

// PostInTx appends one ledger entry and updates the investor's aggregates
// inside the caller's transaction. The investor must have been loaded within
// the same transaction so the share math works from a consistent snapshot.
//
// Issuance: shares = amount / nav, rounded to 4 decimal places only at this
// boundary. Redemption is proportional: withdrawing x of a position worth v
// redeems x/v of the shares and retires x/v of the cost basis, so partial
// withdrawals leave the remaining position's unrealized gain intact.
func (s *LedgerService) PostInTx(
	ctx context.Context,
	tx *sql.Tx,
	investor *model.Investor,
	kind string,
	amount, navPerShare decimal.Decimal,
	flowRequestID string,
	date time.Time,
) (*model.LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, apperrors.ErrNegativeAmount
	}
	if !navPerShare.IsPositive() {
		return nil, fmt.Errorf("nav per share %s is not positive: %w", navPerShare, apperrors.ErrNavRecordNotFound)
	}

	entry := &model.LedgerEntry{
		ID:            uuid.New().String(),
		InvestorID:    investor.ID,
		Date:          date,
		Kind:          kind,
		NavPerShare:   navPerShare,
		FlowRequestID: flowRequestID,
		CreatedAt:     time.Now().UTC(),
	}

	switch kind {
	case model.EntryInitial, model.EntryContribution:
		entry.Amount = amount
		entry.SharesTransacted = amount.DivRound(navPerShare, 4)
		entry.BasisDelta = amount

	case model.EntryWithdrawal:
		currentValue := investor.CurrentShares.Mul(navPerShare).Round(2)
		if amount.GreaterThan(currentValue) {
			return nil, &apperrors.InsufficientSharesError{
				InvestorID:   investor.ID,
				Requested:    amount,
				CurrentValue: currentValue,
			}
		}

		var sharesRedeemed, basisRetired decimal.Decimal
		if amount.Equal(currentValue) {
			// Full redemption closes the position exactly, no rounding dust.
			sharesRedeemed = investor.CurrentShares
			basisRetired = investor.NetInvestment
		} else {
			proportion := amount.Div(currentValue)
			sharesRedeemed = investor.CurrentShares.Mul(proportion).Round(4)
			basisRetired = investor.NetInvestment.Mul(proportion).Round(2)
		}

		entry.Amount = amount.Neg()
		entry.SharesTransacted = sharesRedeemed.Neg()
		entry.BasisDelta = basisRetired.Neg()

	default:
		return nil, fmt.Errorf("ledger kind %q: %w", kind, apperrors.ErrInvalidFlowType)
	}

	if err := s.ledgerRepo.WithTx(tx).Insert(ctx, entry); err != nil {
		return nil, err
	}

	newShares := investor.CurrentShares.Add(entry.SharesTransacted)
	newBasis := investor.NetInvestment.Add(entry.BasisDelta)
	if err := s.investorRepo.WithTx(tx).UpdateAggregates(ctx, investor.ID, newShares, newBasis); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("investor_id", investor.ID).
		Str("kind", kind).
		Str("shares", entry.SharesTransacted.String()).
		Str("amount", entry.Amount.String()).
		Msg("ledger entry posted")

	return entry, nil
}

// Reverse appends the negating counterpart of an existing entry and re-derives
// the investor's aggregates as exact sums over the full ledger, so the reversal
// lands on the correct state even when other entries were posted in between.
// If the original redemption booked a tax event, a compensating event is posted
// in the same transaction.
func (s *LedgerService) Reverse(ctx context.Context, entryID string, date time.Time) (*model.LedgerEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ledger := s.ledgerRepo.WithTx(tx)

	original, err := ledger.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if original.Kind == model.EntryReversal {
		return nil, apperrors.ErrReversalOfReversal
	}
	if _, err := ledger.FindReversal(ctx, entryID); err == nil {
		return nil, apperrors.ErrDuplicateEntry
	} else if !errors.Is(err, apperrors.ErrLedgerEntryNotFound) {
		return nil, err
	}

	reversal := &model.LedgerEntry{
		ID:               uuid.New().String(),
		InvestorID:       original.InvestorID,
		Date:             date,
		Kind:             model.EntryReversal,
		Amount:           original.Amount.Neg(),
		NavPerShare:      original.NavPerShare,
		SharesTransacted: original.SharesTransacted.Neg(),
		BasisDelta:       original.BasisDelta.Neg(),
		ReversalOf:       original.ID,
		CreatedAt:        time.Now().UTC(),
	}
	if err := ledger.Insert(ctx, reversal); err != nil {
		return nil, err
	}

	shares, basis, err := ledger.SumAggregates(ctx, original.InvestorID)
	if err != nil {
		return nil, err
	}
	if shares.IsNegative() {
		return nil, &apperrors.InsufficientSharesError{
			InvestorID:   original.InvestorID,
			Requested:    original.SharesTransacted.Abs(),
			CurrentValue: shares.Mul(original.NavPerShare),
		}
	}
	if err := s.investorRepo.WithTx(tx).UpdateAggregates(ctx, original.InvestorID, shares, basis); err != nil {
		return nil, err
	}

	taxEvent, err := s.taxRepo.WithTx(tx).GetByLedgerEntry(ctx, original.ID)
	switch {
	case err == nil:
		if _, err := s.tax.Compensate(ctx, tx, taxEvent, date, reversal.ID); err != nil {
			return nil, err
		}
	case errors.Is(err, apperrors.ErrTaxEventNotFound):
		// Original entry booked no gain; nothing to compensate.
	default:
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info().
		Str("investor_id", original.InvestorID).
		Str("reversal_of", original.ID).
		Msg("ledger entry reversed")

	return reversal, nil
}

// EntriesForInvestor returns the investor's full posting history.
func (s *LedgerService) EntriesForInvestor(ctx context.Context, investorID string) ([]model.LedgerEntry, error) {
	return s.ledgerRepo.GetByInvestor(ctx, investorID)
}

// GetEntry returns one ledger entry by ID.
func (s *LedgerService) GetEntry(ctx context.Context, entryID string) (*model.LedgerEntry, error) {
	return s.ledgerRepo.GetEntry(ctx, entryID)
}
