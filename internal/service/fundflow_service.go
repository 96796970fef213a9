package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
	"github.com/jmertens/fund-accounting-engine/internal/model"
	"github.com/jmertens/fund-accounting-engine/internal/repository"
)

// FundFlowService drives contribution and withdrawal requests through their
// lifecycle: pending -> approved -> awaiting_funds -> matched -> processed,
// with rejected and cancelled as alternates. Matching binds a request to the
// raw brokerage transaction evidencing the cash movement; processing books the
// ledger entry, tax event and derived settlement figures atomically.
type FundFlowService struct {
	db           *sql.DB
	flowRepo     *repository.FundFlowRepository
	investorRepo *repository.InvestorRepository
	rawRepo      *repository.RawTransactionRepository
	navRepo      *repository.NavRepository
	ledger       *LedgerService
	tax          *TaxService
	log          zerolog.Logger
}

// NewFundFlowService creates a new FundFlowService with the provided dependencies.
func NewFundFlowService(
	db *sql.DB,
	flowRepo *repository.FundFlowRepository,
	investorRepo *repository.InvestorRepository,
	rawRepo *repository.RawTransactionRepository,
	navRepo *repository.NavRepository,
	ledger *LedgerService,
	tax *TaxService,
	log zerolog.Logger,
) *FundFlowService {
	return &FundFlowService{
		db:           db,
		flowRepo:     flowRepo,
		investorRepo: investorRepo,
		rawRepo:      rawRepo,
		navRepo:      navRepo,
		ledger:       ledger,
		tax:          tax,
		log:          log,
	}
}

// Submit creates a new pending request. The effective date defaults to the
// submission date and is replaced at match time by the matched cash movement's
// actual date.
func (s *FundFlowService) Submit(ctx context.Context, investorID, flowType string, amount decimal.Decimal, effectiveDate time.Time) (*model.FundFlowRequest, error) {
	if flowType != model.FlowContribution && flowType != model.FlowWithdrawal {
		return nil, apperrors.ErrInvalidFlowType
	}
	if !amount.IsPositive() {
		return nil, apperrors.ErrNegativeAmount
	}
	if _, err := s.investorRepo.GetInvestor(ctx, investorID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	req := &model.FundFlowRequest{
		ID:              uuid.New().String(),
		InvestorID:      investorID,
		FlowType:        flowType,
		RequestedAmount: amount.Round(2),
		Status:          model.FlowStatusPending,
		EffectiveDate:   effectiveDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.flowRepo.Insert(ctx, req); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("request_id", req.ID).
		Str("investor_id", investorID).
		Str("flow_type", flowType).
		Str("amount", req.RequestedAmount.String()).
		Msg("fund flow request submitted")

	return req, nil
}

// Approve moves a pending request to approved.
func (s *FundFlowService) Approve(ctx context.Context, requestID string) (*model.FundFlowRequest, error) {
	return s.transition(ctx, requestID, model.FlowStatusPending, model.FlowStatusApproved)
}

// Reject moves a pending request to the terminal rejected state.
func (s *FundFlowService) Reject(ctx context.Context, requestID string) (*model.FundFlowRequest, error) {
	return s.transition(ctx, requestID, model.FlowStatusPending, model.FlowStatusRejected)
}

// MarkAwaitingFunds moves an approved request to awaiting_funds, signalling
// that the engine now expects a cash movement at the brokerage.
func (s *FundFlowService) MarkAwaitingFunds(ctx context.Context, requestID string) (*model.FundFlowRequest, error) {
	return s.transition(ctx, requestID, model.FlowStatusApproved, model.FlowStatusAwaitingFunds)
}

// Match binds a request awaiting funds to the raw brokerage transaction that
// evidences its cash movement, and re-dates the request to that movement.
// Matching is idempotent: re-matching to the same raw transaction is a no-op,
// re-matching to a different one is a conflict. A raw transaction can evidence
// at most one request.
func (s *FundFlowService) Match(ctx context.Context, requestID, rawID string) (*model.FundFlowRequest, error) {
	req, err := s.flowRepo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if req.Status == model.FlowStatusMatched {
		if req.MatchedRawID == rawID {
			return req, nil
		}
		return nil, &apperrors.MatchConflictError{
			RequestID: requestID,
			MatchedID: req.MatchedRawID,
			NewID:     rawID,
		}
	}
	if req.Status != model.FlowStatusAwaitingFunds {
		return nil, &apperrors.InvalidStateTransitionError{
			RequestID: requestID,
			From:      req.Status,
			To:        model.FlowStatusMatched,
		}
	}

	raw, err := s.rawRepo.Get(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if err := matchable(req, raw); err != nil {
		return nil, err
	}

	if err := s.flowRepo.SetMatched(ctx, requestID, rawID, raw.TransactionDate); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("request_id", requestID).
		Str("raw_id", rawID).
		Str("effective_date", raw.TransactionDate.Format("2006-01-02")).
		Msg("fund flow request matched")

	return s.flowRepo.Get(ctx, requestID)
}

// Process settles a matched request: it prices the request at the NAV in force
// on its effective date, posts the ledger entry, books the tax event for
// redemptions and stores the derived settlement figures, all in one
// transaction. Processing an already-processed request returns the stored
// result without posting anything again.
func (s *FundFlowService) Process(ctx context.Context, requestID string) (*model.FundFlowRequest, error) {
	req, err := s.flowRepo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status == model.FlowStatusProcessed {
		return req, nil
	}
	if req.Status != model.FlowStatusMatched {
		return nil, &apperrors.InvalidStateTransitionError{
			RequestID: requestID,
			From:      req.Status,
			To:        model.FlowStatusProcessed,
		}
	}

	nav, err := s.navRepo.GetAsOf(ctx, req.EffectiveDate)
	if err != nil {
		return nil, fmt.Errorf("no nav published on or before %s: %w",
			req.EffectiveDate.Format("2006-01-02"), err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	investor, err := s.investorRepo.WithTx(tx).GetInvestor(ctx, req.InvestorID)
	if err != nil {
		return nil, err
	}

	switch req.FlowType {
	case model.FlowContribution:
		kind := model.EntryContribution
		if investor.CurrentShares.IsZero() {
			kind = model.EntryInitial
		}
		entry, err := s.ledger.PostInTx(ctx, tx, investor, kind, req.RequestedAmount, nav.NavPerShare, req.ID, req.EffectiveDate)
		if err != nil {
			return nil, err
		}
		req.LedgerEntryID = entry.ID
		req.SharesTransacted = entry.SharesTransacted
		req.NavPerShare = nav.NavPerShare
		req.RealizedGain = decimal.Zero
		req.TaxWithheld = decimal.Zero
		req.NetProceeds = decimal.Zero

	case model.FlowWithdrawal:
		// Position snapshot before the redemption; the tax math needs it.
		currentValue := investor.CurrentShares.Mul(nav.NavPerShare).Round(2)
		netInvestment := investor.NetInvestment

		entry, err := s.ledger.PostInTx(ctx, tx, investor, model.EntryWithdrawal, req.RequestedAmount, nav.NavPerShare, req.ID, req.EffectiveDate)
		if err != nil {
			return nil, err
		}

		event, err := s.tax.ComputeAndRecord(ctx, tx, req.InvestorID, req.EffectiveDate,
			req.RequestedAmount, currentValue, netInvestment, entry.ID)
		if err != nil {
			return nil, err
		}

		req.LedgerEntryID = entry.ID
		req.SharesTransacted = entry.SharesTransacted
		req.NavPerShare = nav.NavPerShare
		req.RealizedGain = decimal.Zero
		req.TaxWithheld = decimal.Zero
		if event != nil {
			req.RealizedGain = event.RealizedGain
			req.TaxWithheld = event.TaxDue
		}
		req.NetProceeds = req.RequestedAmount.Sub(req.TaxWithheld)

	default:
		return nil, apperrors.ErrInvalidFlowType
	}

	if err := s.flowRepo.WithTx(tx).StoreProcessed(ctx, req); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info().
		Str("request_id", req.ID).
		Str("flow_type", req.FlowType).
		Str("shares", req.SharesTransacted.String()).
		Str("nav_per_share", req.NavPerShare.String()).
		Msg("fund flow request processed")

	return s.flowRepo.Get(ctx, requestID)
}

// Cancel abandons a request that has not yet been processed. Cancelling a
// matched request first unlinks its raw transaction so the cash movement
// becomes matchable again.
func (s *FundFlowService) Cancel(ctx context.Context, requestID string) (*model.FundFlowRequest, error) {
	req, err := s.flowRepo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status == model.FlowStatusProcessed {
		return nil, apperrors.ErrCancelProcessed
	}
	if req.Terminal() {
		return nil, &apperrors.InvalidStateTransitionError{
			RequestID: requestID,
			From:      req.Status,
			To:        model.FlowStatusCancelled,
		}
	}

	if req.Status == model.FlowStatusMatched {
		err = s.flowRepo.ClearMatched(ctx, requestID, model.FlowStatusCancelled)
	} else {
		err = s.flowRepo.UpdateStatus(ctx, requestID, model.FlowStatusCancelled)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("request_id", requestID).Str("from", req.Status).Msg("fund flow request cancelled")
	return s.flowRepo.Get(ctx, requestID)
}

// Get returns one request by ID.
func (s *FundFlowService) Get(ctx context.Context, requestID string) (*model.FundFlowRequest, error) {
	return s.flowRepo.Get(ctx, requestID)
}

// ListByStatus returns all requests currently in the given state.
func (s *FundFlowService) ListByStatus(ctx context.Context, status string) ([]model.FundFlowRequest, error) {
	return s.flowRepo.GetByStatus(ctx, status)
}

// transition performs a simple guarded status update and returns the updated
// request.
func (s *FundFlowService) transition(ctx context.Context, requestID, from, to string) (*model.FundFlowRequest, error) {
	req, err := s.flowRepo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != from {
		return nil, &apperrors.InvalidStateTransitionError{
			RequestID: requestID,
			From:      req.Status,
			To:        to,
		}
	}
	if err := s.flowRepo.UpdateStatus(ctx, requestID, to); err != nil {
		return nil, err
	}

	s.log.Info().Str("request_id", requestID).Str("from", from).Str("to", to).Msg("fund flow transition")
	return s.flowRepo.Get(ctx, requestID)
}

// matchable checks that the raw transaction plausibly evidences the request:
// the cash direction must agree with the flow type, and a row already folded
// into a canonical trade for another purpose is still fine, but one matched to
// another request is rejected by the unique index at write time.
func matchable(req *model.FundFlowRequest, raw *model.RawBrokerageTransaction) error {
	switch req.FlowType {
	case model.FlowContribution:
		if !raw.Amount.IsPositive() {
			return fmt.Errorf("raw transaction %s is not an inflow: %w", raw.ID, apperrors.ErrInvalidFlowType)
		}
	case model.FlowWithdrawal:
		if !raw.Amount.IsNegative() {
			return fmt.Errorf("raw transaction %s is not an outflow: %w", raw.ID, apperrors.ErrInvalidFlowType)
		}
	}
	return nil
}
