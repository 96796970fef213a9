package apperrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrInvestorNotFound indicates that an investor with the given ID does not exist.
	ErrInvestorNotFound = errors.New("investor not found")

	// ErrNavRecordNotFound indicates no NAV record exists on or before the requested date.
	ErrNavRecordNotFound = errors.New("nav record not found")

	// ErrLedgerEntryNotFound indicates that a ledger entry with the given ID does not exist.
	ErrLedgerEntryNotFound = errors.New("ledger entry not found")

	// ErrFundFlowNotFound indicates that a fund flow request with the given ID does not exist.
	ErrFundFlowNotFound = errors.New("fund flow request not found")

	// ErrRawTransactionNotFound indicates that a raw brokerage transaction does not exist.
	ErrRawTransactionNotFound = errors.New("raw brokerage transaction not found")

	// ErrTaxEventNotFound indicates that a tax event with the given ID does not exist.
	ErrTaxEventNotFound = errors.New("tax event not found")

	// ErrProviderConfigNotFound indicates brokerage credentials have not been set up.
	ErrProviderConfigNotFound = errors.New("brokerage provider configuration not found")

	// ErrUnknownSource indicates that no valuation source is registered under the given name.
	ErrUnknownSource = errors.New("unknown valuation source")
)

// Business logic errors represent validation failures or constraint violations.
// These errors indicate that an operation cannot be completed due to business rules.
var (
	// ErrDuplicateNavDate indicates a NAV record already exists for the trading date.
	// Corrections go through the explicit admin update, not a second insert.
	ErrDuplicateNavDate = errors.New("nav record already exists for date")

	// ErrDuplicateEntry indicates that an entity with the same unique constraint already exists.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrNegativeAmount indicates that an amount field has an invalid negative value.
	ErrNegativeAmount = errors.New("amount must be positive")

	// ErrInvalidDateRange indicates that the provided date range is invalid
	// (e.g., start date is after end date).
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrInvalidFlowType indicates a fund flow type other than contribution/withdrawal.
	ErrInvalidFlowType = errors.New("invalid flow type")

	// ErrEmptyID indicates that a required ID parameter is empty or missing.
	ErrEmptyID = errors.New("ID cannot be empty")

	// ErrReversalOfReversal indicates an attempt to reverse a reversal entry.
	ErrReversalOfReversal = errors.New("reversal entries cannot be reversed")

	// ErrCancelProcessed indicates an attempt to cancel an already-processed request.
	// Processed requests are undone by posting a reversal ledger entry instead.
	ErrCancelProcessed = errors.New("processed requests cannot be cancelled, post a reversal instead")

	// ErrRawTransactionMatched indicates the raw transaction is already bound to
	// a different fund flow request.
	ErrRawTransactionMatched = errors.New("raw transaction already matched to another request")
)

// External dependency errors are retryable failures of collaborators. The engine
// takes no state-changing action when these occur.
var (
	// ErrValuationSourceUnavailable indicates the brokerage endpoint could not be reached
	// or returned an unusable response.
	ErrValuationSourceUnavailable = errors.New("valuation source unavailable")
)

// InvalidNavError indicates that a NAV computation produced an unpriceable result.
// NAV per share must always be strictly positive and total shares must be positive.
type InvalidNavError struct {
	Date           string
	PortfolioValue decimal.Decimal
	TotalShares    decimal.Decimal
	Reason         string
}

func (e *InvalidNavError) Error() string {
	return fmt.Sprintf("invalid nav for %s: %s (portfolio_value=%s, total_shares=%s)",
		e.Date, e.Reason, e.PortfolioValue, e.TotalShares)
}

// InsufficientSharesError indicates a withdrawal would drive an investor's share
// balance negative. The withdrawal is rejected, not clamped.
type InsufficientSharesError struct {
	InvestorID   string
	Requested    decimal.Decimal // dollar amount requested
	CurrentValue decimal.Decimal // shares * nav at time of request
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares for investor %s: requested %s exceeds current value %s",
		e.InvestorID, e.Requested, e.CurrentValue)
}

// InvalidStateTransitionError indicates an out-of-order fund flow transition.
// It carries the entity ID and expected-vs-actual state for diagnosis.
type InvalidStateTransitionError struct {
	RequestID string
	From      string
	To        string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition for request %s: %s -> %s", e.RequestID, e.From, e.To)
}

// MatchConflictError indicates an attempt to match an already-matched request to a
// different raw brokerage transaction. Re-matching the same transaction is a no-op
// and never produces this error.
type MatchConflictError struct {
	RequestID string
	MatchedID string
	NewID     string
}

func (e *MatchConflictError) Error() string {
	return fmt.Sprintf("request %s already matched to raw transaction %s, refusing re-match to %s",
		e.RequestID, e.MatchedID, e.NewID)
}
