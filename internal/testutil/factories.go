package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/model"
)

// InvestorBuilder provides a fluent interface for creating test investors.
//
// Example usage:
//
//	// Simple creation with defaults
//	investor := testutil.NewInvestor().Build(t, db)
//
//	// Customized investor
//	investor := testutil.NewInvestor().
//	    WithName("Alice").
//	    WithShares("50", "5000").
//	    Build(t, db)
type InvestorBuilder struct {
	ID            string
	Name          string
	Email         string
	CurrentShares decimal.Decimal
	NetInvestment decimal.Decimal
}

// NewInvestor creates an InvestorBuilder with sensible defaults.
func NewInvestor() *InvestorBuilder {
	return &InvestorBuilder{
		ID:            MakeID(),
		Name:          "Test Investor",
		Email:         "test@example.com",
		CurrentShares: decimal.Zero,
		NetInvestment: decimal.Zero,
	}
}

// WithID sets a custom ID.
func (b *InvestorBuilder) WithID(id string) *InvestorBuilder {
	b.ID = id
	return b
}

// WithName sets a custom name.
func (b *InvestorBuilder) WithName(name string) *InvestorBuilder {
	b.Name = name
	return b
}

// WithShares sets the share and basis aggregates from decimal strings.
func (b *InvestorBuilder) WithShares(shares, netInvestment string) *InvestorBuilder {
	b.CurrentShares = decimal.RequireFromString(shares)
	b.NetInvestment = decimal.RequireFromString(netInvestment)
	return b
}

// Build creates the investor in the database and returns it.
func (b *InvestorBuilder) Build(t *testing.T, db *sql.DB) model.Investor {
	t.Helper()

	query := `
		INSERT INTO investor (id, name, email, current_shares, net_investment)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query, b.ID, b.Name, b.Email, b.CurrentShares.String(), b.NetInvestment.String())
	if err != nil {
		t.Fatalf("Failed to create test investor: %v", err)
	}

	return model.Investor{
		ID:            b.ID,
		Name:          b.Name,
		Email:         b.Email,
		CurrentShares: b.CurrentShares,
		NetInvestment: b.NetInvestment,
	}
}

// NavRecordBuilder provides a fluent interface for creating test NAV records.
type NavRecordBuilder struct {
	ID             string
	Date           string
	PortfolioValue decimal.Decimal
	TotalShares    decimal.Decimal
	NavPerShare    decimal.Decimal
	DayChange      decimal.Decimal
}

// NewNavRecord creates a NavRecordBuilder with sensible defaults: a fund worth
// 100000 with 1000 shares, NAV 100.0000.
func NewNavRecord() *NavRecordBuilder {
	return &NavRecordBuilder{
		ID:             MakeID(),
		Date:           "2026-01-02",
		PortfolioValue: decimal.RequireFromString("100000"),
		TotalShares:    decimal.RequireFromString("1000"),
		NavPerShare:    decimal.RequireFromString("100.0000"),
		DayChange:      decimal.Zero,
	}
}

// WithDate sets the record date (YYYY-MM-DD).
func (b *NavRecordBuilder) WithDate(date string) *NavRecordBuilder {
	b.Date = date
	return b
}

// WithValuation sets portfolio value and total shares and recomputes the NAV
// per share at 4 decimal places.
func (b *NavRecordBuilder) WithValuation(portfolioValue, totalShares string) *NavRecordBuilder {
	b.PortfolioValue = decimal.RequireFromString(portfolioValue)
	b.TotalShares = decimal.RequireFromString(totalShares)
	b.NavPerShare = b.PortfolioValue.DivRound(b.TotalShares, 4)
	return b
}

// WithNavPerShare overrides the computed NAV per share.
func (b *NavRecordBuilder) WithNavPerShare(nav string) *NavRecordBuilder {
	b.NavPerShare = decimal.RequireFromString(nav)
	return b
}

// Build creates the NAV record in the database and returns it.
func (b *NavRecordBuilder) Build(t *testing.T, db *sql.DB) model.NavRecord {
	t.Helper()

	query := `
		INSERT INTO nav_record (id, date, portfolio_value, total_shares, nav_per_share, day_change)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query, b.ID, b.Date, b.PortfolioValue.String(),
		b.TotalShares.String(), b.NavPerShare.String(), b.DayChange.String())
	if err != nil {
		t.Fatalf("Failed to create test nav record: %v", err)
	}

	date, err := time.Parse("2006-01-02", b.Date)
	if err != nil {
		t.Fatalf("Invalid test nav date: %v", err)
	}

	return model.NavRecord{
		ID:             b.ID,
		Date:           date,
		PortfolioValue: b.PortfolioValue,
		TotalShares:    b.TotalShares,
		NavPerShare:    b.NavPerShare,
		DayChange:      b.DayChange,
	}
}

// FundFlowBuilder provides a fluent interface for creating test fund flow
// requests in an arbitrary lifecycle state.
type FundFlowBuilder struct {
	ID              string
	InvestorID      string
	FlowType        string
	RequestedAmount decimal.Decimal
	Status          string
	EffectiveDate   string
	MatchedRawID    string
}

// NewFundFlow creates a FundFlowBuilder with sensible defaults: a pending
// contribution of 5000.
func NewFundFlow(investorID string) *FundFlowBuilder {
	return &FundFlowBuilder{
		ID:              MakeID(),
		InvestorID:      investorID,
		FlowType:        model.FlowContribution,
		RequestedAmount: decimal.RequireFromString("5000"),
		Status:          model.FlowStatusPending,
		EffectiveDate:   "2026-01-02",
	}
}

// Withdrawal makes the request a withdrawal of the given amount.
func (b *FundFlowBuilder) Withdrawal(amount string) *FundFlowBuilder {
	b.FlowType = model.FlowWithdrawal
	b.RequestedAmount = decimal.RequireFromString(amount)
	return b
}

// WithAmount sets the requested amount.
func (b *FundFlowBuilder) WithAmount(amount string) *FundFlowBuilder {
	b.RequestedAmount = decimal.RequireFromString(amount)
	return b
}

// WithStatus sets the lifecycle state.
func (b *FundFlowBuilder) WithStatus(status string) *FundFlowBuilder {
	b.Status = status
	return b
}

// WithEffectiveDate sets the effective date (YYYY-MM-DD).
func (b *FundFlowBuilder) WithEffectiveDate(date string) *FundFlowBuilder {
	b.EffectiveDate = date
	return b
}

// MatchedTo sets the matched raw transaction and the matched status.
func (b *FundFlowBuilder) MatchedTo(rawID string) *FundFlowBuilder {
	b.MatchedRawID = rawID
	b.Status = model.FlowStatusMatched
	return b
}

// Build creates the request in the database and returns it.
func (b *FundFlowBuilder) Build(t *testing.T, db *sql.DB) model.FundFlowRequest {
	t.Helper()

	var matchedRawID any
	if b.MatchedRawID != "" {
		matchedRawID = b.MatchedRawID
	}

	query := `
		INSERT INTO fund_flow_request (id, investor_id, flow_type, requested_amount, status, effective_date, matched_raw_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query, b.ID, b.InvestorID, b.FlowType,
		b.RequestedAmount.String(), b.Status, b.EffectiveDate, matchedRawID)
	if err != nil {
		t.Fatalf("Failed to create test fund flow request: %v", err)
	}

	date, err := time.Parse("2006-01-02", b.EffectiveDate)
	if err != nil {
		t.Fatalf("Invalid test effective date: %v", err)
	}

	return model.FundFlowRequest{
		ID:              b.ID,
		InvestorID:      b.InvestorID,
		FlowType:        b.FlowType,
		RequestedAmount: b.RequestedAmount,
		Status:          b.Status,
		EffectiveDate:   date,
		MatchedRawID:    b.MatchedRawID,
	}
}

// RawTransactionBuilder provides a fluent interface for creating test raw
// brokerage transactions.
type RawTransactionBuilder struct {
	ID                     string
	Source                 string
	BrokerageTransactionID string
	TransactionDate        string
	RawType                string
	Symbol                 string
	Quantity               decimal.Decimal
	Price                  decimal.Decimal
	Amount                 decimal.Decimal
	Currency               string
	EtlStatus              string
}

// NewRawTransaction creates a RawTransactionBuilder with sensible defaults:
// a pending ibkr cash deposit of 5000.
func NewRawTransaction() *RawTransactionBuilder {
	return &RawTransactionBuilder{
		ID:                     MakeID(),
		Source:                 "ibkr",
		BrokerageTransactionID: MakeID(),
		TransactionDate:        "2026-01-02",
		RawType:                "Deposits/Withdrawals",
		Quantity:               decimal.Zero,
		Price:                  decimal.Zero,
		Amount:                 decimal.RequireFromString("5000"),
		Currency:               "USD",
		EtlStatus:              model.EtlStatusPending,
	}
}

// WithSource sets the source name.
func (b *RawTransactionBuilder) WithSource(source string) *RawTransactionBuilder {
	b.Source = source
	return b
}

// WithBrokerageID sets the source-side transaction ID.
func (b *RawTransactionBuilder) WithBrokerageID(id string) *RawTransactionBuilder {
	b.BrokerageTransactionID = id
	return b
}

// WithDate sets the transaction date (YYYY-MM-DD).
func (b *RawTransactionBuilder) WithDate(date string) *RawTransactionBuilder {
	b.TransactionDate = date
	return b
}

// WithRawType sets the source-specific type code.
func (b *RawTransactionBuilder) WithRawType(rawType string) *RawTransactionBuilder {
	b.RawType = rawType
	return b
}

// WithAmount sets the signed cash amount.
func (b *RawTransactionBuilder) WithAmount(amount string) *RawTransactionBuilder {
	b.Amount = decimal.RequireFromString(amount)
	return b
}

// WithTradeDetails sets symbol, quantity and price for trade rows.
func (b *RawTransactionBuilder) WithTradeDetails(symbol, quantity, price string) *RawTransactionBuilder {
	b.Symbol = symbol
	b.Quantity = decimal.RequireFromString(quantity)
	b.Price = decimal.RequireFromString(price)
	return b
}

// WithEtlStatus sets the pipeline status.
func (b *RawTransactionBuilder) WithEtlStatus(status string) *RawTransactionBuilder {
	b.EtlStatus = status
	return b
}

// Build creates the raw transaction in the database and returns it.
func (b *RawTransactionBuilder) Build(t *testing.T, db *sql.DB) model.RawBrokerageTransaction {
	t.Helper()

	query := `
		INSERT INTO raw_brokerage_transaction
			(id, source, brokerage_transaction_id, transaction_date, raw_type,
			 symbol, description, quantity, price, amount, currency, etl_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query, b.ID, b.Source, b.BrokerageTransactionID, b.TransactionDate,
		b.RawType, b.Symbol, "", b.Quantity.String(), b.Price.String(),
		b.Amount.String(), b.Currency, b.EtlStatus)
	if err != nil {
		t.Fatalf("Failed to create test raw transaction: %v", err)
	}

	date, err := time.Parse("2006-01-02", b.TransactionDate)
	if err != nil {
		t.Fatalf("Invalid test transaction date: %v", err)
	}

	return model.RawBrokerageTransaction{
		ID:                     b.ID,
		Source:                 b.Source,
		BrokerageTransactionID: b.BrokerageTransactionID,
		TransactionDate:        date,
		RawType:                b.RawType,
		Symbol:                 b.Symbol,
		Quantity:               b.Quantity,
		Price:                  b.Price,
		Amount:                 b.Amount,
		Currency:               b.Currency,
		EtlStatus:              b.EtlStatus,
	}
}
