package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Canonical trade types. Both brokerage integrations normalize into this shape.
const (
	TradeTypeTrade       = "trade"
	TradeTypeAchTransfer = "ach_transfer"
	TradeTypeFee         = "fee"
	TradeTypeDividend    = "dividend"
	TradeTypeInterest    = "interest"
)

// Canonical trade categories within a type (e.g. buy/sell for trades,
// deposit/withdrawal for transfers).
const (
	TradeCategoryBuy        = "buy"
	TradeCategorySell       = "sell"
	TradeCategoryDeposit    = "deposit"
	TradeCategoryWithdrawal = "withdrawal"
	TradeCategoryOther      = "other"
)

// CanonicalTrade is the normalized, source-agnostic transaction record used for
// NAV portfolio reconstruction and fund-flow matching. The dedupe key
// (source, brokerage_transaction_id) is propagated from the raw row.
type CanonicalTrade struct {
	ID                     string          `json:"id"`
	Source                 string          `json:"source"`
	BrokerageTransactionID string          `json:"brokerageTransactionId"`
	TradeDate              time.Time       `json:"tradeDate"`
	TradeType              string          `json:"tradeType"`
	Category               string          `json:"category"`
	Symbol                 string          `json:"symbol,omitempty"`
	Quantity               decimal.Decimal `json:"quantity"`
	Price                  decimal.Decimal `json:"price"`
	Amount                 decimal.Decimal `json:"amount"` // signed cash effect
	Currency               string          `json:"currency"`
	CreatedAt              time.Time       `json:"createdAt"`
}
