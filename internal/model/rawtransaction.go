package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ETL statuses for raw brokerage rows.
const (
	EtlStatusPending     = "pending"
	EtlStatusTransformed = "transformed"
	EtlStatusSkipped     = "skipped"
	EtlStatusError       = "error"
)

// RawBrokerageTransaction is one external transaction exactly as a brokerage
// reported it, keyed by (source, brokerage_transaction_id) for deduplication.
// Immutable once ingested except for etl_status and the canonical trade reference.
type RawBrokerageTransaction struct {
	ID                     string          `json:"id"`
	Source                 string          `json:"source"`
	BrokerageTransactionID string          `json:"brokerageTransactionId"`
	TransactionDate        time.Time       `json:"transactionDate"`
	RawType                string          `json:"rawType"` // source-specific type code
	Symbol                 string          `json:"symbol,omitempty"`
	Description            string          `json:"description,omitempty"`
	Quantity               decimal.Decimal `json:"quantity"`
	Price                  decimal.Decimal `json:"price"`
	Amount                 decimal.Decimal `json:"amount"` // signed cash effect
	Currency               string          `json:"currency"`
	EtlStatus              string          `json:"etlStatus"`
	EtlError               string          `json:"etlError,omitempty"`
	TradeID                string          `json:"tradeId,omitempty"` // canonical trade produced
	ImportedAt             time.Time       `json:"importedAt"`
}
