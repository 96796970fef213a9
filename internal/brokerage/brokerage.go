// Package brokerage provides the valuation source abstraction: point-in-time
// portfolio values, position snapshots and raw transaction history from a
// brokerage account. The NAV engine and the reconciliation pipeline depend only
// on the Source interface; one concrete implementation exists per provider.
package brokerage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
)

// Position is one holding in the brokerage account at a point in time.
type Position struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
}

// RawTransaction is one transaction as reported by a brokerage, in a neutral
// envelope. RawType keeps the source-specific type code; classification into
// canonical trade types happens in the transform stage, not here.
type RawTransaction struct {
	BrokerageTransactionID string
	Date                   time.Time
	RawType                string
	Symbol                 string
	Description            string
	Quantity               decimal.Decimal
	Price                  decimal.Decimal
	Amount                 decimal.Decimal
	Currency               string
}

// Source supplies brokerage account data for one provider.
type Source interface {
	// Name returns the stable source identifier used in dedupe keys.
	Name() string
	// GetPortfolioValue returns the account's total value as of the given date.
	GetPortfolioValue(ctx context.Context, date time.Time) (decimal.Decimal, error)
	// GetPositions returns the position snapshot as of the given date.
	GetPositions(ctx context.Context, date time.Time) ([]Position, error)
	// GetRawTransactions returns all transactions reported in [start, end].
	GetRawTransactions(ctx context.Context, start, end time.Time) ([]RawTransaction, error)
}

// Registry holds the configured valuation sources keyed by name.
type Registry struct {
	sources map[string]Source
}

// NewRegistry creates a registry over the given sources.
func NewRegistry(sources ...Source) *Registry {
	m := make(map[string]Source, len(sources))
	for _, s := range sources {
		m[s.Name()] = s
	}
	return &Registry{sources: m}
}

// Get returns the source registered under name.
func (r *Registry) Get(name string) (Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return nil, apperrors.ErrUnknownSource
	}
	return s, nil
}

// All returns every registered source.
func (r *Registry) All() []Source {
	out := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	return out
}
