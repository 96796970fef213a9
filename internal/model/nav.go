package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// NavRecord is the fund's authoritative price for one trading date.
// The date is the natural key: a date is written at most once, and corrections
// go through an explicit admin update rather than a new row.
type NavRecord struct {
	ID             string          `json:"id"`
	Date           time.Time       `json:"date"`
	PortfolioValue decimal.Decimal `json:"portfolioValue"` // money, 2 dp
	TotalShares    decimal.Decimal `json:"totalShares"`    // 4 dp
	NavPerShare    decimal.Decimal `json:"navPerShare"`    // 4 dp, always > 0
	DayChange      decimal.Decimal `json:"dayChange"`      // nav delta vs previous record
	CreatedAt      time.Time       `json:"createdAt"`
}
