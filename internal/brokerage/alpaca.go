package brokerage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
)

const alpacaBaseURL = "https://broker-api.alpaca.markets"

// AlpacaSource fetches account data from an Alpaca broker account over its
// JSON REST API.
type AlpacaSource struct {
	httpClient *http.Client
	baseURL    string
	accountID  string
	token      string
}

// NewAlpacaSource creates an Alpaca valuation source for the given account.
func NewAlpacaSource(accountID, token string) *AlpacaSource {
	return &AlpacaSource{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    alpacaBaseURL,
		accountID:  accountID,
		token:      token,
	}
}

// NewAlpacaSourceWithBaseURL creates an Alpaca source against a custom endpoint.
// Used by tests to point at a stub server.
func NewAlpacaSourceWithBaseURL(accountID, token, baseURL string) *AlpacaSource {
	s := NewAlpacaSource(accountID, token)
	s.baseURL = baseURL
	return s
}

// Name returns the stable source identifier.
func (s *AlpacaSource) Name() string { return "alpaca" }

type alpacaPortfolioHistory struct {
	Timestamp []int64   `json:"timestamp"`
	Equity    []float64 `json:"equity"`
}

type alpacaPosition struct {
	Symbol       string `json:"symbol"`
	Qty          string `json:"qty"`
	CurrentPrice string `json:"current_price"`
	MarketValue  string `json:"market_value"`
}

type alpacaActivity struct {
	ID           string `json:"id"`
	ActivityType string `json:"activity_type"` // FILL, TRANS, DIV, INT, FEE, ...
	Date         string `json:"date"`
	Symbol       string `json:"symbol"`
	Description  string `json:"description"`
	Qty          string `json:"qty"`
	Price        string `json:"price"`
	NetAmount    string `json:"net_amount"`
	Side         string `json:"side"`
}

// GetPortfolioValue returns the account equity as of the given date.
func (s *AlpacaSource) GetPortfolioValue(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/v1/trading/accounts/%s/account/portfolio/history?timeframe=1D&date_end=%s",
		s.baseURL, url.PathEscape(s.accountID), date.Format("2006-01-02"))

	var history alpacaPortfolioHistory
	if err := s.getJSON(ctx, endpoint, &history); err != nil {
		return decimal.Zero, err
	}

	cutoff := date.Add(24 * time.Hour).Unix()
	for i := len(history.Timestamp) - 1; i >= 0; i-- {
		if history.Timestamp[i] < cutoff {
			return decimal.NewFromFloat(history.Equity[i]).Round(2), nil
		}
	}

	return decimal.Zero, fmt.Errorf("%w: no equity value on or before %s",
		apperrors.ErrValuationSourceUnavailable, date.Format("2006-01-02"))
}

// GetPositions returns the current position snapshot. Alpaca exposes no
// historical positions endpoint, so the date only guards against future lookups.
func (s *AlpacaSource) GetPositions(ctx context.Context, date time.Time) ([]Position, error) {
	if date.After(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: positions requested for a future date", apperrors.ErrValuationSourceUnavailable)
	}

	endpoint := fmt.Sprintf("%s/v1/trading/accounts/%s/positions", s.baseURL, url.PathEscape(s.accountID))

	var raw []alpacaPosition
	if err := s.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, err
	}

	positions := make([]Position, 0, len(raw))
	for _, p := range raw {
		qty, err := decimal.NewFromString(p.Qty)
		if err != nil {
			return nil, fmt.Errorf("%w: bad position quantity %q", apperrors.ErrValuationSourceUnavailable, p.Qty)
		}
		price, err := decimal.NewFromString(p.CurrentPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: bad position price %q", apperrors.ErrValuationSourceUnavailable, p.CurrentPrice)
		}
		value, err := decimal.NewFromString(p.MarketValue)
		if err != nil {
			return nil, fmt.Errorf("%w: bad position value %q", apperrors.ErrValuationSourceUnavailable, p.MarketValue)
		}
		positions = append(positions, Position{
			Symbol:   p.Symbol,
			Quantity: qty.Round(4),
			Price:    price.Round(4),
			Value:    value.Round(2),
		})
	}
	return positions, nil
}

// GetRawTransactions returns account activities reported in [start, end].
func (s *AlpacaSource) GetRawTransactions(ctx context.Context, start, end time.Time) ([]RawTransaction, error) {
	endpoint := fmt.Sprintf("%s/v1/accounts/%s/activities?after=%s&until=%s",
		s.baseURL, url.PathEscape(s.accountID),
		start.Format("2006-01-02"), end.AddDate(0, 0, 1).Format("2006-01-02"))

	var activities []alpacaActivity
	if err := s.getJSON(ctx, endpoint, &activities); err != nil {
		return nil, err
	}

	raw := make([]RawTransaction, 0, len(activities))
	for _, a := range activities {
		date, err := time.Parse("2006-01-02", a.Date)
		if err != nil {
			continue
		}

		txn := RawTransaction{
			BrokerageTransactionID: a.ID,
			Date:                   date,
			RawType:                a.ActivityType,
			Symbol:                 a.Symbol,
			Description:            a.Description,
			Currency:               "USD",
		}
		if a.ActivityType == "FILL" {
			txn.RawType = "FILL:" + a.Side
		}
		if a.Qty != "" {
			if txn.Quantity, err = decimal.NewFromString(a.Qty); err != nil {
				continue
			}
		}
		if a.Price != "" {
			if txn.Price, err = decimal.NewFromString(a.Price); err != nil {
				continue
			}
		}
		if a.NetAmount != "" {
			if txn.Amount, err = decimal.NewFromString(a.NetAmount); err != nil {
				continue
			}
		}
		raw = append(raw, txn)
	}

	return raw, nil
}

func (s *AlpacaSource) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValuationSourceUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValuationSourceUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValuationSourceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: alpaca returned %d", apperrors.ErrValuationSourceUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: malformed alpaca response: %v", apperrors.ErrValuationSourceUnavailable, err)
	}
	return nil
}
