package brokerage

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
)

const ibkrBaseURL = "https://ndcdyn.interactivebrokers.com/AccountManagement/FlexWebService/SendRequest"

// Statement-not-ready error codes from the flex web service. These are the only
// retryable responses; everything else is permanent.
var ibkrRetryableCodes = map[int]bool{1018: true, 1019: true, 1021: true}

// IbkrSource fetches account data from Interactive Brokers flex queries.
// A flex report is requested first, then polled for until generated.
type IbkrSource struct {
	httpClient *http.Client
	baseURL    string
	token      string
	queryID    string
}

// NewIbkrSource creates an IBKR valuation source with default HTTP settings.
func NewIbkrSource(token, queryID string) *IbkrSource {
	return &IbkrSource{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    ibkrBaseURL,
		token:      token,
		queryID:    queryID,
	}
}

// NewIbkrSourceWithBaseURL creates an IBKR source against a custom endpoint.
// Used by tests to point at a stub server.
func NewIbkrSourceWithBaseURL(token, queryID, baseURL string) *IbkrSource {
	s := NewIbkrSource(token, queryID)
	s.baseURL = baseURL
	return s
}

// Name returns the stable source identifier.
func (s *IbkrSource) Name() string { return "ibkr" }

// GetPortfolioValue returns the account's total value as of the given date,
// taken from the equity summary of a single-day flex statement.
func (s *IbkrSource) GetPortfolioValue(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	stmt, err := s.fetchStatement(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	target := date.Format("20060102")
	records := stmt.FlexStatements.FlexStatement.EquitySummary.Record
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].ReportDate <= target {
			return decimal.NewFromFloat(records[i].Total).Round(2), nil
		}
	}

	return decimal.Zero, fmt.Errorf("%w: no equity summary on or before %s",
		apperrors.ErrValuationSourceUnavailable, date.Format("2006-01-02"))
}

// GetPositions returns the open position snapshot as of the given date.
func (s *IbkrSource) GetPositions(ctx context.Context, date time.Time) ([]Position, error) {
	stmt, err := s.fetchStatement(ctx)
	if err != nil {
		return nil, err
	}

	target := date.Format("20060102")
	positions := []Position{}
	for _, p := range stmt.FlexStatements.FlexStatement.OpenPositions.OpenPosition {
		if p.ReportDate != "" && p.ReportDate > target {
			continue
		}
		positions = append(positions, Position{
			Symbol:   p.Symbol,
			Quantity: decimal.NewFromFloat(p.Position).Round(4),
			Price:    decimal.NewFromFloat(p.MarkPrice).Round(4),
			Value:    decimal.NewFromFloat(p.Value).Round(2),
		})
	}
	return positions, nil
}

// GetRawTransactions returns trades and cash transactions reported in [start, end].
func (s *IbkrSource) GetRawTransactions(ctx context.Context, start, end time.Time) ([]RawTransaction, error) {
	stmt, err := s.fetchStatement(ctx)
	if err != nil {
		return nil, err
	}

	raw := []RawTransaction{}

	for _, t := range stmt.FlexStatements.FlexStatement.Trades.Trade {
		date, err := time.Parse("20060102", t.TradeDate)
		if err != nil || date.Before(start) || date.After(end) {
			continue
		}
		raw = append(raw, RawTransaction{
			BrokerageTransactionID: fmt.Sprintf("%d", t.TransactionID),
			Date:                   date,
			RawType:                "Trade:" + t.BuySell,
			Symbol:                 t.Symbol,
			Description:            t.Description,
			Quantity:               decimal.NewFromFloat(t.Quantity).Round(4),
			Price:                  decimal.NewFromFloat(t.TradePrice).Round(4),
			Amount:                 decimal.NewFromFloat(t.NetCash).Round(2),
			Currency:               t.Currency,
		})
	}

	for _, c := range stmt.FlexStatements.FlexStatement.CashTransactions.CashTransaction {
		date, err := time.Parse("20060102", c.ReportDate)
		if err != nil || date.Before(start) || date.After(end) {
			continue
		}
		raw = append(raw, RawTransaction{
			BrokerageTransactionID: fmt.Sprintf("%d", c.TransactionID),
			Date:                   date,
			RawType:                c.Type,
			Symbol:                 c.Symbol,
			Description:            c.Description,
			Amount:                 decimal.NewFromFloat(c.Amount).Round(2),
			Currency:               c.Currency,
		})
	}

	return raw, nil
}

// fetchStatement runs the two-phase flex query protocol: submit the request,
// then poll the retrieval URL until the statement is generated.
func (s *IbkrSource) fetchStatement(ctx context.Context) (*flexQueryResponse, error) {
	if s.token == "" || s.queryID == "" {
		return nil, fmt.Errorf("%w: ibkr token or query id not configured", apperrors.ErrValuationSourceUnavailable)
	}

	request, err := s.submitRequest(ctx)
	if err != nil {
		return nil, err
	}
	return s.retrieveStatement(ctx, request)
}

func (s *IbkrSource) submitRequest(ctx context.Context) (*flexRequestResponse, error) {
	queryURL := fmt.Sprintf("%s?t=%s&q=%s&v=3", s.baseURL, url.QueryEscape(s.token), url.QueryEscape(s.queryID))

	data, err := s.get(ctx, queryURL)
	if err != nil {
		return nil, err
	}

	var response flexRequestResponse
	if err := xml.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("%w: malformed flex request response: %v", apperrors.ErrValuationSourceUnavailable, err)
	}

	if response.ErrorCode != nil && response.ErrorMessage != nil {
		return nil, fmt.Errorf("%w: ibkr error %d: %s", apperrors.ErrValuationSourceUnavailable,
			*response.ErrorCode, *response.ErrorMessage)
	}
	if response.Status == "Fail" {
		return nil, fmt.Errorf("%w: flex request rejected", apperrors.ErrValuationSourceUnavailable)
	}

	return &response, nil
}

func (s *IbkrSource) retrieveStatement(ctx context.Context, request *flexRequestResponse) (*flexQueryResponse, error) {
	queryURL := fmt.Sprintf("%s?t=%s&q=%d&v=3", request.URL, url.QueryEscape(s.token), request.ReferenceCode)

	var statement flexQueryResponse

	operation := func() error {
		data, err := s.get(ctx, queryURL)
		if err != nil {
			return backoff.Permanent(err)
		}

		statement = flexQueryResponse{}
		if xml.Unmarshal(data, &statement) == nil && statement.XMLName.Local == "FlexQueryResponse" {
			return nil
		}

		var errResponse flexRequestResponse
		if err := xml.Unmarshal(data, &errResponse); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: unrecognized flex response", apperrors.ErrValuationSourceUnavailable))
		}
		if errResponse.ErrorCode != nil && ibkrRetryableCodes[*errResponse.ErrorCode] {
			return fmt.Errorf("statement not ready: code %d", *errResponse.ErrorCode)
		}
		if errResponse.ErrorCode != nil {
			return backoff.Permanent(fmt.Errorf("%w: ibkr error %d: %s", apperrors.ErrValuationSourceUnavailable,
				*errResponse.ErrorCode, *errResponse.ErrorMessage))
		}
		return backoff.Permanent(fmt.Errorf("%w: unrecognized flex response", apperrors.ErrValuationSourceUnavailable))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 3 * time.Minute

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}

	return &statement, nil
}

func (s *IbkrSource) get(ctx context.Context, queryURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValuationSourceUnavailable, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValuationSourceUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValuationSourceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: flex service returned %d", apperrors.ErrValuationSourceUnavailable, resp.StatusCode)
	}

	return data, nil
}
