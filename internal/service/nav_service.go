package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
	"github.com/jmertens/fund-accounting-engine/internal/brokerage"
	"github.com/jmertens/fund-accounting-engine/internal/model"
	"github.com/jmertens/fund-accounting-engine/internal/repository"
)

// NavService computes and publishes the fund's net asset value per share.
// One NavRecord per trading day becomes the authoritative price for every
// issuance and redemption dated on or after it, until superseded.
type NavService struct {
	navRepo      *repository.NavRepository
	investorRepo *repository.InvestorRepository
	sources      *brokerage.Registry
	sourceName   string
	log          zerolog.Logger
}

// NewNavService creates a new NavService with the provided dependencies.
// sourceName selects which valuation source prices the fund.
func NewNavService(
	navRepo *repository.NavRepository,
	investorRepo *repository.InvestorRepository,
	sources *brokerage.Registry,
	sourceName string,
	log zerolog.Logger,
) *NavService {
	return &NavService{
		navRepo:      navRepo,
		investorRepo: investorRepo,
		sources:      sources,
		sourceName:   sourceName,
		log:          log,
	}
}

// ComputeAndStore values the fund for one trading date and persists the record.
// The portfolio value comes from the valuation source; total outstanding shares
// from the investor aggregates as of now. Fails with InvalidNavError if the fund
// has no shares or the computed NAV per share would not be strictly positive:
// a negative-value day must be surfaced, not stored.
func (s *NavService) ComputeAndStore(ctx context.Context, date time.Time) (*model.NavRecord, error) {
	source, err := s.sources.Get(s.sourceName)
	if err != nil {
		return nil, err
	}

	portfolioValue, err := source.GetPortfolioValue(ctx, date)
	if err != nil {
		return nil, err
	}
	portfolioValue = portfolioValue.Round(2)

	totalShares, err := s.investorRepo.TotalShares(ctx)
	if err != nil {
		return nil, err
	}
	totalShares = totalShares.Round(4)

	record, err := s.build(ctx, date, portfolioValue, totalShares)
	if err != nil {
		return nil, err
	}

	if err := s.navRepo.Insert(ctx, record); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("date", date.Format("2006-01-02")).
		Str("nav_per_share", record.NavPerShare.String()).
		Str("portfolio_value", portfolioValue.String()).
		Msg("nav published")

	// Position snapshot is informational only. Its failure must not roll back
	// or block the publication above.
	if positions, err := source.GetPositions(ctx, date); err != nil {
		s.log.Warn().Err(err).Msg("position snapshot failed after nav publication")
	} else {
		s.log.Debug().Int("positions", len(positions)).Msg("position snapshot refreshed")
	}

	return record, nil
}

// AdminUpdate corrects the valuation of an existing record in place. NAV is a
// point-in-time fact, so a correction replaces the row for that date rather
// than appending a new one. Total shares stay fixed at their creation-time
// value; recomputing them for backdated ledger activity is a separate explicit
// administrative step, never a silent cascade.
func (s *NavService) AdminUpdate(ctx context.Context, date time.Time, portfolioValue decimal.Decimal) (*model.NavRecord, error) {
	existing, err := s.navRepo.GetByDate(ctx, date)
	if err != nil {
		return nil, err
	}

	record, err := s.build(ctx, date, portfolioValue.Round(2), existing.TotalShares)
	if err != nil {
		return nil, err
	}
	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt

	if err := s.navRepo.UpdateInPlace(ctx, record); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("date", date.Format("2006-01-02")).
		Str("nav_per_share", record.NavPerShare.String()).
		Msg("nav corrected in place")

	return record, nil
}

// NavAsOf returns the authoritative price for the given date: the latest record
// with date <= the requested date, supporting backdated transactions.
func (s *NavService) NavAsOf(ctx context.Context, date time.Time) (*model.NavRecord, error) {
	return s.navRepo.GetAsOf(ctx, date)
}

// Latest returns the most recent record.
func (s *NavService) Latest(ctx context.Context) (*model.NavRecord, error) {
	return s.navRepo.GetLatest(ctx)
}

// History returns records within the date range.
func (s *NavService) History(ctx context.Context, start, end time.Time) ([]model.NavRecord, error) {
	if end.Before(start) {
		return nil, apperrors.ErrInvalidDateRange
	}
	return s.navRepo.List(ctx, start, end)
}

// build computes nav_per_share and the day-over-day change, enforcing the NAV
// positivity invariant before anything is written.
func (s *NavService) build(ctx context.Context, date time.Time, portfolioValue, totalShares decimal.Decimal) (*model.NavRecord, error) {
	dateStr := date.Format("2006-01-02")

	if totalShares.LessThanOrEqual(decimal.Zero) {
		return nil, &apperrors.InvalidNavError{
			Date:           dateStr,
			PortfolioValue: portfolioValue,
			TotalShares:    totalShares,
			Reason:         "cannot price a fund with no outstanding shares",
		}
	}

	navPerShare := portfolioValue.DivRound(totalShares, 4)
	if navPerShare.LessThanOrEqual(decimal.Zero) {
		return nil, &apperrors.InvalidNavError{
			Date:           dateStr,
			PortfolioValue: portfolioValue,
			TotalShares:    totalShares,
			Reason:         "nav per share must be strictly positive",
		}
	}

	dayChange := decimal.Zero
	if previous, err := s.navRepo.GetAsOf(ctx, date.AddDate(0, 0, -1)); err == nil {
		dayChange = navPerShare.Sub(previous.NavPerShare)
	}

	return &model.NavRecord{
		ID:             uuid.New().String(),
		Date:           date,
		PortfolioValue: portfolioValue,
		TotalShares:    totalShares,
		NavPerShare:    navPerShare,
		DayChange:      dayChange,
		CreatedAt:      time.Now().UTC(),
	}, nil
}
