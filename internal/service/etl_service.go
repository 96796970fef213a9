package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
	"github.com/jmertens/fund-accounting-engine/internal/brokerage"
	"github.com/jmertens/fund-accounting-engine/internal/model"
	"github.com/jmertens/fund-accounting-engine/internal/repository"
)

// EtlService reconciles brokerage activity in three independently retryable
// stages: extract pulls raw transactions into the inbox with dedupe on
// (source, brokerage_transaction_id); transform classifies raw rows into
// canonical trade types, skipping non-financial rows and quarantining
// unclassifiable ones; load folds transformed rows into canonical trades,
// again idempotently.
type EtlService struct {
	sources   *brokerage.Registry
	rawRepo   *repository.RawTransactionRepository
	tradeRepo *repository.TradeRepository
	log       zerolog.Logger
}

// NewEtlService creates a new EtlService with the provided dependencies.
func NewEtlService(
	sources *brokerage.Registry,
	rawRepo *repository.RawTransactionRepository,
	tradeRepo *repository.TradeRepository,
	log zerolog.Logger,
) *EtlService {
	return &EtlService{
		sources:   sources,
		rawRepo:   rawRepo,
		tradeRepo: tradeRepo,
		log:       log,
	}
}

// Extract pulls raw transactions for one source over [start, end] into the
// inbox. Re-extracting an overlapping window is safe: rows already present are
// counted as extracted but not inserted.
func (s *EtlService) Extract(ctx context.Context, source brokerage.Source, start, end time.Time) (extracted, inserted int, err error) {
	if end.Before(start) {
		return 0, 0, apperrors.ErrInvalidDateRange
	}

	raws, err := source.GetRawTransactions(ctx, start, end)
	if err != nil {
		return 0, 0, fmt.Errorf("extract from %s failed: %w", source.Name(), err)
	}

	for _, raw := range raws {
		row := &model.RawBrokerageTransaction{
			ID:                     uuid.New().String(),
			Source:                 source.Name(),
			BrokerageTransactionID: raw.BrokerageTransactionID,
			TransactionDate:        raw.Date,
			RawType:                raw.RawType,
			Symbol:                 raw.Symbol,
			Description:            raw.Description,
			Quantity:               raw.Quantity,
			Price:                  raw.Price,
			Amount:                 raw.Amount,
			Currency:               raw.Currency,
			EtlStatus:              model.EtlStatusPending,
			ImportedAt:             time.Now().UTC(),
		}
		ok, err := s.rawRepo.InsertIgnoreDuplicate(ctx, row)
		if err != nil {
			return len(raws), inserted, err
		}
		if ok {
			inserted++
		}
	}

	s.log.Info().
		Str("source", source.Name()).
		Int("extracted", len(raws)).
		Int("inserted", inserted).
		Msg("etl extract complete")

	return len(raws), inserted, nil
}

// ExtractAll runs the extract stage for every registered source concurrently.
// A failing source aborts the group; rows already inserted stay (the stage is
// idempotent, the next run re-covers the window).
func (s *EtlService) ExtractAll(ctx context.Context, start, end time.Time) (extracted, inserted int, err error) {
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for _, source := range s.sources.All() {
		source := source
		g.Go(func() error {
			e, i, err := s.Extract(gctx, source, start, end)
			if err != nil {
				return err
			}
			mu.Lock()
			extracted += e
			inserted += i
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return extracted, inserted, err
	}
	return extracted, inserted, nil
}

// Transform classifies every pending raw row. Rows that classify get status
// transformed; non-financial rows are skipped; rows with an unknown type code
// are marked error with the reason stored on the row, and the batch continues.
func (s *EtlService) Transform(ctx context.Context) (transformed, skipped int, rowErrors []model.EtlRowError, err error) {
	pending, err := s.rawRepo.GetPending(ctx)
	if err != nil {
		return 0, 0, nil, err
	}

	for _, row := range pending {
		_, skip, cerr := classify(&row)
		switch {
		case cerr != nil:
			if uerr := s.rawRepo.UpdateEtlStatus(ctx, row.ID, model.EtlStatusError, cerr.Error()); uerr != nil {
				return transformed, skipped, rowErrors, uerr
			}
			rowErrors = append(rowErrors, model.EtlRowError{
				RawID:                  row.ID,
				Source:                 row.Source,
				BrokerageTransactionID: row.BrokerageTransactionID,
				Error:                  cerr.Error(),
			})
			s.log.Error().
				Str("raw_id", row.ID).
				Str("source", row.Source).
				Str("raw_type", row.RawType).
				Err(cerr).
				Msg("etl transform failed for row")

		case skip:
			if uerr := s.rawRepo.UpdateEtlStatus(ctx, row.ID, model.EtlStatusSkipped, ""); uerr != nil {
				return transformed, skipped, rowErrors, uerr
			}
			skipped++

		default:
			if uerr := s.rawRepo.UpdateEtlStatus(ctx, row.ID, model.EtlStatusTransformed, ""); uerr != nil {
				return transformed, skipped, rowErrors, uerr
			}
			transformed++
		}
	}

	s.log.Info().
		Int("transformed", transformed).
		Int("skipped", skipped).
		Int("errors", len(rowErrors)).
		Msg("etl transform complete")

	return transformed, skipped, rowErrors, nil
}

// Load folds transformed rows that have no canonical trade yet into the
// canonical_trade table. The trade dedupe key mirrors the raw key, so loading
// the same row twice can never produce two trades.
func (s *EtlService) Load(ctx context.Context) (loaded int, err error) {
	rows, err := s.rawRepo.GetTransformedUnloaded(ctx)
	if err != nil {
		return 0, err
	}

	for _, row := range rows {
		classified, _, err := classify(&row)
		if err != nil {
			// Status changed between stages; leave the row for the next transform.
			continue
		}

		trade := &model.CanonicalTrade{
			ID:                     uuid.New().String(),
			Source:                 row.Source,
			BrokerageTransactionID: row.BrokerageTransactionID,
			TradeDate:              row.TransactionDate,
			TradeType:              classified.tradeType,
			Category:               classified.category,
			Symbol:                 row.Symbol,
			Quantity:               row.Quantity,
			Price:                  row.Price,
			Amount:                 row.Amount,
			Currency:               row.Currency,
			CreatedAt:              time.Now().UTC(),
		}

		ok, err := s.tradeRepo.InsertIfAbsent(ctx, trade)
		if err != nil {
			return loaded, err
		}
		if !ok {
			// Trade already exists from an earlier partial run; link to it.
			existing, err := s.tradeRepo.GetByDedupeKey(ctx, row.Source, row.BrokerageTransactionID)
			if err != nil {
				return loaded, err
			}
			if existing == nil {
				return loaded, fmt.Errorf("canonical trade for %s/%s vanished during load",
					row.Source, row.BrokerageTransactionID)
			}
			trade = existing
		} else {
			loaded++
		}

		if err := s.rawRepo.SetTradeReference(ctx, row.ID, trade.ID); err != nil {
			return loaded, err
		}
	}

	s.log.Info().Int("loaded", loaded).Msg("etl load complete")
	return loaded, nil
}

// Run executes the full pipeline for one source.
func (s *EtlService) Run(ctx context.Context, sourceName string, start, end time.Time) (*model.EtlResult, error) {
	source, err := s.sources.Get(sourceName)
	if err != nil {
		return nil, err
	}

	result := &model.EtlResult{Source: sourceName, WindowStart: start, WindowEnd: end}
	if result.Extracted, result.Inserted, err = s.Extract(ctx, source, start, end); err != nil {
		return result, err
	}
	if result.Transformed, result.Skipped, result.Errors, err = s.Transform(ctx); err != nil {
		return result, err
	}
	if result.Loaded, err = s.Load(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// RunAll executes the full pipeline across every registered source.
func (s *EtlService) RunAll(ctx context.Context, start, end time.Time) (*model.EtlResult, error) {
	result := &model.EtlResult{WindowStart: start, WindowEnd: end}
	var err error
	if result.Extracted, result.Inserted, err = s.ExtractAll(ctx, start, end); err != nil {
		return result, err
	}
	if result.Transformed, result.Skipped, result.Errors, err = s.Transform(ctx); err != nil {
		return result, err
	}
	if result.Loaded, err = s.Load(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// classification is the canonical (type, category) pair a raw row maps to.
type classification struct {
	tradeType string
	category  string
}

// classify maps a raw row's source-specific type code onto the canonical trade
// taxonomy. It is pure, so transform and load can both call it and agree.
func classify(row *model.RawBrokerageTransaction) (classification, bool, error) {
	switch row.Source {
	case "ibkr":
		return classifyIbkr(row)
	case "alpaca":
		return classifyAlpaca(row)
	default:
		return classification{}, false, fmt.Errorf("no transform rules for source %q", row.Source)
	}
}

func classifyIbkr(row *model.RawBrokerageTransaction) (classification, bool, error) {
	switch {
	case row.RawType == "Trade:BUY":
		return classification{model.TradeTypeTrade, model.TradeCategoryBuy}, false, nil
	case row.RawType == "Trade:SELL":
		return classification{model.TradeTypeTrade, model.TradeCategorySell}, false, nil
	case row.RawType == "Deposits/Withdrawals":
		return classification{model.TradeTypeAchTransfer, cashCategory(row)}, false, nil
	case row.RawType == "Dividends" || row.RawType == "Payment In Lieu Of Dividends":
		return classification{model.TradeTypeDividend, model.TradeCategoryOther}, false, nil
	case strings.HasPrefix(row.RawType, "Broker Interest"):
		return classification{model.TradeTypeInterest, model.TradeCategoryOther}, false, nil
	case row.RawType == "Other Fees" || row.RawType == "Commission Adjustments":
		return classification{model.TradeTypeFee, model.TradeCategoryOther}, false, nil
	case row.RawType == "FX Translation" || row.RawType == "Starting Balance":
		// Bookkeeping rows with no cash or position effect of their own.
		return classification{}, true, nil
	default:
		return classification{}, false, fmt.Errorf("unknown ibkr transaction type %q", row.RawType)
	}
}

func classifyAlpaca(row *model.RawBrokerageTransaction) (classification, bool, error) {
	switch {
	case row.RawType == "FILL:buy":
		return classification{model.TradeTypeTrade, model.TradeCategoryBuy}, false, nil
	case row.RawType == "FILL:sell":
		return classification{model.TradeTypeTrade, model.TradeCategorySell}, false, nil
	case row.RawType == "TRANS" || row.RawType == "CSD" || row.RawType == "CSW":
		return classification{model.TradeTypeAchTransfer, cashCategory(row)}, false, nil
	case strings.HasPrefix(row.RawType, "DIV"):
		return classification{model.TradeTypeDividend, model.TradeCategoryOther}, false, nil
	case row.RawType == "INT":
		return classification{model.TradeTypeInterest, model.TradeCategoryOther}, false, nil
	case row.RawType == "FEE" || row.RawType == "REG" || row.RawType == "TAF":
		return classification{model.TradeTypeFee, model.TradeCategoryOther}, false, nil
	case row.RawType == "MEM":
		return classification{}, true, nil
	default:
		return classification{}, false, fmt.Errorf("unknown alpaca activity type %q", row.RawType)
	}
}

// cashCategory resolves transfer direction from the signed amount.
func cashCategory(row *model.RawBrokerageTransaction) string {
	if row.Amount.IsNegative() {
		return model.TradeCategoryWithdrawal
	}
	return model.TradeCategoryDeposit
}
