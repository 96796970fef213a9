package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
	"github.com/jmertens/fund-accounting-engine/internal/model"
	"github.com/jmertens/fund-accounting-engine/internal/repository"
	"github.com/jmertens/fund-accounting-engine/internal/testutil"
)

func TestLedgerService_Post_Issuance(t *testing.T) {
	t.Run("issues amount/nav shares on contribution", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ls := testutil.NewTestLedgerService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().Build(t, db)

		entry, err := ls.Post(context.Background(), investor.ID, model.EntryInitial,
			decimal.RequireFromString("5000"), decimal.RequireFromString("100"),
			time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("Post failed: %v", err)
		}

		if got := entry.SharesTransacted.String(); got != "50" {
			t.Errorf("Expected 50 shares transacted, got %s", got)
		}
		if got := entry.BasisDelta.String(); got != "5000" {
			t.Errorf("Expected basis delta 5000, got %s", got)
		}

		updated, err := repository.NewInvestorRepository(db).GetInvestor(context.Background(), investor.ID)
		if err != nil {
			t.Fatalf("GetInvestor failed: %v", err)
		}
		if !updated.CurrentShares.Equal(decimal.RequireFromString("50")) {
			t.Errorf("Expected current shares 50, got %s", updated.CurrentShares)
		}
		if !updated.NetInvestment.Equal(decimal.RequireFromString("5000")) {
			t.Errorf("Expected net investment 5000, got %s", updated.NetInvestment)
		}
	})

	t.Run("rounds issued shares to four decimal places", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ls := testutil.NewTestLedgerService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().Build(t, db)

		entry, err := ls.Post(context.Background(), investor.ID, model.EntryContribution,
			decimal.RequireFromString("1000"), decimal.RequireFromString("1.2864"),
			time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("Post failed: %v", err)
		}
		// 1000 / 1.2864 = 777.363184...
		if got := entry.SharesTransacted.String(); got != "777.3632" {
			t.Errorf("Expected 777.3632 shares, got %s", got)
		}
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ls := testutil.NewTestLedgerService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().Build(t, db)

		_, err := ls.Post(context.Background(), investor.ID, model.EntryContribution,
			decimal.Zero, decimal.RequireFromString("100"),
			time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
		if !errors.Is(err, apperrors.ErrNegativeAmount) {
			t.Errorf("Expected ErrNegativeAmount, got %v", err)
		}
	})
}

func TestLedgerService_Post_Redemption(t *testing.T) {
	t.Run("redeems proportional shares and basis", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ls := testutil.NewTestLedgerService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().WithShares("14750", "15000").Build(t, db)

		entry, err := ls.Post(context.Background(), investor.ID, model.EntryWithdrawal,
			decimal.RequireFromString("1000"), decimal.RequireFromString("1.2864"),
			time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("Post failed: %v", err)
		}

		if got := entry.Amount.String(); got != "-1000" {
			t.Errorf("Expected amount -1000, got %s", got)
		}
		if got := entry.SharesTransacted.String(); got != "-777.3632" {
			t.Errorf("Expected -777.3632 shares, got %s", got)
		}
		if got := entry.BasisDelta.String(); got != "-790.54" {
			t.Errorf("Expected basis delta -790.54, got %s", got)
		}

		updated, err := repository.NewInvestorRepository(db).GetInvestor(context.Background(), investor.ID)
		if err != nil {
			t.Fatalf("GetInvestor failed: %v", err)
		}
		if got := updated.CurrentShares.String(); got != "13972.6368" {
			t.Errorf("Expected current shares 13972.6368, got %s", got)
		}
		if got := updated.NetInvestment.String(); got != "14209.46" {
			t.Errorf("Expected net investment 14209.46, got %s", got)
		}
	})

	t.Run("full redemption closes the position exactly", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ls := testutil.NewTestLedgerService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().WithShares("50", "5000").Build(t, db)

		// 50 shares at nav 100 are worth exactly 5000.
		_, err := ls.Post(context.Background(), investor.ID, model.EntryWithdrawal,
			decimal.RequireFromString("5000"), decimal.RequireFromString("100"),
			time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("Post failed: %v", err)
		}

		updated, err := repository.NewInvestorRepository(db).GetInvestor(context.Background(), investor.ID)
		if err != nil {
			t.Fatalf("GetInvestor failed: %v", err)
		}
		if !updated.CurrentShares.IsZero() {
			t.Errorf("Expected zero shares after full redemption, got %s", updated.CurrentShares)
		}
		if !updated.NetInvestment.IsZero() {
			t.Errorf("Expected zero basis after full redemption, got %s", updated.NetInvestment)
		}
	})

	t.Run("rejects withdrawal exceeding position value and leaves state untouched", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ls := testutil.NewTestLedgerService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().WithShares("50", "5000").Build(t, db)

		_, err := ls.Post(context.Background(), investor.ID, model.EntryWithdrawal,
			decimal.RequireFromString("5000.01"), decimal.RequireFromString("100"),
			time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))

		var insufficient *apperrors.InsufficientSharesError
		if !errors.As(err, &insufficient) {
			t.Fatalf("Expected InsufficientSharesError, got %v", err)
		}
		if got := insufficient.CurrentValue.String(); got != "5000" {
			t.Errorf("Expected current value 5000 in error, got %s", got)
		}

		updated, err := repository.NewInvestorRepository(db).GetInvestor(context.Background(), investor.ID)
		if err != nil {
			t.Fatalf("GetInvestor failed: %v", err)
		}
		if got := updated.CurrentShares.String(); got != "50" {
			t.Errorf("Expected shares unchanged at 50, got %s", got)
		}

		entries, err := repository.NewLedgerRepository(db).GetByInvestor(context.Background(), investor.ID)
		if err != nil {
			t.Fatalf("GetByInvestor failed: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("Expected no ledger entries after failed withdrawal, got %d", len(entries))
		}
	})
}

func TestLedgerService_Reverse(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	t.Run("reversal restores aggregates exactly", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ls := testutil.NewTestLedgerService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().WithShares("14750", "15000").Build(t, db)

		entry, err := ls.Post(ctx, investor.ID, model.EntryWithdrawal,
			decimal.RequireFromString("1000"), decimal.RequireFromString("1.2864"), date)
		if err != nil {
			t.Fatalf("Post failed: %v", err)
		}

		reversal, err := ls.Reverse(ctx, entry.ID, date)
		if err != nil {
			t.Fatalf("Reverse failed: %v", err)
		}
		if reversal.Kind != model.EntryReversal {
			t.Errorf("Expected reversal kind, got %s", reversal.Kind)
		}
		if !reversal.SharesTransacted.Equal(entry.SharesTransacted.Neg()) {
			t.Errorf("Expected inverted shares %s, got %s", entry.SharesTransacted.Neg(), reversal.SharesTransacted)
		}

		// The builder seeded aggregates without ledger entries, so the re-derived
		// sums cover only the two posted entries, which cancel to zero net effect.
		shares, basis, err := repository.NewLedgerRepository(db).SumAggregates(ctx, investor.ID)
		if err != nil {
			t.Fatalf("SumAggregates failed: %v", err)
		}
		if !shares.IsZero() {
			t.Errorf("Expected ledger share sum zero after reversal, got %s", shares)
		}
		if !basis.IsZero() {
			t.Errorf("Expected ledger basis sum zero after reversal, got %s", basis)
		}
	})

	t.Run("reversal of a taxed withdrawal posts a compensating event", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ls := testutil.NewTestLedgerService(t, db, testutil.WithholdingTaxConfig())
		ffs := testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().WithShares("14750", "15000").Build(t, db)
		testutil.NewNavRecord().WithDate("2026-01-02").WithNavPerShare("1.2864").Build(t, db)
		raw := testutil.NewRawTransaction().WithAmount("-1000").Build(t, db)
		flow := testutil.NewFundFlow(investor.ID).Withdrawal("1000").
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)

		if _, err := ffs.Match(ctx, flow.ID, raw.ID); err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		processed, err := ffs.Process(ctx, flow.ID)
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}

		if _, err := ls.Reverse(ctx, processed.LedgerEntryID, date); err != nil {
			t.Fatalf("Reverse failed: %v", err)
		}

		events, err := repository.NewTaxEventRepository(db).GetByInvestor(ctx, investor.ID)
		if err != nil {
			t.Fatalf("GetByInvestor failed: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("Expected original plus compensating event, got %d", len(events))
		}

		total := repository.SumRealizedGains(events)
		if !total.IsZero() {
			t.Errorf("Expected realized gains to net to zero, got %s", total)
		}

		var compensating *model.TaxEvent
		for i := range events {
			if events[i].CompensationOf != "" {
				compensating = &events[i]
			}
		}
		if compensating == nil {
			t.Fatal("Expected a compensating event with compensation_of set")
		}
		if !compensating.RealizedGain.IsNegative() {
			t.Errorf("Expected negative realized gain on compensation, got %s", compensating.RealizedGain)
		}
	})

	t.Run("rejects reversing a reversal", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ls := testutil.NewTestLedgerService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().Build(t, db)

		entry, err := ls.Post(ctx, investor.ID, model.EntryContribution,
			decimal.RequireFromString("1000"), decimal.RequireFromString("100"), date)
		if err != nil {
			t.Fatalf("Post failed: %v", err)
		}
		reversal, err := ls.Reverse(ctx, entry.ID, date)
		if err != nil {
			t.Fatalf("Reverse failed: %v", err)
		}

		_, err = ls.Reverse(ctx, reversal.ID, date)
		if !errors.Is(err, apperrors.ErrReversalOfReversal) {
			t.Errorf("Expected ErrReversalOfReversal, got %v", err)
		}
	})

	t.Run("rejects reversing the same entry twice", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ls := testutil.NewTestLedgerService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().Build(t, db)

		entry, err := ls.Post(ctx, investor.ID, model.EntryContribution,
			decimal.RequireFromString("1000"), decimal.RequireFromString("100"), date)
		if err != nil {
			t.Fatalf("Post failed: %v", err)
		}
		if _, err := ls.Reverse(ctx, entry.ID, date); err != nil {
			t.Fatalf("Reverse failed: %v", err)
		}

		_, err = ls.Reverse(ctx, entry.ID, date)
		if !errors.Is(err, apperrors.ErrDuplicateEntry) {
			t.Errorf("Expected ErrDuplicateEntry, got %v", err)
		}
	})

	t.Run("rejects a reversal that would drive shares negative", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ls := testutil.NewTestLedgerService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().Build(t, db)

		contribution, err := ls.Post(ctx, investor.ID, model.EntryInitial,
			decimal.RequireFromString("5000"), decimal.RequireFromString("100"), date)
		if err != nil {
			t.Fatalf("Post failed: %v", err)
		}
		// Withdraw most of the position, then try to reverse the contribution.
		if _, err := ls.Post(ctx, investor.ID, model.EntryWithdrawal,
			decimal.RequireFromString("4000"), decimal.RequireFromString("100"), date); err != nil {
			t.Fatalf("Post failed: %v", err)
		}

		_, err = ls.Reverse(ctx, contribution.ID, date)
		var insufficient *apperrors.InsufficientSharesError
		if !errors.As(err, &insufficient) {
			t.Errorf("Expected InsufficientSharesError, got %v", err)
		}
	})
}
