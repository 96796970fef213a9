package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
	"github.com/jmertens/fund-accounting-engine/internal/model"
	"github.com/jmertens/fund-accounting-engine/internal/repository"
	"github.com/jmertens/fund-accounting-engine/internal/testutil"
)

func TestFundFlowService_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("contribution runs pending to processed and issues shares", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ffs := testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().Build(t, db)
		testutil.NewNavRecord().Build(t, db) // 2026-01-02 at 100.0000
		raw := testutil.NewRawTransaction().WithAmount("5000").Build(t, db)

		flow, err := ffs.Submit(ctx, investor.ID, model.FlowContribution,
			decimal.RequireFromString("5000"), testutil.MustDate(t, "2026-01-02"))
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if flow.Status != model.FlowStatusPending {
			t.Fatalf("Expected pending after submit, got %s", flow.Status)
		}

		if flow, err = ffs.Approve(ctx, flow.ID); err != nil {
			t.Fatalf("Approve failed: %v", err)
		}
		if flow, err = ffs.MarkAwaitingFunds(ctx, flow.ID); err != nil {
			t.Fatalf("MarkAwaitingFunds failed: %v", err)
		}
		if flow, err = ffs.Match(ctx, flow.ID, raw.ID); err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		if flow.Status != model.FlowStatusMatched {
			t.Fatalf("Expected matched, got %s", flow.Status)
		}
		if flow.MatchedRawID != raw.ID {
			t.Errorf("Expected matched raw %s, got %s", raw.ID, flow.MatchedRawID)
		}

		flow, err = ffs.Process(ctx, flow.ID)
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		if flow.Status != model.FlowStatusProcessed {
			t.Errorf("Expected processed, got %s", flow.Status)
		}
		if flow.ProcessedAt == nil {
			t.Error("Expected ProcessedAt to be set")
		}
		if got := flow.SharesTransacted.String(); got != "50" {
			t.Errorf("Expected 50 shares at nav 100, got %s", got)
		}
		if got := flow.NavPerShare.String(); got != "100" {
			t.Errorf("Expected nav per share 100, got %s", got)
		}
		if flow.LedgerEntryID == "" {
			t.Error("Expected a ledger entry reference on the processed request")
		}

		// First contribution into an empty position books as initial.
		entry, err := repository.NewLedgerRepository(db).GetEntry(ctx, flow.LedgerEntryID)
		if err != nil {
			t.Fatalf("GetEntry failed: %v", err)
		}
		if entry.Kind != model.EntryInitial {
			t.Errorf("Expected initial entry for a new position, got %s", entry.Kind)
		}
		if entry.FlowRequestID != flow.ID {
			t.Errorf("Expected entry to reference request %s, got %s", flow.ID, entry.FlowRequestID)
		}
	})

	t.Run("withdrawal settles with withheld tax and net proceeds", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ffs := testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().WithShares("14750", "15000").Build(t, db)
		testutil.NewNavRecord().WithDate("2026-02-10").WithNavPerShare("1.2864").Build(t, db)
		raw := testutil.NewRawTransaction().WithDate("2026-02-10").WithAmount("-1000").Build(t, db)
		flow := testutil.NewFundFlow(investor.ID).Withdrawal("1000").
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)

		if _, err := ffs.Match(ctx, flow.ID, raw.ID); err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		processed, err := ffs.Process(ctx, flow.ID)
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}

		if got := processed.SharesTransacted.String(); got != "-777.3632" {
			t.Errorf("Expected -777.3632 shares, got %s", got)
		}
		if got := processed.RealizedGain.String(); got != "209.46" {
			t.Errorf("Expected realized gain 209.46, got %s", got)
		}
		if got := processed.TaxWithheld.String(); got != "77.5" {
			t.Errorf("Expected 77.5 withheld, got %s", got)
		}
		if got := processed.NetProceeds.String(); got != "922.5" {
			t.Errorf("Expected net proceeds 922.5, got %s", got)
		}
		// Matching re-dated the request to the cash movement.
		if got := processed.EffectiveDate.Format("2006-01-02"); got != "2026-02-10" {
			t.Errorf("Expected effective date 2026-02-10, got %s", got)
		}

		updated, err := repository.NewInvestorRepository(db).GetInvestor(ctx, investor.ID)
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

	t.Run("withdrawal under quarterly policy defers the tax", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ffs := testutil.NewTestFundFlowService(t, db, testutil.QuarterlyTaxConfig())
		investor := testutil.NewInvestor().WithShares("14750", "15000").Build(t, db)
		testutil.NewNavRecord().WithDate("2026-02-10").WithNavPerShare("1.2864").Build(t, db)
		raw := testutil.NewRawTransaction().WithDate("2026-02-10").WithAmount("-1000").Build(t, db)
		flow := testutil.NewFundFlow(investor.ID).Withdrawal("1000").
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)

		if _, err := ffs.Match(ctx, flow.ID, raw.ID); err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		processed, err := ffs.Process(ctx, flow.ID)
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}

		if got := processed.RealizedGain.String(); got != "209.46" {
			t.Errorf("Expected realized gain 209.46, got %s", got)
		}
		if !processed.TaxWithheld.IsZero() {
			t.Errorf("Expected no withholding under quarterly policy, got %s", processed.TaxWithheld)
		}
		if got := processed.NetProceeds.String(); got != "1000" {
			t.Errorf("Expected full proceeds 1000, got %s", got)
		}
	})

	t.Run("rejection is terminal", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ffs := testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().Build(t, db)
		flow := testutil.NewFundFlow(investor.ID).Build(t, db)

		rejected, err := ffs.Reject(ctx, flow.ID)
		if err != nil {
			t.Fatalf("Reject failed: %v", err)
		}
		if rejected.Status != model.FlowStatusRejected {
			t.Fatalf("Expected rejected, got %s", rejected.Status)
		}

		_, err = ffs.Approve(ctx, flow.ID)
		var transition *apperrors.InvalidStateTransitionError
		if !errors.As(err, &transition) {
			t.Errorf("Expected InvalidStateTransitionError approving a rejected request, got %v", err)
		}

		_, err = ffs.Cancel(ctx, flow.ID)
		if !errors.As(err, &transition) {
			t.Errorf("Expected InvalidStateTransitionError cancelling a rejected request, got %v", err)
		}
	})

	t.Run("guards skipped states", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ffs := testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().Build(t, db)
		raw := testutil.NewRawTransaction().Build(t, db)
		flow := testutil.NewFundFlow(investor.ID).Build(t, db) // pending

		var transition *apperrors.InvalidStateTransitionError
		if _, err := ffs.MarkAwaitingFunds(ctx, flow.ID); !errors.As(err, &transition) {
			t.Errorf("Expected InvalidStateTransitionError marking a pending request, got %v", err)
		}
		if _, err := ffs.Match(ctx, flow.ID, raw.ID); !errors.As(err, &transition) {
			t.Errorf("Expected InvalidStateTransitionError matching a pending request, got %v", err)
		}
		if _, err := ffs.Process(ctx, flow.ID); !errors.As(err, &transition) {
			t.Errorf("Expected InvalidStateTransitionError processing a pending request, got %v", err)
		}
	})

	t.Run("submit validates type, amount and investor", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ffs := testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().Build(t, db)
		date := testutil.MustDate(t, "2026-01-02")

		if _, err := ffs.Submit(ctx, investor.ID, "transfer", decimal.RequireFromString("100"), date); !errors.Is(err, apperrors.ErrInvalidFlowType) {
			t.Errorf("Expected ErrInvalidFlowType, got %v", err)
		}
		if _, err := ffs.Submit(ctx, investor.ID, model.FlowContribution, decimal.Zero, date); !errors.Is(err, apperrors.ErrNegativeAmount) {
			t.Errorf("Expected ErrNegativeAmount, got %v", err)
		}
		if _, err := ffs.Submit(ctx, testutil.MakeID(), model.FlowContribution, decimal.RequireFromString("100"), date); !errors.Is(err, apperrors.ErrInvestorNotFound) {
			t.Errorf("Expected ErrInvestorNotFound, got %v", err)
		}
	})
}

func TestFundFlowService_Match(t *testing.T) {
	ctx := context.Background()

	t.Run("re-matching the same raw transaction is a no-op", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ffs := testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().Build(t, db)
		raw := testutil.NewRawTransaction().Build(t, db)
		flow := testutil.NewFundFlow(investor.ID).
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)

		first, err := ffs.Match(ctx, flow.ID, raw.ID)
		if err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		second, err := ffs.Match(ctx, flow.ID, raw.ID)
		if err != nil {
			t.Fatalf("Expected idempotent re-match, got %v", err)
		}
		if second.Status != model.FlowStatusMatched || second.MatchedRawID != first.MatchedRawID {
			t.Errorf("Expected unchanged match, got status %s raw %s", second.Status, second.MatchedRawID)
		}
	})

	t.Run("re-matching a different raw transaction conflicts", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ffs := testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().Build(t, db)
		raw := testutil.NewRawTransaction().Build(t, db)
		other := testutil.NewRawTransaction().Build(t, db)
		flow := testutil.NewFundFlow(investor.ID).
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)

		if _, err := ffs.Match(ctx, flow.ID, raw.ID); err != nil {
			t.Fatalf("Match failed: %v", err)
		}

		_, err := ffs.Match(ctx, flow.ID, other.ID)
		var conflict *apperrors.MatchConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("Expected MatchConflictError, got %v", err)
		}
		if conflict.MatchedID != raw.ID || conflict.NewID != other.ID {
			t.Errorf("Expected conflict between %s and %s, got %s and %s",
				raw.ID, other.ID, conflict.MatchedID, conflict.NewID)
		}
	})

	t.Run("a raw transaction evidences at most one request", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ffs := testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().Build(t, db)
		raw := testutil.NewRawTransaction().Build(t, db)
		first := testutil.NewFundFlow(investor.ID).
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)
		second := testutil.NewFundFlow(investor.ID).
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)

		if _, err := ffs.Match(ctx, first.ID, raw.ID); err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		if _, err := ffs.Match(ctx, second.ID, raw.ID); !errors.Is(err, apperrors.ErrRawTransactionMatched) {
			t.Errorf("Expected ErrRawTransactionMatched, got %v", err)
		}
	})

	t.Run("cash direction must agree with the flow type", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ffs := testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().Build(t, db)
		outflow := testutil.NewRawTransaction().WithAmount("-5000").Build(t, db)
		contribution := testutil.NewFundFlow(investor.ID).
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)

		if _, err := ffs.Match(ctx, contribution.ID, outflow.ID); !errors.Is(err, apperrors.ErrInvalidFlowType) {
			t.Errorf("Expected ErrInvalidFlowType matching a contribution to an outflow, got %v", err)
		}
	})
}

func TestFundFlowService_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("processing twice returns the stored result without reposting", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ffs := testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().Build(t, db)
		testutil.NewNavRecord().Build(t, db)
		raw := testutil.NewRawTransaction().Build(t, db)
		flow := testutil.NewFundFlow(investor.ID).
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)

		if _, err := ffs.Match(ctx, flow.ID, raw.ID); err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		first, err := ffs.Process(ctx, flow.ID)
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		second, err := ffs.Process(ctx, flow.ID)
		if err != nil {
			t.Fatalf("Second Process failed: %v", err)
		}
		if second.LedgerEntryID != first.LedgerEntryID {
			t.Errorf("Expected same ledger entry on replay, got %s vs %s",
				second.LedgerEntryID, first.LedgerEntryID)
		}

		entries, err := repository.NewLedgerRepository(db).GetByInvestor(ctx, investor.ID)
		if err != nil {
			t.Fatalf("GetByInvestor failed: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("Expected exactly one ledger entry, got %d", len(entries))
		}
	})

	t.Run("an overdrawn withdrawal leaves the request matched and the books untouched", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ffs := testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().WithShares("50", "5000").Build(t, db)
		testutil.NewNavRecord().Build(t, db) // 50 shares at 100 = 5000
		raw := testutil.NewRawTransaction().WithAmount("-6000").Build(t, db)
		flow := testutil.NewFundFlow(investor.ID).Withdrawal("6000").
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)

		if _, err := ffs.Match(ctx, flow.ID, raw.ID); err != nil {
			t.Fatalf("Match failed: %v", err)
		}

		_, err := ffs.Process(ctx, flow.ID)
		var insufficient *apperrors.InsufficientSharesError
		if !errors.As(err, &insufficient) {
			t.Fatalf("Expected InsufficientSharesError, got %v", err)
		}

		reloaded, err := ffs.Get(ctx, flow.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if reloaded.Status != model.FlowStatusMatched {
			t.Errorf("Expected request still matched, got %s", reloaded.Status)
		}

		entries, err := repository.NewLedgerRepository(db).GetByInvestor(ctx, investor.ID)
		if err != nil {
			t.Fatalf("GetByInvestor failed: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("Expected no ledger entries after failed processing, got %d", len(entries))
		}
		events, err := repository.NewTaxEventRepository(db).GetByInvestor(ctx, investor.ID)
		if err != nil {
			t.Fatalf("GetByInvestor failed: %v", err)
		}
		if len(events) != 0 {
			t.Errorf("Expected no tax events after failed processing, got %d", len(events))
		}
	})

	t.Run("fails when no nav is published on or before the effective date", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ffs := testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().Build(t, db)
		raw := testutil.NewRawTransaction().Build(t, db)
		flow := testutil.NewFundFlow(investor.ID).
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)

		if _, err := ffs.Match(ctx, flow.ID, raw.ID); err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		if _, err := ffs.Process(ctx, flow.ID); !errors.Is(err, apperrors.ErrNavRecordNotFound) {
			t.Errorf("Expected ErrNavRecordNotFound, got %v", err)
		}
	})
}

func TestFundFlowService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("cancelling a matched request frees its raw transaction", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ffs := testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().Build(t, db)
		raw := testutil.NewRawTransaction().Build(t, db)
		flow := testutil.NewFundFlow(investor.ID).
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)

		if _, err := ffs.Match(ctx, flow.ID, raw.ID); err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		cancelled, err := ffs.Cancel(ctx, flow.ID)
		if err != nil {
			t.Fatalf("Cancel failed: %v", err)
		}
		if cancelled.Status != model.FlowStatusCancelled {
			t.Errorf("Expected cancelled, got %s", cancelled.Status)
		}
		if cancelled.MatchedRawID != "" {
			t.Errorf("Expected raw transaction unlinked, got %s", cancelled.MatchedRawID)
		}

		// The freed cash movement is matchable by another request.
		other := testutil.NewFundFlow(investor.ID).
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)
		if _, err := ffs.Match(ctx, other.ID, raw.ID); err != nil {
			t.Errorf("Expected raw transaction to be matchable again, got %v", err)
		}
	})

	t.Run("a processed request cannot be cancelled", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ffs := testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig())
		investor := testutil.NewInvestor().Build(t, db)
		testutil.NewNavRecord().Build(t, db)
		raw := testutil.NewRawTransaction().Build(t, db)
		flow := testutil.NewFundFlow(investor.ID).
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)

		if _, err := ffs.Match(ctx, flow.ID, raw.ID); err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		if _, err := ffs.Process(ctx, flow.ID); err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		if _, err := ffs.Cancel(ctx, flow.ID); !errors.Is(err, apperrors.ErrCancelProcessed) {
			t.Errorf("Expected ErrCancelProcessed, got %v", err)
		}
	})
}
