package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
	"github.com/jmertens/fund-accounting-engine/internal/repository"
	"github.com/jmertens/fund-accounting-engine/internal/service"
	"github.com/jmertens/fund-accounting-engine/internal/testutil"
)

func TestInvestorService(t *testing.T) {
	ctx := context.Background()

	t.Run("create starts with zero shares and basis", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := service.NewInvestorService(
			repository.NewInvestorRepository(db),
			repository.NewNavRepository(db),
			testutil.NewTestTaxService(t, db, testutil.WithholdingTaxConfig()),
		)

		investor, err := svc.Create(ctx, "Alice Vermeer", "alice@example.com")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if !investor.CurrentShares.IsZero() || !investor.NetInvestment.IsZero() {
			t.Errorf("Expected zero position, got %s shares / %s basis",
				investor.CurrentShares, investor.NetInvestment)
		}

		loaded, err := svc.Get(ctx, investor.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if loaded.Name != "Alice Vermeer" {
			t.Errorf("Expected name Alice Vermeer, got %s", loaded.Name)
		}
	})

	t.Run("get fails for an unknown investor", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := service.NewInvestorService(
			repository.NewInvestorRepository(db),
			repository.NewNavRepository(db),
			testutil.NewTestTaxService(t, db, testutil.WithholdingTaxConfig()),
		)

		if _, err := svc.Get(ctx, testutil.MakeID()); !errors.Is(err, apperrors.ErrInvestorNotFound) {
			t.Errorf("Expected ErrInvestorNotFound, got %v", err)
		}
	})

	t.Run("eligible withdrawal projects at the nav in force", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := service.NewInvestorService(
			repository.NewInvestorRepository(db),
			repository.NewNavRepository(db),
			testutil.NewTestTaxService(t, db, testutil.WithholdingTaxConfig()),
		)
		investor := testutil.NewInvestor().WithShares("14750", "15000").Build(t, db)
		testutil.NewNavRecord().WithDate("2026-02-09").WithNavPerShare("1.2864").Build(t, db)

		preview, err := svc.EligibleWithdrawal(ctx, investor.ID, testutil.MustDate(t, "2026-02-10"))
		if err != nil {
			t.Fatalf("EligibleWithdrawal failed: %v", err)
		}
		if got := preview.CurrentValue.String(); got != "18974.4" {
			t.Errorf("Expected current value 18974.4, got %s", got)
		}
		if got := preview.Eligible.String(); got != "17503.87" {
			t.Errorf("Expected 17503.87 eligible, got %s", got)
		}
		if got := preview.NavDate.Format("2006-01-02"); got != "2026-02-09" {
			t.Errorf("Expected nav dated 2026-02-09, got %s", got)
		}
	})

	t.Run("eligible withdrawal fails with no published nav", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := service.NewInvestorService(
			repository.NewInvestorRepository(db),
			repository.NewNavRepository(db),
			testutil.NewTestTaxService(t, db, testutil.WithholdingTaxConfig()),
		)
		investor := testutil.NewInvestor().Build(t, db)

		_, err := svc.EligibleWithdrawal(ctx, investor.ID, testutil.MustDate(t, "2026-02-10"))
		if !errors.Is(err, apperrors.ErrNavRecordNotFound) {
			t.Errorf("Expected ErrNavRecordNotFound, got %v", err)
		}
	})
}
