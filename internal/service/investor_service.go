package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/model"
	"github.com/jmertens/fund-accounting-engine/internal/repository"
)

// InvestorService manages investor identities and read-side views over their
// positions. Aggregate mutation happens only through the ledger.
type InvestorService struct {
	investorRepo *repository.InvestorRepository
	navRepo      *repository.NavRepository
	tax          *TaxService
}

// NewInvestorService creates a new InvestorService with the provided dependencies.
func NewInvestorService(
	investorRepo *repository.InvestorRepository,
	navRepo *repository.NavRepository,
	tax *TaxService,
) *InvestorService {
	return &InvestorService{
		investorRepo: investorRepo,
		navRepo:      navRepo,
		tax:          tax,
	}
}

// Create registers a new investor with zero shares and zero basis.
func (s *InvestorService) Create(ctx context.Context, name, email string) (*model.Investor, error) {
	investor := &model.Investor{
		ID:            uuid.New().String(),
		Name:          name,
		Email:         email,
		CurrentShares: decimal.Zero,
		NetInvestment: decimal.Zero,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.investorRepo.Insert(ctx, investor); err != nil {
		return nil, err
	}
	return investor, nil
}

// Get returns one investor by ID.
func (s *InvestorService) Get(ctx context.Context, investorID string) (*model.Investor, error) {
	return s.investorRepo.GetInvestor(ctx, investorID)
}

// List returns all investors.
func (s *InvestorService) List(ctx context.Context) ([]model.Investor, error) {
	return s.investorRepo.GetAll(ctx)
}

// EligibleWithdrawal previews the after-tax amount the investor could withdraw
// at the NAV in force on the given date. Purely a projection; nothing is booked.
func (s *InvestorService) EligibleWithdrawal(ctx context.Context, investorID string, asOf time.Time) (*model.EligibleWithdrawal, error) {
	investor, err := s.investorRepo.GetInvestor(ctx, investorID)
	if err != nil {
		return nil, err
	}
	nav, err := s.navRepo.GetAsOf(ctx, asOf)
	if err != nil {
		return nil, err
	}
	return s.tax.Preview(investor, nav), nil
}
