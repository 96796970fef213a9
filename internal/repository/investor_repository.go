package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
	"github.com/jmertens/fund-accounting-engine/internal/model"
)

// InvestorRepository provides data access methods for the investor table.
// The share and basis aggregates are only ever written through the ledger's
// transactional posting path.
type InvestorRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewInvestorRepository creates a new InvestorRepository with the provided database connection.
func NewInvestorRepository(db *sql.DB) *InvestorRepository {
	return &InvestorRepository{db: db}
}

// WithTx returns a copy of the repository that runs inside the given transaction.
func (r *InvestorRepository) WithTx(tx *sql.Tx) *InvestorRepository {
	return &InvestorRepository{db: r.db, tx: tx}
}

func (r *InvestorRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// Insert creates a new investor row.
func (r *InvestorRepository) Insert(ctx context.Context, investor *model.Investor) error {
	query := `
		INSERT INTO investor (id, name, email, current_shares, net_investment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.getQuerier().ExecContext(ctx, query,
		investor.ID,
		investor.Name,
		investor.Email,
		investor.CurrentShares.String(),
		investor.NetInvestment.String(),
		investor.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return fmt.Errorf("failed to insert investor: %w", err)
	}
	return nil
}

// GetInvestor retrieves a single investor by ID.
func (r *InvestorRepository) GetInvestor(ctx context.Context, investorID string) (*model.Investor, error) {
	query := `
		SELECT id, name, email, current_shares, net_investment, created_at
		FROM investor
		WHERE id = ?
	`
	return r.scanInvestor(r.getQuerier().QueryRowContext(ctx, query, investorID))
}

// GetAll retrieves all investors ordered by name.
func (r *InvestorRepository) GetAll(ctx context.Context) ([]model.Investor, error) {
	query := `
		SELECT id, name, email, current_shares, net_investment, created_at
		FROM investor
		ORDER BY name ASC
	`
	rows, err := r.getQuerier().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query investor table: %w", err)
	}
	defer rows.Close()

	investors := []model.Investor{}
	for rows.Next() {
		var i model.Investor
		var email sql.NullString
		var sharesStr, basisStr, createdAtStr string

		if err := rows.Scan(&i.ID, &i.Name, &email, &sharesStr, &basisStr, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan investor table results: %w", err)
		}
		if email.Valid {
			i.Email = email.String
		}
		if i.CurrentShares, err = ParseDecimal(sharesStr); err != nil {
			return nil, err
		}
		if i.NetInvestment, err = ParseDecimal(basisStr); err != nil {
			return nil, err
		}
		if i.CreatedAt, err = ParseTime(createdAtStr); err != nil {
			return nil, err
		}
		investors = append(investors, i)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating investor table: %w", err)
	}

	return investors, nil
}

// TotalShares sums current_shares across all investors. This is the fund's
// total outstanding share count used by the NAV computation.
func (r *InvestorRepository) TotalShares(ctx context.Context) (decimal.Decimal, error) {
	// Shares are stored as TEXT; SQLite's SUM would coerce to REAL, so the sum
	// is done exactly in decimal here.
	rows, err := r.getQuerier().QueryContext(ctx, `SELECT current_shares FROM investor`)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query investor shares: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var sharesStr string
		if err := rows.Scan(&sharesStr); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan investor shares: %w", err)
		}
		shares, err := ParseDecimal(sharesStr)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(shares)
	}
	if err = rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating investor shares: %w", err)
	}

	return total, nil
}

// UpdateAggregates writes new share and basis aggregates for an investor.
// Only the ledger posting path calls this, always inside a transaction that
// also inserts the corresponding ledger entry.
func (r *InvestorRepository) UpdateAggregates(ctx context.Context, investorID string, shares, netInvestment decimal.Decimal) error {
	query := `UPDATE investor SET current_shares = ?, net_investment = ? WHERE id = ?`

	result, err := r.getQuerier().ExecContext(ctx, query, shares.String(), netInvestment.String(), investorID)
	if err != nil {
		return fmt.Errorf("failed to update investor aggregates: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrInvestorNotFound
	}
	return nil
}

func (r *InvestorRepository) scanInvestor(row *sql.Row) (*model.Investor, error) {
	var i model.Investor
	var email sql.NullString
	var sharesStr, basisStr, createdAtStr string

	err := row.Scan(&i.ID, &i.Name, &email, &sharesStr, &basisStr, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrInvestorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan investor table results: %w", err)
	}
	if email.Valid {
		i.Email = email.String
	}
	if i.CurrentShares, err = ParseDecimal(sharesStr); err != nil {
		return nil, err
	}
	if i.NetInvestment, err = ParseDecimal(basisStr); err != nil {
		return nil, err
	}
	if i.CreatedAt, err = ParseTime(createdAtStr); err != nil {
		return nil, err
	}
	return &i, nil
}
