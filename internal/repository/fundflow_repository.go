package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
	"github.com/jmertens/fund-accounting-engine/internal/model"
)

// FundFlowRepository provides data access methods for the fund_flow_request table.
// Requests are mutated only through state-machine transitions and never deleted.
type FundFlowRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewFundFlowRepository creates a new FundFlowRepository with the provided database connection.
func NewFundFlowRepository(db *sql.DB) *FundFlowRepository {
	return &FundFlowRepository{db: db}
}

// WithTx returns a copy of the repository that runs inside the given transaction.
func (r *FundFlowRepository) WithTx(tx *sql.Tx) *FundFlowRepository {
	return &FundFlowRepository{db: r.db, tx: tx}
}

func (r *FundFlowRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const fundFlowColumns = `id, investor_id, flow_type, requested_amount, status, effective_date,
	matched_raw_id, ledger_entry_id, shares_transacted, nav_per_share, realized_gain,
	tax_withheld, net_proceeds, created_at, updated_at, processed_at`

// Insert creates a new request row.
func (r *FundFlowRepository) Insert(ctx context.Context, req *model.FundFlowRequest) error {
	query := `
		INSERT INTO fund_flow_request (id, investor_id, flow_type, requested_amount, status,
			effective_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := req.CreatedAt.UTC().Format("2006-01-02 15:04:05")
	_, err := r.getQuerier().ExecContext(ctx, query,
		req.ID,
		req.InvestorID,
		req.FlowType,
		req.RequestedAmount.String(),
		req.Status,
		req.EffectiveDate.Format("2006-01-02"),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fund flow request: %w", err)
	}
	return nil
}

// Get retrieves a single request by ID.
func (r *FundFlowRepository) Get(ctx context.Context, requestID string) (*model.FundFlowRequest, error) {
	query := `SELECT ` + fundFlowColumns + ` FROM fund_flow_request WHERE id = ?`

	row := r.getQuerier().QueryRowContext(ctx, query, requestID)
	req, err := scanFundFlowRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrFundFlowNotFound
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// GetByStatus retrieves all requests in the given status, oldest first.
// An empty status returns every request.
func (r *FundFlowRepository) GetByStatus(ctx context.Context, status string) ([]model.FundFlowRequest, error) {
	query := `SELECT ` + fundFlowColumns + ` FROM fund_flow_request`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fund_flow_request table: %w", err)
	}
	defer rows.Close()

	requests := []model.FundFlowRequest{}
	for rows.Next() {
		req, err := scanFundFlowRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fund_flow_request table: %w", err)
	}

	return requests, nil
}

// UpdateStatus writes a bare status transition.
func (r *FundFlowRepository) UpdateStatus(ctx context.Context, requestID, status string) error {
	query := `UPDATE fund_flow_request SET status = ?, updated_at = ? WHERE id = ?`
	return r.exec(ctx, query, status, nowString(), requestID)
}

// SetMatched binds the request to a raw brokerage transaction and moves the
// effective date to the cash movement's date.
func (r *FundFlowRepository) SetMatched(ctx context.Context, requestID, rawID string, effectiveDate time.Time) error {
	query := `
		UPDATE fund_flow_request
		SET status = ?, matched_raw_id = ?, effective_date = ?, updated_at = ?
		WHERE id = ?
	`
	err := r.exec(ctx, query, model.FlowStatusMatched, rawID,
		effectiveDate.Format("2006-01-02"), nowString(), requestID)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return apperrors.ErrRawTransactionMatched
	}
	return err
}

// ClearMatched unlinks the raw transaction and records the cancellation. The
// raw transaction becomes available for re-matching.
func (r *FundFlowRepository) ClearMatched(ctx context.Context, requestID, status string) error {
	query := `UPDATE fund_flow_request SET status = ?, matched_raw_id = NULL, updated_at = ? WHERE id = ?`
	return r.exec(ctx, query, status, nowString(), requestID)
}

// StoreProcessed writes the terminal state and the derived settlement fields.
// Always called inside the same transaction as the ledger posting.
func (r *FundFlowRepository) StoreProcessed(ctx context.Context, req *model.FundFlowRequest) error {
	query := `
		UPDATE fund_flow_request
		SET status = ?, ledger_entry_id = ?, shares_transacted = ?, nav_per_share = ?,
			realized_gain = ?, tax_withheld = ?, net_proceeds = ?, updated_at = ?, processed_at = ?
		WHERE id = ?
	`
	now := nowString()
	return r.exec(ctx, query,
		model.FlowStatusProcessed,
		req.LedgerEntryID,
		req.SharesTransacted.String(),
		req.NavPerShare.String(),
		req.RealizedGain.String(),
		req.TaxWithheld.String(),
		req.NetProceeds.String(),
		now,
		now,
		req.ID,
	)
}

func (r *FundFlowRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.getQuerier().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update fund flow request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrFundFlowNotFound
	}
	return nil
}

func scanFundFlowRow(scan func(dest ...any) error) (*model.FundFlowRequest, error) {
	var f model.FundFlowRequest
	var amountStr, effectiveDateStr, sharesStr, navStr, gainStr, taxStr, proceedsStr string
	var createdAtStr, updatedAtStr string
	var matchedRawID, ledgerEntryID, processedAtStr sql.NullString

	err := scan(&f.ID, &f.InvestorID, &f.FlowType, &amountStr, &f.Status, &effectiveDateStr,
		&matchedRawID, &ledgerEntryID, &sharesStr, &navStr, &gainStr,
		&taxStr, &proceedsStr, &createdAtStr, &updatedAtStr, &processedAtStr)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan fund_flow_request table results: %w", err)
	}

	if f.RequestedAmount, err = ParseDecimal(amountStr); err != nil {
		return nil, err
	}
	if f.EffectiveDate, err = ParseTime(effectiveDateStr); err != nil {
		return nil, err
	}
	if matchedRawID.Valid {
		f.MatchedRawID = matchedRawID.String
	}
	if ledgerEntryID.Valid {
		f.LedgerEntryID = ledgerEntryID.String
	}
	if f.SharesTransacted, err = ParseDecimal(sharesStr); err != nil {
		return nil, err
	}
	if f.NavPerShare, err = ParseDecimal(navStr); err != nil {
		return nil, err
	}
	if f.RealizedGain, err = ParseDecimal(gainStr); err != nil {
		return nil, err
	}
	if f.TaxWithheld, err = ParseDecimal(taxStr); err != nil {
		return nil, err
	}
	if f.NetProceeds, err = ParseDecimal(proceedsStr); err != nil {
		return nil, err
	}
	if f.CreatedAt, err = ParseTime(createdAtStr); err != nil {
		return nil, err
	}
	if f.UpdatedAt, err = ParseTime(updatedAtStr); err != nil {
		return nil, err
	}
	if processedAtStr.Valid {
		processedAt, err := ParseTime(processedAtStr.String)
		if err != nil {
			return nil, err
		}
		f.ProcessedAt = &processedAt
	}
	return &f, nil
}

func nowString() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}
