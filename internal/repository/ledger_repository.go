package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
	"github.com/jmertens/fund-accounting-engine/internal/model"
)

// LedgerRepository provides data access methods for the ledger_entry table.
// The table is append-only: this repository exposes no update or delete
// operation for posted entries.
type LedgerRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewLedgerRepository creates a new LedgerRepository with the provided database connection.
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// WithTx returns a copy of the repository that runs inside the given transaction.
func (r *LedgerRepository) WithTx(tx *sql.Tx) *LedgerRepository {
	return &LedgerRepository{db: r.db, tx: tx}
}

func (r *LedgerRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const ledgerColumns = `id, investor_id, date, kind, amount, nav_per_share,
	shares_transacted, basis_delta, flow_request_id, reversal_of, created_at`

// Insert appends one ledger entry.
func (r *LedgerRepository) Insert(ctx context.Context, entry *model.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entry (id, investor_id, date, kind, amount, nav_per_share,
			shares_transacted, basis_delta, flow_request_id, reversal_of, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.getQuerier().ExecContext(ctx, query,
		entry.ID,
		entry.InvestorID,
		entry.Date.Format("2006-01-02"),
		entry.Kind,
		entry.Amount.String(),
		entry.NavPerShare.String(),
		entry.SharesTransacted.String(),
		entry.BasisDelta.String(),
		nullable(entry.FlowRequestID),
		nullable(entry.ReversalOf),
		entry.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// GetEntry retrieves a single ledger entry by ID.
func (r *LedgerRepository) GetEntry(ctx context.Context, entryID string) (*model.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entry WHERE id = ?`

	row := r.getQuerier().QueryRowContext(ctx, query, entryID)
	entry, err := scanLedgerRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrLedgerEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// GetByInvestor retrieves all entries for an investor in posting order.
func (r *LedgerRepository) GetByInvestor(ctx context.Context, investorID string) ([]model.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entry
		WHERE investor_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.getQuerier().QueryContext(ctx, query, investorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger_entry table: %w", err)
	}
	defer rows.Close()

	entries := []model.LedgerEntry{}
	for rows.Next() {
		entry, err := scanLedgerRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger_entry table: %w", err)
	}

	return entries, nil
}

// FindReversal returns the reversal entry for the given original entry, if one
// has been posted.
func (r *LedgerRepository) FindReversal(ctx context.Context, originalID string) (*model.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entry WHERE reversal_of = ?`

	row := r.getQuerier().QueryRowContext(ctx, query, originalID)
	entry, err := scanLedgerRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrLedgerEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// SumAggregates re-derives an investor's share and basis aggregates as exact
// decimal sums over all ledger entries. Reversal consistency depends on this
// re-derivation instead of stored "before" snapshots.
func (r *LedgerRepository) SumAggregates(ctx context.Context, investorID string) (shares, basis decimal.Decimal, err error) {
	query := `SELECT shares_transacted, basis_delta FROM ledger_entry WHERE investor_id = ?`

	rows, err := r.getQuerier().QueryContext(ctx, query, investorID)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to query ledger_entry table: %w", err)
	}
	defer rows.Close()

	shares, basis = decimal.Zero, decimal.Zero
	for rows.Next() {
		var sharesStr, basisStr string
		if err := rows.Scan(&sharesStr, &basisStr); err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("failed to scan ledger sums: %w", err)
		}
		s, err := ParseDecimal(sharesStr)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		b, err := ParseDecimal(basisStr)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		shares = shares.Add(s)
		basis = basis.Add(b)
	}
	if err = rows.Err(); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("error iterating ledger_entry table: %w", err)
	}

	return shares, basis, nil
}

func scanLedgerRow(scan func(dest ...any) error) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	var dateStr, amountStr, navStr, sharesStr, basisStr, createdAtStr string
	var flowID, reversalOf sql.NullString

	err := scan(&e.ID, &e.InvestorID, &dateStr, &e.Kind, &amountStr, &navStr,
		&sharesStr, &basisStr, &flowID, &reversalOf, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger_entry table results: %w", err)
	}

	if e.Date, err = ParseTime(dateStr); err != nil {
		return nil, err
	}
	if e.Amount, err = ParseDecimal(amountStr); err != nil {
		return nil, err
	}
	if e.NavPerShare, err = ParseDecimal(navStr); err != nil {
		return nil, err
	}
	if e.SharesTransacted, err = ParseDecimal(sharesStr); err != nil {
		return nil, err
	}
	if e.BasisDelta, err = ParseDecimal(basisStr); err != nil {
		return nil, err
	}
	if flowID.Valid {
		e.FlowRequestID = flowID.String
	}
	if reversalOf.Valid {
		e.ReversalOf = reversalOf.String
	}
	if e.CreatedAt, err = ParseTime(createdAtStr); err != nil {
		return nil, err
	}
	return &e, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
