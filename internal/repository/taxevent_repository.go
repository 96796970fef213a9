package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
	"github.com/jmertens/fund-accounting-engine/internal/model"
)

// TaxEventRepository provides data access methods for the tax_event table.
// Events are never updated after creation; reversals post compensating rows.
type TaxEventRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewTaxEventRepository creates a new TaxEventRepository with the provided database connection.
func NewTaxEventRepository(db *sql.DB) *TaxEventRepository {
	return &TaxEventRepository{db: db}
}

// WithTx returns a copy of the repository that runs inside the given transaction.
func (r *TaxEventRepository) WithTx(tx *sql.Tx) *TaxEventRepository {
	return &TaxEventRepository{db: r.db, tx: tx}
}

func (r *TaxEventRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const taxEventColumns = `id, investor_id, date, withdrawal_amount, realized_gain,
	tax_due, policy, ledger_entry_id, compensation_of, created_at`

// Insert writes one tax event.
func (r *TaxEventRepository) Insert(ctx context.Context, event *model.TaxEvent) error {
	query := `
		INSERT INTO tax_event (id, investor_id, date, withdrawal_amount, realized_gain,
			tax_due, policy, ledger_entry_id, compensation_of, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.getQuerier().ExecContext(ctx, query,
		event.ID,
		event.InvestorID,
		event.Date.Format("2006-01-02"),
		event.WithdrawalAmount.String(),
		event.RealizedGain.String(),
		event.TaxDue.String(),
		event.Policy,
		event.LedgerEntryID,
		nullable(event.CompensationOf),
		event.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return fmt.Errorf("failed to insert tax event: %w", err)
	}
	return nil
}

// GetByLedgerEntry retrieves the tax event produced by a ledger entry, if any.
func (r *TaxEventRepository) GetByLedgerEntry(ctx context.Context, ledgerEntryID string) (*model.TaxEvent, error) {
	query := `SELECT ` + taxEventColumns + ` FROM tax_event WHERE ledger_entry_id = ? AND compensation_of IS NULL`

	row := r.getQuerier().QueryRowContext(ctx, query, ledgerEntryID)
	event, err := scanTaxEventRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrTaxEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

// GetByInvestor retrieves all tax events for an investor in posting order.
func (r *TaxEventRepository) GetByInvestor(ctx context.Context, investorID string) ([]model.TaxEvent, error) {
	query := `
		SELECT ` + taxEventColumns + `
		FROM tax_event
		WHERE investor_id = ?
		ORDER BY created_at ASC, id ASC
	`
	return r.queryEvents(ctx, query, investorID)
}

// GetByQuarter retrieves all tax events dated within the given settlement quarter.
func (r *TaxEventRepository) GetByQuarter(ctx context.Context, year, quarter int) ([]model.TaxEvent, error) {
	startMonth := (quarter-1)*3 + 1
	start := fmt.Sprintf("%04d-%02d-01", year, startMonth)
	var end string
	if quarter == 4 {
		end = fmt.Sprintf("%04d-01-01", year+1)
	} else {
		end = fmt.Sprintf("%04d-%02d-01", year, startMonth+3)
	}

	query := `
		SELECT ` + taxEventColumns + `
		FROM tax_event
		WHERE date >= ? AND date < ?
		ORDER BY date ASC, created_at ASC
	`
	return r.queryEvents(ctx, query, start, end)
}

func (r *TaxEventRepository) queryEvents(ctx context.Context, query string, args ...any) ([]model.TaxEvent, error) {
	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tax_event table: %w", err)
	}
	defer rows.Close()

	events := []model.TaxEvent{}
	for rows.Next() {
		event, err := scanTaxEventRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tax_event table: %w", err)
	}

	return events, nil
}

func scanTaxEventRow(scan func(dest ...any) error) (*model.TaxEvent, error) {
	var e model.TaxEvent
	var dateStr, amountStr, gainStr, taxStr, createdAtStr string
	var compensationOf sql.NullString

	err := scan(&e.ID, &e.InvestorID, &dateStr, &amountStr, &gainStr,
		&taxStr, &e.Policy, &e.LedgerEntryID, &compensationOf, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan tax_event table results: %w", err)
	}

	if e.Date, err = ParseTime(dateStr); err != nil {
		return nil, err
	}
	if e.WithdrawalAmount, err = ParseDecimal(amountStr); err != nil {
		return nil, err
	}
	if e.RealizedGain, err = ParseDecimal(gainStr); err != nil {
		return nil, err
	}
	if e.TaxDue, err = ParseDecimal(taxStr); err != nil {
		return nil, err
	}
	if compensationOf.Valid {
		e.CompensationOf = compensationOf.String
	}
	if e.CreatedAt, err = ParseTime(createdAtStr); err != nil {
		return nil, err
	}
	return &e, nil
}

// SumRealizedGains sums realized gains over a slice of events, exactly in decimal.
func SumRealizedGains(events []model.TaxEvent) decimal.Decimal {
	total := decimal.Zero
	for _, e := range events {
		total = total.Add(e.RealizedGain)
	}
	return total
}
