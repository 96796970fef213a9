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

// NavRepository provides data access methods for the nav_record table.
// One row per trading date; the date column carries a UNIQUE constraint.
type NavRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewNavRepository creates a new NavRepository with the provided database connection.
func NewNavRepository(db *sql.DB) *NavRepository {
	return &NavRepository{db: db}
}

// WithTx returns a copy of the repository that runs inside the given transaction.
func (r *NavRepository) WithTx(tx *sql.Tx) *NavRepository {
	return &NavRepository{db: r.db, tx: tx}
}

func (r *NavRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const navColumns = `id, date, portfolio_value, total_shares, nav_per_share, day_change, created_at`

// Insert writes one NAV record. A second insert for the same date fails with
// ErrDuplicateNavDate; corrections go through UpdateInPlace.
func (r *NavRepository) Insert(ctx context.Context, record *model.NavRecord) error {
	query := `
		INSERT INTO nav_record (id, date, portfolio_value, total_shares, nav_per_share, day_change, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.getQuerier().ExecContext(ctx, query,
		record.ID,
		record.Date.Format("2006-01-02"),
		record.PortfolioValue.String(),
		record.TotalShares.String(),
		record.NavPerShare.String(),
		record.DayChange.String(),
		record.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperrors.ErrDuplicateNavDate
		}
		return fmt.Errorf("failed to insert nav record: %w", err)
	}
	return nil
}

// UpdateInPlace corrects an existing record's valuation fields. NAV is a
// point-in-time fact, so corrections update the row for the date rather than
// appending a new one.
func (r *NavRepository) UpdateInPlace(ctx context.Context, record *model.NavRecord) error {
	query := `
		UPDATE nav_record
		SET portfolio_value = ?, total_shares = ?, nav_per_share = ?, day_change = ?
		WHERE date = ?
	`
	result, err := r.getQuerier().ExecContext(ctx, query,
		record.PortfolioValue.String(),
		record.TotalShares.String(),
		record.NavPerShare.String(),
		record.DayChange.String(),
		record.Date.Format("2006-01-02"),
	)
	if err != nil {
		return fmt.Errorf("failed to update nav record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrNavRecordNotFound
	}
	return nil
}

// GetByDate retrieves the record for an exact trading date.
func (r *NavRepository) GetByDate(ctx context.Context, date time.Time) (*model.NavRecord, error) {
	query := `SELECT ` + navColumns + ` FROM nav_record WHERE date = ?`
	return r.scanNav(r.getQuerier().QueryRowContext(ctx, query, date.Format("2006-01-02")))
}

// GetAsOf retrieves the latest record with date <= the given date. This is the
// backdating rule: "the price on date D" is the most recent publication not
// after D, which lets historical transactions be corrected without violating
// ledger chronology.
func (r *NavRepository) GetAsOf(ctx context.Context, date time.Time) (*model.NavRecord, error) {
	query := `
		SELECT ` + navColumns + `
		FROM nav_record
		WHERE date <= ?
		ORDER BY date DESC
		LIMIT 1
	`
	return r.scanNav(r.getQuerier().QueryRowContext(ctx, query, date.Format("2006-01-02")))
}

// GetLatest retrieves the most recent record.
func (r *NavRepository) GetLatest(ctx context.Context) (*model.NavRecord, error) {
	query := `SELECT ` + navColumns + ` FROM nav_record ORDER BY date DESC LIMIT 1`
	return r.scanNav(r.getQuerier().QueryRowContext(ctx, query))
}

// List retrieves records within the date range, ascending.
func (r *NavRepository) List(ctx context.Context, start, end time.Time) ([]model.NavRecord, error) {
	query := `
		SELECT ` + navColumns + `
		FROM nav_record
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC
	`
	rows, err := r.getQuerier().QueryContext(ctx, query,
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to query nav_record table: %w", err)
	}
	defer rows.Close()

	records := []model.NavRecord{}
	for rows.Next() {
		var n model.NavRecord
		var dateStr, valueStr, sharesStr, navStr, changeStr, createdAtStr string

		if err := rows.Scan(&n.ID, &dateStr, &valueStr, &sharesStr, &navStr, &changeStr, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan nav_record table results: %w", err)
		}
		if err := fillNav(&n, dateStr, valueStr, sharesStr, navStr, changeStr, createdAtStr); err != nil {
			return nil, err
		}
		records = append(records, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nav_record table: %w", err)
	}

	return records, nil
}

func (r *NavRepository) scanNav(row *sql.Row) (*model.NavRecord, error) {
	var n model.NavRecord
	var dateStr, valueStr, sharesStr, navStr, changeStr, createdAtStr string

	err := row.Scan(&n.ID, &dateStr, &valueStr, &sharesStr, &navStr, &changeStr, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNavRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan nav_record table results: %w", err)
	}
	if err := fillNav(&n, dateStr, valueStr, sharesStr, navStr, changeStr, createdAtStr); err != nil {
		return nil, err
	}
	return &n, nil
}

func fillNav(n *model.NavRecord, dateStr, valueStr, sharesStr, navStr, changeStr, createdAtStr string) error {
	var err error
	if n.Date, err = ParseTime(dateStr); err != nil {
		return err
	}
	if n.PortfolioValue, err = ParseDecimal(valueStr); err != nil {
		return err
	}
	if n.TotalShares, err = ParseDecimal(sharesStr); err != nil {
		return err
	}
	if n.NavPerShare, err = ParseDecimal(navStr); err != nil {
		return err
	}
	if n.DayChange, err = ParseDecimal(changeStr); err != nil {
		return err
	}
	if n.CreatedAt, err = ParseTime(createdAtStr); err != nil {
		return err
	}
	return nil
}
