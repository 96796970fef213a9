package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmertens/fund-accounting-engine/internal/apperrors"
	"github.com/jmertens/fund-accounting-engine/internal/model"
)

// RawTransactionRepository provides data access methods for the
// raw_brokerage_transaction table. Rows are immutable once ingested except for
// their etl_status and canonical trade reference.
type RawTransactionRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewRawTransactionRepository creates a new RawTransactionRepository with the provided database connection.
func NewRawTransactionRepository(db *sql.DB) *RawTransactionRepository {
	return &RawTransactionRepository{db: db}
}

// WithTx returns a copy of the repository that runs inside the given transaction.
func (r *RawTransactionRepository) WithTx(tx *sql.Tx) *RawTransactionRepository {
	return &RawTransactionRepository{db: r.db, tx: tx}
}

func (r *RawTransactionRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const rawTxnColumns = `id, source, brokerage_transaction_id, transaction_date, raw_type,
	symbol, description, quantity, price, amount, currency, etl_status, etl_error, trade_id, imported_at`

// InsertIgnoreDuplicate ingests one raw row, deduplicated on the
// (source, brokerage_transaction_id) key. Returns true when a new row was
// inserted, false when the key was already present. Re-extracting an
// overlapping window therefore never duplicates rows.
func (r *RawTransactionRepository) InsertIgnoreDuplicate(ctx context.Context, txn *model.RawBrokerageTransaction) (bool, error) {
	query := `
		INSERT INTO raw_brokerage_transaction (id, source, brokerage_transaction_id,
			transaction_date, raw_type, symbol, description, quantity, price, amount,
			currency, etl_status, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, brokerage_transaction_id) DO NOTHING
	`
	result, err := r.getQuerier().ExecContext(ctx, query,
		txn.ID,
		txn.Source,
		txn.BrokerageTransactionID,
		txn.TransactionDate.Format("2006-01-02"),
		txn.RawType,
		nullable(txn.Symbol),
		nullable(txn.Description),
		txn.Quantity.String(),
		txn.Price.String(),
		txn.Amount.String(),
		txn.Currency,
		txn.EtlStatus,
		txn.ImportedAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert raw transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// Get retrieves a single raw row by ID.
func (r *RawTransactionRepository) Get(ctx context.Context, rawID string) (*model.RawBrokerageTransaction, error) {
	query := `SELECT ` + rawTxnColumns + ` FROM raw_brokerage_transaction WHERE id = ?`

	row := r.getQuerier().QueryRowContext(ctx, query, rawID)
	txn, err := scanRawTxnRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrRawTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// GetPending retrieves all rows awaiting transformation, oldest first.
func (r *RawTransactionRepository) GetPending(ctx context.Context) ([]model.RawBrokerageTransaction, error) {
	query := `
		SELECT ` + rawTxnColumns + `
		FROM raw_brokerage_transaction
		WHERE etl_status = ?
		ORDER BY transaction_date ASC, imported_at ASC
	`
	rows, err := r.getQuerier().QueryContext(ctx, query, model.EtlStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw_brokerage_transaction table: %w", err)
	}
	defer rows.Close()

	txns := []model.RawBrokerageTransaction{}
	for rows.Next() {
		txn, err := scanRawTxnRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating raw_brokerage_transaction table: %w", err)
	}

	return txns, nil
}

// GetTransformedUnloaded retrieves rows transformed in a previous run whose
// canonical trade has not been recorded yet. Load is retryable on its own.
func (r *RawTransactionRepository) GetTransformedUnloaded(ctx context.Context) ([]model.RawBrokerageTransaction, error) {
	query := `
		SELECT ` + rawTxnColumns + `
		FROM raw_brokerage_transaction
		WHERE etl_status = ? AND trade_id IS NULL
		ORDER BY transaction_date ASC, imported_at ASC
	`
	rows, err := r.getQuerier().QueryContext(ctx, query, model.EtlStatusTransformed)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw_brokerage_transaction table: %w", err)
	}
	defer rows.Close()

	txns := []model.RawBrokerageTransaction{}
	for rows.Next() {
		txn, err := scanRawTxnRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating raw_brokerage_transaction table: %w", err)
	}

	return txns, nil
}

// UpdateEtlStatus records a row's transformation outcome.
func (r *RawTransactionRepository) UpdateEtlStatus(ctx context.Context, rawID, status, etlError string) error {
	query := `UPDATE raw_brokerage_transaction SET etl_status = ?, etl_error = ? WHERE id = ?`

	result, err := r.getQuerier().ExecContext(ctx, query, status, nullable(etlError), rawID)
	if err != nil {
		return fmt.Errorf("failed to update raw transaction status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrRawTransactionNotFound
	}
	return nil
}

// SetTradeReference links a raw row to the canonical trade it produced.
func (r *RawTransactionRepository) SetTradeReference(ctx context.Context, rawID, tradeID string) error {
	query := `UPDATE raw_brokerage_transaction SET trade_id = ? WHERE id = ?`

	result, err := r.getQuerier().ExecContext(ctx, query, tradeID, rawID)
	if err != nil {
		return fmt.Errorf("failed to set raw transaction trade reference: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrRawTransactionNotFound
	}
	return nil
}

func scanRawTxnRow(scan func(dest ...any) error) (*model.RawBrokerageTransaction, error) {
	var t model.RawBrokerageTransaction
	var dateStr, quantityStr, priceStr, amountStr, importedAtStr string
	var symbol, description, etlError, tradeID sql.NullString

	err := scan(&t.ID, &t.Source, &t.BrokerageTransactionID, &dateStr, &t.RawType,
		&symbol, &description, &quantityStr, &priceStr, &amountStr, &t.Currency,
		&t.EtlStatus, &etlError, &tradeID, &importedAtStr)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan raw_brokerage_transaction table results: %w", err)
	}

	if t.TransactionDate, err = ParseTime(dateStr); err != nil {
		return nil, err
	}
	if symbol.Valid {
		t.Symbol = symbol.String
	}
	if description.Valid {
		t.Description = description.String
	}
	if t.Quantity, err = ParseDecimal(quantityStr); err != nil {
		return nil, err
	}
	if t.Price, err = ParseDecimal(priceStr); err != nil {
		return nil, err
	}
	if t.Amount, err = ParseDecimal(amountStr); err != nil {
		return nil, err
	}
	if etlError.Valid {
		t.EtlError = etlError.String
	}
	if tradeID.Valid {
		t.TradeID = tradeID.String
	}
	if t.ImportedAt, err = ParseTime(importedAtStr); err != nil {
		return nil, err
	}
	return &t, nil
}
