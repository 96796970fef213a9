package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmertens/fund-accounting-engine/internal/model"
)

// TradeRepository provides data access methods for the canonical_trade table.
type TradeRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewTradeRepository creates a new TradeRepository with the provided database connection.
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// WithTx returns a copy of the repository that runs inside the given transaction.
func (r *TradeRepository) WithTx(tx *sql.Tx) *TradeRepository {
	return &TradeRepository{db: r.db, tx: tx}
}

func (r *TradeRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const tradeColumns = `id, source, brokerage_transaction_id, trade_date, trade_type,
	category, symbol, quantity, price, amount, currency, created_at`

// InsertIfAbsent loads one canonical trade, deduplicated on the propagated
// (source, brokerage_transaction_id) key. Returns true when a new row was
// inserted; re-running Load on an already-loaded row is a no-op.
func (r *TradeRepository) InsertIfAbsent(ctx context.Context, trade *model.CanonicalTrade) (bool, error) {
	query := `
		INSERT INTO canonical_trade (id, source, brokerage_transaction_id, trade_date,
			trade_type, category, symbol, quantity, price, amount, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, brokerage_transaction_id) DO NOTHING
	`
	result, err := r.getQuerier().ExecContext(ctx, query,
		trade.ID,
		trade.Source,
		trade.BrokerageTransactionID,
		trade.TradeDate.Format("2006-01-02"),
		trade.TradeType,
		trade.Category,
		nullable(trade.Symbol),
		trade.Quantity.String(),
		trade.Price.String(),
		trade.Amount.String(),
		trade.Currency,
		trade.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert canonical trade: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// GetByDedupeKey retrieves the trade loaded for a raw row's dedupe key, if any.
func (r *TradeRepository) GetByDedupeKey(ctx context.Context, source, brokerageTxnID string) (*model.CanonicalTrade, error) {
	query := `SELECT ` + tradeColumns + ` FROM canonical_trade WHERE source = ? AND brokerage_transaction_id = ?`

	row := r.getQuerier().QueryRowContext(ctx, query, source, brokerageTxnID)
	trade, err := scanTradeRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return trade, nil
}

// List retrieves canonical trades within the date range, ascending.
func (r *TradeRepository) List(ctx context.Context, start, end time.Time) ([]model.CanonicalTrade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM canonical_trade
		WHERE trade_date >= ? AND trade_date <= ?
		ORDER BY trade_date ASC, created_at ASC
	`
	rows, err := r.getQuerier().QueryContext(ctx, query,
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to query canonical_trade table: %w", err)
	}
	defer rows.Close()

	trades := []model.CanonicalTrade{}
	for rows.Next() {
		trade, err := scanTradeRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		trades = append(trades, *trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating canonical_trade table: %w", err)
	}

	return trades, nil
}

func scanTradeRow(scan func(dest ...any) error) (*model.CanonicalTrade, error) {
	var t model.CanonicalTrade
	var dateStr, quantityStr, priceStr, amountStr, createdAtStr string
	var symbol sql.NullString

	err := scan(&t.ID, &t.Source, &t.BrokerageTransactionID, &dateStr, &t.TradeType,
		&t.Category, &symbol, &quantityStr, &priceStr, &amountStr, &t.Currency, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan canonical_trade table results: %w", err)
	}

	if t.TradeDate, err = ParseTime(dateStr); err != nil {
		return nil, err
	}
	if symbol.Valid {
		t.Symbol = symbol.String
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
	if t.CreatedAt, err = ParseTime(createdAtStr); err != nil {
		return nil, err
	}
	return &t, nil
}
