package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-trading-bot/internal/domain"
	"solana-trading-bot/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// Insert adds a new transaction. Returns ErrDuplicateKey if tx_signature exists.
func (s *TransactionStore) Insert(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.TxSignature == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO transactions (
			token_address, transaction_type, amount, price_usd, total_usd,
			timestamp, tx_signature, status, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		tx.TokenAddress,
		string(tx.Type),
		tx.Amount,
		tx.PriceUSD,
		tx.TotalUSD,
		tx.Timestamp,
		tx.TxSignature,
		tx.Status,
		tx.Metadata,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListByToken retrieves all transactions for a token ordered by timestamp ASC.
func (s *TransactionStore) ListByToken(ctx context.Context, tokenAddress string) ([]*domain.Transaction, error) {
	query := selectTransactionColumns + `
		WHERE token_address = $1
		ORDER BY timestamp ASC, tx_signature ASC
	`

	rows, err := s.pool.Query(ctx, query, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("list transactions by token: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// LatestBuy retrieves the most recent buy transaction for a token.
func (s *TransactionStore) LatestBuy(ctx context.Context, tokenAddress string) (*domain.Transaction, error) {
	query := selectTransactionColumns + `
		WHERE token_address = $1 AND transaction_type = 'buy'
		ORDER BY timestamp DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, tokenAddress)
	tx, err := scanTransaction(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest buy: %w", err)
	}
	return tx, nil
}

// DailyInvestedTotal sums total_usd over buy transactions since dayStart.
func (s *TransactionStore) DailyInvestedTotal(ctx context.Context, dayStart time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(total_usd), 0)
		FROM transactions
		WHERE transaction_type = 'buy' AND timestamp >= $1
	`

	var total float64
	if err := s.pool.QueryRow(ctx, query, dayStart).Scan(&total); err != nil {
		return 0, fmt.Errorf("daily invested total: %w", err)
	}
	return total, nil
}

const selectTransactionColumns = `
	SELECT token_address, transaction_type, amount, price_usd, total_usd,
		timestamp, tx_signature, status, metadata
	FROM transactions
`

// scanTransaction scans a single row into a Transaction.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	var typeStr string

	err := row.Scan(
		&tx.TokenAddress,
		&typeStr,
		&tx.Amount,
		&tx.PriceUSD,
		&tx.TotalUSD,
		&tx.Timestamp,
		&tx.TxSignature,
		&tx.Status,
		&tx.Metadata,
	)
	if err != nil {
		return nil, err
	}

	tx.Type = domain.TransactionType(typeStr)
	return &tx, nil
}

// scanTransactions scans multiple rows into a slice of Transaction.
func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}

	return txs, nil
}
