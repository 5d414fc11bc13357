package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-trading-bot/internal/storage"
)

// PriceHistoryStore implements storage.PriceHistoryStore using ClickHouse.
// The price_history table is append-only; MergeTree does not enforce
// uniqueness and the scanner never re-inserts the same observation.
type PriceHistoryStore struct {
	conn *Conn
}

// NewPriceHistoryStore creates a new PriceHistoryStore.
func NewPriceHistoryStore(conn *Conn) *PriceHistoryStore {
	return &PriceHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// Insert appends one price observation.
func (s *PriceHistoryStore) Insert(ctx context.Context, p *storage.PricePoint) error {
	if p == nil || p.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	err := s.conn.Exec(ctx, `
		INSERT INTO price_history (
			token_address, observed_at, price_usd, liquidity_usd, volume_24h
		) VALUES (?, ?, ?, ?, ?)
	`,
		p.TokenAddress, p.ObservedAt, p.PriceUSD, p.LiquidityUSD, p.Volume24h,
	)
	if err != nil {
		return fmt.Errorf("insert price point: %w", err)
	}
	return nil
}

// ListByToken retrieves observations for a token since the given time,
// ordered by observed_at ASC.
func (s *PriceHistoryStore) ListByToken(ctx context.Context, tokenAddress string, since time.Time) ([]*storage.PricePoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT token_address, observed_at, price_usd, liquidity_usd, volume_24h
		FROM price_history
		WHERE token_address = ? AND observed_at >= ?
		ORDER BY observed_at ASC
	`, tokenAddress, since)
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	var points []*storage.PricePoint
	for rows.Next() {
		var p storage.PricePoint
		if err := rows.Scan(
			&p.TokenAddress, &p.ObservedAt, &p.PriceUSD, &p.LiquidityUSD, &p.Volume24h,
		); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price points: %w", err)
	}

	return points, nil
}
