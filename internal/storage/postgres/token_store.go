package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-trading-bot/internal/domain"
	"solana-trading-bot/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Upsert inserts a token or refreshes market fields of an existing one.
// Status and created_at are never overwritten on conflict.
func (s *TokenStore) Upsert(ctx context.Context, t *domain.Token) (bool, error) {
	if t == nil || t.Address == "" {
		return false, storage.ErrInvalidInput
	}

	status := t.Status
	if status == "" {
		status = domain.TokenStatusNew
	}

	insert := `
		INSERT INTO tokens (
			address, name, symbol, network, created_at, updated_at,
			has_profile, booster_active, liquidity, volume_24h, price_usd,
			liquidity_pools_count, status, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (address) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, insert,
		t.Address,
		t.Name,
		t.Symbol,
		t.Network,
		t.CreatedAt,
		t.UpdatedAt,
		t.HasProfile,
		t.BoosterActive,
		t.Liquidity,
		t.Volume24h,
		t.PriceUSD,
		t.LiquidityPoolsCount,
		string(status),
		t.Metadata,
	)
	if err != nil {
		return false, fmt.Errorf("insert token: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	update := `
		UPDATE tokens SET
			name = $2, symbol = $3, has_profile = $4, booster_active = $5,
			liquidity = $6, volume_24h = $7, price_usd = $8,
			liquidity_pools_count = $9, metadata = $10, updated_at = $11
		WHERE address = $1
	`

	_, err = s.pool.Exec(ctx, update,
		t.Address,
		t.Name,
		t.Symbol,
		t.HasProfile,
		t.BoosterActive,
		t.Liquidity,
		t.Volume24h,
		t.PriceUSD,
		t.LiquidityPoolsCount,
		t.Metadata,
		time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("refresh token: %w", err)
	}
	return false, nil
}

// Get retrieves a token by address. Returns ErrNotFound if not exists.
func (s *TokenStore) Get(ctx context.Context, address string) (*domain.Token, error) {
	query := selectTokenColumns + ` WHERE address = $1`

	row := s.pool.QueryRow(ctx, query, address)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

// Exists reports whether a token with the given address is stored.
func (s *TokenStore) Exists(ctx context.Context, address string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tokens WHERE address = $1)`, address,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("token exists: %w", err)
	}
	return exists, nil
}

// ListByStatus retrieves tokens with the given status ordered by created_at ASC.
func (s *TokenStore) ListByStatus(ctx context.Context, status *domain.TokenStatus, limit, offset int) ([]*domain.Token, error) {
	query := selectTokenColumns
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at ASC, address ASC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	if offset > 0 {
		query += fmt.Sprintf(` OFFSET %d`, offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tokens by status: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// UpdateStatus sets the token status unconditionally.
func (s *TokenStore) UpdateStatus(ctx context.Context, address string, status domain.TokenStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tokens SET status = $2, updated_at = $3 WHERE address = $1`,
		address, string(status), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update token status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateStatusIf advances the status only when the current status matches from.
func (s *TokenStore) UpdateStatusIf(ctx context.Context, address string, from, to domain.TokenStatus) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tokens SET status = $3, updated_at = $4 WHERE address = $1 AND status = $2`,
		address, string(from), string(to), time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("update token status guarded: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const selectTokenColumns = `
	SELECT address, name, symbol, network, created_at, updated_at,
		has_profile, booster_active, liquidity, volume_24h, price_usd,
		liquidity_pools_count, status, metadata
	FROM tokens
`

// scanToken scans a single row into a Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token
	var statusStr string

	err := row.Scan(
		&t.Address,
		&t.Name,
		&t.Symbol,
		&t.Network,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.HasProfile,
		&t.BoosterActive,
		&t.Liquidity,
		&t.Volume24h,
		&t.PriceUSD,
		&t.LiquidityPoolsCount,
		&statusStr,
		&t.Metadata,
	)
	if err != nil {
		return nil, err
	}

	t.Status = domain.TokenStatus(statusStr)
	return &t, nil
}

// scanTokens scans multiple rows into a slice of Token.
func scanTokens(rows pgx.Rows) ([]*domain.Token, error) {
	var tokens []*domain.Token

	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}

	return tokens, nil
}
