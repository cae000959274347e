package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/BreachCache/internal/port/upstream"
)

// Source reads and writes the breached_emails table.
type Source struct {
	pool *pgxpool.Pool
}

var _ upstream.Source = (*Source)(nil)

// NewSource creates a Source on pool.
func NewSource(pool *pgxpool.Pool) *Source {
	return &Source{pool: pool}
}

// Fetch returns the breach details for email, or nil when it is not listed.
func (s *Source) Fetch(ctx context.Context, email string) (*string, error) {
	const q = `SELECT details FROM breached_emails WHERE email = $1`

	var details string
	err := s.pool.QueryRow(ctx, q, email).Scan(&details)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch breached email: %w", err)
	}
	return &details, nil
}

// Add lists email with details, replacing earlier details.
func (s *Source) Add(ctx context.Context, email, details string) error {
	const q = `
		INSERT INTO breached_emails (email, details)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE
		SET details = EXCLUDED.details, updated_at = now()`

	if _, err := s.pool.Exec(ctx, q, email, details); err != nil {
		return fmt.Errorf("add breached email: %w", err)
	}
	return nil
}
