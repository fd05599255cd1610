package policy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cortex/internal/ratelimit/models"
	dErrors "cortex/pkg/domain-errors"
)

// PostgresStore persists policies in the rate_limit_policies table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, featureKey string) (*models.Policy, error) {
	var (
		p             models.Policy
		windowSeconds int64
		blockSeconds  int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT feature_key, max_attempts, window_seconds, block_seconds, enabled, updated_at
		FROM rate_limit_policies
		WHERE feature_key = $1
	`, featureKey).Scan(&p.FeatureKey, &p.MaxAttempts, &windowSeconds, &blockSeconds, &p.Enabled, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no policy for feature: "+featureKey)
		}
		return nil, fmt.Errorf("get rate limit policy: %w", err)
	}

	p.Window = time.Duration(windowSeconds) * time.Second
	p.BlockDuration = time.Duration(blockSeconds) * time.Second
	return &p, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, p *models.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rate_limit_policies (feature_key, max_attempts, window_seconds, block_seconds, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (feature_key) DO UPDATE SET
			max_attempts = EXCLUDED.max_attempts,
			window_seconds = EXCLUDED.window_seconds,
			block_seconds = EXCLUDED.block_seconds,
			enabled = EXCLUDED.enabled,
			updated_at = NOW()
	`, p.FeatureKey, p.MaxAttempts, int64(p.Window.Seconds()), int64(p.BlockDuration.Seconds()), p.Enabled)
	if err != nil {
		return fmt.Errorf("upsert rate limit policy: %w", err)
	}
	return nil
}
