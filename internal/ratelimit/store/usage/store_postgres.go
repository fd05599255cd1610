package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cortex/internal/ratelimit/models"
	"cortex/pkg/requestcontext"
)

// PostgresStore persists usage events in rate_limit_usage_events. Each Allow
// call runs prune, count, and insert in one transaction serialized per key by
// a transaction-scoped advisory lock, so concurrent checks against the same
// key cannot interleave.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	if key == "" {
		return nil, fmt.Errorf("usage key is required")
	}
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("usage limit and window must be positive")
	}

	now := requestcontext.Now(ctx)
	cutoff := now.Add(-window)
	windowSeconds := int(window.Seconds())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin usage tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1)::bigint)`, key); err != nil {
		return nil, fmt.Errorf("acquire usage lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM rate_limit_usage_events WHERE key = $1 AND occurred_at < $2`, key, cutoff); err != nil {
		return nil, fmt.Errorf("prune usage events: %w", err)
	}

	var current int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(cost), 0) FROM rate_limit_usage_events WHERE key = $1`, key).Scan(&current); err != nil {
		return nil, fmt.Errorf("count usage events: %w", err)
	}

	var oldest sql.NullTime
	if err := tx.QueryRowContext(ctx, `SELECT MIN(occurred_at) FROM rate_limit_usage_events WHERE key = $1`, key).Scan(&oldest); err != nil {
		return nil, fmt.Errorf("oldest usage event: %w", err)
	}

	allowed := current < limit
	resetAt := now.Add(window)
	if oldest.Valid {
		resetAt = oldest.Time.Add(window)
	}

	if allowed {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rate_limit_usage_events (key, occurred_at, cost, window_seconds)
			VALUES ($1, $2, 1, $3)
		`, key, now, windowSeconds)
		if err != nil {
			return nil, fmt.Errorf("insert usage event: %w", err)
		}
		current++
		if !oldest.Valid {
			resetAt = now.Add(window)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit usage tx: %w", err)
	}

	result := &models.Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(limit-current, 0),
		ResetAt:   resetAt,
	}
	if !allowed {
		result.RetryAfter = retryAfterSeconds(resetAt, now)
	}
	return result, nil
}

func (s *PostgresStore) Reset(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("usage key is required")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_usage_events WHERE key = $1`, key); err != nil {
		return fmt.Errorf("reset usage events: %w", err)
	}
	return nil
}

func (s *PostgresStore) CurrentCount(ctx context.Context, key string) (int, error) {
	if key == "" {
		return 0, fmt.Errorf("usage key is required")
	}

	now := requestcontext.Now(ctx)

	// The window length travels with each event so reads need no policy lookup.
	var windowSeconds sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT window_seconds
		FROM rate_limit_usage_events
		WHERE key = $1
		ORDER BY occurred_at DESC
		LIMIT 1
	`, key).Scan(&windowSeconds)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get usage window: %w", err)
	}
	if !windowSeconds.Valid {
		return 0, nil
	}

	cutoff := now.Add(-time.Duration(windowSeconds.Int64) * time.Second)
	var count int
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(cost), 0)
		FROM rate_limit_usage_events
		WHERE key = $1 AND occurred_at >= $2
	`, key, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count usage events: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes events past the retention horizon.
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_usage_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired usage events: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted usage events: %w", err)
	}
	return int(deleted), nil
}
