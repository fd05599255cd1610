package models

import (
	"time"

	id "cortex/pkg/domain"
	dErrors "cortex/pkg/domain-errors"
)

// Policy controls the sliding-window limit for one feature key. There is a
// single policy row per feature; it is mutated only through the admin
// endpoints and read on every admission check.
type Policy struct {
	FeatureKey    string        `json:"feature_key"`
	MaxAttempts   int           `json:"max_attempts"`
	Window        time.Duration `json:"window"`
	BlockDuration time.Duration `json:"block_duration"`
	Enabled       bool          `json:"enabled"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Validate enforces the policy invariants.
func (p *Policy) Validate() error {
	if p.FeatureKey == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "feature key cannot be empty")
	}
	if p.MaxAttempts <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "max_attempts must be positive")
	}
	if p.Window <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "window must be positive")
	}
	if p.BlockDuration < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "block_duration cannot be negative")
	}
	return nil
}

// UsageEvent is one admitted request, append-only. All counter state lives in
// the store; no process-local counters exist, so admission is correct across
// instances.
type UsageEvent struct {
	UserID     id.UserID `json:"user_id"`
	FeatureKey string    `json:"feature_key"`
	OccurredAt time.Time `json:"occurred_at"`
	Cost       int       `json:"cost"`
}

// Result is the outcome of one admission check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when denied
	FailOpen   bool      `json:"-"`                     // counter store was unavailable
}

// Usage is the current window state for one user, returned by the admin
// usage endpoint.
type Usage struct {
	UserID     id.UserID `json:"user_id"`
	FeatureKey string    `json:"feature_key"`
	Count      int       `json:"count"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
}
