// Package service implements sliding-window admission control. State lives
// entirely in the usage store, so any instance can serve any request. Two
// failure postures are deliberate: a broken policy store degrades to the
// compiled-in defaults, and a broken usage store admits the request
// (fail-open) rather than blocking users on infrastructure trouble. Both
// paths are logged and counted.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cortex/internal/audit"
	"cortex/internal/ratelimit/config"
	"cortex/internal/ratelimit/metrics"
	"cortex/internal/ratelimit/models"
	"cortex/internal/ratelimit/observability"
	id "cortex/pkg/domain"
	dErrors "cortex/pkg/domain-errors"
	"cortex/pkg/requestcontext"
)

// PolicyStore reads and writes per-feature policies.
type PolicyStore interface {
	Get(ctx context.Context, featureKey string) (*models.Policy, error)
	Upsert(ctx context.Context, p *models.Policy) error
}

// UsageStore checks and mutates the sliding-window counters.
type UsageStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
	Reset(ctx context.Context, key string) error
	CurrentCount(ctx context.Context, key string) (int, error)
}

// Service is the admission checker. Thread-safe for concurrent use.
type Service struct {
	policies       PolicyStore
	usage          UsageStore
	defaults       *config.Config
	auditPublisher observability.AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger for audit and debug logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAuditPublisher sets the audit event publisher for security logging.
func WithAuditPublisher(publisher observability.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithDefaults overrides the compiled-in default policies.
func WithDefaults(cfg *config.Config) Option {
	return func(s *Service) {
		s.defaults = cfg
	}
}

// WithMetrics sets the metrics recorder for observability.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates an admission service over the given stores.
func New(policies PolicyStore, usage UsageStore, opts ...Option) (*Service, error) {
	if policies == nil {
		return nil, errors.New("policy store is required")
	}
	if usage == nil {
		return nil, errors.New("usage store is required")
	}

	svc := &Service{
		policies: policies,
		usage:    usage,
		defaults: config.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// LoadPolicy returns the effective policy for a feature key. It never fails:
// a missing record or store error degrades to the compiled-in default so a
// policy-store outage cannot take down chat.
func (s *Service) LoadPolicy(ctx context.Context, featureKey string) models.Policy {
	p, err := s.policies.Get(ctx, featureKey)
	if err == nil {
		return *p
	}

	fallback := s.defaults.DefaultPolicy(featureKey)
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		// Store outage, not just an unconfigured feature.
		if s.metrics != nil {
			s.metrics.RecordPolicyFallback()
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "policy store unavailable, using default policy",
				"feature_key", featureKey,
				"error", err,
			)
		}
	}
	return fallback
}

// Check runs one admission decision for a user and feature. The returned
// result is always usable; err is reserved for invalid input.
func (s *Service) Check(ctx context.Context, userID id.UserID, featureKey string) (*models.Result, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user ID is required")
	}
	if featureKey == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "feature key is required")
	}

	// Wall-clock timing, not the injectable clock: the histogram measures
	// real store latency.
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveAdmissionDuration(time.Since(start).Seconds())
		}
	}()

	now := requestcontext.Now(ctx)
	policy := s.LoadPolicy(ctx, featureKey)

	if !policy.Enabled {
		return &models.Result{
			Allowed:   true,
			Limit:     policy.MaxAttempts,
			Remaining: policy.MaxAttempts,
			ResetAt:   now.Add(policy.Window),
		}, nil
	}

	key := models.NewUsageKey(userID.String(), featureKey)
	result, err := s.usage.Allow(ctx, key.String(), policy.MaxAttempts, policy.Window)
	if err != nil {
		// Fail open: availability over strict enforcement.
		if s.metrics != nil {
			s.metrics.RecordFailOpen()
		}
		observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventRateLimitFailOpen,
			"user_id", userID.String(),
			"feature_key", featureKey,
			"reason", "usage store unavailable",
			"error", err.Error(),
		)
		return &models.Result{
			Allowed:   true,
			Limit:     policy.MaxAttempts,
			Remaining: policy.MaxAttempts,
			ResetAt:   now.Add(policy.Window),
			FailOpen:  true,
		}, nil
	}

	if s.metrics != nil {
		s.metrics.RecordAdmission(featureKey, result.Allowed)
	}

	if !result.Allowed {
		// Denials surface the block horizon unless the window itself clears
		// sooner; callers should never wait longer than necessary.
		if policy.BlockDuration > 0 {
			horizon := now.Add(policy.BlockDuration)
			if horizon.Before(result.ResetAt) || result.ResetAt.Before(now) {
				result.ResetAt = horizon
			}
			result.RetryAfter = retryAfterSeconds(result.ResetAt, now)
		}
		observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventRateLimitExceeded,
			"user_id", userID.String(),
			"feature_key", featureKey,
			"limit", policy.MaxAttempts,
			"window_seconds", int(policy.Window.Seconds()),
			"retry_after_seconds", result.RetryAfter,
			"decision", "denied",
		)
	}

	return result, nil
}

// Usage returns the current window state for a user, for the admin surface.
func (s *Service) Usage(ctx context.Context, userID id.UserID, featureKey string) (*models.Usage, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user ID is required")
	}

	policy := s.LoadPolicy(ctx, featureKey)
	key := models.NewUsageKey(userID.String(), featureKey)

	count, err := s.usage.CurrentCount(ctx, key.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read usage")
	}

	return &models.Usage{
		UserID:     userID,
		FeatureKey: featureKey,
		Count:      count,
		Limit:      policy.MaxAttempts,
		Remaining:  max(policy.MaxAttempts-count, 0),
	}, nil
}

// ResetUsage clears a user's window, typically after support intervention.
func (s *Service) ResetUsage(ctx context.Context, userID id.UserID, featureKey string) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "user ID is required")
	}

	key := models.NewUsageKey(userID.String(), featureKey)
	if err := s.usage.Reset(ctx, key.String()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset usage")
	}

	observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventUsageReset,
		"user_id", userID.String(),
		"feature_key", featureKey,
	)
	return nil
}

// GetPolicy returns the stored policy, or the default when none is stored.
func (s *Service) GetPolicy(ctx context.Context, featureKey string) (models.Policy, error) {
	if featureKey == "" {
		return models.Policy{}, dErrors.New(dErrors.CodeInvalidInput, "feature key is required")
	}
	return s.LoadPolicy(ctx, featureKey), nil
}

// UpdatePolicy validates and persists a policy change.
func (s *Service) UpdatePolicy(ctx context.Context, p *models.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.policies.Upsert(ctx, p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update policy")
	}

	observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventPolicyUpdated,
		"feature_key", p.FeatureKey,
		"max_attempts", p.MaxAttempts,
		"window_seconds", int(p.Window.Seconds()),
		"block_seconds", int(p.BlockDuration.Seconds()),
		"enabled", p.Enabled,
	)
	return nil
}

func retryAfterSeconds(resetAt, now time.Time) int {
	seconds := int(resetAt.Sub(now).Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}
