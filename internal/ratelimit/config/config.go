// Package config holds the compiled-in rate limit defaults. The policy store
// may override these per feature; when it cannot be read, admission falls
// back to these values rather than failing closed.
package config

import (
	"time"

	"cortex/internal/ratelimit/models"
)

// FeatureChat is the feature key for the chat message endpoint.
const FeatureChat = "chat"

// Config carries the default policies keyed by feature.
type Config struct {
	defaults map[string]models.Policy
}

// DefaultConfig returns the compiled-in policy set.
func DefaultConfig() *Config {
	return &Config{
		defaults: map[string]models.Policy{
			FeatureChat: {
				FeatureKey:    FeatureChat,
				MaxAttempts:   20,
				Window:        time.Minute,
				BlockDuration: 5 * time.Minute,
				Enabled:       true,
			},
		},
	}
}

// DefaultPolicy returns the compiled-in policy for a feature key. Unknown
// features get the chat defaults under their own key so a misconfigured
// caller is still bounded.
func (c *Config) DefaultPolicy(featureKey string) models.Policy {
	if p, ok := c.defaults[featureKey]; ok {
		return p
	}
	p := c.defaults[FeatureChat]
	p.FeatureKey = featureKey
	return p
}
