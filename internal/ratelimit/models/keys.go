package models

import (
	"fmt"
	"strings"
)

// UsageKey is a value object encapsulating counter key construction. It
// centralizes key format and sanitization so user-controlled segments cannot
// collide with adjacent buckets.
type UsageKey struct {
	userID     string
	featureKey string
}

// NewUsageKey creates a counter key for a user and feature.
func NewUsageKey(userID, featureKey string) UsageKey {
	return UsageKey{
		userID:     sanitizeKeySegment(userID),
		featureKey: sanitizeKeySegment(featureKey),
	}
}

// String returns the formatted key for store lookup.
func (k UsageKey) String() string {
	return fmt.Sprintf("usage:%s:%s", k.userID, k.featureKey)
}

// sanitizeKeySegment escapes delimiter characters in key segments to prevent
// collision attacks where an identifier containing ':' could manipulate an
// adjacent bucket.
//
// Escape rules (order matters):
//  1. Escape '_' to '__' (escape the escape character first)
//  2. Escape ':' to '_c' (escape the delimiter)
//
// No two distinct inputs produce the same sanitized output.
func sanitizeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, ":", "_c")
	return s
}
