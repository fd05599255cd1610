package audit

import "time"

// Event is emitted from domain logic to capture security-relevant actions.
// Kept transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Action    string    `json:"action"`
	RequestID string    `json:"request_id,omitempty"`
	Decision  string    `json:"decision,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

const (
	EventRateLimitExceeded = "rate_limit_exceeded"
	EventRateLimitFailOpen = "rate_limit_fail_open"
	EventPolicyUpdated     = "rate_limit_policy_updated"
	EventUsageReset        = "rate_limit_usage_reset"
)
