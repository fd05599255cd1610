// Package observability provides audit logging helpers for the ratelimit module.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"cortex/internal/audit"
	"cortex/pkg/requestcontext"
)

// AuditPublisher emits audit events for security-relevant operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LogAudit logs an audit event to the structured logger and, when a publisher
// is configured, emits it to the audit pipeline. Attrs are alternating
// key/value pairs in slog style.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event string, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}

	args := append(attrList, "event", event, "log_type", "audit")
	if logger != nil {
		logger.InfoContext(ctx, event, args...)
	}

	if publisher == nil {
		return
	}

	subject := extractString(attrList, "identifier")
	if subject == "" {
		subject = extractString(attrList, "user_id")
	}

	if err := publisher.Emit(ctx, audit.Event{
		Action:    event,
		Subject:   subject,
		UserID:    extractString(attrList, "user_id"),
		RequestID: requestID,
		Reason:    extractString(attrList, "reason"),
		Decision:  extractString(attrList, "decision"),
	}); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", event, "error", err)
	}
}

// extractString finds a string value for a key in an alternating key/value list.
func extractString(attrList []any, key string) string {
	for i := 0; i+1 < len(attrList); i += 2 {
		k, ok := attrList[i].(string)
		if !ok || k != key {
			continue
		}
		switch v := attrList[i+1].(type) {
		case string:
			return v
		case fmt.Stringer:
			return v.String()
		}
	}
	return ""
}
