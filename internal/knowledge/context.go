package knowledge

import (
	"context"
	"fmt"
	"strings"

	id "cortex/pkg/domain"
)

// Context excerpt bounds. The excerpt is capped by BOTH a record count and a
// character budget so many short records and a few huge ones are equally
// bounded.
const (
	DefaultMaxRecords = 10
	DefaultCharBudget = 8000
)

// Store is the subset of the document store the builder needs.
type Store interface {
	RecentByOwner(ctx context.Context, ownerID id.UserID, limit int) ([]Document, error)
}

// ContextBuilder assembles the knowledge excerpt for the system prompt.
type ContextBuilder struct {
	store      Store
	maxRecords int
	charBudget int
}

type BuilderOption func(*ContextBuilder)

func WithMaxRecords(n int) BuilderOption {
	return func(b *ContextBuilder) {
		if n > 0 {
			b.maxRecords = n
		}
	}
}

func WithCharBudget(n int) BuilderOption {
	return func(b *ContextBuilder) {
		if n > 0 {
			b.charBudget = n
		}
	}
}

func NewContextBuilder(store Store, opts ...BuilderOption) *ContextBuilder {
	b := &ContextBuilder{
		store:      store,
		maxRecords: DefaultMaxRecords,
		charBudget: DefaultCharBudget,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns the excerpt for a user, newest records first. Records are
// included whole when they fit the remaining budget; the first record that
// does not fit is truncated to the remainder and iteration stops. A store
// error or an empty knowledge base yields an empty excerpt, never a failure;
// chat must work without context.
func (b *ContextBuilder) Build(ctx context.Context, ownerID id.UserID) string {
	docs, err := b.store.RecentByOwner(ctx, ownerID, b.maxRecords)
	if err != nil || len(docs) == 0 {
		return ""
	}

	var sb strings.Builder
	remaining := b.charBudget
	for _, doc := range docs {
		if remaining <= 0 {
			break
		}
		entry := formatEntry(doc)
		if len(entry) > remaining {
			entry = truncateRunes(entry, remaining)
		}
		sb.WriteString(entry)
		remaining -= len(entry)
	}
	return sb.String()
}

func formatEntry(doc Document) string {
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = "Untitled"
	}
	return fmt.Sprintf("## %s\n%s\n\n", title, strings.TrimSpace(doc.Content))
}

// truncateRunes cuts a string to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
