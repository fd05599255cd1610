package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "cortex/pkg/domain"
)

type failingStore struct{}

func (f *failingStore) RecentByOwner(ctx context.Context, ownerID id.UserID, limit int) ([]Document, error) {
	return nil, errors.New("connection refused")
}

func seedDocs(t *testing.T, store *InMemoryStore, owner id.UserID, n int, content string) {
	t.Helper()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		require.NoError(t, store.Put(context.Background(), Document{
			ID:        id.NewDocumentID(),
			OwnerID:   owner,
			Title:     "Doc",
			Content:   content,
			UpdatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
}

func TestBuild_EmptyKnowledgeBase(t *testing.T) {
	builder := NewContextBuilder(NewInMemoryStore())
	assert.Empty(t, builder.Build(context.Background(), id.NewUserID()))
}

func TestBuild_StoreErrorYieldsEmptyExcerpt(t *testing.T) {
	builder := NewContextBuilder(&failingStore{})
	assert.Empty(t, builder.Build(context.Background(), id.NewUserID()))
}

func TestBuild_RecordCountCap(t *testing.T) {
	store := NewInMemoryStore()
	owner := id.NewUserID()
	seedDocs(t, store, owner, 15, "short content")

	builder := NewContextBuilder(store)
	excerpt := builder.Build(context.Background(), owner)

	// At most 10 records regardless of how many exist.
	assert.Equal(t, DefaultMaxRecords, strings.Count(excerpt, "## Doc"))
}

func TestBuild_CharBudgetCap(t *testing.T) {
	store := NewInMemoryStore()
	owner := id.NewUserID()
	seedDocs(t, store, owner, 3, strings.Repeat("x", 5000))

	builder := NewContextBuilder(store)
	excerpt := builder.Build(context.Background(), owner)

	assert.LessOrEqual(t, len(excerpt), DefaultCharBudget)
	// The budget truncates mid-record rather than dropping it entirely.
	assert.Greater(t, len(excerpt), 5000)
}

func TestBuild_OtherOwnersExcluded(t *testing.T) {
	store := NewInMemoryStore()
	owner := id.NewUserID()
	stranger := id.NewUserID()
	seedDocs(t, store, owner, 1, "mine")
	seedDocs(t, store, stranger, 1, "theirs")

	builder := NewContextBuilder(store)
	excerpt := builder.Build(context.Background(), owner)

	assert.Contains(t, excerpt, "mine")
	assert.NotContains(t, excerpt, "theirs")
}

func TestBuild_TruncationKeepsValidUTF8(t *testing.T) {
	store := NewInMemoryStore()
	owner := id.NewUserID()
	seedDocs(t, store, owner, 1, strings.Repeat("日本語テキスト", 500))

	builder := NewContextBuilder(store, WithCharBudget(100))
	excerpt := builder.Build(context.Background(), owner)

	assert.LessOrEqual(t, len(excerpt), 100)
	assert.True(t, strings.ToValidUTF8(excerpt, "") == excerpt, "excerpt must not split runes")
}
