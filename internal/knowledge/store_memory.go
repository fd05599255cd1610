package knowledge

import (
	"context"
	"sort"
	"sync"

	id "cortex/pkg/domain"
)

// InMemoryStore keeps documents in a map. Used in tests and when Postgres is
// not configured.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[id.DocumentID]Document
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		docs: make(map[id.DocumentID]Document),
	}
}

// Put creates or replaces a document.
func (s *InMemoryStore) Put(ctx context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

// RecentByOwner returns up to limit documents for an owner, most recently
// updated first.
func (s *InMemoryStore) RecentByOwner(ctx context.Context, ownerID id.UserID, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []Document
	for _, doc := range s.docs {
		if doc.OwnerID == ownerID {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UpdatedAt.After(docs[j].UpdatedAt)
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}
