// Package store persists chats and exchanges. An exchange is written as one
// row, so the user/assistant pair is atomic by construction in every
// implementation.
package store

import (
	"context"
	"sort"
	"sync"

	"cortex/internal/chat/models"
	id "cortex/pkg/domain"
	dErrors "cortex/pkg/domain-errors"
)

// InMemoryStore keeps chats and exchanges in maps. Used in tests and when
// Postgres is not configured.
type InMemoryStore struct {
	mu        sync.RWMutex
	chats     map[id.ChatID]models.Chat
	exchanges map[id.ChatID][]models.Exchange
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		chats:     make(map[id.ChatID]models.Chat),
		exchanges: make(map[id.ChatID][]models.Exchange),
	}
}

// CreateChat registers a conversation.
func (s *InMemoryStore) CreateChat(ctx context.Context, chat models.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.chats[chat.ID]; exists {
		return dErrors.New(dErrors.CodeConflict, "chat already exists")
	}
	s.chats[chat.ID] = chat
	return nil
}

// OwnerOf returns the owning user of a chat, or CodeNotFound.
func (s *InMemoryStore) OwnerOf(ctx context.Context, chatID id.ChatID) (id.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return id.UserID{}, dErrors.New(dErrors.CodeNotFound, "chat not found")
	}
	return chat.OwnerID, nil
}

// AppendExchange stores one exchange row.
func (s *InMemoryStore) AppendExchange(ctx context.Context, exchange *models.Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[exchange.ChatID]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "chat not found")
	}
	s.exchanges[exchange.ChatID] = append(s.exchanges[exchange.ChatID], *exchange)
	return nil
}

// MessagesByChat returns the flattened message log in insertion order.
func (s *InMemoryStore) MessagesByChat(ctx context.Context, chatID id.ChatID) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exchanges := make([]models.Exchange, len(s.exchanges[chatID]))
	copy(exchanges, s.exchanges[chatID])
	sort.SliceStable(exchanges, func(i, j int) bool {
		return exchanges[i].CreatedAt.Before(exchanges[j].CreatedAt)
	})

	var msgs []models.Message
	for i := range exchanges {
		msgs = append(msgs, exchanges[i].Messages()...)
	}
	return msgs, nil
}

// ExchangesByChat returns the raw exchange rows in insertion order.
func (s *InMemoryStore) ExchangesByChat(ctx context.Context, chatID id.ChatID) ([]models.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exchanges := make([]models.Exchange, len(s.exchanges[chatID]))
	copy(exchanges, s.exchanges[chatID])
	return exchanges, nil
}
