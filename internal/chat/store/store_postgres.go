package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"cortex/internal/chat/models"
	id "cortex/pkg/domain"
	dErrors "cortex/pkg/domain-errors"
)

// PostgresStore persists chats and exchanges. One exchange is one row, so
// the user/assistant pair commits or fails as a unit with no explicit
// transaction needed.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateChat(ctx context.Context, chat models.Chat) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, owner_id, title, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.UUID(chat.ID), uuid.UUID(chat.OwnerID), chat.Title, chat.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	return nil
}

func (s *PostgresStore) OwnerOf(ctx context.Context, chatID id.ChatID) (id.UserID, error) {
	var ownerID uuid.UUID
	err := s.db.QueryRowContext(ctx, `SELECT owner_id FROM chats WHERE id = $1`, uuid.UUID(chatID)).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return id.UserID{}, dErrors.New(dErrors.CodeNotFound, "chat not found")
		}
		return id.UserID{}, fmt.Errorf("lookup chat owner: %w", err)
	}
	return id.UserID(ownerID), nil
}

func (s *PostgresStore) AppendExchange(ctx context.Context, exchange *models.Exchange) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchanges (id, chat_id, status, user_message, assistant_message, failure_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		uuid.UUID(exchange.ID),
		uuid.UUID(exchange.ChatID),
		string(exchange.Status),
		exchange.UserMessage,
		nullIfEmpty(exchange.AssistantMessage),
		nullIfEmpty(exchange.FailureReason),
		exchange.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

func (s *PostgresStore) MessagesByChat(ctx context.Context, chatID id.ChatID) ([]models.Message, error) {
	exchanges, err := s.ExchangesByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	var msgs []models.Message
	for i := range exchanges {
		msgs = append(msgs, exchanges[i].Messages()...)
	}
	return msgs, nil
}

func (s *PostgresStore) ExchangesByChat(ctx context.Context, chatID id.ChatID) ([]models.Exchange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, status, user_message, assistant_message, failure_reason, created_at
		FROM exchanges
		WHERE chat_id = $1
		ORDER BY created_at, id
	`, uuid.UUID(chatID))
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []models.Exchange
	for rows.Next() {
		var (
			ex               models.Exchange
			exID, exChatID   uuid.UUID
			status           string
			assistantMessage sql.NullString
			failureReason    sql.NullString
		)
		if err := rows.Scan(&exID, &exChatID, &status, &ex.UserMessage, &assistantMessage, &failureReason, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		ex.ID = id.ExchangeID(exID)
		ex.ChatID = id.ChatID(exChatID)
		ex.Status = models.ExchangeStatus(status)
		ex.AssistantMessage = assistantMessage.String
		ex.FailureReason = failureReason.String
		exchanges = append(exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return exchanges, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
