// Package models defines the chat domain: conversations, message exchanges,
// and the inbound request with its sanitize/validate pipeline.
package models

import (
	"time"

	id "cortex/pkg/domain"
	dErrors "cortex/pkg/domain-errors"
	"cortex/pkg/sanitize"
	"cortex/pkg/validation"
)

// Role identifies the author of a message within an exchange.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MaxMessageRunes is the hard cap on inbound message length, counted in
// runes. Not configurable.
const MaxMessageRunes = 4000

// Chat is one conversation owned by a user.
type Chat struct {
	ID        id.ChatID `json:"id"`
	OwnerID   id.UserID `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// ExchangeStatus tags the terminal state of one request/response pair.
type ExchangeStatus string

const (
	// ExchangeCompleted: both the user message and the assistant reply exist.
	ExchangeCompleted ExchangeStatus = "completed"
	// ExchangeFailed: the user message exists with a failure reason; there is
	// no assistant reply and there never will be for this exchange.
	ExchangeFailed ExchangeStatus = "failed"
)

// Exchange is one user/assistant pair persisted as a single atomic unit.
// Either both messages exist (Completed) or the user message is tagged with
// a failure reason (Failed); a dangling user message with no recorded
// outcome cannot occur.
type Exchange struct {
	ID               id.ExchangeID  `json:"id"`
	ChatID           id.ChatID      `json:"chat_id"`
	Status           ExchangeStatus `json:"status"`
	UserMessage      string         `json:"user_message"`
	AssistantMessage string         `json:"assistant_message,omitempty"`
	FailureReason    string         `json:"failure_reason,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Message is the flattened view of an exchange row, two per completed
// exchange and one per failed exchange, in insertion order.
type Message struct {
	ChatID    id.ChatID `json:"chat_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Messages flattens an exchange into its message rows.
func (e *Exchange) Messages() []Message {
	msgs := []Message{{
		ChatID:    e.ChatID,
		Role:      RoleUser,
		Content:   e.UserMessage,
		CreatedAt: e.CreatedAt,
	}}
	if e.Status == ExchangeCompleted {
		msgs = append(msgs, Message{
			ChatID:    e.ChatID,
			Role:      RoleAssistant,
			Content:   e.AssistantMessage,
			CreatedAt: e.CreatedAt,
		})
	}
	return msgs
}

// NewCompletedExchange builds the success variant.
func NewCompletedExchange(chatID id.ChatID, userMessage, assistantMessage string, at time.Time) *Exchange {
	return &Exchange{
		ID:               id.NewExchangeID(),
		ChatID:           chatID,
		Status:           ExchangeCompleted,
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
		CreatedAt:        at,
	}
}

// NewFailedExchange builds the upstream-failure variant.
func NewFailedExchange(chatID id.ChatID, userMessage, reason string, at time.Time) *Exchange {
	return &Exchange{
		ID:            id.NewExchangeID(),
		ChatID:        chatID,
		Status:        ExchangeFailed,
		UserMessage:   userMessage,
		FailureReason: reason,
		CreatedAt:     at,
	}
}

// ChatMessageRequest is the POST /v1/chat/messages body.
type ChatMessageRequest struct {
	Message string `json:"message" validate:"required,notblank,max=4000"`
	ChatID  string `json:"chatId" validate:"required,uuid"`
}

// Sanitize strips denylisted script patterns in place. Idempotent; call
// before Validate so the length cap applies to what will be stored.
func (r *ChatMessageRequest) Sanitize() {
	r.Message = sanitize.Message(r.Message)
}

// Validate enforces the request contract with the exact wire messages the
// API promises.
func (r *ChatMessageRequest) Validate() error {
	return validation.ValidateWith(r, func(field, tag string) string {
		switch field {
		case "Message":
			if tag == "max" {
				return "Message is too long. Maximum 4000 characters allowed."
			}
			return "Message is required and cannot be empty"
		case "ChatID":
			return "Valid chat ID is required"
		}
		return ""
	})
}

// ParsedChatID returns the chat ID as a typed identifier. Call only after
// Validate has passed.
func (r *ChatMessageRequest) ParsedChatID() (id.ChatID, error) {
	chatID, err := id.ParseChatID(r.ChatID)
	if err != nil {
		return id.ChatID{}, dErrors.New(dErrors.CodeValidation, "Valid chat ID is required")
	}
	return chatID, nil
}
