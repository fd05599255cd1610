// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "cortex/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing UserID where ChatID is expected.
type (
	UserID     uuid.UUID
	ChatID     uuid.UUID
	ExchangeID uuid.UUID
	DocumentID uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParseChatID(s string) (ChatID, error) {
	id, err := parseUUID(s, "chat ID")
	return ChatID(id), err
}

func ParseExchangeID(s string) (ExchangeID, error) {
	id, err := parseUUID(s, "exchange ID")
	return ExchangeID(id), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	id, err := parseUUID(s, "document ID")
	return DocumentID(id), err
}

// New functions - for creating fresh identifiers.

func NewUserID() UserID         { return UserID(uuid.New()) }
func NewChatID() ChatID         { return ChatID(uuid.New()) }
func NewExchangeID() ExchangeID { return ExchangeID(uuid.New()) }
func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }

// String methods - for logging and debugging.

func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id ChatID) String() string     { return uuid.UUID(id).String() }
func (id ExchangeID) String() string { return uuid.UUID(id).String() }
func (id DocumentID) String() string { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ChatID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ExchangeID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the shared validation logic.
// Nil UUIDs are allowed here; use IsNil() at the service layer for business
// validation so store lookups can return proper "not found" errors.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
