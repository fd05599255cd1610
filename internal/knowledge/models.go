// Package knowledge stores the user's knowledge-base documents and builds
// the bounded context excerpt injected into the upstream system prompt.
package knowledge

import (
	"time"

	id "cortex/pkg/domain"
)

// Document is one knowledge-base record owned by a user.
type Document struct {
	ID        id.DocumentID `json:"id"`
	OwnerID   id.UserID     `json:"owner_id"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	UpdatedAt time.Time     `json:"updated_at"`
}
