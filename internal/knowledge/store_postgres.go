package knowledge

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "cortex/pkg/domain"
)

// PostgresStore persists documents in the knowledge_documents table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, doc Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_documents (id, owner_id, title, content, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			updated_at = EXCLUDED.updated_at
	`, uuid.UUID(doc.ID), uuid.UUID(doc.OwnerID), doc.Title, doc.Content, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert knowledge document: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentByOwner(ctx context.Context, ownerID id.UserID, limit int) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, title, content, updated_at
		FROM knowledge_documents
		WHERE owner_id = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`, uuid.UUID(ownerID), limit)
	if err != nil {
		return nil, fmt.Errorf("query knowledge documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			doc     Document
			docID   uuid.UUID
			ownerID uuid.UUID
		)
		if err := rows.Scan(&docID, &ownerID, &doc.Title, &doc.Content, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan knowledge document: %w", err)
		}
		doc.ID = id.DocumentID(docID)
		doc.OwnerID = id.UserID(ownerID)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge documents: %w", err)
	}
	return docs, nil
}
