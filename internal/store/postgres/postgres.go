// Package postgres implements the DocumentStore on PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rfp-ai/server/internal/store"
)

// DocumentStore is a pgx-backed document store.
type DocumentStore struct {
	pool *pgxpool.Pool
}

// New creates a new database-backed store and verifies connectivity.
func New(connString string) (*DocumentStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DocumentStore{pool: pool}, nil
}

// Pool returns the underlying connection pool, shared with the
// pgvector index.
func (s *DocumentStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the connection pool.
func (s *DocumentStore) Close() {
	s.pool.Close()
}

// CreateDocument persists a new document together with its original bytes.
func (s *DocumentStore) CreateDocument(ctx context.Context, doc *store.Document, original []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents
		   (id, filename, size_bytes, status, failure_reason,
		    workspace_name, workspace_description, original,
		    uploaded_at, modified_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		doc.ID, doc.Filename, doc.Size, doc.Status, doc.FailureReason,
		doc.WorkspaceName, doc.WorkspaceDescription, original,
		doc.UploadedAt, doc.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

const documentColumns = `id, filename, size_bytes, status, failure_reason,
	workspace_name, workspace_description, uploaded_at, modified_at`

func scanDocument(row pgx.Row) (*store.Document, error) {
	var doc store.Document
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.Size, &doc.Status, &doc.FailureReason,
		&doc.WorkspaceName, &doc.WorkspaceDescription,
		&doc.UploadedAt, &doc.ModifiedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	return &doc, nil
}

// GetDocument retrieves a document by id.
func (s *DocumentStore) GetDocument(ctx context.Context, id uuid.UUID) (*store.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

// ListDocuments returns all documents, newest first. Uniqueness is
// guaranteed by the primary key.
func (s *DocumentStore) ListDocuments(ctx context.Context) ([]*store.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*store.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateStatus advances the processing status.
func (s *DocumentStore) UpdateStatus(ctx context.Context, id uuid.UUID, status store.Status, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET status = $2, failure_reason = $3, modified_at = NOW() WHERE id = $1`,
		id, status, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetExtractedText stores the extraction output for a document.
func (s *DocumentStore) SetExtractedText(ctx context.Context, id uuid.UUID, text string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET extracted_text = $2, modified_at = NOW() WHERE id = $1`,
		id, text,
	)
	if err != nil {
		return fmt.Errorf("failed to set extracted text: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetExtractedText returns the extraction output for a document.
func (s *DocumentStore) GetExtractedText(ctx context.Context, id uuid.UUID) (string, error) {
	var text *string
	err := s.pool.QueryRow(ctx,
		`SELECT extracted_text FROM documents WHERE id = $1`, id,
	).Scan(&text)
	if err == pgx.ErrNoRows {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get extracted text: %w", err)
	}
	if text == nil {
		return "", nil
	}
	return *text, nil
}

// GetOriginal returns the original uploaded bytes.
func (s *DocumentStore) GetOriginal(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var original []byte
	err := s.pool.QueryRow(ctx,
		`SELECT original FROM documents WHERE id = $1`, id,
	).Scan(&original)
	if err == pgx.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get original: %w", err)
	}
	return original, nil
}

// SaveKnowledgeBase stores the knowledge base for a document,
// replacing any previous one.
func (s *DocumentStore) SaveKnowledgeBase(ctx context.Context, kb *store.KnowledgeBase) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO knowledge_bases (document_id, content, generated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (document_id)
		 DO UPDATE SET content = EXCLUDED.content, generated_at = EXCLUDED.generated_at`,
		kb.DocumentID, kb.Content, kb.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save knowledge base: %w", err)
	}
	return nil
}

// GetKnowledgeBase retrieves the knowledge base for a document.
func (s *DocumentStore) GetKnowledgeBase(ctx context.Context, id uuid.UUID) (*store.KnowledgeBase, error) {
	var kb store.KnowledgeBase
	err := s.pool.QueryRow(ctx,
		`SELECT document_id, content, generated_at FROM knowledge_bases WHERE document_id = $1`,
		id,
	).Scan(&kb.DocumentID, &kb.Content, &kb.GeneratedAt)
	if err == pgx.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get knowledge base: %w", err)
	}
	return &kb, nil
}
