// Package store defines the document store: persisted source documents
// and their derived knowledge-base artifacts.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the processing state of a document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusExtracting Status = "extracting"
	StatusChunking   Status = "chunking"
	StatusEmbedding  Status = "embedding"
	StatusAnalyzing  Status = "analyzing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Document represents an uploaded source document.
type Document struct {
	ID                   uuid.UUID
	Filename             string
	Size                 int64
	Status               Status
	FailureReason        string
	WorkspaceName        string
	WorkspaceDescription string
	UploadedAt           time.Time
	ModifiedAt           time.Time
}

// KnowledgeBase is the markdown artifact produced by the analysis
// passes for one document. Immutable once written; a re-run replaces it
// wholesale.
type KnowledgeBase struct {
	DocumentID  uuid.UUID
	Content     string
	GeneratedAt time.Time
}

// DocumentStore persists documents, their original bytes, extracted
// text and knowledge bases. Writes for one document are linearized;
// List never emits duplicate ids.
type DocumentStore interface {
	// CreateDocument persists a new document together with its original bytes.
	CreateDocument(ctx context.Context, doc *Document, original []byte) error

	// GetDocument retrieves a document by id.
	GetDocument(ctx context.Context, id uuid.UUID) (*Document, error)

	// ListDocuments returns all documents, newest first, unique by id.
	ListDocuments(ctx context.Context) ([]*Document, error)

	// UpdateStatus advances the processing status. reason is recorded for
	// failed/cancelled documents and cleared otherwise.
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, reason string) error

	// SetExtractedText stores the extraction output for a document.
	SetExtractedText(ctx context.Context, id uuid.UUID, text string) error

	// GetExtractedText returns the extraction output for a document.
	GetExtractedText(ctx context.Context, id uuid.UUID) (string, error)

	// GetOriginal returns the original uploaded bytes.
	GetOriginal(ctx context.Context, id uuid.UUID) ([]byte, error)

	// SaveKnowledgeBase stores the knowledge base for a document,
	// replacing any previous one.
	SaveKnowledgeBase(ctx context.Context, kb *KnowledgeBase) error

	// GetKnowledgeBase retrieves the knowledge base for a document.
	GetKnowledgeBase(ctx context.Context, id uuid.UUID) (*KnowledgeBase, error)
}
