// Package memory provides an in-process DocumentStore used when no
// database is configured, and by tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rfp-ai/server/internal/store"
)

// DocumentStore is a mutex-guarded in-memory document store.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[uuid.UUID]*store.Document
	originals map[uuid.UUID][]byte
	texts     map[uuid.UUID]string
	kbs       map[uuid.UUID]*store.KnowledgeBase
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[uuid.UUID]*store.Document),
		originals: make(map[uuid.UUID][]byte),
		texts:     make(map[uuid.UUID]string),
		kbs:       make(map[uuid.UUID]*store.KnowledgeBase),
	}
}

// CreateDocument persists a new document together with its original bytes.
func (s *DocumentStore) CreateDocument(ctx context.Context, doc *store.Document, original []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *doc
	s.documents[doc.ID] = &cp
	s.originals[doc.ID] = append([]byte(nil), original...)
	return nil
}

// GetDocument retrieves a document by id.
func (s *DocumentStore) GetDocument(ctx context.Context, id uuid.UUID) (*store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

// ListDocuments returns all documents, newest first.
func (s *DocumentStore) ListDocuments(ctx context.Context) ([]*store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*store.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		cp := *doc
		docs = append(docs, &cp)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].ID.String() < docs[j].ID.String()
		}
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})
	return docs, nil
}

// UpdateStatus advances the processing status.
func (s *DocumentStore) UpdateStatus(ctx context.Context, id uuid.UUID, status store.Status, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return store.ErrNotFound
	}
	doc.Status = status
	doc.FailureReason = reason
	doc.ModifiedAt = time.Now()
	return nil
}

// SetExtractedText stores the extraction output for a document.
func (s *DocumentStore) SetExtractedText(ctx context.Context, id uuid.UUID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return store.ErrNotFound
	}
	s.texts[id] = text
	doc.ModifiedAt = time.Now()
	return nil
}

// GetExtractedText returns the extraction output for a document.
func (s *DocumentStore) GetExtractedText(ctx context.Context, id uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.documents[id]; !ok {
		return "", store.ErrNotFound
	}
	return s.texts[id], nil
}

// GetOriginal returns the original uploaded bytes.
func (s *DocumentStore) GetOriginal(ctx context.Context, id uuid.UUID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	original, ok := s.originals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), original...), nil
}

// SaveKnowledgeBase stores the knowledge base for a document.
func (s *DocumentStore) SaveKnowledgeBase(ctx context.Context, kb *store.KnowledgeBase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[kb.DocumentID]; !ok {
		return store.ErrNotFound
	}
	cp := *kb
	s.kbs[kb.DocumentID] = &cp
	return nil
}

// GetKnowledgeBase retrieves the knowledge base for a document.
func (s *DocumentStore) GetKnowledgeBase(ctx context.Context, id uuid.UUID) (*store.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kb, ok := s.kbs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *kb
	return &cp, nil
}
