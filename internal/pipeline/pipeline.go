// Package pipeline sequences the ingestion stages for one uploaded
// document: extraction, chunking, embedding/indexing, agent analysis
// and knowledge-base persistence.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rfp-ai/server/internal/agents"
	"github.com/rfp-ai/server/internal/chunker"
	"github.com/rfp-ai/server/internal/index"
	"github.com/rfp-ai/server/internal/store"
)

// Extractor converts an uploaded binary document into plain text.
type Extractor interface {
	Extract(content []byte) (string, error)
}

// Progress observes per-stage status changes of a run.
type Progress func(documentID uuid.UUID, status store.Status)

// Result is the terminal output of a successful run.
type Result struct {
	DocumentID    uuid.UUID
	KnowledgeBase string
}

// Coordinator runs the ingestion pipeline. Each call to Process is an
// independent run; runs share no mutable state beyond the store and
// index.
type Coordinator struct {
	store     store.DocumentStore
	idx       index.Index
	extractor Extractor
	chunks    *chunker.Chunker
	orch      *agents.Orchestrator
	log       *zap.Logger
}

// NewCoordinator wires the pipeline stages together.
func NewCoordinator(
	st store.DocumentStore,
	idx index.Index,
	extractor Extractor,
	ch *chunker.Chunker,
	orch *agents.Orchestrator,
	log *zap.Logger,
) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		store:     st,
		idx:       idx,
		extractor: extractor,
		chunks:    ch,
		orch:      orch,
		log:       log,
	}
}

// Process runs the full pipeline for one uploaded document. Identical
// bytes uploaded twice produce two independent documents and knowledge
// bases. Cancellation between stages marks the document cancelled; a
// stage failure marks it failed with the stage name and cause.
func (c *Coordinator) Process(ctx context.Context, content []byte, filename string, ws agents.Workspace, progress Progress) (*Result, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: uploaded file is empty", ErrInvalidInput)
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return nil, fmt.Errorf("%w: only PDF files are accepted", ErrInvalidInput)
	}

	now := time.Now()
	doc := &store.Document{
		ID:                   uuid.New(),
		Filename:             filename,
		Size:                 int64(len(content)),
		Status:               store.StatusPending,
		WorkspaceName:        ws.Name,
		WorkspaceDescription: ws.Description,
		UploadedAt:           now,
		ModifiedAt:           now,
	}
	if err := c.store.CreateDocument(ctx, doc, content); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	log := c.log.With(zap.String("document_id", doc.ID.String()), zap.String("filename", filename))
	log.Info("processing started", zap.Int64("size", doc.Size))

	// Extraction.
	if err := c.advance(ctx, doc.ID, store.StatusExtracting, progress); err != nil {
		return nil, err
	}
	text, err := c.extractor.Extract(content)
	if err != nil {
		return nil, c.fail(ctx, doc.ID, StageExtract, err, progress)
	}
	if err := c.store.SetExtractedText(ctx, doc.ID, text); err != nil {
		return nil, c.fail(ctx, doc.ID, StagePersist, err, progress)
	}
	log.Info("text extracted", zap.Int("characters", len(text)))

	// Chunking.
	if err := c.advance(ctx, doc.ID, store.StatusChunking, progress); err != nil {
		return nil, err
	}
	parts, err := c.chunks.Split(text)
	if err != nil {
		return nil, c.fail(ctx, doc.ID, StageChunk, err, progress)
	}
	log.Info("text chunked", zap.Int("chunks", len(parts)))

	// Embedding and indexing.
	if err := c.advance(ctx, doc.ID, store.StatusEmbedding, progress); err != nil {
		return nil, err
	}
	idxChunks := make([]index.Chunk, len(parts))
	for i, p := range parts {
		idxChunks[i] = index.Chunk{
			DocumentID: doc.ID,
			Index:      p.Index,
			Start:      p.Start,
			End:        p.End,
			Text:       p.Text,
		}
	}
	if err := c.idx.IndexDocument(ctx, doc.ID, idxChunks); err != nil {
		return nil, c.fail(ctx, doc.ID, StageEmbed, err, progress)
	}

	// Agent analysis.
	if err := c.advance(ctx, doc.ID, store.StatusAnalyzing, progress); err != nil {
		return nil, err
	}
	kb, err := c.orch.Analyze(ctx, doc.ID, ws)
	if err != nil {
		return nil, c.fail(ctx, doc.ID, StageAnalyze, err, progress)
	}

	if err := c.store.SaveKnowledgeBase(ctx, &store.KnowledgeBase{
		DocumentID:  doc.ID,
		Content:     kb,
		GeneratedAt: time.Now(),
	}); err != nil {
		return nil, c.fail(ctx, doc.ID, StagePersist, err, progress)
	}
	if err := c.advance(ctx, doc.ID, store.StatusComplete, progress); err != nil {
		return nil, err
	}
	log.Info("processing complete")

	return &Result{DocumentID: doc.ID, KnowledgeBase: kb}, nil
}

// advance moves the document to the next stage, unless the run was
// abandoned, in which case the document is marked cancelled instead of
// being left mid-pipeline.
func (c *Coordinator) advance(ctx context.Context, id uuid.UUID, status store.Status, progress Progress) error {
	if err := ctx.Err(); err != nil {
		c.cancel(ctx, id, progress)
		return fmt.Errorf("run abandoned: %w", err)
	}
	if err := c.store.UpdateStatus(ctx, id, status, ""); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if progress != nil {
		progress(id, status)
	}
	return nil
}

// fail records the failed stage on the document. Cancellation observed
// here is reported as cancelled rather than failed.
func (c *Coordinator) fail(ctx context.Context, id uuid.UUID, stage string, cause error, progress Progress) error {
	if ctx.Err() != nil {
		c.cancel(ctx, id, progress)
		return fmt.Errorf("run abandoned during %s: %w", stage, ctx.Err())
	}

	reason := fmt.Sprintf("%s: %v", stage, cause)
	if err := c.store.UpdateStatus(ctx, id, store.StatusFailed, reason); err != nil {
		c.log.Error("failed to record failure", zap.String("document_id", id.String()), zap.Error(err))
	}
	if progress != nil {
		progress(id, store.StatusFailed)
	}
	return &StageError{Stage: stage, Err: cause}
}

// cancel marks the document cancelled using a context detached from the
// abandoned request.
func (c *Coordinator) cancel(ctx context.Context, id uuid.UUID, progress Progress) {
	detached := context.WithoutCancel(ctx)
	if err := c.store.UpdateStatus(detached, id, store.StatusCancelled, "run abandoned by caller"); err != nil {
		c.log.Error("failed to record cancellation", zap.String("document_id", id.String()), zap.Error(err))
	}
	if progress != nil {
		progress(id, store.StatusCancelled)
	}
}
