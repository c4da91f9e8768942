package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfp-ai/server/internal/agents"
	"github.com/rfp-ai/server/internal/chunker"
	"github.com/rfp-ai/server/internal/index"
	"github.com/rfp-ai/server/internal/llm"
	"github.com/rfp-ai/server/internal/store"
	storemem "github.com/rfp-ai/server/internal/store/memory"
)

// textExtractor treats the upload bytes as already-plain text.
type textExtractor struct {
	err error
}

func (e *textExtractor) Extract(content []byte) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return string(content), nil
}

// recordingIndex keeps indexed chunks per document.
type recordingIndex struct {
	err     error
	indexed map[uuid.UUID][]index.Chunk
}

func (r *recordingIndex) IndexDocument(ctx context.Context, documentID uuid.UUID, chunks []index.Chunk) error {
	if r.err != nil {
		return r.err
	}
	if r.indexed == nil {
		r.indexed = make(map[uuid.UUID][]index.Chunk)
	}
	r.indexed[documentID] = chunks
	return nil
}

func (r *recordingIndex) Query(ctx context.Context, scope uuid.UUID, query string, topK int) ([]index.Result, error) {
	var out []index.Result
	for id, chunks := range r.indexed {
		if scope != uuid.Nil && scope != id {
			continue
		}
		for _, c := range chunks {
			out = append(out, index.Result{Chunk: c, Score: 1})
		}
	}
	return out, nil
}

// cannedGenerator produces a fixed section body for every pass.
type cannedGenerator struct{}

func (cannedGenerator) Generate(ctx context.Context, prompt, system string) (string, error) {
	return "generated section", nil
}

func (cannedGenerator) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return "", fmt.Errorf("not used")
}

func newTestCoordinator(t *testing.T, st store.DocumentStore, idx index.Index, ex Extractor) *Coordinator {
	t.Helper()
	ch, err := chunker.New(4000, 200)
	require.NoError(t, err)
	roster := []agents.Pass{
		{Name: "summary", Title: "Summary", Rank: 0, Mandatory: true, Instructions: "summarize", Query: "summary"},
	}
	orch := agents.NewOrchestrator(cannedGenerator{}, idx, roster, agents.Options{MaxRetries: 1}, nil)
	return NewCoordinator(st, idx, ex, ch, orch, nil)
}

// statusRecorder captures the status transitions a run reports.
type statusRecorder struct {
	statuses []store.Status
}

func (s *statusRecorder) observe(_ uuid.UUID, status store.Status) {
	s.statuses = append(s.statuses, status)
}

func TestProcess_HappyPath(t *testing.T) {
	st := storemem.NewDocumentStore()
	idx := &recordingIndex{}
	c := newTestCoordinator(t, st, idx, &textExtractor{})
	rec := &statusRecorder{}

	res, err := c.Process(context.Background(), []byte("the quick brown fox"), "rfp.pdf",
		agents.Workspace{Name: "Acme"}, rec.observe)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Contains(t, res.KnowledgeBase, "## Summary")

	doc, err := st.GetDocument(context.Background(), res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusComplete, doc.Status)
	assert.Equal(t, "rfp.pdf", doc.Filename)
	assert.Equal(t, "Acme", doc.WorkspaceName)

	kb, err := st.GetKnowledgeBase(context.Background(), res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, res.KnowledgeBase, kb.Content)

	assert.Equal(t, []store.Status{
		store.StatusExtracting,
		store.StatusChunking,
		store.StatusEmbedding,
		store.StatusAnalyzing,
		store.StatusComplete,
	}, rec.statuses)
}

func TestProcess_RepeatUploadsAreIndependent(t *testing.T) {
	st := storemem.NewDocumentStore()
	c := newTestCoordinator(t, st, &recordingIndex{}, &textExtractor{})
	content := []byte("identical document body")

	first, err := c.Process(context.Background(), content, "same.pdf", agents.Workspace{}, nil)
	require.NoError(t, err)
	second, err := c.Process(context.Background(), content, "same.pdf", agents.Workspace{}, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.DocumentID, second.DocumentID)

	docs, err := st.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	kbA, err := st.GetKnowledgeBase(context.Background(), first.DocumentID)
	require.NoError(t, err)
	kbB, err := st.GetKnowledgeBase(context.Background(), second.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, first.DocumentID, kbA.DocumentID)
	assert.Equal(t, second.DocumentID, kbB.DocumentID)
}

func TestProcess_RejectsNonPDF(t *testing.T) {
	c := newTestCoordinator(t, storemem.NewDocumentStore(), &recordingIndex{}, &textExtractor{})

	_, err := c.Process(context.Background(), []byte("body"), "notes.txt", agents.Workspace{}, nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = c.Process(context.Background(), nil, "empty.pdf", agents.Workspace{}, nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestProcess_ExtractionFailureMarksFailed(t *testing.T) {
	st := storemem.NewDocumentStore()
	c := newTestCoordinator(t, st, &recordingIndex{}, &textExtractor{err: errors.New("corrupt pdf")})

	_, err := c.Process(context.Background(), []byte("%PDF-garbage"), "bad.pdf", agents.Workspace{}, nil)
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageExtract, se.Stage)

	docs, err := st.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, store.StatusFailed, docs[0].Status)
	assert.Contains(t, docs[0].FailureReason, "corrupt pdf")
	assert.True(t, strings.HasPrefix(docs[0].FailureReason, StageExtract))
}

func TestProcess_EmbeddingFailureMarksFailed(t *testing.T) {
	st := storemem.NewDocumentStore()
	c := newTestCoordinator(t, st, &recordingIndex{err: errors.New("embedder offline")}, &textExtractor{})

	_, err := c.Process(context.Background(), []byte("body text"), "doc.pdf", agents.Workspace{}, nil)
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageEmbed, se.Stage)

	docs, err := st.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, store.StatusFailed, docs[0].Status)
}

func TestProcess_CancellationMarksCancelled(t *testing.T) {
	st := storemem.NewDocumentStore()
	idx := &recordingIndex{}

	ctx, cancel := context.WithCancel(context.Background())
	ex := &cancellingExtractor{cancel: cancel}
	c := newTestCoordinator(t, st, idx, ex)

	_, err := c.Process(ctx, []byte("body text"), "doc.pdf", agents.Workspace{}, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)

	docs, listErr := st.ListDocuments(context.Background())
	require.NoError(t, listErr)
	require.Len(t, docs, 1)
	assert.Equal(t, store.StatusCancelled, docs[0].Status)
	assert.NotEqual(t, store.StatusPending, docs[0].Status)
}

// cancellingExtractor cancels the run context mid-extraction,
// simulating a caller abandoning the request while a stage is running.
type cancellingExtractor struct {
	cancel context.CancelFunc
}

func (e *cancellingExtractor) Extract(content []byte) (string, error) {
	e.cancel()
	return string(content), nil
}
