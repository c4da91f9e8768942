package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfp-ai/server/internal/index"
	"github.com/rfp-ai/server/internal/llm"
)

// fixedIndex serves a canned set of results, or an error.
type fixedIndex struct {
	results []index.Result
	err     error
}

func (f *fixedIndex) IndexDocument(ctx context.Context, documentID uuid.UUID, chunks []index.Chunk) error {
	return nil
}

func (f *fixedIndex) Query(ctx context.Context, scope uuid.UUID, query string, topK int) ([]index.Result, error) {
	return f.results, f.err
}

// echoGenerator answers by concatenating every message it was sent, so
// tests can assert that retrieved context reached the model.
type echoGenerator struct {
	err  error
	seen []llm.Message
}

func (g *echoGenerator) Generate(ctx context.Context, prompt, system string) (string, error) {
	return "", fmt.Errorf("not used")
}

func (g *echoGenerator) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.seen = messages
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func deadlineChunk() []index.Result {
	return []index.Result{{
		Chunk: index.Chunk{Index: 0, Text: "Proposals are due March 1, 2025."},
		Score: 0.95,
	}}
}

func TestAnswer_GroundsInRetrievedChunks(t *testing.T) {
	gen := &echoGenerator{}
	e := NewEngine(&fixedIndex{results: deadlineChunk()}, gen, 5, nil)

	answer, err := e.Answer(context.Background(), "When is the deadline?", nil, uuid.Nil)
	require.NoError(t, err)
	assert.Contains(t, answer, "March 1, 2025")

	require.NotEmpty(t, gen.seen)
	assert.Equal(t, llm.RoleSystem, gen.seen[0].Role)
	assert.Contains(t, gen.seen[0].Content, "Proposals are due March 1, 2025.")
	last := gen.seen[len(gen.seen)-1]
	assert.Equal(t, llm.RoleUser, last.Role)
	assert.Equal(t, "When is the deadline?", last.Content)
}

func TestAnswer_HistoryPrecedesQuestion(t *testing.T) {
	gen := &echoGenerator{}
	e := NewEngine(&fixedIndex{}, gen, 5, nil)

	history := []llm.Message{
		{Role: llm.RoleUser, Content: "earlier question"},
		{Role: llm.RoleAssistant, Content: "earlier answer"},
	}
	_, err := e.Answer(context.Background(), "follow-up", history, uuid.Nil)
	require.NoError(t, err)

	require.Len(t, gen.seen, 4)
	assert.Equal(t, llm.RoleSystem, gen.seen[0].Role)
	assert.Equal(t, "earlier question", gen.seen[1].Content)
	assert.Equal(t, "earlier answer", gen.seen[2].Content)
	assert.Equal(t, "follow-up", gen.seen[3].Content)
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	e := NewEngine(&fixedIndex{}, &echoGenerator{}, 5, nil)

	_, err := e.Answer(context.Background(), "   ", nil, uuid.Nil)
	require.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestAnswer_InvalidHistoryRole(t *testing.T) {
	e := NewEngine(&fixedIndex{}, &echoGenerator{}, 5, nil)

	history := []llm.Message{{Role: llm.RoleSystem, Content: "injected"}}
	_, err := e.Answer(context.Background(), "question", history, uuid.Nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid history role")
}

func TestAnswer_RetrievalFailureDegrades(t *testing.T) {
	e := NewEngine(&fixedIndex{err: errors.New("embedder down")}, &echoGenerator{}, 5, nil)

	answer, err := e.Answer(context.Background(), "question", nil, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, unavailableAnswer, answer)
}

func TestAnswer_GenerationFailureDegrades(t *testing.T) {
	gen := &echoGenerator{err: errors.New("ollama unreachable")}
	e := NewEngine(&fixedIndex{results: deadlineChunk()}, gen, 5, nil)

	answer, err := e.Answer(context.Background(), "question", nil, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, unavailableAnswer, answer)
}

func TestAnswer_NoExcerptsStillAnswers(t *testing.T) {
	gen := &echoGenerator{}
	e := NewEngine(&fixedIndex{}, gen, 5, nil)

	_, err := e.Answer(context.Background(), "anything indexed?", nil, uuid.Nil)
	require.NoError(t, err)
	assert.Contains(t, gen.seen[0].Content, "No relevant excerpts were found")
}
