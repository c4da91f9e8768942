// Package chat answers free-form questions grounded in retrieved
// document chunks. The engine is stateless: callers resend the full
// conversation history each turn.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rfp-ai/server/internal/index"
	"github.com/rfp-ai/server/internal/llm"
)

// ErrEmptyQuestion is returned for a blank question. Unlike capability
// outages this is a hard error.
var ErrEmptyQuestion = errors.New("question cannot be empty")

// unavailableAnswer is returned instead of an error when the embedding
// or generation capability is down.
const unavailableAnswer = "I'm sorry, I can't answer that right now because the " +
	"language model is unavailable. Please try again in a moment."

// Engine is the retrieval chat engine.
type Engine struct {
	idx       index.Index
	generator llm.Generator
	topK      int
	log       *zap.Logger
}

// NewEngine creates a chat engine. topK bounds retrieved context chunks.
func NewEngine(idx index.Index, generator llm.Generator, topK int, log *zap.Logger) *Engine {
	if topK <= 0 {
		topK = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{idx: idx, generator: generator, topK: topK, log: log}
}

// Answer responds to a question using retrieved chunks as grounding.
// scope uuid.Nil searches all indexed documents. Capability failures
// degrade to an apology answer rather than an error; malformed input
// fails hard.
func (e *Engine) Answer(ctx context.Context, question string, history []llm.Message, scope uuid.UUID) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	for _, m := range history {
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			return "", fmt.Errorf("invalid history role %q", m.Role)
		}
	}

	results, err := e.idx.Query(ctx, scope, question, e.topK)
	if err != nil {
		e.log.Warn("chat retrieval unavailable", zap.Error(err))
		return unavailableAnswer, nil
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: buildSystemPrompt(results),
	})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})

	answer, err := e.generator.Chat(ctx, messages)
	if err != nil {
		e.log.Warn("chat generation unavailable", zap.Error(err))
		return unavailableAnswer, nil
	}
	return strings.TrimSpace(answer), nil
}

func buildSystemPrompt(results []index.Result) string {
	var b strings.Builder
	b.WriteString("You are an assistant answering questions about processed RFP documents. " +
		"Answer using only the excerpts below. If the excerpts do not contain " +
		"the answer, say so.\n")
	if len(results) == 0 {
		b.WriteString("\n(No relevant excerpts were found.)\n")
		return b.String()
	}
	b.WriteString("\nRelevant excerpts:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "\n### Excerpt %d:\n%s\n", i+1, r.Chunk.Text)
	}
	return b.String()
}
