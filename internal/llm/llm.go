// Package llm defines the generation and embedding capabilities the
// pipeline depends on. Concrete providers live in subpackages.
package llm

import "context"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Embedder converts text into a fixed-dimensional vector.
type Embedder interface {
	// Embed generates an embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Model returns the identifier of the embedding model.
	Model() string
}

// Generator produces text from a prompt or a conversation.
type Generator interface {
	// Generate performs single-turn generation with an optional system prompt.
	Generate(ctx context.Context, prompt, system string) (string, error)

	// Chat performs multi-turn generation over the supplied messages.
	Chat(ctx context.Context, messages []Message) (string, error)
}
