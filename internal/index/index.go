// Package index maintains per-document vector indexes over chunks and
// answers similarity queries.
package index

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rfp-ai/server/internal/llm"
)

// Chunk is the unit of indexing and retrieval.
type Chunk struct {
	DocumentID uuid.UUID
	Index      int
	Start      int
	End        int
	Text       string
}

// Result is a retrieved chunk with its cosine similarity score.
type Result struct {
	Chunk Chunk
	Score float64
}

// Index computes one embedding per chunk and supports similarity
// queries scoped to one document or across all indexed documents
// (uuid.Nil scope).
type Index interface {
	// IndexDocument embeds and commits all chunks of a document.
	// Indexing is all-or-nothing: on error nothing is committed.
	IndexDocument(ctx context.Context, documentID uuid.UUID, chunks []Chunk) error

	// Query returns up to topK chunks ordered by descending similarity
	// to the query text. Ties preserve ascending chunk index.
	Query(ctx context.Context, scope uuid.UUID, query string, topK int) ([]Result, error)
}

// EmbedWithRetry embeds one text, retrying transient failures with
// bounded exponential backoff. maxRetries is the total attempt count.
func EmbedWithRetry(ctx context.Context, embedder llm.Embedder, text string, maxRetries int) ([]float32, error) {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(500*time.Millisecond),
			backoff.WithMaxInterval(10*time.Second),
		),
		uint64(maxRetries-1),
	), ctx)

	var vec []float32
	op := func() error {
		var err error
		vec, err = embedder.Embed(ctx, text)
		return err
	}
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedAll embeds every chunk with bounded concurrency, preserving
// chunk order in the returned vectors. Each chunk's embedding is
// retried before the stage is declared failed. All vectors are
// verified to share one dimensionality.
func EmbedAll(ctx context.Context, embedder llm.Embedder, chunks []Chunk, concurrency, maxRetries int) ([][]float32, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	vectors := make([][]float32, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			vec, err := EmbedWithRetry(ctx, embedder, chunk.Text, maxRetries)
			if err != nil {
				return fmt.Errorf("failed to embed chunk %d: %w", chunk.Index, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := 1; i < len(vectors); i++ {
		if len(vectors[i]) != len(vectors[0]) {
			return nil, fmt.Errorf("embedding dimension mismatch: chunk %d has %d, expected %d",
				chunks[i].Index, len(vectors[i]), len(vectors[0]))
		}
	}
	return vectors, nil
}

// Cosine returns the cosine similarity of two vectors, 0 for
// zero-norm input.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
