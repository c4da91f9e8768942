// Package memory provides an in-process vector index using brute-force
// cosine similarity.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rfp-ai/server/internal/index"
	"github.com/rfp-ai/server/internal/llm"
)

type entry struct {
	chunk  index.Chunk
	vector []float32
}

type docIndex struct {
	model     string
	dimension int
	entries   []entry
}

// Index is a mutex-guarded in-memory vector index. A document's entries
// are immutable once committed; concurrent reads need no further
// coordination.
type Index struct {
	embedder    llm.Embedder
	concurrency int
	maxRetries  int

	mu   sync.RWMutex
	docs map[uuid.UUID]*docIndex
}

// New creates an index backed by the given embedder. concurrency bounds
// parallel embedding calls; maxRetries bounds attempts per embedding.
func New(embedder llm.Embedder, concurrency, maxRetries int) *Index {
	return &Index{
		embedder:    embedder,
		concurrency: concurrency,
		maxRetries:  maxRetries,
		docs:        make(map[uuid.UUID]*docIndex),
	}
}

// IndexDocument embeds and commits all chunks of a document. Nothing is
// committed on error.
func (ix *Index) IndexDocument(ctx context.Context, documentID uuid.UUID, chunks []index.Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks to index")
	}

	vectors, err := index.EmbedAll(ctx, ix.embedder, chunks, ix.concurrency, ix.maxRetries)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if existing, ok := ix.docs[documentID]; ok && existing.model != ix.embedder.Model() {
		return fmt.Errorf("embedding model mismatch: index has %q, embedder is %q",
			existing.model, ix.embedder.Model())
	}

	di := &docIndex{
		model:     ix.embedder.Model(),
		dimension: len(vectors[0]),
		entries:   make([]entry, len(chunks)),
	}
	for i, chunk := range chunks {
		di.entries[i] = entry{chunk: chunk, vector: vectors[i]}
	}
	ix.docs[documentID] = di
	return nil
}

// Query returns up to topK chunks ordered by descending similarity.
// scope uuid.Nil searches all indexed documents.
func (ix *Index) Query(ctx context.Context, scope uuid.UUID, query string, topK int) ([]index.Result, error) {
	if topK <= 0 {
		topK = 5
	}

	queryVec, err := index.EmbedWithRetry(ctx, ix.embedder, query, ix.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	model := ix.embedder.Model()

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var results []index.Result
	for id, di := range ix.docs {
		if scope != uuid.Nil && scope != id {
			continue
		}
		// vectors from another embedding model are not comparable even
		// when the dimensions happen to match
		if di.model != model || di.dimension != len(queryVec) {
			continue
		}
		for _, e := range di.entries {
			results = append(results, index.Result{
				Chunk: e.chunk,
				Score: index.Cosine(queryVec, e.vector),
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Chunk.DocumentID != results[j].Chunk.DocumentID {
			return results[i].Chunk.DocumentID.String() < results[j].Chunk.DocumentID.String()
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
