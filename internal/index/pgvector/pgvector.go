// Package pgvector implements the vector index on PostgreSQL with the
// pgvector extension.
package pgvector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/rfp-ai/server/internal/index"
	"github.com/rfp-ai/server/internal/llm"
)

// Index stores chunk embeddings in the chunks table and queries them
// with the pgvector cosine distance operator.
type Index struct {
	pool        *pgxpool.Pool
	embedder    llm.Embedder
	concurrency int
	maxRetries  int
}

// New creates a pgvector-backed index sharing the store's pool.
// maxRetries bounds attempts per embedding call.
func New(pool *pgxpool.Pool, embedder llm.Embedder, concurrency, maxRetries int) *Index {
	return &Index{pool: pool, embedder: embedder, concurrency: concurrency, maxRetries: maxRetries}
}

// IndexDocument embeds all chunks and commits them in one transaction,
// replacing any prior index for the document. Nothing is visible until
// the transaction commits.
func (ix *Index) IndexDocument(ctx context.Context, documentID uuid.UUID, chunks []index.Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks to index")
	}

	vectors, err := index.EmbedAll(ctx, ix.embedder, chunks, ix.concurrency, ix.maxRetries)
	if err != nil {
		return err
	}

	tx, err := ix.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to clear previous chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for i, chunk := range chunks {
		vec := pgv.NewVector(vectors[i])
		batch.Queue(
			`INSERT INTO chunks
			   (id, document_id, chunk_index, start_offset, end_offset, content, embedding, embedding_model)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New(), documentID, chunk.Index, chunk.Start, chunk.End, chunk.Text,
			vec, ix.embedder.Model(),
		)
	}
	br := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}
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
	vec := pgv.NewVector(queryVec)

	// 1 - cosine distance is the cosine similarity; ties keep ascending
	// chunk index.
	sql := `SELECT document_id, chunk_index, start_offset, end_offset, content,
	               1 - (embedding <=> $1) AS score
	        FROM chunks
	        WHERE embedding_model = $2`
	args := []any{vec, ix.embedder.Model()}
	if scope != uuid.Nil {
		sql += ` AND document_id = $3`
		args = append(args, scope)
	}
	sql += ` ORDER BY score DESC, document_id, chunk_index LIMIT ` +
		fmt.Sprintf("%d", topK)

	rows, err := ix.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []index.Result
	for rows.Next() {
		var r index.Result
		if err := rows.Scan(
			&r.Chunk.DocumentID, &r.Chunk.Index, &r.Chunk.Start, &r.Chunk.End,
			&r.Chunk.Text, &r.Score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
