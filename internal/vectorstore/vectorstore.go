// Package vectorstore persists document chunks with their embeddings in
// Postgres (pgvector) and serves similarity search over them.
package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/docuery/docuery/internal/chunker"
)

// Embedder converts texts into fixed-length vectors. Implemented by the
// provider client.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Filter restricts a search to matching records. The zero value matches
// everything. It is a closed type translated to SQL at this boundary, so
// no untyped predicate shapes travel through the pipelines.
type Filter struct {
	documentIDs []string
}

// DocumentIDIn returns a filter matching only chunks tagged with one of
// the given document ids.
func DocumentIDIn(ids ...string) Filter {
	return Filter{documentIDs: ids}
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool { return len(f.documentIDs) == 0 }

// Store is the vector index. Construct it explicitly and pass it by
// reference; it holds no global state.
type Store struct {
	DB       *sql.DB
	embedder Embedder
}

// New creates a vector store over db, embedding via embedder.
func New(db *sql.DB, embedder Embedder) *Store {
	return &Store{DB: db, embedder: embedder}
}

// Add embeds and persists the chunks in one transaction. An embedding
// provider failure propagates unchanged so callers can distinguish rate
// limiting; nothing is written in that case.
func (s *Store) Add(ctx context.Context, chunks []chunker.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.CreateEmbedding(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("expected %d vectors, got %d", len(chunks), len(vectors))
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO document_chunks (id, document_id, filename, page, content, embedding, created_at)
VALUES ($1,$2,$3,$4,$5,$6::vector,NOW())
`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		vectorLiteral, err := encodeVectorLiteral(vectors[i])
		if err != nil {
			return fmt.Errorf("encode vector: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), c.DocumentID, c.Filename, c.Page, c.Content, vectorLiteral); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Search returns up to k chunks ranked by similarity to query, ties
// broken by insertion order. An empty result is a valid outcome, not an
// error.
func (s *Store) Search(ctx context.Context, query string, k int, filter Filter) ([]chunker.Chunk, error) {
	if k <= 0 {
		return nil, nil
	}
	vectors, err := s.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: provider returned no vectors")
	}
	vectorLiteral, err := encodeVectorLiteral(vectors[0])
	if err != nil {
		return nil, fmt.Errorf("encode query vector: %w", err)
	}

	var rows *sql.Rows
	if filter.IsZero() {
		rows, err = s.DB.QueryContext(ctx, `
SELECT document_id, filename, page, content
FROM document_chunks
ORDER BY embedding <=> $1::vector, seq
LIMIT $2
`, vectorLiteral, k)
	} else {
		rows, err = s.DB.QueryContext(ctx, `
SELECT document_id, filename, page, content
FROM document_chunks
WHERE document_id = ANY($2)
ORDER BY embedding <=> $1::vector, seq
LIMIT $3
`, vectorLiteral, pq.Array(filter.documentIDs), k)
	}
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var chunks []chunker.Chunk
	for rows.Next() {
		var c chunker.Chunk
		if err := rows.Scan(&c.DocumentID, &c.Filename, &c.Page, &c.Content); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}

// DeleteByDocument removes every record tagged with the document id. It
// first resolves the matching record ids via a metadata lookup, then
// bulk-deletes by those ids. Deleting a document with no records is a
// no-op.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	rows, err := s.DB.QueryContext(ctx, `SELECT id FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("lookup chunk ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate chunk ids: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM document_chunks WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

func encodeVectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("vector must not be empty")
	}
	var builder strings.Builder
	builder.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}
