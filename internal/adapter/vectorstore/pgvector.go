package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"policyqa/internal/port"
)

// PostgresStore is a pgvector-backed VectorStore for deployments where
// the index must outlive the process. Distance is L2; scores are
// mapped to 1/(1+distance) so higher stays better.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const schemaDDL = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS policy_chunks (
    id        TEXT PRIMARY KEY,
    doc_id    TEXT NOT NULL,
    embedding VECTOR(%d) NOT NULL
);
CREATE INDEX IF NOT EXISTS policy_chunks_doc_idx ON policy_chunks (doc_id);
`

func NewPostgresStore(ctx context.Context, dsn string, dimension int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(schemaDDL, dimension)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, items []port.VectorItem) error {
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`
            INSERT INTO policy_chunks (id, doc_id, embedding)
            VALUES ($1, $2, $3)
            ON CONFLICT (id) DO UPDATE SET doc_id = EXCLUDED.doc_id, embedding = EXCLUDED.embedding
        `, item.ID, item.Metadata["doc_id"], pgvector.NewVector(item.Vector))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range items {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert chunk vector: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Search(ctx context.Context, vector []float32, k int, filter map[string]string) ([]port.VectorResult, error) {
	if k <= 0 {
		k = 10
	}

	query := `
        SELECT id, doc_id, (embedding <-> $1::vector) AS distance
        FROM policy_chunks
    `
	args := []any{pgvector.NewVector(vector)}
	if docID, ok := filter["doc_id"]; ok {
		query += " WHERE doc_id = $2"
		args = append(args, docID)
	}
	query += fmt.Sprintf(" ORDER BY embedding <-> $1::vector LIMIT %d", k)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	var results []port.VectorResult
	for rows.Next() {
		var id, docID string
		var distance float64
		if err := rows.Scan(&id, &docID, &distance); err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		results = append(results, port.VectorResult{
			ID:       id,
			Score:    1 / (1 + distance),
			Metadata: map[string]string{"doc_id": docID},
		})
	}
	return results, rows.Err()
}

func (s *PostgresStore) DeleteByDoc(ctx context.Context, docID string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM policy_chunks WHERE doc_id = $1", docID); err != nil {
		return fmt.Errorf("delete doc vectors: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

var _ port.VectorStore = (*PostgresStore)(nil)
var _ port.VectorStore = (*MemoryStore)(nil)
