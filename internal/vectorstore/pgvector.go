package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgVectorStore implements Store on Postgres with the pgvector extension.
type PgVectorStore struct {
	db        *pgxpool.Pool
	dimension int
}

// NewPgVectorStore reuses pool and ensures the vector table exists.
func NewPgVectorStore(ctx context.Context, pool *pgxpool.Pool, dimension int) (*PgVectorStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	s := &PgVectorStore{db: pool, dimension: dimension}
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) ensureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS product_vectors (
  id          text PRIMARY KEY,
  seq         bigserial,
  name        text NOT NULL,
  brand       text,
  category    text,
  description text,
  price       double precision NOT NULL DEFAULT 0,
  stock       integer NOT NULL DEFAULT 0,
  embedding   vector(%d) NOT NULL,
  updated_at  timestamptz NOT NULL DEFAULT now()
);`, s.dimension)
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure product_vectors: %w", err)
	}
	return nil
}

// Upsert writes entries in a single transaction.
func (s *PgVectorStore) Upsert(ctx context.Context, entries []Entry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		lit, err := toVectorLiteral(e.Vector, s.dimension)
		if err != nil {
			return fmt.Errorf("product %s: %w", e.ID(), err)
		}
		p := e.Product
		batch.Queue(`
INSERT INTO product_vectors (id, name, brand, category, description, price, stock, embedding, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector, now())
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  brand = EXCLUDED.brand,
  category = EXCLUDED.category,
  description = EXCLUDED.description,
  price = EXCLUDED.price,
  stock = EXCLUDED.stock,
  embedding = EXCLUDED.embedding,
  updated_at = now()`,
			p.ID, p.Name, p.Brand, p.Category, p.Description, p.Price, p.Stock, lit)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert product_vectors: %w", err)
	}
	return tx.Commit(ctx)
}

// Search orders by cosine distance; seq keeps ties in insertion order.
func (s *PgVectorStore) Search(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	lit, err := toVectorLiteral(vector, s.dimension)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
SELECT id, name, COALESCE(brand,''), COALESCE(category,''), COALESCE(description,''),
       price, stock, 1 - (embedding <=> $1::vector) AS score
FROM product_vectors
ORDER BY embedding <=> $1::vector, seq
LIMIT $2`, lit, topK)
	if err != nil {
		return nil, fmt.Errorf("query product_vectors: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var score float64
		p := &m.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.Description,
			&p.Price, &p.Stock, &score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Score = float32(score)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Close is a no-op: the pool belongs to the catalog store.
func (s *PgVectorStore) Close() error { return nil }

func toVectorLiteral(embedding []float32, dim int) (string, error) {
	if len(embedding) == 0 {
		return "", errors.New("embedding is required")
	}
	if err := checkDimension(embedding, dim); err != nil {
		return "", err
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]", nil
}
