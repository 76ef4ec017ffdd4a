package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/andresmejia3/facewatch/internal/reference"
	"github.com/andresmejia3/facewatch/internal/vision"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a label does not exist.
var ErrNotFound = errors.New("reference not found")

// Store manages the PostgreSQL connection and pgvector operations.
type Store struct {
	conn *pgx.Conn
}

// Reference is one stored reference face.
type Reference struct {
	Label      string
	Source     string
	EnrolledAt time.Time
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the vector extension and the reference table if they don't exist.
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS reference_faces (
			label TEXT PRIMARY KEY,
			embedding VECTOR(%d) NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			enrolled_at TIMESTAMPTZ DEFAULT NOW()
		);
	`, vision.EmbeddingDim)
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// SaveReferences upserts every entry of set in a single transaction.
// Existing labels get the new embedding and source.
func (s *Store) SaveReferences(ctx context.Context, set *reference.Set, source string) (int, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	n := 0
	for _, e := range set.Entries() {
		if len(e.Embedding) != vision.EmbeddingDim {
			return 0, fmt.Errorf("reference %q has %d dimensions, want %d", e.Label, len(e.Embedding), vision.EmbeddingDim)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO reference_faces (label, embedding, source, enrolled_at)
			VALUES ($1, $2::vector, $3, NOW())
			ON CONFLICT (label) DO UPDATE
			SET embedding = EXCLUDED.embedding, source = EXCLUDED.source, enrolled_at = NOW()
		`, e.Label, vecToString(e.Embedding), source)
		if err != nil {
			return 0, fmt.Errorf("save reference %q: %w", e.Label, err)
		}
		n++
	}
	return n, tx.Commit(ctx)
}

// LoadReferences returns every stored reference as a Set ordered by label.
func (s *Store) LoadReferences(ctx context.Context) (*reference.Set, error) {
	rows, err := s.conn.Query(ctx, "SELECT label, embedding::text FROM reference_faces ORDER BY label ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := reference.NewSet()
	for rows.Next() {
		var label, vecStr string
		if err := rows.Scan(&label, &vecStr); err != nil {
			return nil, err
		}
		emb, err := parseVector(vecStr)
		if err != nil {
			return nil, fmt.Errorf("reference %q: %w", label, err)
		}
		set.Put(label, emb)
	}
	return set, rows.Err()
}

// ListReferences returns metadata for every stored reference ordered by label.
func (s *Store) ListReferences(ctx context.Context) ([]Reference, error) {
	rows, err := s.conn.Query(ctx, "SELECT label, source, enrolled_at FROM reference_faces ORDER BY label ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []Reference
	for rows.Next() {
		var r Reference
		if err := rows.Scan(&r.Label, &r.Source, &r.EnrolledAt); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// RenameReference changes the label of a stored reference.
func (s *Store) RenameReference(ctx context.Context, oldLabel, newLabel string) error {
	tag, err := s.conn.Exec(ctx, "UPDATE reference_faces SET label = $1 WHERE label = $2", newLabel, oldLabel)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, oldLabel)
	}
	return nil
}

// DeleteReference removes a stored reference.
func (s *Store) DeleteReference(ctx context.Context, label string) error {
	tag, err := s.conn.Exec(ctx, "DELETE FROM reference_faces WHERE label = $1", label)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, label)
	}
	return nil
}

// FindClosest returns the nearest stored label by Euclidean distance.
// The label is vision.Unknown when nothing lies strictly below threshold.
func (s *Store) FindClosest(ctx context.Context, vec vision.Embedding, threshold float64) (string, float64, error) {
	vecStr := vecToString(vec)
	// <-> is the L2 distance operator in pgvector
	query := `SELECT label, embedding <-> $1::vector AS dist FROM reference_faces ORDER BY dist ASC, label ASC LIMIT 1`

	var label string
	var dist float64
	err := s.conn.QueryRow(ctx, query, vecStr).Scan(&label, &dist)
	if errors.Is(err, pgx.ErrNoRows) {
		return vision.Unknown, math.Inf(1), nil
	}
	if err != nil {
		return "", 0, err
	}
	if dist >= threshold {
		return vision.Unknown, dist, nil
	}
	return label, dist, nil
}

// Reset drops the application tables.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, "DROP TABLE IF EXISTS reference_faces CASCADE")
	return err
}

// vecToString formats an embedding into the PostgreSQL vector literal "[1.0,2.0,...]".
func vecToString(vec vision.Embedding) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// parseVector is the inverse of vecToString.
func parseVector(s string) (vision.Embedding, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("malformed vector %q", s)
	}
	s = strings.Trim(s, "[]")
	if s == "" {
		return vision.Embedding{}, nil
	}
	parts := strings.Split(s, ",")
	vec := make(vision.Embedding, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("malformed vector element %q: %w", p, err)
		}
		vec[i] = float32(v)
	}
	return vec, nil
}
