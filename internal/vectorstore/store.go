// Package vectorstore persists embedded documents in a local sqlite
// database and answers nearest-neighbor queries over them.
//
// A store is a directory containing an index.sqlite3 file. The file
// doubles as the existence marker: a directory without it is "no store
// here", regardless of what else the directory holds. Stores assume a
// single writer at a time.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/scholarpipe/paper-retrieval-service/internal/domain"
)

// MarkerFile is the database file whose presence marks a directory as a
// store.
const MarkerFile = "index.sqlite3"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id       TEXT PRIMARY KEY,
	content  TEXT NOT NULL,
	metadata BLOB,
	vector   BLOB NOT NULL
);
`

// Entry is one document to persist: its stable identity, the text that
// was embedded, opaque metadata bytes, and the embedding vector.
type Entry struct {
	ID       string
	Text     string
	Metadata []byte
	Vector   []float32
}

// Hit is one query result, scored by cosine similarity in [-1, 1].
type Hit struct {
	ID       string
	Text     string
	Metadata []byte
	Score    float64
}

// Store is an open handle to a sqlite-backed vector store.
type Store struct {
	db       *sql.DB
	location string
}

// Exists reports whether a store is present in dir.
func Exists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, MarkerFile))
	return err == nil && !info.IsDir()
}

// Create initializes a fresh store in dir, discarding any existing one.
func Create(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.NewStoreError("create", dir, err)
	}
	path := filepath.Join(dir, MarkerFile)
	if err := os.RemoveAll(path); err != nil {
		return nil, domain.NewStoreError("create", dir, err)
	}
	return open(dir, path)
}

// Open opens an existing store in dir. If no store is present, the
// returned error matches both domain.ErrStore and domain.ErrStoreNotFound.
func Open(dir string) (*Store, error) {
	path := filepath.Join(dir, MarkerFile)
	if !Exists(dir) {
		return nil, domain.NewStoreError("open", dir, domain.ErrStoreNotFound)
	}
	return open(dir, path)
}

func open(dir, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, domain.NewStoreError("open", dir, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, domain.NewStoreError("open", dir, err)
	}
	return &Store{db: db, location: dir}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return domain.NewStoreError("close", s.location, err)
	}
	return nil
}

// Add persists entries in one transaction. An entry whose ID already
// exists is replaced.
func (s *Store) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStoreError("add", s.location, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO documents (id, content, metadata, vector) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return domain.NewStoreError("add", s.location, err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, e.Text, e.Metadata, encodeVector(e.Vector)); err != nil {
			return domain.NewStoreError("add", s.location, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.NewStoreError("add", s.location, err)
	}
	return nil
}

// ListIDs returns the IDs of all stored documents.
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents`)
	if err != nil {
		return nil, domain.NewStoreError("list", s.location, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.NewStoreError("list", s.location, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("list", s.location, err)
	}
	return ids, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, domain.NewStoreError("count", s.location, err)
	}
	return n, nil
}

// Nearest returns the k documents most similar to vector, most similar
// first. Similarity between hits is computed in process over all stored
// vectors, which is fine at the store sizes a retrieval run produces.
func (s *Store) Nearest(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, content, metadata, vector FROM documents`)
	if err != nil {
		return nil, domain.NewStoreError("query", s.location, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			hit  Hit
			blob []byte
		)
		if err := rows.Scan(&hit.ID, &hit.Text, &hit.Metadata, &blob); err != nil {
			return nil, domain.NewStoreError("query", s.location, err)
		}
		stored, err := decodeVector(blob)
		if err != nil {
			return nil, domain.NewStoreError("query", s.location, err)
		}
		hit.Score = cosineSimilarity(vector, stored)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("query", s.location, err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("malformed vector blob of %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or a zero vector score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
