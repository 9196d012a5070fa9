// Package sqlitevec provides a memory.Store backed by a pure-Go SQLite
// database, scoring cosine similarity in application code rather than via
// the vec0 extension (which requires cgo and is unavailable in this build).
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/fenwick-ai/agentrt/internal/memory"
	_ "modernc.org/sqlite"
)

// Store implements memory.Store.
type Store struct {
	db *sql.DB
}

// Config configures a Store.
type Config struct {
	// Path is the database file path. Empty means an in-process, private
	// (":memory:") database.
	Path string
}

// New opens (creating if necessary) the backing database.
func New(cfg Config) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitevec: open: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			metadata TEXT,
			confidence TEXT NOT NULL,
			embedding BLOB,
			pinned INTEGER NOT NULL DEFAULT 0,
			access_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			last_accessed_at DATETIME NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			channel_id TEXT NOT NULL DEFAULT '',
			agent_id TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("sqlitevec: create table: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_memories_pinned ON memories(pinned)`)
	if err != nil {
		return fmt.Errorf("sqlitevec: create index: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces an entry.
func (s *Store) Upsert(ctx context.Context, e memory.Entry) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return &memory.SerializationError{Cause: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO memories
			(id, content, summary, metadata, confidence, embedding, pinned, access_count,
			 created_at, last_accessed_at, session_id, channel_id, agent_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.Content, e.Summary, string(metadata), string(e.Confidence), encodeEmbedding(e.Embedding),
		boolToInt(e.Pinned), e.AccessCount, e.CreatedAt, e.LastAccessedAt,
		e.SessionID, e.ChannelID, e.AgentID,
	)
	return err
}

// Search scores every row by cosine similarity against queryEmbedding,
// drops rows outside scope, and returns the top `limit` in descending
// relevance order. With the real vec0 extension this would instead be a
// SQL-side `ORDER BY vec_distance_cosine`; scoring in Go keeps this build
// cgo-free.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, limit int, scope memory.Scope) ([]memory.Hit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, summary, metadata, confidence, embedding, access_count, session_id, channel_id, agent_id
		FROM memories
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []memory.Hit
	for rows.Next() {
		var id, summary, confidence string
		var metadataJSON string
		var embeddingBlob []byte
		var accessCount int
		var sessionID, channelID, agentID string
		if err := rows.Scan(&id, &summary, &metadataJSON, &confidence, &embeddingBlob,
			&accessCount, &sessionID, &channelID, &agentID); err != nil {
			return nil, err
		}
		if !scope.Matches(sessionID, channelID, agentID) {
			continue
		}

		relevance := cosineSimilarity(queryEmbedding, decodeEmbedding(embeddingBlob))
		hits = append(hits, memory.Hit{
			ID:          id,
			Summary:     summary,
			Metadata:    decodeMetadata(metadataJSON),
			Confidence:  memory.Confidence(confidence),
			Relevance:   relevance,
			AccessCount: accessCount,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Relevance > hits[j].Relevance })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Get looks up one entry by id.
func (s *Store) Get(ctx context.Context, id string) (memory.Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, summary, metadata, confidence, embedding, pinned, access_count,
		       created_at, last_accessed_at, session_id, channel_id, agent_id
		FROM memories WHERE id = ?
	`, id)

	var e memory.Entry
	var confidence string
	var metadataJSON string
	var embeddingBlob []byte
	var pinned int
	err := row.Scan(&e.ID, &e.Content, &e.Summary, &metadataJSON, &confidence, &embeddingBlob,
		&pinned, &e.AccessCount, &e.CreatedAt, &e.LastAccessedAt,
		&e.SessionID, &e.ChannelID, &e.AgentID)
	if err == sql.ErrNoRows {
		return memory.Entry{}, false, nil
	}
	if err != nil {
		return memory.Entry{}, false, err
	}

	e.Confidence = memory.Confidence(confidence)
	e.Metadata = decodeMetadata(metadataJSON)
	e.Embedding = decodeEmbedding(embeddingBlob)
	e.Pinned = pinned != 0
	return e, true, nil
}

// Delete removes an entry by id. Deleting a nonexistent id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	return err
}

// Touch increments access_count and sets last_accessed_at in a single
// UPDATE statement, so the increment is atomic rather than a
// read-modify-write. Touching a nonexistent id is not an error.
func (s *Store) Touch(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?
	`, now, id)
	return err
}

// ListCandidates returns a paginated full scan of the eviction-relevant
// projection, per spec §4.4's explicit allowance for a simple scan.
func (s *Store) ListCandidates(ctx context.Context, offset, limit int) ([]memory.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, last_accessed_at, access_count, confidence, pinned
		FROM memories ORDER BY id LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []memory.Candidate
	for rows.Next() {
		var c memory.Candidate
		var confidence string
		var pinned int
		if err := rows.Scan(&c.ID, &c.LastAccessedAt, &c.AccessCount, &confidence, &pinned); err != nil {
			return nil, err
		}
		c.Confidence = memory.Confidence(confidence)
		c.Pinned = pinned != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns the total number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n)
	return n, err
}

// SetPinned sets or clears an entry's pinned flag.
func (s *Store) SetPinned(ctx context.Context, id string, pinned bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE memories SET pinned = ? WHERE id = ?`, boolToInt(pinned), id)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func decodeMetadata(raw string) memory.Metadata {
	if raw == "" {
		return memory.Metadata{}
	}
	var m memory.Metadata
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return memory.Metadata{}
	}
	return m
}

// encodeEmbedding packs a []float32 into a byte slice, 4 bytes per value,
// IEEE-754 little-endian bit order.
func encodeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	data := make([]byte, len(embedding)*4)
	for i, f := range embedding {
		bits := math.Float32bits(f)
		data[i*4] = byte(bits)
		data[i*4+1] = byte(bits >> 8)
		data[i*4+2] = byte(bits >> 16)
		data[i*4+3] = byte(bits >> 24)
	}
	return data
}

// decodeEmbedding is encodeEmbedding's inverse.
func decodeEmbedding(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		bits := uint32(data[i*4]) |
			uint32(data[i*4+1])<<8 |
			uint32(data[i*4+2])<<16 |
			uint32(data[i*4+3])<<24
		embedding[i] = math.Float32frombits(bits)
	}
	return embedding
}

// cosineSimilarity returns 0 for mismatched lengths or a zero vector rather
// than dividing by zero.
func cosineSimilarity(a, b []float32) float32 {
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
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
