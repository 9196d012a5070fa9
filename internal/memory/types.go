// Package memory implements the episodic memory subsystem: a decay-scored
// vector store that agents use to ingest and recall content across turns and
// sessions. It is grounded on the teacher's internal/memory package (the
// Manager-wraps-a-Store-and-an-embeddings.Provider shape) but adds the
// access-count/decay-timestamp tracking and GC the teacher's manager never
// needed, since the teacher never evicts entries.
package memory

import (
	"context"
	"time"
)

// Confidence is the caller-asserted reliability of an ingested entry. Only
// Low is penalized in the decay formula; Medium and High share the baseline
// half-life (an open question the spec leaves for a three-level split later).
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ContentType classifies what kind of content an entry holds.
type ContentType string

const (
	ContentTypeCode                ContentType = "code"
	ContentTypeDocumentation       ContentType = "documentation"
	ContentTypeAPIResponse         ContentType = "api_response"
	ContentTypeConversationExcerpt ContentType = "conversation_excerpt"
	ContentTypeConfiguration       ContentType = "configuration"
	ContentTypeErrorLog            ContentType = "error_log"
	ContentTypeOther               ContentType = "other"
)

// Metadata is the structured provenance a caller attaches to an ingested
// entry. Title seeds the entry's summary (see Manager.Ingest); Tags is
// list-valued and cannot be represented in a flat string map.
type Metadata struct {
	Source      string
	ContentType ContentType
	Title       string
	URI         string
	Language    string
	Tags        []string
}

// Scope narrows a recall to entries ingested under a matching session,
// channel, or agent. An empty field imposes no constraint on that
// dimension; a zero-value Scope matches everything (global recall).
type Scope struct {
	SessionID string
	ChannelID string
	AgentID   string
}

// Matches reports whether the given session/channel/agent fields fall
// within s. Every non-empty field in s must equal the corresponding
// argument; a zero-value s matches anything.
func (s Scope) Matches(sessionID, channelID, agentID string) bool {
	if s.SessionID != "" && s.SessionID != sessionID {
		return false
	}
	if s.ChannelID != "" && s.ChannelID != channelID {
		return false
	}
	if s.AgentID != "" && s.AgentID != agentID {
		return false
	}
	return true
}

// Entry is one stored memory: content plus the bookkeeping the decay
// formula and eviction selection read.
type Entry struct {
	ID             string
	Content        string
	Summary        string
	Metadata       Metadata
	Confidence     Confidence
	Embedding      []float32
	Pinned         bool
	AccessCount    int
	CreatedAt      time.Time
	LastAccessedAt time.Time

	// Scope fields: optional session/channel/agent this entry belongs to.
	// An empty field matches only Scope filters that leave that dimension
	// empty; a Scope that sets it excludes the entry.
	SessionID string
	ChannelID string
	AgentID   string
}

// Hit is the lightweight result recall() returns: a summary-level
// projection with no content and no embedding, enough to let a caller
// decide whether to fetch_full.
type Hit struct {
	ID          string
	Summary     string
	Relevance   float32
	Metadata    Metadata
	Confidence  Confidence
	AccessCount int
}

// IngestRequest is the input to Manager.Ingest.
type IngestRequest struct {
	Content    string
	Metadata   Metadata
	Confidence Confidence

	// Scope fields: which session/channel/agent this entry belongs to.
	// An entry left empty is returned by a zero-value (global) recall scope,
	// but not by a scope that sets any of these fields.
	SessionID string
	ChannelID string
	AgentID   string
}

// GCResult reports what one Manager.GC pass did.
type GCResult struct {
	TotalBefore int
	Evicted     int
	Remaining   int
}

// Candidate is the subset of Entry the eviction-selection algorithm reads —
// exactly the store.ListCandidates projection the spec names.
type Candidate struct {
	ID             string
	LastAccessedAt time.Time
	AccessCount    int
	Confidence     Confidence
	Pinned         bool
}

// Store is the persistence contract an episodic-memory backend implements.
// Concurrent recall/ingest from multiple callers must be safe (spec §5's
// shared-resource policy for memory-store backends).
type Store interface {
	Upsert(ctx context.Context, e Entry) error
	// Search returns descending-relevance hits for queryEmbedding, narrowed
	// to scope when any of its fields are non-empty.
	Search(ctx context.Context, queryEmbedding []float32, limit int, scope Scope) ([]Hit, error)
	Get(ctx context.Context, id string) (Entry, bool, error)
	Delete(ctx context.Context, id string) error
	// Touch atomically increments access_count and sets last_accessed_at to
	// now. A read-modify-write implementation is acceptable when the
	// backend lacks an atomic increment, per spec §4.4.
	Touch(ctx context.Context, id string, now time.Time) error
	// ListCandidates returns every entry's eviction-relevant projection,
	// paginated. A full-scan implementation is acceptable per spec §4.4.
	ListCandidates(ctx context.Context, offset, limit int) ([]Candidate, error)
	Count(ctx context.Context) (int, error)
	SetPinned(ctx context.Context, id string, pinned bool) error
}

// Embedder generates a vector embedding for a piece of text. It is the
// narrower slice of embeddings.Provider that Manager actually needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
