package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Manager is the episodic-memory orchestrator: it owns a Store and an
// Embedder and implements the spec's ingest/recall/fetch_full/pin/unpin/gc
// operations. Grounded on the teacher's memory.Manager (the
// backend-plus-embedder wiring shape) but adds decay/access-count tracking
// and GC, which the teacher's manager has no concept of.
type Manager struct {
	store    Store
	embedder Embedder
	cfg      Config
	logger   *slog.Logger

	now func() time.Time
}

// NewManager constructs a Manager. store and embedder must be non-nil.
func NewManager(store Store, embedder Embedder, cfg Config) *Manager {
	return &Manager{
		store:    store,
		embedder: embedder,
		cfg:      cfg.withDefaults(),
		logger:   slog.Default(),
		now:      time.Now,
	}
}

// SetLogger overrides the manager's structured logger.
func (m *Manager) SetLogger(logger *slog.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Ingest embeds and stores a new entry, returning its id.
func (m *Manager) Ingest(ctx context.Context, req IngestRequest) (string, error) {
	embedding, err := m.embedder.Embed(ctx, req.Content)
	if err != nil {
		return "", &EmbeddingError{Cause: err}
	}

	now := m.now()
	confidence := req.Confidence
	if confidence == "" {
		confidence = ConfidenceMedium
	}
	entry := Entry{
		ID:             newID(now),
		Content:        req.Content,
		Summary:        req.Metadata.Title,
		Metadata:       req.Metadata,
		Confidence:     confidence,
		Embedding:      embedding,
		Pinned:         false,
		AccessCount:    0,
		CreatedAt:      now,
		LastAccessedAt: now,
		SessionID:      req.SessionID,
		ChannelID:      req.ChannelID,
		AgentID:        req.AgentID,
	}

	if err := m.store.Upsert(ctx, entry); err != nil {
		return "", &StoreError{Op: "upsert", Cause: err}
	}
	return entry.ID, nil
}

// newID assigns a monotonic timestamp-based id per spec §4.4, disambiguated
// with a uuid suffix in case two ingests land in the same nanosecond.
func newID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())
}

// Recall embeds query, vector-searches the store, and best-effort touches
// every returned id before returning lightweight hits. Touch failures are
// logged, not propagated (spec §4.4, §7). A zero-value scope recalls
// globally; a non-zero scope narrows results to matching entries.
func (m *Manager) Recall(ctx context.Context, query string, limit int, scope Scope) ([]Hit, error) {
	if limit <= 0 {
		limit = m.cfg.RecallLimit
	}

	embedding, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &EmbeddingError{Cause: err}
	}

	hits, err := m.store.Search(ctx, embedding, limit, scope)
	if err != nil {
		return nil, &StoreError{Op: "search", Cause: err}
	}

	now := m.now()
	for _, h := range hits {
		if err := m.store.Touch(ctx, h.ID, now); err != nil {
			m.logger.Warn("memory: touch failed during recall", "id", h.ID, "error", err)
		}
	}
	return hits, nil
}

// FetchFull looks up an entry by id and touches it on success.
func (m *Manager) FetchFull(ctx context.Context, id string) (Entry, bool, error) {
	entry, ok, err := m.store.Get(ctx, id)
	if err != nil {
		return Entry{}, false, &StoreError{Op: "get", Cause: err}
	}
	if !ok {
		return Entry{}, false, nil
	}

	if err := m.store.Touch(ctx, id, m.now()); err != nil {
		m.logger.Warn("memory: touch failed during fetch_full", "id", id, "error", err)
	}
	return entry, true, nil
}

// Pin sets an entry's pinned flag, exempting it from eviction.
func (m *Manager) Pin(ctx context.Context, id string) error {
	return m.setPinned(ctx, id, true)
}

// Unpin clears an entry's pinned flag.
func (m *Manager) Unpin(ctx context.Context, id string) error {
	return m.setPinned(ctx, id, false)
}

func (m *Manager) setPinned(ctx context.Context, id string, pinned bool) error {
	_, ok, err := m.store.Get(ctx, id)
	if err != nil {
		return &StoreError{Op: "get", Cause: err}
	}
	if !ok {
		return &NotFoundError{ID: id}
	}
	if err := m.store.SetPinned(ctx, id, pinned); err != nil {
		return &StoreError{Op: "set_pinned", Cause: err}
	}
	return nil
}

// GC runs one eviction pass: score every non-pinned candidate, mark
// below-threshold entries, then trim to max_entries if still over budget.
func (m *Manager) GC(ctx context.Context) (GCResult, error) {
	total, err := m.store.Count(ctx)
	if err != nil {
		return GCResult{}, &StoreError{Op: "count", Cause: err}
	}

	candidates, err := m.listAllCandidates(ctx)
	if err != nil {
		return GCResult{}, err
	}

	ids := selectForEviction(candidates, total, m.now(), m.cfg)
	for _, id := range ids {
		if err := m.store.Delete(ctx, id); err != nil {
			return GCResult{}, &StoreError{Op: "delete", Cause: err}
		}
	}

	return GCResult{
		TotalBefore: total,
		Evicted:     len(ids),
		Remaining:   total - len(ids),
	}, nil
}

const candidatePageSize = 500

func (m *Manager) listAllCandidates(ctx context.Context) ([]Candidate, error) {
	var all []Candidate
	offset := 0
	for {
		page, err := m.store.ListCandidates(ctx, offset, candidatePageSize)
		if err != nil {
			return nil, &StoreError{Op: "list_candidates", Cause: err}
		}
		all = append(all, page...)
		if len(page) < candidatePageSize {
			return all, nil
		}
		offset += candidatePageSize
	}
}
