package sqlitevec

import (
	"context"
	"testing"
	"time"

	"github.com/fenwick-ai/agentrt/internal/memory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_UpsertAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().Truncate(time.Second)

	entry := memory.Entry{
		ID:             "e1",
		Content:        "hello world",
		Summary:        "a greeting",
		Metadata:       memory.Metadata{Source: "test", Tags: []string{"greeting"}},
		Confidence:     memory.ConfidenceHigh,
		Embedding:      []float32{0.1, 0.2, 0.3},
		CreatedAt:      now,
		LastAccessedAt: now,
		SessionID:      "s1",
	}
	if err := s.Upsert(context.Background(), entry); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, ok, err := s.Get(context.Background(), "e1")
	if err != nil || !ok {
		t.Fatalf("Get() = %+v, %v, %v", got, ok, err)
	}
	if got.Content != entry.Content {
		t.Errorf("Content = %q, want %q", got.Content, entry.Content)
	}
	if got.Summary != entry.Summary {
		t.Errorf("Summary = %q, want %q", got.Summary, entry.Summary)
	}
	if len(got.Embedding) != 3 || got.Embedding[0] != entry.Embedding[0] {
		t.Errorf("Embedding = %v, want %v", got.Embedding, entry.Embedding)
	}
	if got.Metadata.Source != "test" || len(got.Metadata.Tags) != 1 || got.Metadata.Tags[0] != "greeting" {
		t.Errorf("Metadata = %+v", got.Metadata)
	}
	if got.SessionID != "s1" {
		t.Errorf("SessionID = %q, want s1", got.SessionID)
	}
}

func TestStore_GetMissingReturnsNotOk(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing id")
	}
}

func TestStore_SearchRanksByCosineSimilarity(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	entries := []memory.Entry{
		{ID: "aligned", Content: "aligned", Embedding: []float32{1, 0}, CreatedAt: now, LastAccessedAt: now},
		{ID: "orthogonal", Content: "orthogonal", Embedding: []float32{0, 1}, CreatedAt: now, LastAccessedAt: now},
	}
	for _, e := range entries {
		if err := s.Upsert(context.Background(), e); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	hits, err := s.Search(context.Background(), []float32{1, 0}, 10, memory.Scope{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %+v, want 2", hits)
	}
	if hits[0].ID != "aligned" {
		t.Errorf("hits[0].ID = %s, want aligned (highest cosine similarity first)", hits[0].ID)
	}
}

func TestStore_SearchRespectsLimit(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	for _, id := range []string{"a", "b", "c"} {
		s.Upsert(context.Background(), memory.Entry{ID: id, Content: id, Embedding: []float32{1, 0}, CreatedAt: now, LastAccessedAt: now})
	}

	hits, err := s.Search(context.Background(), []float32{1, 0}, 2, memory.Scope{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}
}

func TestStore_SearchFiltersByScope(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	s.Upsert(context.Background(), memory.Entry{
		ID: "in-scope", Content: "x", Embedding: []float32{1, 0},
		CreatedAt: now, LastAccessedAt: now, SessionID: "s1",
	})
	s.Upsert(context.Background(), memory.Entry{
		ID: "out-of-scope", Content: "y", Embedding: []float32{1, 0},
		CreatedAt: now, LastAccessedAt: now, SessionID: "s2",
	})

	hits, err := s.Search(context.Background(), []float32{1, 0}, 10, memory.Scope{SessionID: "s1"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "in-scope" {
		t.Fatalf("hits = %+v, want only the session-1 entry", hits)
	}
}

func TestStore_TouchIncrementsAccessCountAndTimestamp(t *testing.T) {
	s := newTestStore(t)
	created := time.Now().Add(-time.Hour)
	s.Upsert(context.Background(), memory.Entry{ID: "e1", Content: "x", CreatedAt: created, LastAccessedAt: created})

	now := time.Now()
	if err := s.Touch(context.Background(), "e1", now); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}

	got, _, err := s.Get(context.Background(), "e1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1", got.AccessCount)
	}
	if !got.LastAccessedAt.After(created) {
		t.Errorf("LastAccessedAt = %v, want updated past %v", got.LastAccessedAt, created)
	}
}

func TestStore_DeleteRemovesEntry(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	s.Upsert(context.Background(), memory.Entry{ID: "e1", Content: "x", CreatedAt: now, LastAccessedAt: now})

	if err := s.Delete(context.Background(), "e1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, ok, err := s.Get(context.Background(), "e1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Fatal("expected entry to be gone after Delete")
	}
}

func TestStore_SetPinnedRoundTrips(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	s.Upsert(context.Background(), memory.Entry{ID: "e1", Content: "x", CreatedAt: now, LastAccessedAt: now})

	if err := s.SetPinned(context.Background(), "e1", true); err != nil {
		t.Fatalf("SetPinned() error = %v", err)
	}
	got, _, err := s.Get(context.Background(), "e1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Pinned {
		t.Error("expected Pinned=true")
	}
}

func TestStore_ListCandidatesPaginates(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	for _, id := range []string{"a", "b", "c"} {
		s.Upsert(context.Background(), memory.Entry{ID: id, Content: id, CreatedAt: now, LastAccessedAt: now})
	}

	page1, err := s.ListCandidates(context.Background(), 0, 2)
	if err != nil {
		t.Fatalf("ListCandidates() error = %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("page1 = %+v, want 2 entries", page1)
	}

	page2, err := s.ListCandidates(context.Background(), 2, 2)
	if err != nil {
		t.Fatalf("ListCandidates() error = %v", err)
	}
	if len(page2) != 1 {
		t.Fatalf("page2 = %+v, want 1 entry", page2)
	}
}

func TestStore_CountReflectsUpsertsAndDeletes(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	s.Upsert(context.Background(), memory.Entry{ID: "e1", Content: "x", CreatedAt: now, LastAccessedAt: now})
	s.Upsert(context.Background(), memory.Entry{ID: "e2", Content: "y", CreatedAt: now, LastAccessedAt: now})

	count, err := s.Count(context.Background())
	if err != nil || count != 2 {
		t.Fatalf("Count() = %d, %v, want 2", count, err)
	}

	s.Delete(context.Background(), "e1")
	count, err = s.Count(context.Background())
	if err != nil || count != 1 {
		t.Fatalf("Count() after delete = %d, %v, want 1", count, err)
	}
}
