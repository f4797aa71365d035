package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cvbuilder-backend/internal/docs"
	"cvbuilder-backend/internal/editor/autosave"
	"cvbuilder-backend/internal/editor/state"
)

type countingSaver struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSaver) Save(ctx context.Context, p autosave.Payload) (docs.SaveResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	id := p.DocumentID
	if id == "" {
		id = "doc-new"
	}
	return docs.SaveResult{ID: id}, nil
}

func (s *countingSaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testSession(t *testing.T, doc docs.Document, saver autosave.Saver, now func() time.Time) *Session {
	t.Helper()
	if saver == nil {
		saver = &countingSaver{}
	}
	return newSession("user-1", doc, saver, nil, 0, now)
}

func TestRegistryRejectsSecondSessionForSameDocument(t *testing.T) {
	r := NewRegistry(0, nil)
	doc := docs.Document{ID: "doc-1", Kind: docs.KindResume}

	first := testSession(t, doc, nil, nil)
	if err := r.Add(first); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	defer first.CloseAndFlush()

	second := testSession(t, doc, nil, nil)
	defer second.CloseAndFlush()
	if err := r.Add(second); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
}

func TestRegistryAllowsConcurrentDrafts(t *testing.T) {
	r := NewRegistry(0, nil)

	a := testSession(t, docs.Document{Kind: docs.KindResume}, nil, nil)
	b := testSession(t, docs.Document{Kind: docs.KindCoverLetter}, nil, nil)
	defer a.CloseAndFlush()
	defer b.CloseAndFlush()

	if err := r.Add(a); err != nil {
		t.Fatalf("Add draft a: %v", err)
	}
	if err := r.Add(b); err != nil {
		t.Fatalf("Add draft b: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 open sessions, got %d", r.Len())
	}
}

func TestRegistryBindDocumentBlocksLaterOpens(t *testing.T) {
	r := NewRegistry(0, nil)

	draft := testSession(t, docs.Document{Kind: docs.KindResume}, nil, nil)
	defer draft.CloseAndFlush()
	if err := r.Add(draft); err != nil {
		t.Fatalf("Add: %v", err)
	}

	r.BindDocument(draft.ID, "doc-9")

	dup := testSession(t, docs.Document{ID: "doc-9", Kind: docs.KindResume}, nil, nil)
	defer dup.CloseAndFlush()
	if err := r.Add(dup); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists after bind, got %v", err)
	}
}

func TestDocumentAssignedBindsRegistryImmediately(t *testing.T) {
	r := NewRegistry(0, nil)

	draft := testSession(t, docs.Document{Kind: docs.KindResume}, nil, nil)
	defer draft.CloseAndFlush()
	if err := r.Add(draft); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// the first save's identifier claims the document with no request in
	// between
	draft.DocumentAssigned("doc-3")

	dup := testSession(t, docs.Document{ID: "doc-3", Kind: docs.KindResume}, nil, nil)
	defer dup.CloseAndFlush()
	if err := r.Add(dup); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists right after assignment, got %v", err)
	}

	if err := r.Remove(draft.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	reopened := testSession(t, docs.Document{ID: "doc-3", Kind: docs.KindResume}, nil, nil)
	defer reopened.CloseAndFlush()
	if err := r.Add(reopened); err != nil {
		t.Fatalf("reopen after remove: %v", err)
	}
}

func TestRegistryRemoveFlushesPendingEdits(t *testing.T) {
	r := NewRegistry(0, nil)
	saver := &countingSaver{}

	s := testSession(t, docs.Document{ID: "doc-1", Kind: docs.KindResume, Title: "Old"}, saver, nil)
	if err := r.Add(s); err != nil {
		t.Fatalf("Add: %v", err)
	}

	title := "New"
	s.Store.Merge(state.Patch{Title: &title})
	s.Sync.Changed()

	if err := r.Remove(s.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if saver.count() != 1 {
		t.Fatalf("expected the pending edit flushed, got %d saves", saver.count())
	}
	if _, err := r.Get(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	// the document slot is free again
	again := testSession(t, docs.Document{ID: "doc-1", Kind: docs.KindResume}, nil, nil)
	defer again.CloseAndFlush()
	if err := r.Add(again); err != nil {
		t.Fatalf("reopen after remove: %v", err)
	}
}

func TestRegistryReapClosesIdleSessions(t *testing.T) {
	current := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	advance := func(d time.Duration) {
		mu.Lock()
		current = current.Add(d)
		mu.Unlock()
	}

	r := NewRegistry(30*time.Minute, now)

	idle := testSession(t, docs.Document{ID: "doc-1", Kind: docs.KindResume}, nil, now)
	if err := r.Add(idle); err != nil {
		t.Fatalf("Add idle: %v", err)
	}

	advance(20 * time.Minute)
	active := testSession(t, docs.Document{ID: "doc-2", Kind: docs.KindResume}, nil, now)
	defer active.CloseAndFlush()
	if err := r.Add(active); err != nil {
		t.Fatalf("Add active: %v", err)
	}

	advance(15 * time.Minute)
	if got := r.Reap(); got != 1 {
		t.Fatalf("expected 1 session reaped, got %d", got)
	}
	if _, err := r.Get(idle.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("idle session still registered: %v", err)
	}
	if _, err := r.Get(active.ID); err != nil {
		t.Fatalf("active session reaped: %v", err)
	}
}

func TestSessionPathGainsIdentifierOnAssignment(t *testing.T) {
	s := testSession(t, docs.Document{Kind: docs.KindCoverLetter}, nil, nil)
	defer s.CloseAndFlush()

	if got := s.Path(); got != "/editor/cover-letter" {
		t.Fatalf("unexpected draft path %q", got)
	}
	s.DocumentAssigned("doc-5")
	if got := s.Path(); got != "/editor/cover-letter/doc-5" {
		t.Fatalf("unexpected assigned path %q", got)
	}
	if got := s.DocumentID(); got != "doc-5" {
		t.Fatalf("unexpected document id %q", got)
	}
}
