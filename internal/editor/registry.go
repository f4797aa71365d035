package editor

import (
	"errors"
	"sync"
	"time"
)

// DefaultIdleTTL is how long a session may sit without requests before the
// reaper flushes and closes it.
const DefaultIdleTTL = 30 * time.Minute

var (
	// ErrSessionNotFound indicates an unknown or already-closed session.
	ErrSessionNotFound = errors.New("editor session not found")
	// ErrSessionExists indicates the document is already open in a session.
	ErrSessionExists = errors.New("document already open in another session")
)

// Registry tracks open sessions and enforces one open session per persisted
// document. The UI's single-writer-per-section discipline holds because a
// document has at most one live editing surface at a time.
type Registry struct {
	mu      sync.Mutex
	byID    map[string]*Session
	byDoc   map[string]string // documentID -> sessionID
	idleTTL time.Duration
	now     func() time.Time
}

// NewRegistry constructs a Registry. A zero idleTTL uses DefaultIdleTTL;
// now is injectable for tests.
func NewRegistry(idleTTL time.Duration, now func() time.Time) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{
		byID:    make(map[string]*Session),
		byDoc:   make(map[string]string),
		idleTTL: idleTTL,
		now:     now,
	}
}

// Add registers an open session. Sessions for an already-open document are
// rejected.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if docID := s.DocumentID(); docID != "" {
		if _, open := r.byDoc[docID]; open {
			return ErrSessionExists
		}
		r.byDoc[docID] = s.ID
	}
	r.byID[s.ID] = s
	s.attach(r)
	return nil
}

// Get returns a session by ID.
func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// BindDocument records the document identifier assigned to a session after
// its first successful save, so later opens of that document conflict.
func (r *Registry) BindDocument(sessionID, documentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[sessionID]; ok && documentID != "" {
		r.byDoc[documentID] = sessionID
	}
}

// Remove closes and unregisters a session, flushing pending edits.
func (r *Registry) Remove(sessionID string) error {
	r.mu.Lock()
	s, ok := r.byID[sessionID]
	if !ok {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.byID, sessionID)
	if docID := s.DocumentID(); docID != "" && r.byDoc[docID] == sessionID {
		delete(r.byDoc, docID)
	}
	r.mu.Unlock()

	s.CloseAndFlush()
	return nil
}

// Reap flushes and closes sessions idle past the TTL, returning how many
// were reaped.
func (r *Registry) Reap() int {
	cutoff := r.now().UTC().Add(-r.idleTTL)

	r.mu.Lock()
	var stale []*Session
	for _, s := range r.byID {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, s)
		}
	}
	for _, s := range stale {
		delete(r.byID, s.ID)
		if docID := s.DocumentID(); docID != "" && r.byDoc[docID] == s.ID {
			delete(r.byDoc, docID)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.CloseAndFlush()
	}
	return len(stale)
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
