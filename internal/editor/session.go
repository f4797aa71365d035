// Package editor exposes the document editing surface: per-document sessions
// holding the in-memory state store and its autosave synchronizer, and the
// HTTP handlers the step forms talk to.
package editor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"cvbuilder-backend/internal/docs"
	"cvbuilder-backend/internal/editor/autosave"
	"cvbuilder-backend/internal/editor/state"
	"cvbuilder-backend/internal/notify"
	"cvbuilder-backend/internal/shared/telemetry"
)

// Session is one user's open editor for one logical document. It owns the
// state store and the synchronizer and acts as the synchronizer's location
// and notification collaborators.
type Session struct {
	ID     string
	UserID string
	Kind   docs.Kind

	Store *state.Store
	Sync  *autosave.Synchronizer

	notifier notify.Notifier

	mu         sync.Mutex
	registry   *Registry
	documentID string
	path       string
	lastActive time.Time
	now        func() time.Time
}

func newSession(userID string, doc docs.Document, saver autosave.Saver, notifier notify.Notifier, quiet time.Duration, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	s := &Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		Kind:     doc.Kind,
		Store:    state.NewStore(doc),
		notifier: notifier,
		now:      now,
	}
	s.documentID = doc.ID
	s.path = editorPath(doc.Kind, doc.ID)
	s.lastActive = now().UTC()

	opts := []autosave.Option{
		autosave.WithLocator(s),
		autosave.WithNotifier(s),
	}
	if quiet > 0 {
		opts = append(opts, autosave.WithQuietWindow(quiet))
	}
	s.Sync = autosave.New(s.Store, saver, opts...)
	return s
}

func editorPath(kind docs.Kind, documentID string) string {
	base := "/editor/resume"
	if kind == docs.KindCoverLetter {
		base = "/editor/cover-letter"
	}
	if documentID == "" {
		return base
	}
	return base + "/" + documentID
}

// attach lets the registry receive document bindings from this session.
func (s *Session) attach(r *Registry) {
	s.mu.Lock()
	s.registry = r
	s.mu.Unlock()
}

// DocumentAssigned reconciles the server-issued identifier into the
// session's shareable path and claims the document in the registry, so a
// concurrent open of the just-created document conflicts immediately.
// Called at most once per session.
func (s *Session) DocumentAssigned(documentID string) {
	s.mu.Lock()
	s.documentID = documentID
	s.path = editorPath(s.Kind, documentID)
	reg := s.registry
	s.mu.Unlock()
	if reg != nil {
		reg.BindDocument(s.ID, documentID)
	}
	telemetry.Info("editor.document_assigned", map[string]any{
		"session_id":  s.ID,
		"document_id": documentID,
	})
}

// SaveFailed raises the dismissible retry notification for a failed save.
func (s *Session) SaveFailed(err error) {
	telemetry.Error("editor.autosave_failed", map[string]any{
		"session_id": s.ID,
		"user_id":    s.UserID,
		"error":      err.Error(),
	})
	if s.notifier == nil {
		return
	}
	n := notify.Notification{
		ID:        uuid.NewString(),
		SessionID: s.ID,
		Kind:      notify.KindSaveFailed,
		Message:   "We couldn't save your changes. Your edits are kept; retry when ready.",
		Retryable: true,
		CreatedAt: s.now().UTC(),
	}
	if pubErr := s.notifier.Publish(context.Background(), n); pubErr != nil {
		telemetry.Error("editor.notify_failed", map[string]any{
			"session_id": s.ID,
			"error":      pubErr.Error(),
		})
	}
}

// Touch records activity so the reaper leaves the session alone.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = s.now().UTC()
	s.mu.Unlock()
}

// LastActive returns the time of the most recent request on this session.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// DocumentID returns the persisted identifier, or "" before the first save.
func (s *Session) DocumentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentID
}

// Path is the session's externally-addressable editor location; it gains
// the document identifier after the first successful save.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// CloseAndFlush pushes any pending changes out and shuts the synchronizer
// down. Changes held in the Error state stay unsaved until an explicit retry.
func (s *Session) CloseAndFlush() {
	s.Sync.Flush()
	s.Sync.Close()
}

var _ autosave.Locator = (*Session)(nil)
var _ autosave.Notifier = (*Session)(nil)
