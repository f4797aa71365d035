// Package autosave keeps the persistence store eventually consistent with an
// editing session's document state. It is an explicit state machine (Idle,
// Debouncing, Saving, Error) driven by a restartable quiet-window timer and
// a diff against the last successfully persisted snapshot.
package autosave

import (
	"context"
	"sync"
	"time"

	"cvbuilder-backend/internal/docs"
	"cvbuilder-backend/internal/editor/state"
)

// State is the synchronizer's lifecycle phase.
type State int

const (
	// StateIdle means no pending changes since the last successful save.
	StateIdle State = iota
	// StateDebouncing means a change was observed and the quiet window is
	// running; each further change restarts it.
	StateDebouncing
	// StateSaving means a persistence call is in flight. At most one is
	// ever in flight per session.
	StateSaving
	// StateError means the last save failed; automatic saving is suspended
	// until Retry.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateSaving:
		return "saving"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// DefaultQuietWindow is how long the document must sit unchanged before a
// save is considered.
const DefaultQuietWindow = 1500 * time.Millisecond

var timeZero time.Time

// Payload is what gets handed to the persistence collaborator: the document
// snapshot plus the tri-state photo change. An empty DocumentID requests a
// create; the server assigns the identifier.
type Payload struct {
	DocumentID string
	Doc        docs.Document
	Photo      docs.PhotoChange
}

// Saver is the persistence collaborator boundary.
type Saver interface {
	Save(ctx context.Context, p Payload) (docs.SaveResult, error)
}

// SaverFunc adapts a function to the Saver interface.
type SaverFunc func(ctx context.Context, p Payload) (docs.SaveResult, error)

// Save calls f.
func (f SaverFunc) Save(ctx context.Context, p Payload) (docs.SaveResult, error) {
	return f(ctx, p)
}

// Locator is told the server-assigned identifier exactly once, so the
// session's externally-addressable location can be updated without a reload.
type Locator interface {
	DocumentAssigned(documentID string)
}

// Notifier surfaces a failed save as a user-facing, retryable condition.
type Notifier interface {
	SaveFailed(err error)
}

// TimerHandle is the stoppable handle returned by the timer factory.
type TimerHandle interface {
	Stop() bool
}

// AfterFunc schedules f after d. Injectable so tests drive the quiet window
// deterministically.
type AfterFunc func(d time.Duration, f func()) TimerHandle

func stdAfterFunc(d time.Duration, f func()) TimerHandle {
	return time.AfterFunc(d, f)
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithQuietWindow overrides the debounce duration.
func WithQuietWindow(d time.Duration) Option {
	return func(s *Synchronizer) { s.quiet = d }
}

// WithAfterFunc overrides the timer factory.
func WithAfterFunc(af AfterFunc) Option {
	return func(s *Synchronizer) { s.afterFunc = af }
}

// WithLocator sets the location collaborator.
func WithLocator(l Locator) Option {
	return func(s *Synchronizer) { s.locator = l }
}

// WithNotifier sets the notification collaborator.
func WithNotifier(n Notifier) Option {
	return func(s *Synchronizer) { s.notifier = n }
}

// Synchronizer observes a session's state store and keeps the persistence
// collaborator in sync per the debounce-then-diff discipline.
type Synchronizer struct {
	store *state.Store
	saver Saver

	quiet     time.Duration
	afterFunc AfterFunc
	locator   Locator
	notifier  Notifier

	mu        sync.Mutex
	st        State
	timer     TimerHandle
	timerGen  uint64
	lastSaved fingerprint
	dirty     bool // change arrived while a save was in flight
	reconcile bool // identifier already reconciled
	lastErr   error
	pending   *Payload // payload of the failed attempt, resent verbatim by Retry
	pendingFP fingerprint

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a synchronizer for the given store and persistence collaborator.
// The store's current content is taken as the last-saved snapshot when the
// document already has an identifier (hydrated from persistence); a brand-new
// document starts with nothing saved.
func New(store *state.Store, saver Saver, opts ...Option) *Synchronizer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Synchronizer{
		store:     store,
		saver:     saver,
		quiet:     DefaultQuietWindow,
		afterFunc: stdAfterFunc,
		st:        StateIdle,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	snap := store.Snapshot()
	if snap.Doc.ID != "" {
		s.lastSaved = snapshotFingerprint(snap)
		s.reconcile = true
	} else {
		// Never-saved documents diff against an impossible fingerprint so
		// the first quiet window always evaluates to "changed".
		s.lastSaved = fingerprint{Body: "\x00unsaved"}
	}
	return s
}

// State returns the current phase.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// LastError returns the error from the most recent failed save, if the
// synchronizer is in the Error state.
func (s *Synchronizer) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st != StateError {
		return nil
	}
	return s.lastErr
}

// Changed notifies the synchronizer that the document state mutated. In Idle
// it opens the quiet window; in Debouncing it restarts it; in Saving the
// change is deferred and re-evaluated once the in-flight call resolves; in
// Error it is held until the user retries.
func (s *Synchronizer) Changed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.st {
	case StateIdle:
		s.st = StateDebouncing
		s.armTimerLocked()
	case StateDebouncing:
		s.armTimerLocked()
	case StateSaving:
		s.dirty = true
	case StateError:
		// fail-stop: no attempt now, but remember the edit so a
		// successful Retry schedules a follow-up save
		s.dirty = true
	}
}

func (s *Synchronizer) armTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timerGen++
	gen := s.timerGen
	s.timer = s.afterFunc(s.quiet, func() { s.windowElapsed(gen) })
}

// windowElapsed runs on the timer goroutine once the quiet window passes
// without further changes. It diffs the latest store snapshot, never one
// captured at arm time, and either skips or saves.
func (s *Synchronizer) windowElapsed(gen uint64) {
	s.mu.Lock()
	if s.st != StateDebouncing || gen != s.timerGen {
		// stale fire from a timer that lost the restart race
		s.mu.Unlock()
		return
	}

	snap := s.store.Snapshot()
	fp := snapshotFingerprint(snap)
	if fp.equal(s.lastSaved) {
		s.st = StateIdle
		s.mu.Unlock()
		return
	}

	payload := s.buildPayloadLocked(snap)
	s.st = StateSaving
	s.dirty = false
	s.mu.Unlock()

	s.save(payload, fp)
}

// buildPayloadLocked assembles the outgoing payload. The photo field is
// omitted entirely when its fingerprint matches the last-saved snapshot:
// identical bytes are never re-uploaded.
func (s *Synchronizer) buildPayloadLocked(snap state.Snapshot) Payload {
	p := Payload{
		DocumentID: snap.Doc.ID,
		Doc:        snap.Doc,
	}

	current := snap.Photo.Fingerprint()
	switch {
	case current == s.lastSaved.Photo:
		p.Photo = docs.PhotoChange{Op: docs.PhotoUnchanged}
	case snap.Photo.Pending != nil:
		p.Photo = docs.PhotoChange{
			Op:     docs.PhotoReplace,
			Meta:   *snap.Photo.Pending,
			Upload: s.store.PhotoData(),
		}
	case current == "":
		p.Photo = docs.PhotoChange{Op: docs.PhotoRemove}
	default:
		// a bare URL change only happens through save resolution, which
		// also advances lastSaved; treat anything else as unchanged
		p.Photo = docs.PhotoChange{Op: docs.PhotoUnchanged}
	}
	return p
}

func (s *Synchronizer) save(p Payload, fp fingerprint) {
	res, err := s.saver.Save(s.ctx, p)

	s.mu.Lock()
	if err != nil {
		s.st = StateError
		s.lastErr = err
		s.pending = &p
		s.pendingFP = fp
		notifier := s.notifier
		s.mu.Unlock()
		if notifier != nil {
			notifier.SaveFailed(err)
		}
		return
	}

	s.pending = nil
	s.lastErr = nil
	s.lastSaved = fp
	if p.Photo.Op != docs.PhotoUnchanged {
		// after the store resolves the upload to its URL, the live
		// fingerprint must still equal lastSaved
		s.lastSaved.Photo = resolvedPhotoFingerprint(res.PhotoURL)
	}

	firstAssign := !s.reconcile && res.ID != ""
	if firstAssign {
		s.reconcile = true
	}
	locator := s.locator

	if s.dirty {
		s.dirty = false
		s.st = StateDebouncing
		s.armTimerLocked()
	} else {
		s.st = StateIdle
	}
	s.mu.Unlock()

	if p.Photo.Op != docs.PhotoUnchanged {
		s.store.ResolvePhoto(fp.Photo, res.PhotoURL)
	}
	if firstAssign {
		s.store.SetDocumentID(res.ID)
		if locator != nil {
			locator.DocumentAssigned(res.ID)
		}
	}
}

// Retry re-enters Saving with the exact payload of the failed attempt. It is
// the only exit from the Error state. It blocks until the save resolves.
func (s *Synchronizer) Retry() {
	s.mu.Lock()
	if s.st != StateError || s.pending == nil {
		s.mu.Unlock()
		return
	}
	p := *s.pending
	fp := s.pendingFP
	s.st = StateSaving
	s.mu.Unlock()

	s.save(p, fp)
}

// Flush synchronously evaluates pending changes and saves if the document
// differs from the last-saved snapshot. Used when a session is closed or
// reaped. A flush does not break the Error state's fail-stop contract: in
// Error it does nothing.
func (s *Synchronizer) Flush() {
	s.mu.Lock()
	if s.st != StateDebouncing && s.st != StateIdle {
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timerGen++

	snap := s.store.Snapshot()
	fp := snapshotFingerprint(snap)
	if fp.equal(s.lastSaved) {
		s.st = StateIdle
		s.mu.Unlock()
		return
	}
	payload := s.buildPayloadLocked(snap)
	s.st = StateSaving
	s.dirty = false
	s.mu.Unlock()

	s.save(payload, fp)
}

// Close stops the timer and cancels any in-flight save's context.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timerGen++
	s.mu.Unlock()
	s.cancel()
}
