package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cvbuilder-backend/internal/docs"
	"cvbuilder-backend/internal/editor/state"
)

// timerCtl is a hand-cranked AfterFunc: armed callbacks run only when the
// test fires them, so quiet-window expiry is fully deterministic.
type timerCtl struct {
	mu   sync.Mutex
	fns  []func()
	arms int
}

type fakeTimer struct{}

func (fakeTimer) Stop() bool { return true }

func (c *timerCtl) after(d time.Duration, f func()) TimerHandle {
	c.mu.Lock()
	c.fns = append(c.fns, f)
	c.arms++
	c.mu.Unlock()
	return fakeTimer{}
}

func (c *timerCtl) armCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.arms
}

// fireLatest runs the most recently armed callback on the caller's
// goroutine, like a timer expiry would.
func (c *timerCtl) fireLatest(t *testing.T) {
	t.Helper()
	c.mu.Lock()
	if len(c.fns) == 0 {
		c.mu.Unlock()
		t.Fatal("no timer armed")
	}
	f := c.fns[len(c.fns)-1]
	c.mu.Unlock()
	f()
}

func (c *timerCtl) fireAt(t *testing.T, i int) {
	t.Helper()
	c.mu.Lock()
	if i >= len(c.fns) {
		c.mu.Unlock()
		t.Fatalf("no timer %d armed", i)
	}
	f := c.fns[i]
	c.mu.Unlock()
	f()
}

type recordingSaver struct {
	mu    sync.Mutex
	calls []Payload
	fn    func(p Payload) (docs.SaveResult, error)
}

func (s *recordingSaver) Save(ctx context.Context, p Payload) (docs.SaveResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, p)
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(p)
	}
	id := p.DocumentID
	if id == "" {
		id = "doc-1"
	}
	return docs.SaveResult{ID: id}, nil
}

func (s *recordingSaver) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *recordingSaver) call(t *testing.T, i int) Payload {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.calls) {
		t.Fatalf("saver call %d not made (have %d)", i, len(s.calls))
	}
	return s.calls[i]
}

type recordingLocator struct {
	mu  sync.Mutex
	ids []string
}

func (l *recordingLocator) DocumentAssigned(id string) {
	l.mu.Lock()
	l.ids = append(l.ids, id)
	l.mu.Unlock()
}

type recordingNotifier struct {
	mu   sync.Mutex
	errs []error
}

func (n *recordingNotifier) SaveFailed(err error) {
	n.mu.Lock()
	n.errs = append(n.errs, err)
	n.mu.Unlock()
}

func newDraftStore() *state.Store {
	return state.NewStore(docs.Document{Kind: docs.KindResume})
}

func newHydratedStore() *state.Store {
	return state.NewStore(docs.Document{
		ID:    "doc-7",
		Kind:  docs.KindResume,
		Title: "Engineer CV",
	})
}

func strptr(s string) *string { return &s }

func TestChangedDebouncesUntilQuietWindowElapses(t *testing.T) {
	ctl := &timerCtl{}
	saver := &recordingSaver{}
	store := newDraftStore()
	syn := New(store, saver, WithAfterFunc(ctl.after))
	defer syn.Close()

	store.Merge(state.Patch{Title: strptr("A")})
	syn.Changed()
	store.Merge(state.Patch{Title: strptr("AB")})
	syn.Changed()
	store.Merge(state.Patch{Title: strptr("ABC")})
	syn.Changed()

	if got := syn.State(); got != StateDebouncing {
		t.Fatalf("expected debouncing, got %s", got)
	}
	if saver.callCount() != 0 {
		t.Fatalf("expected no save before the window elapses, got %d", saver.callCount())
	}
	if ctl.armCount() != 3 {
		t.Fatalf("expected the timer rearmed per change, got %d arms", ctl.armCount())
	}

	ctl.fireLatest(t)

	if saver.callCount() != 1 {
		t.Fatalf("expected exactly one save, got %d", saver.callCount())
	}
	if got := saver.call(t, 0).Doc.Title; got != "ABC" {
		t.Fatalf("expected the latest snapshot saved, got title %q", got)
	}
	if got := syn.State(); got != StateIdle {
		t.Fatalf("expected idle after save, got %s", got)
	}
}

func TestStaleTimerFireIsIgnored(t *testing.T) {
	ctl := &timerCtl{}
	saver := &recordingSaver{}
	store := newDraftStore()
	syn := New(store, saver, WithAfterFunc(ctl.after))
	defer syn.Close()

	store.Merge(state.Patch{Title: strptr("A")})
	syn.Changed()
	store.Merge(state.Patch{Title: strptr("AB")})
	syn.Changed()

	// the first timer lost the restart race
	ctl.fireAt(t, 0)
	if saver.callCount() != 0 {
		t.Fatalf("stale fire must not save, got %d calls", saver.callCount())
	}
	if got := syn.State(); got != StateDebouncing {
		t.Fatalf("expected still debouncing, got %s", got)
	}

	ctl.fireAt(t, 1)
	if saver.callCount() != 1 {
		t.Fatalf("expected one save from the live timer, got %d", saver.callCount())
	}
}

func TestRevertedChangeSkipsSave(t *testing.T) {
	ctl := &timerCtl{}
	saver := &recordingSaver{}
	store := newHydratedStore()
	syn := New(store, saver, WithAfterFunc(ctl.after))
	defer syn.Close()

	// edit then undo before the window elapses
	store.Merge(state.Patch{Title: strptr("Changed")})
	syn.Changed()
	store.Merge(state.Patch{Title: strptr("Engineer CV")})
	syn.Changed()

	ctl.fireLatest(t)

	if saver.callCount() != 0 {
		t.Fatalf("expected no save for a net no-op, got %d", saver.callCount())
	}
	if got := syn.State(); got != StateIdle {
		t.Fatalf("expected idle, got %s", got)
	}
}

func TestFirstSaveAssignsIdentifierWithoutDirtying(t *testing.T) {
	ctl := &timerCtl{}
	saver := &recordingSaver{}
	loc := &recordingLocator{}
	store := newDraftStore()
	syn := New(store, saver, WithAfterFunc(ctl.after), WithLocator(loc))
	defer syn.Close()

	store.Merge(state.Patch{Title: strptr("My resume")})
	syn.Changed()
	ctl.fireLatest(t)

	if got := saver.call(t, 0).DocumentID; got != "" {
		t.Fatalf("first save must request a create, got id %q", got)
	}
	if got := store.DocumentID(); got != "doc-1" {
		t.Fatalf("expected reconciled id in store, got %q", got)
	}
	loc.mu.Lock()
	ids := append([]string(nil), loc.ids...)
	loc.mu.Unlock()
	if len(ids) != 1 || ids[0] != "doc-1" {
		t.Fatalf("expected locator told once about doc-1, got %v", ids)
	}

	// the identifier write-back must not register as a content change
	syn.Changed()
	ctl.fireLatest(t)
	if saver.callCount() != 1 {
		t.Fatalf("id reconciliation caused a redundant save: %d calls", saver.callCount())
	}
	if got := syn.State(); got != StateIdle {
		t.Fatalf("expected idle, got %s", got)
	}
}

func TestChangeDuringSaveRunsFollowUpCycle(t *testing.T) {
	ctl := &timerCtl{}
	store := newHydratedStore()
	var syn *Synchronizer
	saver := &recordingSaver{}
	saver.fn = func(p Payload) (docs.SaveResult, error) {
		// a keystroke lands while the save is in flight
		if saver.callCount() == 1 {
			store.Merge(state.Patch{Title: strptr("Later title")})
			syn.Changed()
			if got := syn.State(); got != StateSaving {
				t.Errorf("expected saving during in-flight call, got %s", got)
			}
		}
		return docs.SaveResult{ID: p.DocumentID}, nil
	}
	syn = New(store, saver, WithAfterFunc(ctl.after))
	defer syn.Close()

	store.Merge(state.Patch{Title: strptr("Mid title")})
	syn.Changed()
	ctl.fireLatest(t)

	if got := syn.State(); got != StateDebouncing {
		t.Fatalf("expected a follow-up debounce after the deferred change, got %s", got)
	}
	ctl.fireLatest(t)

	if saver.callCount() != 2 {
		t.Fatalf("expected a second save for the deferred change, got %d", saver.callCount())
	}
	if got := saver.call(t, 1).Doc.Title; got != "Later title" {
		t.Fatalf("expected the deferred content saved, got %q", got)
	}
}

func TestUnchangedPhotoIsOmittedFromPayload(t *testing.T) {
	ctl := &timerCtl{}
	saver := &recordingSaver{}
	store := state.NewStore(docs.Document{
		ID:       "doc-7",
		Kind:     docs.KindResume,
		Title:    "Engineer CV",
		PhotoURL: "https://cdn.example.com/photos/abc.png",
	})
	syn := New(store, saver, WithAfterFunc(ctl.after))
	defer syn.Close()

	store.Merge(state.Patch{Title: strptr("New title")})
	syn.Changed()
	ctl.fireLatest(t)

	p := saver.call(t, 0)
	if p.Photo.Op != docs.PhotoUnchanged {
		t.Fatalf("text-only edit must omit the photo, got op %v", p.Photo.Op)
	}
	if len(p.Photo.Upload) != 0 {
		t.Fatalf("omitted photo must carry no bytes, got %d", len(p.Photo.Upload))
	}
}

func TestReplacedPhotoUploadsOnceThenOmits(t *testing.T) {
	ctl := &timerCtl{}
	saver := &recordingSaver{
		fn: func(p Payload) (docs.SaveResult, error) {
			res := docs.SaveResult{ID: "doc-7"}
			if p.Photo.Op == docs.PhotoReplace {
				res.PhotoURL = "https://cdn.example.com/photos/new.png"
			}
			return res, nil
		},
	}
	store := newHydratedStore()
	syn := New(store, saver, WithAfterFunc(ctl.after))
	defer syn.Close()

	meta := docs.PhotoMeta{Name: "me.png", Size: 1234, ContentType: "image/png", LastModified: 99}
	store.SetPhotoUpload(meta, []byte{1, 2, 3})
	syn.Changed()
	ctl.fireLatest(t)

	first := saver.call(t, 0)
	if first.Photo.Op != docs.PhotoReplace {
		t.Fatalf("expected a photo replace, got op %v", first.Photo.Op)
	}
	if len(first.Photo.Upload) != 3 {
		t.Fatalf("expected upload bytes in the payload, got %d", len(first.Photo.Upload))
	}

	snap := store.Snapshot()
	if snap.Photo.Pending != nil {
		t.Fatal("expected the pending upload resolved to a URL")
	}
	if snap.Photo.URL != "https://cdn.example.com/photos/new.png" {
		t.Fatalf("unexpected resolved URL %q", snap.Photo.URL)
	}

	// the next text edit must not re-send the photo
	store.Merge(state.Patch{Title: strptr("Another title")})
	syn.Changed()
	ctl.fireLatest(t)

	second := saver.call(t, 1)
	if second.Photo.Op != docs.PhotoUnchanged {
		t.Fatalf("unchanged photo re-sent, op %v", second.Photo.Op)
	}
}

func TestRemovedPhotoIsExplicit(t *testing.T) {
	ctl := &timerCtl{}
	saver := &recordingSaver{}
	store := state.NewStore(docs.Document{
		ID:       "doc-7",
		Kind:     docs.KindResume,
		Title:    "Engineer CV",
		PhotoURL: "https://cdn.example.com/photos/abc.png",
	})
	syn := New(store, saver, WithAfterFunc(ctl.after))
	defer syn.Close()

	store.RemovePhoto()
	syn.Changed()
	ctl.fireLatest(t)

	if got := saver.call(t, 0).Photo.Op; got != docs.PhotoRemove {
		t.Fatalf("expected an explicit remove, got op %v", got)
	}
}

func TestFailedSaveStopsAndHoldsPayload(t *testing.T) {
	ctl := &timerCtl{}
	saveErr := errors.New("persistence down")
	saver := &recordingSaver{
		fn: func(p Payload) (docs.SaveResult, error) {
			return docs.SaveResult{}, saveErr
		},
	}
	notifier := &recordingNotifier{}
	store := newHydratedStore()
	syn := New(store, saver, WithAfterFunc(ctl.after), WithNotifier(notifier))
	defer syn.Close()

	store.Merge(state.Patch{Title: strptr("Doomed edit")})
	syn.Changed()
	armsBefore := ctl.armCount()
	ctl.fireLatest(t)

	if got := syn.State(); got != StateError {
		t.Fatalf("expected error state, got %s", got)
	}
	if !errors.Is(syn.LastError(), saveErr) {
		t.Fatalf("expected the save error surfaced, got %v", syn.LastError())
	}
	notifier.mu.Lock()
	notified := len(notifier.errs)
	notifier.mu.Unlock()
	if notified != 1 {
		t.Fatalf("expected one failure notification, got %d", notified)
	}

	// fail-stop: further changes must not arm a timer or save
	store.Merge(state.Patch{Title: strptr("More edits")})
	syn.Changed()
	if ctl.armCount() != armsBefore {
		t.Fatal("change in error state armed a timer")
	}
	syn.Flush()
	if saver.callCount() != 1 {
		t.Fatalf("flush in error state saved, %d calls", saver.callCount())
	}
}

func TestRetryResendsFailedPayloadVerbatim(t *testing.T) {
	ctl := &timerCtl{}
	fail := true
	saver := &recordingSaver{}
	saver.fn = func(p Payload) (docs.SaveResult, error) {
		if fail {
			return docs.SaveResult{}, errors.New("persistence down")
		}
		return docs.SaveResult{ID: p.DocumentID}, nil
	}
	store := newHydratedStore()
	syn := New(store, saver, WithAfterFunc(ctl.after))
	defer syn.Close()

	store.Merge(state.Patch{Title: strptr("Doomed edit")})
	syn.Changed()
	ctl.fireLatest(t)

	// edits while in Error accumulate locally but must not leak into the
	// retried payload
	store.Merge(state.Patch{Title: strptr("Post-failure edit")})
	syn.Changed()

	fail = false
	syn.Retry()

	if saver.callCount() != 2 {
		t.Fatalf("expected exactly one retry call, got %d total", saver.callCount())
	}
	if got := saver.call(t, 1).Doc.Title; got != "Doomed edit" {
		t.Fatalf("retry payload not verbatim, got title %q", got)
	}
	if got := syn.State(); got != StateDebouncing {
		t.Fatalf("expected a follow-up cycle for the held edit, got %s", got)
	}

	// the held edit saves on the rescheduled cycle, no further change needed
	ctl.fireLatest(t)
	if got := saver.call(t, 2).Doc.Title; got != "Post-failure edit" {
		t.Fatalf("expected the held edit saved next, got %q", got)
	}
	if got := syn.State(); got != StateIdle {
		t.Fatalf("expected idle once the held edit is saved, got %s", got)
	}
}

func TestRetryWithoutHeldEditsReturnsToIdle(t *testing.T) {
	ctl := &timerCtl{}
	fail := true
	saver := &recordingSaver{}
	saver.fn = func(p Payload) (docs.SaveResult, error) {
		if fail {
			return docs.SaveResult{}, errors.New("persistence down")
		}
		return docs.SaveResult{ID: p.DocumentID}, nil
	}
	store := newHydratedStore()
	syn := New(store, saver, WithAfterFunc(ctl.after))
	defer syn.Close()

	store.Merge(state.Patch{Title: strptr("Doomed edit")})
	syn.Changed()
	ctl.fireLatest(t)

	arms := ctl.armCount()
	fail = false
	syn.Retry()

	if got := syn.State(); got != StateIdle {
		t.Fatalf("expected idle after retry with nothing held, got %s", got)
	}
	if ctl.armCount() != arms {
		t.Fatal("retry with nothing held armed a timer")
	}
}

func TestRetryOutsideErrorStateIsNoop(t *testing.T) {
	ctl := &timerCtl{}
	saver := &recordingSaver{}
	store := newHydratedStore()
	syn := New(store, saver, WithAfterFunc(ctl.after))
	defer syn.Close()

	syn.Retry()
	if saver.callCount() != 0 {
		t.Fatalf("retry in idle saved, %d calls", saver.callCount())
	}
}

func TestFlushSavesPendingChanges(t *testing.T) {
	ctl := &timerCtl{}
	saver := &recordingSaver{}
	store := newHydratedStore()
	syn := New(store, saver, WithAfterFunc(ctl.after))
	defer syn.Close()

	store.Merge(state.Patch{Title: strptr("Unsaved edit")})
	syn.Changed()
	syn.Flush()

	if saver.callCount() != 1 {
		t.Fatalf("expected the flush to save, got %d calls", saver.callCount())
	}
	if got := saver.call(t, 0).Doc.Title; got != "Unsaved edit" {
		t.Fatalf("unexpected flushed title %q", got)
	}
	if got := syn.State(); got != StateIdle {
		t.Fatalf("expected idle after flush, got %s", got)
	}
}

func TestFlushWithoutChangesSkipsSave(t *testing.T) {
	ctl := &timerCtl{}
	saver := &recordingSaver{}
	store := newHydratedStore()
	syn := New(store, saver, WithAfterFunc(ctl.after))
	defer syn.Close()

	syn.Flush()
	if saver.callCount() != 0 {
		t.Fatalf("expected no save, got %d", saver.callCount())
	}
}
