// Package state holds the authoritative in-memory document for an editing
// session. Sub-forms push validated section patches into it; the autosave
// synchronizer reads snapshots out of it. It does no validation and no I/O.
package state

import (
	"sync"

	"cvbuilder-backend/internal/docs"
)

// Patch is a partial update to the document. Scalar fields merge when the
// pointer is non-nil; repeated-section fields replace the entire slice when
// the pointer is non-nil (sub-forms own their whole section, never individual
// records).
type Patch struct {
	Title       *string
	Description *string
	Styling     *docs.Styling
	Contact     *docs.Contact

	Experiences     *[]docs.Experience
	Educations      *[]docs.Education
	Achievements    *[]docs.Achievement
	Recipients      *[]docs.Recipient
	JobDescriptions *[]docs.JobDescriptionEntry

	Opening    *string
	LetterBody *string
	Closing    *string
}

// Empty reports whether the patch carries no changes.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Styling == nil &&
		p.Contact == nil && p.Experiences == nil && p.Educations == nil &&
		p.Achievements == nil && p.Recipients == nil && p.JobDescriptions == nil &&
		p.Opening == nil && p.LetterBody == nil && p.Closing == nil
}

// Snapshot is a point-in-time copy of the session state used for diffing and
// for building persistence payloads.
type Snapshot struct {
	Doc     docs.Document
	Photo   docs.PhotoState
	Version uint64
}

// Store owns the mutable document plus the editor-side photo state. A single
// mounted sub-form writes a given section at a time; the store serializes
// whatever interleaving it does get.
type Store struct {
	mu        sync.Mutex
	doc       docs.Document
	photo     docs.PhotoState
	photoData []byte
	version   uint64
}

// NewStore builds a store seeded with doc. A hydrated document carries its
// persisted photo URL into the photo state.
func NewStore(doc docs.Document) *Store {
	s := &Store{doc: doc}
	if doc.PhotoURL != "" {
		s.photo = docs.PhotoState{URL: doc.PhotoURL}
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Doc: s.doc, Photo: s.photo, Version: s.version}
}

// Merge applies a validated patch. Top-level scalars shallow-merge; sections
// replace wholesale. Returns the resulting snapshot.
func (s *Store) Merge(p Patch) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Title != nil {
		s.doc.Title = *p.Title
	}
	if p.Description != nil {
		s.doc.Description = *p.Description
	}
	if p.Styling != nil {
		s.doc.Styling = *p.Styling
	}
	if p.Contact != nil {
		s.doc.Contact = *p.Contact
	}
	if p.Experiences != nil {
		s.doc.Experiences = append([]docs.Experience(nil), (*p.Experiences)...)
	}
	if p.Educations != nil {
		s.doc.Educations = append([]docs.Education(nil), (*p.Educations)...)
	}
	if p.Achievements != nil {
		s.doc.Achievements = append([]docs.Achievement(nil), (*p.Achievements)...)
	}
	if p.Recipients != nil {
		s.doc.Recipients = append([]docs.Recipient(nil), (*p.Recipients)...)
	}
	if p.JobDescriptions != nil {
		s.doc.JobDescriptions = append([]docs.JobDescriptionEntry(nil), (*p.JobDescriptions)...)
	}
	if p.Opening != nil {
		s.doc.Opening = *p.Opening
	}
	if p.LetterBody != nil {
		s.doc.LetterBody = *p.LetterBody
	}
	if p.Closing != nil {
		s.doc.Closing = *p.Closing
	}

	if !p.Empty() {
		s.version++
	}
	return Snapshot{Doc: s.doc, Photo: s.photo, Version: s.version}
}

// SetPhotoUpload stages new photo binary content for the next save.
func (s *Store) SetPhotoUpload(meta docs.PhotoMeta, data []byte) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := meta
	s.photo.Pending = &m
	s.photoData = append([]byte(nil), data...)
	s.version++
	return Snapshot{Doc: s.doc, Photo: s.photo, Version: s.version}
}

// RemovePhoto marks the photo for explicit removal.
func (s *Store) RemovePhoto() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photo = docs.PhotoState{}
	s.photoData = nil
	s.version++
	return Snapshot{Doc: s.doc, Photo: s.photo, Version: s.version}
}

// PhotoData returns the staged upload bytes, if any.
func (s *Store) PhotoData() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photoData
}

// ResolvePhoto swaps a staged upload for its stored URL after a successful
// save. It only applies when the current photo still matches the fingerprint
// that was saved, so an upload staged mid-save is never clobbered.
func (s *Store) ResolvePhoto(sentFingerprint, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.photo.Fingerprint() != sentFingerprint {
		return
	}
	if url == "" {
		s.photo = docs.PhotoState{}
	} else {
		s.photo = docs.PhotoState{URL: url}
	}
	s.photoData = nil
	s.doc.PhotoURL = url
}

// SetDocumentID reconciles the server-assigned identifier into local state.
// Setting the same ID again is a no-op.
func (s *Store) SetDocumentID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.ID = id
}

// DocumentID returns the current (possibly still empty) identifier.
func (s *Store) DocumentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.ID
}
