package autosave

import (
	"encoding/json"

	"cvbuilder-backend/internal/docs"
	"cvbuilder-backend/internal/editor/state"
)

// fingerprint is the structural identity of a snapshot for diffing. The
// document body serializes with identity and server-assigned fields zeroed;
// the photo reduces to its metadata fingerprint so binary content is never
// re-read for equality. Both the full-state diff and the photo-omission
// check read the same Photo field, so the two comparisons cannot disagree
// about the photo.
type fingerprint struct {
	Body  string
	Photo string
}

func (f fingerprint) equal(other fingerprint) bool {
	return f.Body == other.Body && f.Photo == other.Photo
}

func snapshotFingerprint(snap state.Snapshot) fingerprint {
	doc := snap.Doc
	doc.ID = ""
	doc.UserID = ""
	doc.PhotoURL = ""
	doc.CreatedAt = timeZero
	doc.UpdatedAt = timeZero

	body, err := json.Marshal(doc)
	if err != nil {
		// Document is plain structs and slices; Marshal cannot fail on it.
		body = []byte{}
	}
	return fingerprint{
		Body:  string(body),
		Photo: snap.Photo.Fingerprint(),
	}
}

// fingerprintOfSaved maps a completed save onto the fingerprint the document
// will have once the store resolves the photo to its stored URL.
func resolvedPhotoFingerprint(photoURL string) string {
	if photoURL == "" {
		return ""
	}
	return (docs.PhotoState{URL: photoURL}).Fingerprint()
}
