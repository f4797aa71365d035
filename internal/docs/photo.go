package docs

import "fmt"

// PhotoOp enumerates what the editor wants done with the photo on save.
type PhotoOp int

const (
	// PhotoUnchanged omits the photo from the persistence payload; the
	// stored URL is left as-is.
	PhotoUnchanged PhotoOp = iota
	// PhotoReplace uploads new binary content and replaces the stored URL.
	PhotoReplace
	// PhotoRemove clears the stored URL and deletes the stored object.
	PhotoRemove
)

// PhotoMeta identifies an upload by metadata so equality checks never have
// to re-read the binary content.
type PhotoMeta struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ContentType  string `json:"contentType"`
	LastModified int64  `json:"lastModified"`
}

// Fingerprint is a stable identity string for diffing. Remote URLs are their
// own fingerprint; uploads fingerprint by metadata.
func (m PhotoMeta) Fingerprint() string {
	return fmt.Sprintf("upload:%s:%d:%s:%d", m.Name, m.Size, m.ContentType, m.LastModified)
}

// PhotoChange is the tagged variant for the photo field at the persistence
// boundary: unchanged (omitted), replace (binary present), or remove
// (explicit null). Upload holds content only when Op == PhotoReplace.
type PhotoChange struct {
	Op     PhotoOp
	Meta   PhotoMeta
	Upload []byte
}

// PhotoState is the editor-side view of the photo field: either a resolved
// remote URL, a pending upload, or nothing.
type PhotoState struct {
	URL     string     `json:"url,omitempty"`
	Pending *PhotoMeta `json:"pending,omitempty"`
}

// Fingerprint returns the identity of the current photo state for diffing.
// An empty state fingerprints to "".
func (p PhotoState) Fingerprint() string {
	if p.Pending != nil {
		return p.Pending.Fingerprint()
	}
	if p.URL != "" {
		return "url:" + p.URL
	}
	return ""
}
