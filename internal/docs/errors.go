package docs

import "errors"

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrForbidden indicates the document belongs to a different user.
	ErrForbidden = errors.New("document not owned by user")
	// ErrInvalidInput indicates a malformed document payload.
	ErrInvalidInput = errors.New("invalid document input")
)
