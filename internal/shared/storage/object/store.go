package object

import (
	"context"
	"io"
)

// ObjectStore defines the contract for saving, retrieving, and removing
// binary objects such as user photos.
type ObjectStore interface {
	Save(ctx context.Context, userId string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
	// URL returns the stable externally-addressable URL for a stored object.
	URL(storageKey string) string
}

// KeyFromURL reverses URL for stores whose URLs embed the storage key after
// a fixed base. Returns "" when the URL does not belong to the store.
func KeyFromURL(baseURL, url string) string {
	if baseURL == "" || len(url) <= len(baseURL) {
		return ""
	}
	if url[:len(baseURL)] != baseURL {
		return ""
	}
	key := url[len(baseURL):]
	for len(key) > 0 && key[0] == '/' {
		key = key[1:]
	}
	return key
}
