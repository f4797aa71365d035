// Package notify carries transient, dismissible user-facing messages. The
// autosave Error state's retry prompt travels through here.
package notify

import (
	"context"
	"time"
)

// Kind labels what a notification is about.
type Kind string

const (
	// KindSaveFailed tells the user autosave stopped and offers a retry.
	KindSaveFailed Kind = "save_failed"
)

// Notification is a single transient message scoped to an editor session.
type Notification struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notifier publishes notifications to whoever is watching the session.
type Notifier interface {
	Publish(ctx context.Context, n Notification) error
}
