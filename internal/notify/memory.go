package notify

import (
	"context"
	"sync"
)

const maxPerSession = 20

// MemoryNotifier keeps per-session notification lists in memory so the
// editor UI can poll and dismiss them.
type MemoryNotifier struct {
	mu   sync.Mutex
	data map[string][]Notification // sessionID -> notifications
}

// NewMemoryNotifier constructs a MemoryNotifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{data: make(map[string][]Notification)}
}

// Publish appends a notification to its session's list, dropping the oldest
// entry when the list is full.
func (m *MemoryNotifier) Publish(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append(m.data[n.SessionID], n)
	if len(list) > maxPerSession {
		list = list[len(list)-maxPerSession:]
	}
	m.data[n.SessionID] = list
	return nil
}

// List returns the pending notifications for a session.
func (m *MemoryNotifier) List(sessionID string) []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, len(m.data[sessionID]))
	copy(out, m.data[sessionID])
	return out
}

// Dismiss removes one notification by ID. Returns false if it was not found.
func (m *MemoryNotifier) Dismiss(sessionID, notificationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.data[sessionID]
	for i := range list {
		if list[i].ID == notificationID {
			m.data[sessionID] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Drop discards all notifications for a session (used when it closes).
func (m *MemoryNotifier) Drop(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sessionID)
}

var _ Notifier = (*MemoryNotifier)(nil)
