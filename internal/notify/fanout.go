package notify

import "context"

// Fanout publishes to every wrapped notifier, returning the first error
// after all have been attempted.
type Fanout []Notifier

// Publish delivers n to all members.
func (f Fanout) Publish(ctx context.Context, n Notification) error {
	var firstErr error
	for _, notifier := range f {
		if err := notifier.Publish(ctx, n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Notifier = (Fanout)(nil)
