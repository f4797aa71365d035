package ai

import (
	"context"
	"errors"
)

// Client abstracts LLM providers for editor writing assistance.
type Client interface {
	GenerateText(ctx context.Context, input GenerateInput) (string, error)
}

// GenerateInput captures everything a text-generation request needs.
type GenerateInput struct {
	// Target names the field being written: "opening", "experience" or
	// "achievement".
	Target string
	// Existing is the user's current draft, possibly empty.
	Existing string
	// Role is the position or title the text should speak to.
	Role string
	// Company is the employer the text should address, if any.
	Company string
	// JobDescription is pasted posting text used to tailor the output.
	JobDescription string
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// GenerateText returns ErrNotImplemented.
func (PlaceholderClient) GenerateText(ctx context.Context, input GenerateInput) (string, error) {
	_ = ctx
	_ = input
	return "", ErrNotImplemented
}
