// Package llm wraps the generative model services the claim pipeline talks to.
package llm

import (
	"context"
	"errors"
)

// Client is an opaque text and vision completion service.
type Client interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// Complete sends a text prompt and returns the model's text answer.
	Complete(ctx context.Context, prompt string) (string, error)
	// CompleteWithImage sends a prompt together with one image and returns the model's text answer.
	CompleteWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
	// Close releases the underlying client.
	Close() error
}

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("empty model response")
