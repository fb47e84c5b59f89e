package rag

import (
	"context"
	"fmt"
)

// FallbackText is returned when the endpoint answers without any text field.
const FallbackText = "No response received"

// Source is one citation attached to an answer. Any field may be empty.
type Source struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Answer is the normalized result of a question.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// Asker answers a single question.
type Asker interface {
	Ask(ctx context.Context, question string) (Answer, error)
}

// TransportError reports a failed round trip to the answer service.
// StatusCode is zero when no HTTP response was received.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "transport error"
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
