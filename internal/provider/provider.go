package provider

import (
	"context"
	"fmt"
)

// Provider is the outbound LLM capability: one chat-style call taking a
// system instruction and a user message, returning unstructured text.
type Provider interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// APIError is a non-2xx reply from an upstream provider. It keeps the HTTP
// status so the retry layer can classify the failure.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("provider error %d: %s (type=%s)", e.StatusCode, e.Message, e.Type)
	}
	return fmt.Sprintf("provider error %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus implements the status contract consumed by retry.Classify.
func (e *APIError) HTTPStatus() int { return e.StatusCode }
