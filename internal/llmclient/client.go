// Package llmclient defines the thin text-completion client contract
// and its provider implementations. Cross-cutting concerns (retries,
// rate limiting, usage accounting, logging) are layered on separately
// as decorators in internal/llm — this package only calls the provider
// API and translates its response into the Role-agnostic LLMClient
// contract.
package llmclient

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned by a provider when it has nothing useful
// to say but did not error outright (e.g. the model emitted zero
// candidates). Callers that hit this should fall back to the empty
// string per §4.1's BlockedLLMOutput disposition rather than treating
// it as a hard failure.
var ErrEmptyResponse = errors.New("llmclient: empty response")

// PermanentError wraps an error the retry middleware must not retry —
// configuration problems, malformed requests, anything that will not
// resolve by trying again.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// NewPermanentError marks err as non-retryable.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// LLMClient is the stateless text-completion capability every pipeline
// role is configured with (§4.1). A single role may be backed by the
// same physical model as another role, or a different one; the
// orchestrator constructs one LLMClient per role and passes each by
// value into the components that use it.
type LLMClient interface {
	// Name identifies the client for logging and usage accounting,
	// e.g. "Gemini:gemini-2.5-flash".
	Name() string
	// Close releases provider resources. Safe to call multiple times.
	Close() error
	// CountTokens estimates the token length of text using the
	// provider's own tokenizer when available, else a heuristic.
	CountTokens(text string) int
	// TokenCapacity returns the model's maximum context window, or 0
	// if unknown.
	TokenCapacity() int
	// Complete issues a single text completion. maxTokens bounds the
	// response length; stopTokens, if non-empty, are sequences that
	// should truncate generation. On a safety-filtered or otherwise
	// empty response, Complete returns ("", nil) — never an error —
	// per §4.1: "on an empty/blocked response return the empty string
	// rather than raising."
	Complete(ctx context.Context, prompt string, maxTokens int, stopTokens []string) (string, error)
}

// Usage is a per-role token accounting snapshot.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}
