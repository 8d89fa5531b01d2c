package llm

import (
	"context"
	"errors"
	"time"

	llmclient "dartreport/internal/llmclient"
)

// DefaultMaxAttempts, DefaultBaseDelay and DefaultMaxDelay give
// exponential backoff with at least 5 attempts: 5 attempts wait 10s,
// 20s, 40s and 80s between them (4 waits), well under the 5-minute
// ceiling; MaxDelay caps any further doubling. Rate-limit errors are
// not told apart from other transient errors: they are retried the
// same way and given up on once maxAttempts is reached.
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 10 * time.Second
	DefaultMaxDelay    = 5 * time.Minute
)

// Retry retries Complete up to maxAttempts times with exponential
// backoff starting at baseDelay and capped at maxDelay. A
// *llmclient.PermanentError is never retried. Context cancellation
// stops retrying immediately.
func Retry(maxAttempts int, baseDelay, maxDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &retrying{next: next, max: maxAttempts, base: baseDelay, cap: maxDelay}
	}
}

type retrying struct {
	next llmclient.LLMClient
	max  int
	base time.Duration
	cap  time.Duration
}

func (r *retrying) Name() string                 { return r.next.Name() }
func (r *retrying) Close() error                  { return r.next.Close() }
func (r *retrying) CountTokens(text string) int   { return r.next.CountTokens(text) }
func (r *retrying) TokenCapacity() int            { return r.next.TokenCapacity() }

func (r *retrying) Complete(ctx context.Context, prompt string, maxTokens int, stopTokens []string) (string, error) {
	var last error
	delay := r.base
	for attempt := 0; attempt < r.max; attempt++ {
		text, err := r.next.Complete(ctx, prompt, maxTokens, stopTokens)
		if err == nil {
			return text, nil
		}
		var perm *llmclient.PermanentError
		if errors.As(err, &perm) {
			return "", err
		}
		last = err

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		if attempt == r.max-1 {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > r.cap {
			delay = r.cap
		}
	}
	return "", last
}
