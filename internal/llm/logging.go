package llm

import (
	"context"
	"log"
	"time"

	llmclient "dartreport/internal/llmclient"
)

// WithLogging logs request size, latency, and errors at stage
// boundaries, matching the teacher's log.Printf-to-stderr convention
// (no structured logging library appears anywhere in the retrieved
// pack; see DESIGN.md).
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next llmclient.LLMClient
	log  *log.Logger
}

func (l *logging) Name() string               { return l.next.Name() }
func (l *logging) Close() error                { return l.next.Close() }
func (l *logging) CountTokens(text string) int { return l.next.CountTokens(text) }
func (l *logging) TokenCapacity() int          { return l.next.TokenCapacity() }

func (l *logging) Complete(ctx context.Context, prompt string, maxTokens int, stopTokens []string) (string, error) {
	role := RoleFrom(ctx)
	start := time.Now()
	text, err := l.next.Complete(ctx, prompt, maxTokens, stopTokens)
	elapsed := time.Since(start)
	if err != nil {
		l.log.Printf("llm %s (%s): error after %s: %v", l.next.Name(), role, elapsed, err)
	} else {
		l.log.Printf("llm %s (%s): %d prompt bytes -> %d response bytes in %s", l.next.Name(), role, len(prompt), len(text), elapsed)
	}
	return text, err
}

// CallRecord is one entry of the llm_call_history JSONL artifact
// (§3.1).
type CallRecord struct {
	Role          string `json:"role"`
	PromptChars   int    `json:"prompt_chars"`
	ResponseChars int    `json:"response_chars"`
	LatencyMS     int64  `json:"latency_ms"`
	Error         string `json:"error,omitempty"`
}

// CallRecorder receives one CallRecord per completed Complete call,
// regardless of outcome.
type CallRecorder interface {
	Record(CallRecord)
}

// WithCallRecorder appends a CallRecord to recorder after every
// Complete call, for later serialization into llm_call_history.jsonl.
func WithCallRecorder(recorder CallRecorder) Middleware {
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &recorded{next: next, recorder: recorder}
	}
}

type recorded struct {
	next     llmclient.LLMClient
	recorder CallRecorder
}

func (r *recorded) Name() string               { return r.next.Name() }
func (r *recorded) Close() error                { return r.next.Close() }
func (r *recorded) CountTokens(text string) int { return r.next.CountTokens(text) }
func (r *recorded) TokenCapacity() int          { return r.next.TokenCapacity() }

func (r *recorded) Complete(ctx context.Context, prompt string, maxTokens int, stopTokens []string) (string, error) {
	start := time.Now()
	text, err := r.next.Complete(ctx, prompt, maxTokens, stopTokens)
	rec := CallRecord{
		Role:          RoleFrom(ctx),
		PromptChars:   len(prompt),
		ResponseChars: len(text),
		LatencyMS:     time.Since(start).Milliseconds(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if r.recorder != nil {
		r.recorder.Record(rec)
	}
	return text, err
}
