package llm

import (
	"context"
	"sync"

	llmclient "dartreport/internal/llmclient"
)

// UsageLedger tracks LLM usage counters per pipeline role (§4.1: "Token
// usage counters are per-role and resettable"). It is process-wide and
// safe for concurrent use; every counter update goes through mu, per
// §5's "writes to counters MUST be serialized."
type UsageLedger struct {
	mu      sync.Mutex
	byRole  map[string]llmclient.Usage
	byError map[string]int64
}

// NewUsageLedger returns an empty ledger.
func NewUsageLedger() *UsageLedger {
	return &UsageLedger{
		byRole:  make(map[string]llmclient.Usage),
		byError: make(map[string]int64),
	}
}

// Record adds promptTokens/completionTokens to role's running totals,
// and increments role's error count if err != nil.
func (l *UsageLedger) Record(role string, promptTokens, completionTokens int64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.byRole[role]
	u.PromptTokens += promptTokens
	u.CompletionTokens += completionTokens
	l.byRole[role] = u
	if err != nil {
		l.byError[role]++
	}
}

// Snapshot returns a copy of the current per-role usage counters.
func (l *UsageLedger) Snapshot() map[string]llmclient.Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]llmclient.Usage, len(l.byRole))
	for role, u := range l.byRole {
		out[role] = u
	}
	return out
}

// Errors returns a copy of the current per-role error counters.
func (l *UsageLedger) Errors() map[string]int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int64, len(l.byError))
	for role, n := range l.byError {
		out[role] = n
	}
	return out
}

// Reset zeroes every counter. Safe to call between pipeline runs that
// share a process.
func (l *UsageLedger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byRole = make(map[string]llmclient.Usage)
	l.byError = make(map[string]int64)
}

// WithUsageLedger returns a middleware that records every Complete call
// against ledger, attributing it to the role stashed in ctx by
// WithRole (falling back to the client's own Name if no role is set).
func WithUsageLedger(ledger *UsageLedger) Middleware {
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &usageTracked{next: next, ledger: ledger}
	}
}

type usageTracked struct {
	next   llmclient.LLMClient
	ledger *UsageLedger
}

func (u *usageTracked) Name() string               { return u.next.Name() }
func (u *usageTracked) Close() error                { return u.next.Close() }
func (u *usageTracked) CountTokens(text string) int { return u.next.CountTokens(text) }
func (u *usageTracked) TokenCapacity() int          { return u.next.TokenCapacity() }

func (u *usageTracked) Complete(ctx context.Context, prompt string, maxTokens int, stopTokens []string) (string, error) {
	promptTokens := int64(u.next.CountTokens(prompt))
	text, err := u.next.Complete(ctx, prompt, maxTokens, stopTokens)
	role := RoleFrom(ctx)
	if role == "" {
		role = u.next.Name()
	}
	completionTokens := int64(u.next.CountTokens(text))
	if u.ledger != nil {
		u.ledger.Record(role, promptTokens, completionTokens, err)
	}
	return text, err
}
