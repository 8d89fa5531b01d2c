// Package llm layers cross-cutting concerns — retries, rate limiting,
// usage accounting, logging — onto an llmclient.LLMClient as a chain of
// decorators, the same split the teacher's own LLM stack uses: a thin
// provider client, wrapped by independently composable middleware.
package llm

import (
	"context"

	llmclient "dartreport/internal/llmclient"
)

// Middleware decorates an LLMClient to inject one cross-cutting
// concern. Middlewares compose left-to-right via Wrap.
type Middleware func(llmclient.LLMClient) llmclient.LLMClient

// Wrap applies middlewares in left-to-right call order:
// Wrap(inner, A, B) behaves as A(B(inner)), so A observes the call
// first and sees B's (and inner's) result last.
func Wrap(inner llmclient.LLMClient, mws ...Middleware) llmclient.LLMClient {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// roleKey is the context key under which the active pipeline role
// (§4.1's five LM roles) is stashed so the usage-ledger and logging
// middlewares can attribute a call without threading the role through
// every component signature.
type roleKey struct{}

// WithRole returns a context carrying the named pipeline role, e.g.
// "conv_simulator_lm".
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// RoleFrom extracts the role stashed by WithRole, or "" if none.
func RoleFrom(ctx context.Context) string {
	if v, ok := ctx.Value(roleKey{}).(string); ok {
		return v
	}
	return ""
}
