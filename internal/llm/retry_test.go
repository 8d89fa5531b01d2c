package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	llmclient "dartreport/internal/llmclient"
	"dartreport/internal/tester"
)

// fakeClient fails the first failCount calls with a transient error,
// then succeeds. It never sleeps on its own; Retry supplies the delay.
type fakeClient struct {
	failCount int
	calls     int
	permanent bool
}

func (f *fakeClient) Name() string               { return "fake" }
func (f *fakeClient) Close() error                { return nil }
func (f *fakeClient) CountTokens(s string) int    { return len(s) }
func (f *fakeClient) TokenCapacity() int          { return 1000 }

func (f *fakeClient) Complete(ctx context.Context, prompt string, maxTokens int, stopTokens []string) (string, error) {
	f.calls++
	if f.permanent {
		return "", llmclient.NewPermanentError(errors.New("bad config"))
	}
	if f.calls <= f.failCount {
		return "", errors.New("429 rate limited")
	}
	return "ok", nil
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	fake := &fakeClient{failCount: 2}
	client := Wrap(fake, Retry(5, time.Millisecond, time.Millisecond*10))

	text, err := client.Complete(context.Background(), "hi", 100, nil)
	tester.NoErr(t, err)
	tester.Eq(t, text, "ok")
	tester.Eq(t, fake.calls, 3)
}

func TestRetryDoesNotRetryPermanentError(t *testing.T) {
	fake := &fakeClient{permanent: true}
	client := Wrap(fake, Retry(5, time.Millisecond, time.Millisecond*10))

	_, err := client.Complete(context.Background(), "hi", 100, nil)
	tester.True(t, err != nil, "expected permanent error to surface")
	tester.Eq(t, fake.calls, 1)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	fake := &fakeClient{failCount: 100}
	client := Wrap(fake, Retry(3, time.Millisecond, time.Millisecond*10))

	_, err := client.Complete(context.Background(), "hi", 100, nil)
	tester.True(t, err != nil, "expected error after exhausting attempts")
	tester.Eq(t, fake.calls, 3)
}

func TestUsageLedgerRecordsPerRole(t *testing.T) {
	fake := &fakeClient{}
	ledger := NewUsageLedger()
	client := Wrap(fake, WithUsageLedger(ledger))

	ctx := WithRole(context.Background(), "conv_simulator_lm")
	_, err := client.Complete(ctx, "hello", 100, nil)
	tester.NoErr(t, err)

	usage := ledger.Snapshot()["conv_simulator_lm"]
	tester.True(t, usage.PromptTokens > 0, "expected prompt tokens recorded")
	tester.True(t, usage.CompletionTokens > 0, "expected completion tokens recorded")
}
