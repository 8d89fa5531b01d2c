package persona

import (
	"context"
	"testing"

	"dartreport/internal/domain"
	"dartreport/internal/llmclient"
	"dartreport/internal/tester"
)

type scriptedLM struct {
	responses []string
	i         int
}

func (s *scriptedLM) Name() string            { return "scripted" }
func (s *scriptedLM) Close() error             { return nil }
func (s *scriptedLM) CountTokens(t string) int { return len(t) }
func (s *scriptedLM) TokenCapacity() int       { return 1000 }

func (s *scriptedLM) Complete(ctx context.Context, prompt string, maxTokens int, stopTokens []string) (string, error) {
	if s.i >= len(s.responses) {
		return "", nil
	}
	r := s.responses[s.i]
	s.i++
	return r, nil
}

var _ llmclient.LLMClient = (*scriptedLM)(nil)

func TestGeneratePrependsFixedFactWriter(t *testing.T) {
	lm := &scriptedLM{responses: []string{
		"https://example.com/related",
		"1. Financial analyst: focuses on revenue and margins\n2. Industry expert: focuses on competitive positioning",
	}}
	gen := NewGenerator(lm, 3)
	gen.fetchToC = func(ctx context.Context, url string) (string, error) {
		return "Overview\nHistory\nProducts", nil
	}

	personas, err := gen.Generate(context.Background(), "Acme Corp")
	tester.NoErr(t, err)
	tester.True(t, len(personas) >= 1, "expected at least the fact writer")
	tester.Eq(t, personas[0], domain.BasicFactWriter())
	tester.Eq(t, personas[1].Name, "Financial analyst")
}

func TestGenerateIgnoresFetchFailuresSilently(t *testing.T) {
	lm := &scriptedLM{responses: []string{
		"https://broken.example",
		"1. Fact checker: verifies claims",
	}}
	gen := NewGenerator(lm, 3)
	gen.fetchToC = func(ctx context.Context, url string) (string, error) {
		return "", context.DeadlineExceeded
	}

	personas, err := gen.Generate(context.Background(), "Acme Corp")
	tester.NoErr(t, err)
	tester.Eq(t, personas[0], domain.BasicFactWriter())
}

func TestGenerateCapsAtMaxPerspectivePlusOne(t *testing.T) {
	lm := &scriptedLM{responses: []string{
		"",
		"1. A: a\n2. B: b\n3. C: c\n4. D: d\n5. E: e",
	}}
	gen := NewGenerator(lm, 2)
	gen.fetchToC = func(ctx context.Context, url string) (string, error) { return "", nil }

	personas, err := gen.Generate(context.Background(), "Acme Corp")
	tester.NoErr(t, err)
	tester.Len(t, personas, 3)
}
