package llmclient

import (
	"context"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client. It
// only focuses on the API call itself — cross-cutting concerns
// (retries, rate limiting, logging, usage accounting) are applied as
// middleware in internal/llm.
type GeminiClient struct {
	cli      *genai.Client
	model    string
	tokenCap int
}

// NewGeminiClient dials the Gemini API. apiKey may be empty, in which
// case the genai client resolves credentials from its own environment
// (GEMINI_API_KEY / GOOGLE_API_KEY), matching the teacher's own
// factory convention.
func NewGeminiClient(ctx context.Context, apiKey, model string, tokenCap int) (*GeminiClient, error) {
	cfg := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if tokenCap <= 0 {
		tokenCap = 32000
	}
	return &GeminiClient{cli: cli, model: model, tokenCap: tokenCap}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

// CountTokens estimates token length with a simple whitespace-aware
// heuristic (roughly 4 characters per token for English/Korean mixed
// corporate prose); callers that need exact server-side counts should
// use the provider's CountTokens RPC, which this client intentionally
// avoids to keep retrieval-time truncation cheap and offline-testable.
func (g *GeminiClient) CountTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

func (g *GeminiClient) TokenCapacity() int { return g.tokenCap }

// safePermissiveSettings configures the safety filter to permit
// corporate/financial report content, per §4.1: "safety_settings MUST
// be configured to permit corporate/financial content."
func safePermissiveSettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
		})
	}
	return settings
}

// Complete issues a single text completion call. On a blocked or empty
// response it returns ("", nil) rather than an error, per the
// BlockedLLMOutput disposition in §7.
func (g *GeminiClient) Complete(ctx context.Context, prompt string, maxTokens int, stopTokens []string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SafetySettings: safePermissiveSettings(),
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	if len(stopTokens) > 0 {
		cfg.StopSequences = stopTokens
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		cfg,
	)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", nil
	}
	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}

// Embed produces a single embedding vector for text, used by the
// internal retriever (query embedding) and the section-local
// similarity search in Stage 4a.
func (g *GeminiClient) Embed(ctx context.Context, embedModel, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	result, err := g.cli.Models.EmbedContent(ctx, embedModel, contents, &genai.EmbedContentConfig{
		TaskType: "RETRIEVAL_QUERY",
	})
	if err != nil {
		return nil, err
	}
	if result == nil || len(result.Embeddings) == 0 {
		return nil, ErrEmptyResponse
	}
	return result.Embeddings[0].Values, nil
}
