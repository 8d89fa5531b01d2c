package retrieval

import (
	"context"
	"strconv"
)

// Embedder turns text into a fixed-dimension vector. Grounded on
// theRebelliousNerd-codenerd's internal/embedding/genai.go, which wraps
// genai's EmbedContent the same way llmclient.GeminiClient.Embed does.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// GeminiEmbedder adapts an *llmclient.GeminiClient to Embedder.
type GeminiEmbedder struct {
	client interface {
		Embed(ctx context.Context, embedModel, text string) ([]float32, error)
	}
	model string
	dim   int
}

// NewGeminiEmbedder wraps client for the given embedding model. dim is
// the expected output dimensionality, checked against the store's
// VectorDimension at startup (§4.2 step 1, §7 EmbeddingDimensionMismatch).
func NewGeminiEmbedder(client interface {
	Embed(ctx context.Context, embedModel, text string) ([]float32, error)
}, model string, dim int) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: model, dim: dim}
}

func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return g.client.Embed(ctx, g.model, text)
}

func (g *GeminiEmbedder) Dimension() int { return g.dim }

// CheckDimension fails fast when store and embedder disagree on vector
// width, per §4.2 step 1's "the retriever fails fast at startup if they
// differ."
func CheckDimension(ctx context.Context, store KnowledgeStore, embedder Embedder) error {
	storeDim, err := store.VectorDimension(ctx)
	if err != nil {
		return err
	}
	if storeDim != embedder.Dimension() {
		return &EmbeddingDimensionMismatchError{StoreDim: storeDim, EmbedderDim: embedder.Dimension()}
	}
	return nil
}

// EmbeddingDimensionMismatchError is the ConfigurationError-class
// failure from §7: the embedder and the stored vector column disagree
// on width. This is permanent — retrying does not help.
type EmbeddingDimensionMismatchError struct {
	StoreDim, EmbedderDim int
}

func (e *EmbeddingDimensionMismatchError) Error() string {
	return "retrieval: embedding dimension mismatch: store has " +
		strconv.Itoa(e.StoreDim) + ", embedder produces " + strconv.Itoa(e.EmbedderDim)
}
