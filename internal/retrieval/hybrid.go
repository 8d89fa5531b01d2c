package retrieval

import (
	"context"
	"sync"

	"dartreport/internal/domain"
)

// Retriever is the common contract shared by InternalRetriever and
// SerperWebRetriever (§4.2's "Public operation").
type Retriever interface {
	Retrieve(ctx context.Context, queries []string, excludeURLs map[string]struct{}, k int) ([]domain.Passage, error)
}

// HybridRetriever fans out to an internal and a web retriever
// concurrently and merges their results (§4.2 "HybridRetriever").
//
// Fan-out uses a plain go func + sync.WaitGroup rather than
// golang.org/x/sync/errgroup: no example in the retrieved pack imports
// errgroup for this shape of fan-out, even where x/sync appears as an
// indirect dependency of other tooling — see DESIGN.md.
type HybridRetriever struct {
	internal         Retriever
	web              Retriever
	internalMinScore float64
}

// NewHybridRetriever constructs a retriever from one or both backends.
// Either may be nil. internalMinScore is the threshold below which web
// results are admitted alongside internal ones (default 0.6).
func NewHybridRetriever(internal, web Retriever, internalMinScore float64) *HybridRetriever {
	if internalMinScore <= 0 {
		internalMinScore = 0.6
	}
	return &HybridRetriever{internal: internal, web: web, internalMinScore: internalMinScore}
}

func (h *HybridRetriever) Retrieve(ctx context.Context, queries []string, excludeURLs map[string]struct{}, k int) ([]domain.Passage, error) {
	if h.internal == nil {
		return h.retrieveWebOnly(ctx, queries, excludeURLs, k)
	}
	if h.web == nil {
		internalResults, _ := h.internal.Retrieve(ctx, queries, excludeURLs, k)
		return internalResults, nil
	}

	var wg sync.WaitGroup
	var internalResults, webResults []domain.Passage
	wg.Add(2)
	go func() {
		defer wg.Done()
		internalResults, _ = h.internal.Retrieve(ctx, queries, excludeURLs, k)
	}()
	go func() {
		defer wg.Done()
		webResults, _ = h.web.Retrieve(ctx, queries, excludeURLs, k)
	}()
	wg.Wait()

	internalTopScore := 0.0
	if len(internalResults) > 0 {
		internalTopScore = internalResults[0].Score
	}

	merged := mergeByURL(internalResults, webResults, internalTopScore < h.internalMinScore)
	sortPassagesByScore(merged)
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

func (h *HybridRetriever) retrieveWebOnly(ctx context.Context, queries []string, excludeURLs map[string]struct{}, k int) ([]domain.Passage, error) {
	if h.web == nil {
		return nil, nil
	}
	results, _ := h.web.Retrieve(ctx, queries, excludeURLs, k)
	return results, nil
}

// mergeByURL merges internal and web passages by URL, internal winning
// conflicts. Web results are only admitted when admitWeb is true
// (internal top score below the configured threshold).
func mergeByURL(internal, web []domain.Passage, admitWeb bool) []domain.Passage {
	byURL := make(map[string]domain.Passage, len(internal)+len(web))
	for _, p := range internal {
		byURL[p.URL] = p
	}
	if admitWeb {
		for _, p := range web {
			if _, exists := byURL[p.URL]; !exists {
				byURL[p.URL] = p
			}
		}
	}
	out := make([]domain.Passage, 0, len(byURL))
	for _, p := range byURL {
		out = append(out, p)
	}
	return out
}
