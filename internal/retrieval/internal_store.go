package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"dartreport/internal/domain"
)

// WindowExpandFactor is the k -> k' multiplier from §4.2 step 3.
const WindowExpandFactor = 3

// InternalRetriever implements Retriever against a KnowledgeStore,
// following the algorithm in §4.2: embed, vector search, sliding
// window, rerank, tag, truncate to k.
type InternalRetriever struct {
	store    KnowledgeStore
	embedder Embedder
	reranker *EntityAwareReranker
	tagger   *SourceTagger
	window   int
	cache    *queryCache
}

// NewInternalRetriever constructs a retriever. CheckDimension must be
// called once at startup before this is used (§4.2 step 1).
func NewInternalRetriever(store KnowledgeStore, embedder Embedder, reranker *EntityAwareReranker, window int) *InternalRetriever {
	if window <= 0 {
		window = 1
	}
	return &InternalRetriever{
		store:    store,
		embedder: embedder,
		reranker: reranker,
		tagger:   NewSourceTagger(),
		window:   window,
		cache:    newQueryCache(1024),
	}
}

// Retrieve implements the public Retriever operation from §4.2: one or
// more queries, concatenated then deduplicated by URL preferring the
// higher score, top k returned.
func (r *InternalRetriever) Retrieve(ctx context.Context, queries []string, excludeURLs map[string]struct{}, k int) ([]domain.Passage, error) {
	if k <= 0 {
		k = 3
	}
	byURL := make(map[string]domain.Passage)
	for _, q := range queries {
		passages, err := r.retrieveOne(ctx, q, excludeURLs, k)
		if err != nil {
			return nil, err
		}
		for _, p := range passages {
			existing, ok := byURL[p.URL]
			if !ok || p.Score > existing.Score {
				byURL[p.URL] = p
			}
		}
	}

	out := make([]domain.Passage, 0, len(byURL))
	for _, p := range byURL {
		out = append(out, p)
	}
	sortPassagesByScore(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (r *InternalRetriever) retrieveOne(ctx context.Context, query string, excludeURLs map[string]struct{}, k int) ([]domain.Passage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	kPrime := k * WindowExpandFactor
	// Only queries with no per-dialogue URL exclusion are cacheable: the
	// exclusion set changes turn over turn within a dialogue, so caching
	// on it would risk serving rows that should have been filtered out.
	cacheable := len(excludeURLs) == 0
	cacheKey := fmt.Sprintf("%s\x00%d", query, kPrime)

	var rows []ChunkRow
	var cached bool
	if cacheable {
		rows, cached = r.cache.get(cacheKey)
	}
	if !cached {
		embedding, err := r.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("retrieval: embed query: %w", err)
		}
		if len(embedding) != r.embedder.Dimension() {
			return nil, &EmbeddingDimensionMismatchError{StoreDim: r.embedder.Dimension(), EmbedderDim: len(embedding)}
		}

		rows, err = r.store.VectorSearch(ctx, embedding, kPrime, excludeURLs)
		if err != nil {
			return nil, fmt.Errorf("retrieval: vector search: %w", err)
		}
		if cacheable {
			r.cache.put(cacheKey, rows)
		}
	}

	passages := make([]domain.Passage, 0, len(rows))
	for _, row := range rows {
		content, err := r.assembleWindow(ctx, row)
		if err != nil {
			return nil, err
		}
		passages = append(passages, domain.Passage{
			URL:       ChunkURL(row.ReportID, row.ChunkID),
			Title:     row.SectionPath,
			Snippets:  []string{content},
			Score:     1 - row.Distance, // cosine distance -> similarity
			SourceTag: row.CompanyName,
			Provenance: domain.Provenance{
				ChunkID:       row.ChunkID,
				ReportID:      row.ReportID,
				CompanyName:   row.CompanyName,
				ChunkType:     row.ChunkType,
				SequenceOrder: row.SequenceOrder,
				HasMergedMeta: row.HasMergedMeta,
			},
		})
	}

	passages = r.reranker.Rerank(query, passages)
	passages = r.tagger.Tag(passages)

	if len(passages) > k {
		passages = passages[:k]
	}
	return passages, nil
}

// assembleWindow implements §4.2 step 4: for table rows, fetch the
// neighboring rows and compose a single string of
// "[Previous context] ... [Table] ... [Next context] ...", optionally
// prefixed with a merged-meta warning.
func (r *InternalRetriever) assembleWindow(ctx context.Context, row ChunkRow) (string, error) {
	if row.ChunkType != domain.ChunkTypeTable {
		return row.RawContent, nil
	}

	neighbors, err := r.store.NeighborRows(ctx, row.ReportID, row.SequenceOrder, r.window)
	if err != nil {
		return "", fmt.Errorf("retrieval: fetch neighbor rows: %w", err)
	}

	var prev, next string
	for _, n := range neighbors {
		switch {
		case n.SequenceOrder == row.SequenceOrder-r.window:
			prev = n.RawContent
		case n.SequenceOrder == row.SequenceOrder+r.window:
			next = n.RawContent
		}
	}

	var b strings.Builder
	if row.HasMergedMeta {
		b.WriteString("[Note: merged meta info — consult adjacent context for units/base-dates.]\n")
	}
	fmt.Fprintf(&b, "[Previous context] %s [Table] %s [Next context] %s", prev, row.RawContent, next)
	return b.String(), nil
}

func sortPassagesByScore(passages []domain.Passage) {
	sort.SliceStable(passages, func(i, j int) bool { return passages[i].Score > passages[j].Score })
}
