// Package article implements Stage 4a: drafting each top-level section
// against locally re-embedded evidence drawn from the curated
// InformationTable.
package article

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"dartreport/internal/domain"
	"dartreport/internal/llm"
	"dartreport/internal/llmclient"
	"dartreport/internal/retrieval"
	"dartreport/internal/workerpool"
)

const maxEvidenceWords = 1500

const draftSectionPrompt = `You are drafting one section of a Wikipedia-style corporate analysis
report about "%s".

Section heading: %s

Evidence, each prefixed with its local citation index:
%s

Write the section body as Markdown prose. Cite every factual claim
with its bracketed local evidence index, e.g. [1]. Do not repeat the
heading.`

// Generator produces the Stage 4a draft article.
type Generator struct {
	articleGenLM llmclient.LLMClient
	embedder     retrieval.Embedder
	maxThreadNum int
	evidenceTopK int
}

// NewGenerator constructs a Generator. evidenceTopK bounds how many
// candidate passages are considered per section before the
// maxEvidenceWords budget is applied.
func NewGenerator(articleGenLM llmclient.LLMClient, embedder retrieval.Embedder, maxThreadNum, evidenceTopK int) *Generator {
	if maxThreadNum <= 0 {
		maxThreadNum = 10
	}
	if evidenceTopK <= 0 {
		evidenceTopK = 5
	}
	return &Generator{articleGenLM: articleGenLM, embedder: embedder, maxThreadNum: maxThreadNum, evidenceTopK: evidenceTopK}
}

// Generate drafts one Section per selectable top-level heading in
// refined, concurrently over a bounded worker pool (§4.8
// "Parallelism"), and returns them in outline order.
func (g *Generator) Generate(ctx context.Context, topic string, refined *domain.Outline, table *domain.InformationTable) (*domain.Article, error) {
	sections := selectableSections(refined)
	embedded, err := g.embedPassages(ctx, table.AllPassages())
	if err != nil {
		return nil, err
	}
	unified := table.URLToUnifiedIndex()

	drafted, errs := workerpool.Run(ctx, sections, g.maxThreadNum, func(ctx context.Context, node *domain.OutlineNode) (domain.Section, error) {
		return g.draftSection(ctx, topic, node, embedded, unified)
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return &domain.Article{Sections: drafted}, nil
}

// selectableSections returns the top-level headings Stage 4a drafts
// against, skipping the reserved lead/conclusion names (§4.8 "Section
// selection").
func selectableSections(o *domain.Outline) []*domain.OutlineNode {
	var out []*domain.OutlineNode
	for _, n := range o.TopLevel() {
		if domain.IsSkippedSection(n.Heading) {
			continue
		}
		out = append(out, n)
	}
	return out
}

type embeddedPassage struct {
	passage domain.Passage
	vector  []float32
}

// embedPassages re-embeds every distinct-URL passage curated in Stage
// 2 with the same embedding model used for retrieval, once per URL.
// This is deliberately not a new Retriever call (§4.8: "not a new
// Retriever call") — it reuses material already fetched and vetted.
func (g *Generator) embedPassages(ctx context.Context, passages []domain.Passage) ([]embeddedPassage, error) {
	seen := make(map[string]bool, len(passages))
	out := make([]embeddedPassage, 0, len(passages))
	for _, p := range passages {
		if seen[p.URL] {
			continue
		}
		seen[p.URL] = true
		vec, err := g.embedder.Embed(ctx, p.RawContent())
		if err != nil {
			return nil, err
		}
		out = append(out, embeddedPassage{passage: p, vector: vec})
	}
	return out, nil
}

type scoredPassage struct {
	passage domain.Passage
	score   float64
}

// selectEvidence ranks embedded by cosine similarity against queryVec,
// keeps the top topK, then truncates to the first maxWords' worth
// (always keeping at least one passage if any score).
func selectEvidence(embedded []embeddedPassage, queryVec []float32, topK, maxWords int) []scoredPassage {
	scored := make([]scoredPassage, len(embedded))
	for i, e := range embedded {
		scored[i] = scoredPassage{passage: e.passage, score: cosineSimilarity(e.vector, queryVec)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > topK {
		scored = scored[:topK]
	}

	var out []scoredPassage
	words := 0
	for _, s := range scored {
		w := len(strings.Fields(s.passage.RawContent()))
		if len(out) > 0 && words+w > maxWords {
			break
		}
		out = append(out, s)
		words += w
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sectionQuery builds the evidence-selection query from a section's
// heading and its subheadings joined by space, so a section with
// nested subsections searches for what those subsections are actually
// about rather than just the parent heading.
func sectionQuery(node *domain.OutlineNode) string {
	parts := make([]string, 0, 1+len(node.Children))
	parts = append(parts, node.Heading)
	for _, child := range node.Children {
		parts = append(parts, child.Heading)
	}
	return strings.Join(parts, " ")
}

// draftSection embeds the section's own query, selects local evidence,
// drafts with article_gen_lm, then remaps the LM's local "[i]" markers
// through url_to_unified_index, stripping any index the LM invented
// (§4.8's citation-remap step).
func (g *Generator) draftSection(ctx context.Context, topic string, node *domain.OutlineNode, embedded []embeddedPassage, unified map[string]int) (domain.Section, error) {
	queryVec, err := g.embedder.Embed(ctx, sectionQuery(node))
	if err != nil {
		return domain.Section{}, err
	}
	selected := selectEvidence(embedded, queryVec, g.evidenceTopK, maxEvidenceWords)

	remap := make(map[int]int, len(selected))
	var evidence strings.Builder
	for i, s := range selected {
		localIdx := i + 1
		if global, ok := unified[s.passage.URL]; ok {
			remap[localIdx] = global
		}
		fmt.Fprintf(&evidence, "[%d] %s\n\n", localIdx, s.passage.RawContent())
	}

	ctx = llm.WithRole(ctx, "article_gen_lm")
	prompt := fmt.Sprintf(draftSectionPrompt, topic, node.Heading, evidence.String())
	text, err := g.articleGenLM.Complete(ctx, prompt, 1200, nil)
	if err != nil {
		return domain.Section{}, err
	}

	return domain.Section{
		Heading: node.Heading,
		Level:   node.Level,
		Body:    domain.RemapCitations(text, remap),
	}, nil
}
