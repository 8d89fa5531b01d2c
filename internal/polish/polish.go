// Package polish implements Stage 4b: prepending a lead section and
// deduplicating the drafted article.
package polish

import (
	"context"
	"fmt"
	"strings"

	"dartreport/internal/domain"
	"dartreport/internal/llm"
	"dartreport/internal/llmclient"
)

const leadPrompt = `You are writing the lead summary for a Wikipedia-style corporate
analysis report about "%s".

Full drafted article:
%s

Write a self-contained overview of at most 4 paragraphs. Preserve any
"[k]" citation markers from the article where the claim they support
appears in the overview. Reply with body text only, no heading.`

const dedupPrompt = `The following Markdown article may repeat the same information across
multiple sections.

%s

Rewrite it, removing only literally-repeated information. You MUST
preserve every "[k]" citation marker, every "#"/"##"/"###"/"####"
heading and its exact text, and paragraph boundaries. Do not delete
any content that is not a repeat. Reply with the full revised Markdown
article, nothing else.`

const leadHeading = "summary"

// Polisher runs the Stage 4b lead-then-dedup pass.
type Polisher struct {
	articlePolishLM llmclient.LLMClient
}

// NewPolisher constructs a Polisher.
func NewPolisher(articlePolishLM llmclient.LLMClient) *Polisher {
	return &Polisher{articlePolishLM: articlePolishLM}
}

// Polish prepends a lead section to draft and deduplicates the result.
// If either LM call produces unusable output — an empty lead, or a
// dedup pass that drops a heading or a citation the draft carried — it
// reverts to draft unchanged, the EmptyStageOutput disposition for
// Stage 4b (§7).
func (p *Polisher) Polish(ctx context.Context, topic string, draft *domain.Article) (*domain.Article, error) {
	leadText, err := p.generateLead(ctx, topic, draft)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(leadText) == "" {
		return draft, nil
	}
	withLead := prependLead(draft, leadText)

	dedupedText, err := p.deduplicate(ctx, withLead)
	if err != nil {
		return nil, err
	}
	polished := domain.ParseArticle(dedupedText)
	if !preservesHeadingsAndCitations(withLead, polished) {
		return draft, nil
	}
	return polished, nil
}

func (p *Polisher) generateLead(ctx context.Context, topic string, draft *domain.Article) (string, error) {
	ctx = llm.WithRole(ctx, "article_polish_lm")
	prompt := fmt.Sprintf(leadPrompt, topic, draft.Render())
	return p.articlePolishLM.Complete(ctx, prompt, 4000, nil)
}

func (p *Polisher) deduplicate(ctx context.Context, article *domain.Article) (string, error) {
	ctx = llm.WithRole(ctx, "article_polish_lm")
	prompt := fmt.Sprintf(dedupPrompt, article.Render())
	return p.articlePolishLM.Complete(ctx, prompt, 4000, nil)
}

func prependLead(draft *domain.Article, leadText string) *domain.Article {
	lead := domain.Section{Heading: leadHeading, Level: 1, Body: strings.TrimSpace(leadText)}
	sections := make([]domain.Section, 0, len(draft.Sections)+1)
	sections = append(sections, lead)
	sections = append(sections, draft.Sections...)
	return &domain.Article{Sections: sections}
}

// preservesHeadingsAndCitations checks the two hard invariants a
// dedup pass must satisfy: every heading in before survives in after,
// and every citation index referenced in before survives in after.
// Paragraph-boundary preservation is not mechanically checkable here
// and is left to the prompt contract.
func preservesHeadingsAndCitations(before, after *domain.Article) bool {
	afterHeadings := make(map[string]bool, len(after.Sections))
	for _, h := range after.Headings() {
		afterHeadings[h] = true
	}
	for _, h := range before.Headings() {
		if !afterHeadings[h] {
			return false
		}
	}

	afterCitations := make(map[int]bool)
	for _, idx := range domain.CitationIndices(after.Render()) {
		afterCitations[idx] = true
	}
	for _, idx := range domain.CitationIndices(before.Render()) {
		if !afterCitations[idx] {
			return false
		}
	}
	return true
}
