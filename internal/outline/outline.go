// Package outline implements Stage 3: a prior-knowledge draft outline
// followed by a dialogue-grounded refinement.
package outline

import (
	"context"
	"fmt"
	"strings"

	"dartreport/internal/domain"
	"dartreport/internal/llm"
	"dartreport/internal/llmclient"
)

const maxHistoryWords = 5000

const draftPrompt = `Write a Markdown outline for a Wikipedia-style corporate analysis report
about "%s", using only general prior knowledge. Use "#" for top-level
sections, "##"-"####" for subsections. Reply with headings only, one per
line, nothing else.`

const refinePrompt = `Topic: %s

Draft outline:
%s

Below is a research dialogue covering this topic in depth:
%s

Revise the draft outline so it reflects the facts covered in the
dialogue above. Keep the same Markdown heading conventions ("#" through
"####"). Reply with headings only, one per line, nothing else.`

// Generator produces the Stage 3 outline.
type Generator struct {
	outlineGenLM llmclient.LLMClient
}

// NewGenerator constructs a Generator.
func NewGenerator(outlineGenLM llmclient.LLMClient) *Generator {
	return &Generator{outlineGenLM: outlineGenLM}
}

// Generate runs the draft-then-refine pass and returns both outlines;
// callers persist the draft alongside the refined outline (§4.10's
// draft_outline/outline artifacts).
func (g *Generator) Generate(ctx context.Context, topic string, table *domain.InformationTable) (draft, refined *domain.Outline, err error) {
	draftText, err := g.draft(ctx, topic)
	if err != nil {
		return nil, nil, err
	}
	draft = domain.ParseOutline(draftText)

	history := flattenDialogues(table, maxHistoryWords)
	refinedText, err := g.refine(ctx, topic, draftText, history)
	if err != nil {
		return nil, nil, err
	}
	refined = domain.ParseOutline(refinedText)
	if len(refined.TopLevel()) == 0 {
		// Refinement produced nothing usable; fall back to the draft
		// rather than handing Stage 4 an empty outline.
		refined = draft
	}
	return draft, refined, nil
}

func (g *Generator) draft(ctx context.Context, topic string) (string, error) {
	ctx = llm.WithRole(ctx, "outline_gen_lm")
	text, err := g.outlineGenLM.Complete(ctx, fmt.Sprintf(draftPrompt, topic), 800, nil)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (g *Generator) refine(ctx context.Context, topic, draftText, history string) (string, error) {
	ctx = llm.WithRole(ctx, "outline_gen_lm")
	prompt := fmt.Sprintf(refinePrompt, topic, draftText, history)
	text, err := g.outlineGenLM.Complete(ctx, prompt, 800, nil)
	if err != nil {
		return "", err
	}
	return text, nil
}

// flattenDialogues renders every persona's question/answer pairs, in
// conversation then turn order, truncated to maxWords. Word-count
// truncation (rather than a tokenizer) is the deterministic boundary
// documented in DESIGN.md's Open Question decisions.
func flattenDialogues(table *domain.InformationTable, maxWords int) string {
	if table == nil {
		return ""
	}
	var b strings.Builder
	for _, conv := range table.Conversations {
		for _, t := range conv.Turns {
			b.WriteString("Q: ")
			b.WriteString(t.Question)
			b.WriteString("\nA: ")
			b.WriteString(t.Answer)
			b.WriteString("\n")
		}
	}
	return truncateWords(b.String(), maxWords)
}

func truncateWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ")
}
