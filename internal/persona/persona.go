// Package persona implements Stage 1: discovering related-topic
// tables of contents and synthesizing editor personas from them.
package persona

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"dartreport/internal/domain"
	"dartreport/internal/llm"
	"dartreport/internal/llmclient"
)

const relatedTopicsPrompt = `You are helping research the topic "%s".
List up to 5 URLs of Wikipedia-like reference pages covering closely related
companies, industries, or topics. Reply with one URL per line, nothing else.`

const personaSynthesisPrompt = `You are writing a Wikipedia-style corporate analysis report about "%s".

Below are tables of contents from related reference pages:
%s

Propose a numbered list of up to %d distinct editor personas who would
approach writing this report from different angles. Reply with one persona
per line in the exact format:
1. short summary: description
2. short summary: description
...`

// Generator produces the persona list for Stage 1 (§4.5).
type Generator struct {
	questionAskerLM llmclient.LLMClient
	maxPerspective  int
	fetchToC        func(ctx context.Context, url string) (string, error)
}

// NewGenerator constructs a Generator. fetchToC defaults to FetchToC;
// tests may override it to avoid real network calls.
func NewGenerator(questionAskerLM llmclient.LLMClient, maxPerspective int) *Generator {
	if maxPerspective < 0 {
		maxPerspective = 3
	}
	return &Generator{
		questionAskerLM: questionAskerLM,
		maxPerspective:  maxPerspective,
		fetchToC:        FetchToC,
	}
}

// Generate runs §4.5's three steps and returns 1..max_perspective+1
// personas, the first always the fixed fact writer.
func (g *Generator) Generate(ctx context.Context, topic string) ([]domain.Persona, error) {
	urls := g.discoverRelatedTopics(ctx, topic)

	var tocs []string
	for _, url := range urls {
		toc, err := g.fetchToC(ctx, url)
		if err != nil || strings.TrimSpace(toc) == "" {
			continue // ignore fetch failures silently
		}
		tocs = append(tocs, toc)
	}

	generated := g.synthesizePersonas(ctx, topic, tocs)

	personas := make([]domain.Persona, 0, len(generated)+1)
	personas = append(personas, domain.BasicFactWriter())
	personas = append(personas, generated...)
	if len(personas) > g.maxPerspective+1 {
		personas = personas[:g.maxPerspective+1]
	}
	return personas, nil
}

func (g *Generator) discoverRelatedTopics(ctx context.Context, topic string) []string {
	ctx = llm.WithRole(ctx, "question_asker_lm")
	prompt := fmt.Sprintf(relatedTopicsPrompt, topic)
	text, err := g.questionAskerLM.Complete(ctx, prompt, 500, nil)
	if err != nil || strings.TrimSpace(text) == "" {
		return nil
	}
	return parseURLLines(text)
}

func (g *Generator) synthesizePersonas(ctx context.Context, topic string, tocs []string) []domain.Persona {
	ctx = llm.WithRole(ctx, "question_asker_lm")
	joined := strings.Join(tocs, "\n---\n")
	prompt := fmt.Sprintf(personaSynthesisPrompt, topic, joined, g.maxPerspective)
	text, err := g.questionAskerLM.Complete(ctx, prompt, 500, nil)
	if err != nil || strings.TrimSpace(text) == "" {
		return nil
	}
	return parsePersonaLines(text, g.maxPerspective)
}

var urlPattern = regexp.MustCompile(`https?://\S+`)

func parseURLLines(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimRight(m, ".,)"))
	}
	return out
}

var personaLinePattern = regexp.MustCompile(`^\s*\d+[.).]\s*(.+?)\s*:\s*(.+)$`)

func parsePersonaLines(text string, max int) []domain.Persona {
	lines := strings.Split(text, "\n")
	var out []domain.Persona
	for _, line := range lines {
		m := personaLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out = append(out, domain.Persona{Name: strings.TrimSpace(m[1]), Description: strings.TrimSpace(m[2])})
		if len(out) >= max {
			break
		}
	}
	return out
}
