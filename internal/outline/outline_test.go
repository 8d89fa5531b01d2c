package outline

import (
	"context"
	"strings"
	"testing"

	"dartreport/internal/domain"
	"dartreport/internal/tester"
)

type scriptedLM struct {
	responses []string
	i         int
	prompts   []string
}

func (s *scriptedLM) Name() string            { return "scripted" }
func (s *scriptedLM) Close() error             { return nil }
func (s *scriptedLM) CountTokens(t string) int { return len(t) }
func (s *scriptedLM) TokenCapacity() int       { return 1000 }

func (s *scriptedLM) Complete(ctx context.Context, prompt string, maxTokens int, stopTokens []string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.i >= len(s.responses) {
		return "", nil
	}
	r := s.responses[s.i]
	s.i++
	return r, nil
}

func tableWithTurns(qas ...[2]string) *domain.InformationTable {
	table := domain.NewInformationTable()
	var turns []domain.DialogueTurn
	for _, qa := range qas {
		turns = append(turns, domain.DialogueTurn{Question: qa[0], Answer: qa[1]})
	}
	table.AddConversation(domain.Conversation{Persona: domain.BasicFactWriter(), Turns: turns})
	return table
}

func TestGenerateProducesDraftAndRefinedOutlines(t *testing.T) {
	lm := &scriptedLM{responses: []string{
		"# Overview\n## History\n# Financials",
		"# Overview\n## History\n## Products\n# Financials\n# Risks",
	}}
	g := NewGenerator(lm)
	table := tableWithTurns([2]string{"What do they sell?", "Widgets and gadgets."})

	draft, refined, err := g.Generate(context.Background(), "Acme Corp", table)
	tester.NoErr(t, err)
	tester.Eq(t, draft.Headings(), []string{"Overview", "History", "Financials"})
	tester.Eq(t, refined.Headings(), []string{"Overview", "History", "Products", "Financials", "Risks"})
}

func TestGenerateFallsBackToDraftWhenRefinementEmpty(t *testing.T) {
	lm := &scriptedLM{responses: []string{
		"# Overview\n# Financials",
		"",
	}}
	g := NewGenerator(lm)
	table := domain.NewInformationTable()

	draft, refined, err := g.Generate(context.Background(), "Acme Corp", table)
	tester.NoErr(t, err)
	tester.Eq(t, refined.Headings(), draft.Headings())
}

func TestRefinementPromptIncludesFlattenedDialogueHistory(t *testing.T) {
	lm := &scriptedLM{responses: []string{
		"# Overview",
		"# Overview\n# Financials",
	}}
	g := NewGenerator(lm)
	table := tableWithTurns([2]string{"What is the revenue?", "One billion dollars."})

	_, _, err := g.Generate(context.Background(), "Acme Corp", table)
	tester.NoErr(t, err)
	tester.True(t, len(lm.prompts) == 2, "expected two LM calls")
	tester.Contains(t, lm.prompts[1], "What is the revenue?")
	tester.Contains(t, lm.prompts[1], "One billion dollars.")
}

func TestFlattenDialoguesTruncatesToWordLimit(t *testing.T) {
	words := strings.Repeat("word ", 6000)
	table := tableWithTurns([2]string{words, ""})
	out := flattenDialogues(table, 5000)
	tester.True(t, len(strings.Fields(out)) <= 5000+2, "expected truncation near the word limit")
}
