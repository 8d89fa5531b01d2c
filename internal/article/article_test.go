package article

import (
	"context"
	"strings"
	"testing"

	"dartreport/internal/domain"
	"dartreport/internal/tester"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	dim     int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	// default: orthogonal-ish vector derived from text length, so
	// unmapped text never accidentally matches a mapped evidence
	// vector.
	return []float32{0, 0, float32(len(text)) + 1}, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

type scriptedLM struct {
	response string
	prompts  []string
}

func (s *scriptedLM) Name() string            { return "scripted" }
func (s *scriptedLM) Close() error             { return nil }
func (s *scriptedLM) CountTokens(t string) int { return len(t) }
func (s *scriptedLM) TokenCapacity() int       { return 1000 }

func (s *scriptedLM) Complete(ctx context.Context, prompt string, maxTokens int, stopTokens []string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, nil
}

func TestSelectableSectionsSkipsReservedHeadings(t *testing.T) {
	o := domain.ParseOutline("# Introduction\n# Business Overview\n# Conclusion\n# Risks")
	got := selectableSections(o)
	tester.Len(t, got, 2)
	tester.Eq(t, got[0].Heading, "Business Overview")
	tester.Eq(t, got[1].Heading, "Risks")
}

func TestGenerateDraftsEachSectionWithRemappedCitations(t *testing.T) {
	o := domain.ParseOutline("# Overview\n## History\n# Financials\n## Revenue")
	table := domain.NewInformationTable()
	table.AddConversation(domain.Conversation{
		Persona: domain.BasicFactWriter(),
		Turns: []domain.DialogueTurn{
			{Question: "q", Answer: "a", RetrievedPassages: []domain.Passage{
				{URL: "https://a.example", Snippets: []string{"Acme reported strong revenue."}},
			}},
		},
	})
	table.MergePassages(table.Conversations[0].Turns)
	table.AssignUnifiedIndex()

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"Acme reported strong revenue.": {1, 0, 0},
		"Overview History":              {1, 0, 0},
		"Financials Revenue":            {1, 0, 0},
	}}
	lm := &scriptedLM{response: "Revenue grew this year [1]."}
	gen := NewGenerator(lm, embedder, 4, 5)

	article, err := gen.Generate(context.Background(), "Acme Corp", o, table)
	tester.NoErr(t, err)
	tester.Len(t, article.Sections, 2)
	tester.Eq(t, article.Sections[0].Heading, "Overview")
	tester.Eq(t, article.Sections[1].Heading, "Financials")
	tester.Contains(t, article.Sections[0].Body, "[1]")
}

func TestSectionQueryJoinsHeadingAndSubheadings(t *testing.T) {
	node := &domain.OutlineNode{
		Heading: "Overview",
		Children: []*domain.OutlineNode{
			{Heading: "History"},
			{Heading: "Leadership"},
		},
	}
	tester.Eq(t, sectionQuery(node), "Overview History Leadership")
}

func TestSelectEvidenceStopsAtWordBudget(t *testing.T) {
	long := strings.Repeat("word ", 2000)
	embedded := []embeddedPassage{
		{passage: domain.Passage{URL: "u1", Snippets: []string{long}}, vector: []float32{1, 0}},
		{passage: domain.Passage{URL: "u2", Snippets: []string{"short passage"}}, vector: []float32{0.9, 0.1}},
	}
	selected := selectEvidence(embedded, []float32{1, 0}, 5, maxEvidenceWords)
	tester.Len(t, selected, 1)
	tester.Eq(t, selected[0].passage.URL, "u1")
}

func TestCosineSimilarityOfIdenticalVectorsIsOne(t *testing.T) {
	s := cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3})
	tester.True(t, s > 0.999, "expected near-1.0 similarity")
}
