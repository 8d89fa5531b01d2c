package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"

	"dartreport/internal/article"
	"dartreport/internal/config"
	"dartreport/internal/curator"
	"dartreport/internal/domain"
	"dartreport/internal/jobstatus"
	"dartreport/internal/outline"
	"dartreport/internal/persona"
	"dartreport/internal/polish"
	"dartreport/internal/sink"
	"dartreport/internal/tester"
)

// scriptedLM returns its canned responses in order, repeating the last
// one once exhausted, regardless of role. Guarded by a mutex since the
// article stage drafts sections concurrently over the worker pool.
type scriptedLM struct {
	mu        sync.Mutex
	responses []string
	i         int
}

func (s *scriptedLM) Name() string           { return "scripted" }
func (s *scriptedLM) Close() error           { return nil }
func (s *scriptedLM) CountTokens(string) int { return 0 }
func (s *scriptedLM) TokenCapacity() int     { return 0 }
func (s *scriptedLM) Complete(ctx context.Context, prompt string, maxTokens int, stopTokens []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responses) == 0 {
		return "", nil
	}
	if s.i >= len(s.responses) {
		return s.responses[len(s.responses)-1], nil
	}
	r := s.responses[s.i]
	s.i++
	return r, nil
}

// constantLM always returns the same reply, used for the curator's
// question-asker role where every persona must terminate immediately.
type constantLM struct{ reply string }

func (c *constantLM) Name() string       { return "constant" }
func (c *constantLM) Close() error       { return nil }
func (c *constantLM) CountTokens(string) int { return 0 }
func (c *constantLM) TokenCapacity() int { return 0 }
func (c *constantLM) Complete(ctx context.Context, prompt string, maxTokens int, stopTokens []string) (string, error) {
	return c.reply, nil
}

// poisonLM fails the test if called at all, used to prove a resumed
// run never touches the stages its checkpoint already covers.
type poisonLM struct{ t *testing.T }

func (p *poisonLM) Name() string           { return "poison" }
func (p *poisonLM) Close() error           { return nil }
func (p *poisonLM) CountTokens(string) int { return 0 }
func (p *poisonLM) TokenCapacity() int     { return 0 }
func (p *poisonLM) Complete(ctx context.Context, prompt string, maxTokens int, stopTokens []string) (string, error) {
	p.t.Fatalf("LM should not be called for a stage the resume checkpoint already covers")
	return "", nil
}

type neverCalledRetriever struct{ t *testing.T }

func (r neverCalledRetriever) Retrieve(ctx context.Context, queries []string, excludeURLs map[string]struct{}, k int) ([]domain.Passage, error) {
	r.t.Fatalf("retriever should not be called when every dialogue terminates immediately")
	return nil, nil
}

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}
func (fixedEmbedder) Dimension() int { return 3 }

func buildOrchestrator(t *testing.T, outlineResponses, articleResponses, polishResponses []string) (*Orchestrator, jobstatus.JobStatus, sink.ReportSink) {
	personaGen := persona.NewGenerator(&scriptedLM{responses: []string{"", "1. Analyst: covers company financials"}}, 2)
	cur := curator.NewCurator(&constantLM{reply: "Thank you so much for your help!"}, &constantLM{reply: ""}, neverCalledRetriever{t: t}, curator.Config{})
	outlineGen := outline.NewGenerator(&scriptedLM{responses: outlineResponses})
	articleGen := article.NewGenerator(&scriptedLM{responses: articleResponses}, fixedEmbedder{}, 2, 3)
	polisher := polish.NewPolisher(&scriptedLM{responses: polishResponses})
	status := jobstatus.NewMemoryStatus()
	sk := sink.NewFileSink(t.TempDir())

	return New(personaGen, cur, outlineGen, articleGen, polisher, status, sk, config.DefaultRunConfig()), status, sk
}

func TestRunDrivesAllFiveStagesAndPersistsArtifacts(t *testing.T) {
	orc, status, sk := buildOrchestrator(t,
		[]string{"# Overview\n# Risks", "# Overview\n# Risks"},
		[]string{"Some section content."},
		[]string{
			"This is the lead.",
			"# summary\n\nThis is the lead.\n\n# Overview\n\nSome section content.\n\n# Risks\n\nSome section content.\n",
		},
	)

	article, err := orc.Run(context.Background(), "run-1", "Acme Corp")
	tester.NoErr(t, err)
	tester.Eq(t, article.Headings(), []string{"summary", "Overview", "Risks"})

	last, ok := status.Last("run-1")
	tester.True(t, ok, "expected a published event")
	tester.True(t, last.State == jobstatus.StateCompleted, "expected the run to complete")

	polished, err := sk.Get(context.Background(), "run-1", sink.PathPolishedArticle)
	tester.NoErr(t, err)
	tester.True(t, strings.Contains(string(polished), "This is the lead."), "expected the polished artifact to contain the lead body")

	_, err = sk.Get(context.Background(), "run-1", sink.PathRunConfig)
	tester.NoErr(t, err)
	_, err = sk.Get(context.Background(), "run-1", sink.PathOutline)
	tester.NoErr(t, err)
	_, err = sk.Get(context.Background(), "run-1", sink.PathDraftArticle)
	tester.NoErr(t, err)
	_, err = sk.Get(context.Background(), "run-1", sink.PathConversationLog)
	tester.NoErr(t, err)
	_, err = sk.Get(context.Background(), "run-1", sink.PathURLToInfo)
	tester.NoErr(t, err)
}

func TestRunAbortsWhenOutlineStageProducesNoSections(t *testing.T) {
	orc, status, _ := buildOrchestrator(t,
		[]string{"", ""},
		nil,
		nil,
	)

	_, err := orc.Run(context.Background(), "run-2", "Acme Corp")
	tester.True(t, err != nil, "expected an error when the outline stage produces no sections")

	last, ok := status.Last("run-2")
	tester.True(t, ok, "expected a published event")
	tester.True(t, last.State == jobstatus.StateFailed, "expected the run to be marked failed")
	tester.True(t, last.Stage == jobstatus.StageOutline, "expected the failure to be attributed to the outline stage")
}

func TestRunFromResumesAtArticleStageSkippingEarlierStages(t *testing.T) {
	poison := &poisonLM{t: t}
	personaGen := persona.NewGenerator(poison, 2)
	cur := curator.NewCurator(poison, poison, neverCalledRetriever{t: t}, curator.Config{})
	outlineGen := outline.NewGenerator(poison)
	articleGen := article.NewGenerator(&scriptedLM{responses: []string{"Some section content."}}, fixedEmbedder{}, 2, 3)
	polisher := polish.NewPolisher(&scriptedLM{responses: []string{
		"This is the lead.",
		"# summary\n\nThis is the lead.\n\n# Overview\n\nSome section content.\n",
	}})
	status := jobstatus.NewMemoryStatus()
	sk := sink.NewFileSink(t.TempDir())
	orc := New(personaGen, cur, outlineGen, articleGen, polisher, status, sk, config.DefaultRunConfig())

	refined := domain.ParseOutline("# Overview")
	table := domain.NewInformationTable()
	table.AssignUnifiedIndex()

	result, err := orc.RunFrom(context.Background(), "run-resume", "Acme Corp", jobstatus.StageArticle, Checkpoint{Table: table, Refined: refined})
	tester.NoErr(t, err)
	tester.Eq(t, result.Headings(), []string{"summary", "Overview"})
}

func TestRunFromMissingCheckpointForResumedStageFails(t *testing.T) {
	orc, _, _ := buildOrchestrator(t, nil, nil, nil)

	_, err := orc.RunFrom(context.Background(), "run-resume-missing", "Acme Corp", jobstatus.StageArticle, Checkpoint{})
	tester.True(t, err != nil, "expected an error when resuming without the required checkpoint")
}

func TestRunHaltsImmediatelyOnAlreadyCancelledContext(t *testing.T) {
	orc, status, _ := buildOrchestrator(t, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orc.Run(ctx, "run-3", "Acme Corp")
	tester.True(t, err == context.Canceled, "expected context.Canceled")

	last, ok := status.Last("run-3")
	tester.True(t, ok, "expected a published event")
	tester.True(t, last.State == jobstatus.StateCancelled, "expected the run to be marked cancelled")
	tester.True(t, last.Stage == jobstatus.StagePersona, "expected cancellation at the first stage boundary")
}
