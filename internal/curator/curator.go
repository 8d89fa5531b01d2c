// Package curator implements Stage 2: per-persona simulated
// writer/expert dialogues that populate the InformationTable.
package curator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"dartreport/internal/domain"
	"dartreport/internal/llm"
	"dartreport/internal/llmclient"
	"dartreport/internal/workerpool"
)

const terminationGuard = "Thank you so much for your help!"
const cannotAnswer = "I cannot answer this question based on the available information."

const askPrompt = `You are a Wikipedia writer researching the topic "%s".%s

Conversation so far:
%s

Ask the single most useful next question to an expert. If you have learned
enough, reply with exactly: "Thank you so much for your help!"
Reply with only the question (or the closing line), nothing else.`

const expandPrompt = `Convert the following question into up to %d focused search queries.
Question: %s

Reply with one query per line, each starting with "- ".`

const answerPrompt = `You are an expert answering a writer's question using only the evidence below.
Cite every factual claim with its bracketed index, e.g. [1]. When a table is
present, explicitly state any units or base dates. If the evidence is
inadequate, reply with exactly: "%s"

Question: %s

Evidence:
%s

Answer:`

// Retriever is the subset of retrieval.Retriever the curator needs.
type Retriever interface {
	Retrieve(ctx context.Context, queries []string, excludeURLs map[string]struct{}, k int) ([]domain.Passage, error)
}

// Config carries the Stage 2 tunables from RunConfig.
type Config struct {
	MaxConvTurn             int
	MaxThreadNum            int
	MaxSearchQueriesPerTurn int
	RetrieveTopK            int
}

// Curator runs the persona-parallel dialogue stage.
type Curator struct {
	questionAskerLM llmclient.LLMClient
	convSimulatorLM llmclient.LLMClient
	retriever       Retriever
	cfg             Config
}

// NewCurator constructs a Curator.
func NewCurator(questionAskerLM, convSimulatorLM llmclient.LLMClient, retriever Retriever, cfg Config) *Curator {
	if cfg.MaxConvTurn < 0 {
		cfg.MaxConvTurn = 3
	}
	if cfg.MaxThreadNum <= 0 {
		cfg.MaxThreadNum = 10
	}
	if cfg.MaxSearchQueriesPerTurn <= 0 {
		cfg.MaxSearchQueriesPerTurn = 3
	}
	if cfg.RetrieveTopK <= 0 {
		cfg.RetrieveTopK = 3
	}
	return &Curator{questionAskerLM: questionAskerLM, convSimulatorLM: convSimulatorLM, retriever: retriever, cfg: cfg}
}

// Curate runs one dialogue per persona over a bounded worker pool
// (§4.6 "Parallelism"), then merges the results into a fresh
// InformationTable single-threaded after the pool has fully drained
// (§4.6 "Post-processing").
func (c *Curator) Curate(ctx context.Context, topic string, personas []domain.Persona) (*domain.InformationTable, error) {
	workers := c.cfg.MaxThreadNum
	if len(personas) < workers {
		workers = len(personas)
	}

	conversations, errs := workerpool.Run(ctx, personas, workers, func(ctx context.Context, p domain.Persona) (domain.Conversation, error) {
		return c.runDialogue(ctx, topic, p), nil
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	table := domain.NewInformationTable()
	for _, conv := range conversations {
		table.AddConversation(conv)
		table.MergePassages(conv.Turns)
	}
	table.AssignUnifiedIndex()
	return table, nil
}

func (c *Curator) runDialogue(ctx context.Context, topic string, p domain.Persona) domain.Conversation {
	conv := domain.Conversation{Persona: p}
	excludeURLs := make(map[string]struct{})
	askedQuestions := make(map[string]bool)

	for turn := 0; turn < c.cfg.MaxConvTurn; turn++ {
		question := c.ask(ctx, topic, p, conv.Turns, askedQuestions)
		if question == "" || strings.Contains(question, terminationGuard) {
			break
		}
		askedQuestions[question] = true

		queries := c.expand(ctx, question)
		if len(queries) == 0 {
			break
		}

		passages := c.retrieveDeduped(ctx, queries, excludeURLs)
		for _, p := range passages {
			excludeURLs[p.URL] = struct{}{}
		}

		answer, err := c.answer(ctx, question, passages)
		if err != nil {
			break
		}

		conv.Turns = append(conv.Turns, domain.DialogueTurn{
			Question:          question,
			Queries:           toDomainQueries(queries),
			RetrievedPassages: passages,
			Answer:            answer,
		})
	}
	return conv
}

// ask implements S0, including the history-window truncation and
// anti-duplication re-prompt.
func (c *Curator) ask(ctx context.Context, topic string, p domain.Persona, turns []domain.DialogueTurn, asked map[string]bool) string {
	history := historyWindow(turns, 4, 2500)
	personaLine := ""
	if p.Name != "" && p.Name != domain.BasicFactWriterName {
		personaLine = "\nYou are writing from the perspective of: " + p.Name + " (" + p.Description + ")"
	}

	ctx = llm.WithRole(ctx, "question_asker_lm")
	prompt := fmt.Sprintf(askPrompt, topic, personaLine, history)
	question, err := c.questionAskerLM.Complete(ctx, prompt, 500, nil)
	if err != nil {
		return ""
	}
	question = strings.TrimSpace(question)

	if question != "" && asked[question] && !strings.Contains(question, terminationGuard) {
		retryPrompt := prompt + "\n\nThat question was already asked earlier in this conversation. Ask a different one."
		retried, err := c.questionAskerLM.Complete(ctx, retryPrompt, 500, nil)
		if err == nil && strings.TrimSpace(retried) != "" {
			question = strings.TrimSpace(retried)
		}
	}
	return question
}

var queryLinePattern = regexp.MustCompile(`^\s*[-*]\s*(.+)$`)

// expand implements S1.
func (c *Curator) expand(ctx context.Context, question string) []string {
	ctx = llm.WithRole(ctx, "conv_simulator_lm")
	prompt := fmt.Sprintf(expandPrompt, c.cfg.MaxSearchQueriesPerTurn, question)
	text, err := c.convSimulatorLM.Complete(ctx, prompt, 500, nil)
	if err != nil || strings.TrimSpace(text) == "" {
		return nil
	}

	var queries []string
	for _, line := range strings.Split(text, "\n") {
		m := queryLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		q := strings.TrimSpace(m[1])
		if q == "" {
			continue
		}
		queries = append(queries, q)
		if len(queries) >= c.cfg.MaxSearchQueriesPerTurn {
			break
		}
	}
	if len(queries) == 0 {
		queries = []string{question}
	}
	return queries
}

// retrieveDeduped implements S2: retrieve per query, flatten and
// dedupe by URL within the turn, honoring per-dialogue exclusion.
func (c *Curator) retrieveDeduped(ctx context.Context, queries []string, excludeURLs map[string]struct{}) []domain.Passage {
	byURL := make(map[string]domain.Passage)
	for _, q := range queries {
		passages, err := c.retriever.Retrieve(ctx, []string{q}, excludeURLs, c.cfg.RetrieveTopK)
		if err != nil {
			continue
		}
		for _, p := range passages {
			if existing, ok := byURL[p.URL]; !ok || p.Score > existing.Score {
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

// answer implements S3. A blocked or otherwise empty response from
// conv_simulator_lm is a valid, if unhelpful, answer (§7
// BlockedLLMOutput) and is returned as "" with a nil error; only an
// actual LM failure returns a non-nil error.
func (c *Curator) answer(ctx context.Context, question string, passages []domain.Passage) (string, error) {
	if len(passages) == 0 {
		return cannotAnswer, nil
	}
	var evidence strings.Builder
	for _, p := range passages {
		evidence.WriteString(p.RawContent())
		evidence.WriteString("\n\n")
	}

	ctx = llm.WithRole(ctx, "conv_simulator_lm")
	prompt := fmt.Sprintf(answerPrompt, cannotAnswer, question, evidence.String())
	answer, err := c.convSimulatorLM.Complete(ctx, prompt, 500, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// historyWindow implements the S0 history-window rule: full text for
// the last windowTurns, "Expert: Omit the answer here due to space
// limit." for earlier turns, whole thing truncated to maxWords.
func historyWindow(turns []domain.DialogueTurn, windowTurns, maxWords int) string {
	var lines []string
	cutoff := len(turns) - windowTurns
	for i, t := range turns {
		lines = append(lines, "Writer: "+t.Question)
		if i < cutoff {
			lines = append(lines, "Expert: Omit the answer here due to space limit.")
		} else {
			lines = append(lines, "Expert: "+t.Answer)
		}
	}
	return truncateWords(strings.Join(lines, "\n"), maxWords)
}

func truncateWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ")
}

func toDomainQueries(qs []string) []domain.Query {
	out := make([]domain.Query, len(qs))
	for i, q := range qs {
		out[i] = domain.Query{Text: q}
	}
	return out
}
