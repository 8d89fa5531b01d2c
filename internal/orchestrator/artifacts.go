package orchestrator

import (
	"context"
	"encoding/json"

	"dartreport/internal/domain"
	"dartreport/internal/sink"
)

// dlgTurnLog is the on-disk shape of one DialogueTurn in
// conversation_log.json, named to match the field names a reader
// following along in url_to_info.json would expect.
type dlgTurnLog struct {
	UserUtterance  string   `json:"user_utterance"`
	AgentUtterance string   `json:"agent_utterance"`
	Queries        []string `json:"search_queries"`
	SearchResults  []string `json:"search_results"`
}

// conversationLogEntry is one persona's full simulated dialogue.
type conversationLogEntry struct {
	Perspective string       `json:"perspective"`
	DlgTurns    []dlgTurnLog `json:"dlg_turns"`
}

// passageInfo is the url_to_info.json value shape for a single curated
// passage.
type passageInfo struct {
	Title       string   `json:"title"`
	Snippets    []string `json:"snippets"`
	Description string   `json:"description"`
}

type urlToInfoDoc struct {
	URLToInfo         map[string]passageInfo `json:"url_to_info"`
	URLToUnifiedIndex map[string]int         `json:"url_to_unified_index"`
}

// writeInformationTableArtifacts persists the two artifacts derived
// from the curated InformationTable: the full conversation transcript
// and the url-keyed evidence index, both written once Stage 4b has
// produced a final article.
func (o *Orchestrator) writeInformationTableArtifacts(ctx context.Context, runID string, table *domain.InformationTable) error {
	if err := o.writeConversationLog(ctx, runID, table); err != nil {
		return err
	}
	return o.writeURLToInfo(ctx, runID, table)
}

func (o *Orchestrator) writeConversationLog(ctx context.Context, runID string, table *domain.InformationTable) error {
	entries := buildConversationLog(table)
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return o.sink.Put(ctx, runID, sink.PathConversationLog, b)
}

func (o *Orchestrator) writeURLToInfo(ctx context.Context, runID string, table *domain.InformationTable) error {
	doc := buildURLToInfo(table)
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return o.sink.Put(ctx, runID, sink.PathURLToInfo, b)
}

func buildConversationLog(table *domain.InformationTable) []conversationLogEntry {
	entries := make([]conversationLogEntry, 0, len(table.Conversations))
	for _, c := range table.Conversations {
		turns := make([]dlgTurnLog, 0, len(c.Turns))
		for _, t := range c.Turns {
			queries := make([]string, 0, len(t.Queries))
			for _, q := range t.Queries {
				queries = append(queries, q.Text)
			}
			results := make([]string, 0, len(t.RetrievedPassages))
			for _, p := range t.RetrievedPassages {
				results = append(results, p.URL)
			}
			turns = append(turns, dlgTurnLog{
				UserUtterance:  t.Question,
				AgentUtterance: t.Answer,
				Queries:        queries,
				SearchResults:  results,
			})
		}
		entries = append(entries, conversationLogEntry{
			Perspective: c.Persona.Name,
			DlgTurns:    turns,
		})
	}
	return entries
}

func buildURLToInfo(table *domain.InformationTable) urlToInfoDoc {
	urlToInfo := make(map[string]passageInfo, table.Size())
	for url, p := range table.URLToInfo() {
		urlToInfo[url] = passageInfo{
			Title:       p.Title,
			Snippets:    p.Snippets,
			Description: p.Description,
		}
	}
	return urlToInfoDoc{
		URLToInfo:         urlToInfo,
		URLToUnifiedIndex: table.URLToUnifiedIndex(),
	}
}
