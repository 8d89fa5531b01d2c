// Package sink persists the artifacts a completed (or in-progress) run
// produces: the polished and draft article, both outlines, the
// conversation log, the URL-to-citation index, the run configuration,
// and the LLM call history.
package sink

import (
	"context"
	"errors"
)

// Well-known artifact paths within a run, per §4.10's success-artifact
// list.
const (
	PathPolishedArticle = "polished_article.md"
	PathDraftArticle    = "draft_article.md"
	PathOutline         = "outline.md"
	PathDraftOutline    = "draft_outline.md"
	PathConversationLog = "conversation_log.json"
	PathURLToInfo       = "url_to_info.json"
	PathRunConfig       = "run_config.json"
	PathLLMCallHistory  = "llm_call_history.jsonl"

	// PathPersonaCheckpoint and PathCurateCheckpoint persist the raw
	// output of Stage 1 and Stage 2 as resumable JSON checkpoints, so a
	// killed run started again with --phase can skip straight to a
	// later stage instead of repaying LM and retrieval cost. Every
	// later stage's checkpoint is one of the artifacts above:
	// outline.md for Stage 3, draft_article.md for Stage 4a.
	PathPersonaCheckpoint = "checkpoint_personas.json"
	PathCurateCheckpoint  = "checkpoint_conversations.json"
)

// ErrNotFound is returned by Get when runID/path has no stored
// content.
var ErrNotFound = errors.New("sink: artifact not found")

// ReportSink persists a run's artifacts, grounded on the teacher's
// artifact.Store shape (Put/Get/List keyed by run ID and path).
type ReportSink interface {
	Put(ctx context.Context, runID, path string, content []byte) error
	Get(ctx context.Context, runID, path string) ([]byte, error)
	List(ctx context.Context, runID string) ([]string, error)
	// AppendLine appends one JSON line to a JSONL artifact (llm_call_history),
	// creating it if absent. line should not include its own trailing newline.
	AppendLine(ctx context.Context, runID, path string, line []byte) error
}
