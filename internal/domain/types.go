// Package domain holds the core report-generation data model: personas,
// dialogue turns, retrieved passages, the outline tree, and the article.
// These types are produced by the pipeline stages in internal/persona,
// internal/curator, internal/outline, and internal/article, and owned
// exclusively by the orchestrator between stages.
package domain

// Persona is a named editorial perspective used to diversify the
// questions asked during knowledge curation.
type Persona struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// BasicFactWriterName is the fixed name of the persona always present at
// index 0 of every persona list.
const BasicFactWriterName = "Basic fact writer"

// BasicFactWriterDescription is the fixed description paired with
// BasicFactWriterName.
const BasicFactWriterDescription = "Basic fact writer focusing on broadly covering the basic facts about the topic."

// BasicFactWriter returns the fixed generic persona prepended to every
// persona list produced by Stage 1.
func BasicFactWriter() Persona {
	return Persona{Name: BasicFactWriterName, Description: BasicFactWriterDescription}
}

// ChunkType distinguishes prose passages from tabular ones; tables get
// sliding-window context assembly and stricter entity-reranking rules.
type ChunkType string

const (
	ChunkTypeText        ChunkType = "text"
	ChunkTypeTable       ChunkType = "table"
	ChunkTypeNoiseMerged ChunkType = "noise_merged"
)

// Provenance carries the internal-store bookkeeping fields a Passage
// needs for sliding-window assembly, entity reranking, and citation
// stability. It is never serialized into a final artifact verbatim; see
// SourceTagger, which folds the human-readable parts into raw_content
// and strips the rest.
type Provenance struct {
	ChunkID        string
	ReportID       string
	CompanyName    string
	ChunkType      ChunkType
	SequenceOrder  int
	HasMergedMeta  bool
}

// Passage is a single piece of retrieved evidence, addressable by a
// globally unique, stable URL. Internal passages use the
// "dart_report_{report_id}_chunk_{chunk_id}" URL scheme; external
// (web) passages use whatever URL the web retriever returns.
type Passage struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Snippets    []string   `json:"snippets"`
	Description string     `json:"description"`
	Score       float64    `json:"score"`
	SourceTag   string     `json:"source_tag"`
	Provenance  Provenance `json:"-"`
}

// RawContent returns the passage's first snippet, or the empty string
// if none has been assembled yet. Most producers populate exactly one
// snippet per Passage; InformationTable.MergePassages appends further
// snippets when the same URL is retrieved again, and RawContent still
// returns only the first.
func (p Passage) RawContent() string {
	if len(p.Snippets) == 0 {
		return ""
	}
	return p.Snippets[0]
}

// Clone returns a deep-enough copy of p for callers that mutate
// Snippets or Provenance without affecting the original.
func (p Passage) Clone() Passage {
	out := p
	out.Snippets = append([]string(nil), p.Snippets...)
	return out
}

// Query is a single search string derived from a writer Question during
// Stage 2 question expansion.
type Query struct {
	Text string `json:"text"`
}

// DialogueTurn is one question/answer exchange in a persona's simulated
// conversation. Once appended to a conversation it is immutable.
type DialogueTurn struct {
	Question          string    `json:"question"`
	Queries           []Query   `json:"queries"`
	RetrievedPassages []Passage `json:"retrieved_passages"`
	Answer            string    `json:"answer"`
}

// Conversation pairs a Persona with the ordered turns of its simulated
// dialogue with the expert.
type Conversation struct {
	Persona Persona        `json:"persona"`
	Turns   []DialogueTurn `json:"turns"`
}
