package domain

// InformationTable is the in-memory accumulator of every dialogue turn
// from Stage 2, plus the url-keyed passage index that Stage 3 and
// Stage 4 read from. It is built incrementally by appending whole
// Conversations (one per persona) and then finalized once by
// AssignUnifiedIndex, after which it is read-only.
//
// InformationTable never holds object references between a
// DialogueTurn and a Passage; both reach each other only through the
// URL string, so the table stays a flat, serializable structure with
// no cycles.
type InformationTable struct {
	Conversations []Conversation

	urlToInfo          map[string]Passage
	urlToUnifiedIndex  map[string]int
	insertionOrder     []string
}

// NewInformationTable returns an empty table ready to accept
// conversations.
func NewInformationTable() *InformationTable {
	return &InformationTable{
		urlToInfo:         make(map[string]Passage),
		urlToUnifiedIndex: make(map[string]int),
	}
}

// AddConversation appends one persona's completed dialogue. It does not
// merge passages into the URL index; call MergePassages (typically once,
// after all persona dialogues have completed) to do that.
func (t *InformationTable) AddConversation(c Conversation) {
	t.Conversations = append(t.Conversations, c)
}

// MergePassages folds every passage retrieved across every turn of c
// into the table's url_to_info map. First-sighting wins for Title and
// Description; Snippets are concatenated on repeat sightings. Insertion
// order (the order in which a URL is first seen across the whole call
// sequence) is recorded for AssignUnifiedIndex.
//
// This is NOT safe to call concurrently with itself; the caller (the
// KnowledgeCurator's post-processing step) must wait for all persona
// dialogue goroutines to finish before merging, then merge
// single-threaded, in persona order, so insertion order is
// deterministic across runs given a fixed retrieval order.
func (t *InformationTable) MergePassages(turns []DialogueTurn) {
	for _, turn := range turns {
		for _, p := range turn.RetrievedPassages {
			if p.Provenance.ChunkType == ChunkTypeNoiseMerged {
				continue
			}
			t.mergeOne(p)
		}
	}
}

func (t *InformationTable) mergeOne(p Passage) {
	existing, ok := t.urlToInfo[p.URL]
	if !ok {
		t.urlToInfo[p.URL] = p.Clone()
		t.insertionOrder = append(t.insertionOrder, p.URL)
		return
	}
	existing.Snippets = append(existing.Snippets, p.Snippets...)
	t.urlToInfo[p.URL] = existing
}

// AssignUnifiedIndex numbers every URL currently in url_to_info in
// first-sighting insertion order, starting at 1. It must run exactly
// once, single-threaded, after Stage 2 (including all MergePassages
// calls) completes, and the result is never renumbered afterward.
func (t *InformationTable) AssignUnifiedIndex() {
	t.urlToUnifiedIndex = make(map[string]int, len(t.insertionOrder))
	for i, url := range t.insertionOrder {
		t.urlToUnifiedIndex[url] = i + 1
	}
}

// NewInformationTableFromConversations rebuilds a finalized
// InformationTable from a previously curated set of conversations —
// the same sequence Curate itself runs after its worker pool drains
// (AddConversation, then MergePassages, then AssignUnifiedIndex), used
// to resume a run from a persisted curate-stage checkpoint without
// repaying Stage 2's LM and retrieval cost.
func NewInformationTableFromConversations(conversations []Conversation) *InformationTable {
	t := NewInformationTable()
	for _, c := range conversations {
		t.AddConversation(c)
		t.MergePassages(c.Turns)
	}
	t.AssignUnifiedIndex()
	return t
}

// URLToInfo returns the url -> Passage map. Callers must treat the
// returned map as read-only.
func (t *InformationTable) URLToInfo() map[string]Passage {
	return t.urlToInfo
}

// URLToUnifiedIndex returns the url -> citation index map. Callers must
// treat the returned map as read-only.
func (t *InformationTable) URLToUnifiedIndex() map[string]int {
	return t.urlToUnifiedIndex
}

// IndexToURL performs the inverse lookup used by citation validation:
// does some URL map to citation index k?
func (t *InformationTable) IndexToURL(k int) (string, bool) {
	for url, idx := range t.urlToUnifiedIndex {
		if idx == k {
			return url, true
		}
	}
	return "", false
}

// Size returns the number of distinct URLs curated so far.
func (t *InformationTable) Size() int {
	return len(t.urlToInfo)
}

// AllPassages returns every turn's retrieved passages across every
// conversation, in conversation then turn order. Useful for Stage 4a's
// local-similarity evidence search over already-curated material.
func (t *InformationTable) AllPassages() []Passage {
	var out []Passage
	for _, c := range t.Conversations {
		for _, turn := range c.Turns {
			out = append(out, turn.RetrievedPassages...)
		}
	}
	return out
}
