package domain

import (
	"testing"

	"dartreport/internal/tester"
)

func TestInformationTableMergeFirstSightingWins(t *testing.T) {
	table := NewInformationTable()
	first := Passage{URL: "dart_report_1_chunk_1", Title: "first title", Snippets: []string{"a"}}
	second := Passage{URL: "dart_report_1_chunk_1", Title: "second title", Snippets: []string{"b"}}

	table.MergePassages([]DialogueTurn{{RetrievedPassages: []Passage{first, second}}})

	got := table.URLToInfo()["dart_report_1_chunk_1"]
	tester.Eq(t, got.Title, "first title")
	tester.Eq(t, got.Snippets, []string{"a", "b"})
}

func TestInformationTableExcludesNoiseMerged(t *testing.T) {
	table := NewInformationTable()
	table.MergePassages([]DialogueTurn{{RetrievedPassages: []Passage{
		{URL: "u1", Provenance: Provenance{ChunkType: ChunkTypeNoiseMerged}},
		{URL: "u2", Provenance: Provenance{ChunkType: ChunkTypeText}},
	}}})
	tester.Eq(t, table.Size(), 1)
	_, ok := table.URLToInfo()["u1"]
	tester.False(t, ok, "noise_merged passage must not be retained")
}

func TestAssignUnifiedIndexFirstSightingOrder(t *testing.T) {
	table := NewInformationTable()
	table.MergePassages([]DialogueTurn{{RetrievedPassages: []Passage{{URL: "b"}, {URL: "a"}, {URL: "b"}}}})
	table.AssignUnifiedIndex()

	idx := table.URLToUnifiedIndex()
	tester.Eq(t, idx["b"], 1)
	tester.Eq(t, idx["a"], 2)
	tester.Eq(t, len(idx), 2)
}

func TestAssignUnifiedIndexIsBijection(t *testing.T) {
	table := NewInformationTable()
	table.MergePassages([]DialogueTurn{{RetrievedPassages: []Passage{{URL: "x"}, {URL: "y"}, {URL: "z"}}}})
	table.AssignUnifiedIndex()

	seen := map[int]string{}
	for url, idx := range table.URLToUnifiedIndex() {
		tester.True(t, idx >= 1 && idx <= table.Size(), "index out of bijection range")
		if other, ok := seen[idx]; ok {
			t.Fatalf("index %d assigned to both %q and %q", idx, other, url)
		}
		seen[idx] = url
	}
}
