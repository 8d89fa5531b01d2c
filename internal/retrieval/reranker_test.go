package retrieval

import (
	"testing"

	"dartreport/internal/domain"
	"dartreport/internal/tester"
)

func TestClassifyIntentFactoidTakesPrecedence(t *testing.T) {
	tester.Eq(t, ClassifyIntent("대표이사는 누구인가요"), IntentFactoid)
	tester.Eq(t, ClassifyIntent("경쟁사 대비 점유율 분석"), IntentAnalytical)
	tester.Eq(t, ClassifyIntent("아무 키워드도 없는 질문"), IntentAnalytical)
}

func TestAliasRegistryMatchesCanonicalAndAlias(t *testing.T) {
	reg := NewAliasRegistry(map[string][]string{
		"삼성전자": {"Samsung Electronics", "삼성"},
	})
	matched := reg.MatchEntity("삼성의 최근 실적은?")
	tester.Eq(t, matched, []string{"삼성전자"})

	tester.Len(t, reg.MatchEntity("관련 없는 질문"), 0)
}

func TestAliasRegistryMatchesAllCanonicalsNamedInQuery(t *testing.T) {
	reg := NewAliasRegistry(map[string][]string{
		"삼성전자":    {"삼성"},
		"SK하이닉스": {"하이닉스"},
	})
	matched := reg.MatchEntity("삼성전자와 SK하이닉스 비교 분석")
	tester.Eq(t, matched, []string{"SK하이닉스", "삼성전자"})
}

func TestRerankerBoostsMatchedDropsUnmatchedFactoidDropsUnmatchedTable(t *testing.T) {
	reg := NewAliasRegistry(map[string][]string{"삼성전자": {"삼성"}})
	rr := NewEntityAwareReranker(reg, 1.3, 0.5)

	passages := []domain.Passage{
		{URL: "a", Score: 0.9, SourceTag: "삼성전자", Provenance: domain.Provenance{CompanyName: "삼성전자", ChunkType: domain.ChunkTypeText}},
		{URL: "b", Score: 0.9, SourceTag: "LG전자", Provenance: domain.Provenance{CompanyName: "LG전자", ChunkType: domain.ChunkTypeTable}},
		{URL: "c", Score: 0.9, SourceTag: "LG전자", Provenance: domain.Provenance{CompanyName: "LG전자", ChunkType: domain.ChunkTypeText}},
	}

	out := rr.Rerank("삼성 대표이사는 누구인가요", passages)
	// factoid intent: unmatched -> drop regardless of chunk type.
	tester.Len(t, out, 1)
	tester.Eq(t, out[0].URL, "a")
	tester.True(t, out[0].Score > 0.9, "expected boosted score")
}

func TestRerankerAnalyticalDropsTablePenalizesText(t *testing.T) {
	reg := NewAliasRegistry(map[string][]string{"삼성전자": {"삼성"}})
	rr := NewEntityAwareReranker(reg, 1.3, 0.5)

	passages := []domain.Passage{
		{URL: "table", Score: 0.8, Provenance: domain.Provenance{CompanyName: "LG전자", ChunkType: domain.ChunkTypeTable}},
		{URL: "text", Score: 0.8, Provenance: domain.Provenance{CompanyName: "LG전자", ChunkType: domain.ChunkTypeText}},
	}
	out := rr.Rerank("경쟁사 분석 질문", passages)
	tester.Len(t, out, 1)
	tester.Eq(t, out[0].URL, "text")
	tester.True(t, out[0].Score < 0.8, "expected penalized score")
}

func TestRerankerBoostsBothEntitiesInCrossEntityComparisonQuery(t *testing.T) {
	reg := NewAliasRegistry(map[string][]string{
		"삼성전자":    {"삼성"},
		"SK하이닉스": {"하이닉스"},
	})
	rr := NewEntityAwareReranker(reg, 1.3, 0.5)

	passages := []domain.Passage{
		{URL: "samsung", Score: 0.9, Provenance: domain.Provenance{CompanyName: "삼성전자", ChunkType: domain.ChunkTypeTable}},
		{URL: "hynix", Score: 0.9, Provenance: domain.Provenance{CompanyName: "SK하이닉스", ChunkType: domain.ChunkTypeTable}},
		{URL: "unrelated", Score: 0.9, Provenance: domain.Provenance{CompanyName: "LG전자", ChunkType: domain.ChunkTypeTable}},
	}

	out := rr.Rerank("삼성전자와 SK하이닉스 비교 분석", passages)
	tester.Len(t, out, 2)
	urls := map[string]bool{out[0].URL: true, out[1].URL: true}
	tester.True(t, urls["samsung"], "expected samsung's table passage kept and boosted")
	tester.True(t, urls["hynix"], "expected hynix's table passage kept and boosted")
	for _, p := range out {
		tester.True(t, p.Score > 0.9, "expected both matched entities' passages boosted")
	}
}

func TestSourceTaggerPrependsHeaderAndClearsProvenance(t *testing.T) {
	tagger := NewSourceTagger()
	out := tagger.Tag([]domain.Passage{
		{
			URL:      "x",
			Snippets: []string{"original text"},
			Provenance: domain.Provenance{
				CompanyName: "삼성전자",
				ReportID:    "R1",
			},
		},
	})
	tester.Len(t, out, 1)
	tester.Contains(t, out[0].Snippets[0], "[[Source: 삼성전자 business report (Report ID: R1)]]")
	tester.Contains(t, out[0].Snippets[0], "original text")
	tester.Eq(t, out[0].Provenance, domain.Provenance{})
}
