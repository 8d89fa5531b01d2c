package sink

import (
	"testing"

	"dartreport/internal/tester"
)

func TestObjectKeyScopesUnderRunsArtifactsPrefix(t *testing.T) {
	tester.Eq(t, objectKey("run-1", "polished_article.md"), "runs/run-1/artifacts/polished_article.md")
	tester.Eq(t, objectKey("run-1", "/url_to_info.json"), "runs/run-1/artifacts/url_to_info.json")
}

func TestContentTypeForMatchesArtifactVocabulary(t *testing.T) {
	tester.Eq(t, contentTypeFor(PathPolishedArticle), "text/markdown; charset=utf-8")
	tester.Eq(t, contentTypeFor(PathURLToInfo), "application/json")
	tester.Eq(t, contentTypeFor(PathLLMCallHistory), "application/x-ndjson")
	tester.Eq(t, contentTypeFor("unknown.bin"), "application/octet-stream")
}
