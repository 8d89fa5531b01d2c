package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dartreport/internal/tester"
)

func TestSerperWebRetrieverParsesOrganicResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tester.Eq(t, r.Header.Get("X-API-KEY"), "test-key")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"organic": []map[string]string{
				{"title": "A", "link": "https://a.example", "snippet": "snippet a"},
				{"title": "B", "link": "https://b.example", "snippet": "snippet b"},
			},
		})
	}))
	defer server.Close()

	retriever := NewSerperWebRetriever("test-key", server.Client())
	retriever.endpoint = server.URL

	out, err := retriever.Retrieve(context.Background(), []string{"query"}, nil, 5)
	tester.NoErr(t, err)
	tester.Len(t, out, 2)
	tester.Eq(t, out[0].URL, "https://a.example")
	tester.True(t, out[0].Score >= out[1].Score, "expected results ordered by rank")
}

func TestSerperWebRetrieverAppliesURLExclusion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"organic": []map[string]string{
				{"title": "A", "link": "https://a.example", "snippet": "s"},
			},
		})
	}))
	defer server.Close()

	retriever := NewSerperWebRetriever("k", server.Client())
	retriever.endpoint = server.URL

	out, err := retriever.Retrieve(context.Background(), []string{"q"}, map[string]struct{}{"https://a.example": {}}, 5)
	tester.NoErr(t, err)
	tester.Len(t, out, 0)
}
