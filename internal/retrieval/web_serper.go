package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"dartreport/internal/domain"
)

// WebRetriever is the external-search counterpart to InternalRetriever
// (§6.2).
type WebRetriever interface {
	Retrieve(ctx context.Context, queries []string, excludeURLs map[string]struct{}, k int) ([]domain.Passage, error)
}

// SerperWebRetriever calls the Serper.dev search API, grounded on
// mohammad-safakhou-newser/tools/web_search/serper.Search.Discover.
type SerperWebRetriever struct {
	apiKey     string
	httpClient *http.Client
	endpoint   string
}

// NewSerperWebRetriever constructs a retriever using apiKey. A nil
// httpClient falls back to http.DefaultClient.
func NewSerperWebRetriever(apiKey string, httpClient *http.Client) *SerperWebRetriever {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SerperWebRetriever{apiKey: apiKey, httpClient: httpClient, endpoint: "https://google.serper.dev/search"}
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

func (w *SerperWebRetriever) Retrieve(ctx context.Context, queries []string, excludeURLs map[string]struct{}, k int) ([]domain.Passage, error) {
	if k <= 0 {
		k = 3
	}
	byURL := make(map[string]domain.Passage)
	for _, q := range queries {
		passages, err := w.search(ctx, q, k)
		if err != nil {
			return nil, err
		}
		for _, p := range passages {
			if _, excluded := excludeURLs[p.URL]; excluded {
				continue
			}
			if existing, ok := byURL[p.URL]; !ok || p.Score > existing.Score {
				byURL[p.URL] = p
			}
		}
	}
	out := make([]domain.Passage, 0, len(byURL))
	for _, p := range byURL {
		out = append(out, p)
	}
	sortPassagesByScore(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (w *SerperWebRetriever) search(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	payload, err := json.Marshal(map[string]any{"q": query, "num": k})
	if err != nil {
		return nil, fmt.Errorf("retrieval: encode serper payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("retrieval: build serper request: %w", err)
	}
	req.Header.Set("X-API-KEY", w.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval: serper request: %w", err)
	}
	defer resp.Body.Close()

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("retrieval: decode serper response: %w", err)
	}

	out := make([]domain.Passage, 0, len(parsed.Organic))
	for i, item := range parsed.Organic {
		if i >= k {
			break
		}
		if item.Link == "" {
			continue
		}
		out = append(out, domain.Passage{
			URL:         item.Link,
			Title:       item.Title,
			Snippets:    []string{item.Snippet},
			Description: item.Snippet,
			Score:       1 - float64(i)/float64(len(parsed.Organic)+1),
			SourceTag:   "web",
		})
	}
	return out, nil
}
