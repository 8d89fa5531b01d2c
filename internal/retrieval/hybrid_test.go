package retrieval

import (
	"context"
	"testing"

	"dartreport/internal/domain"
	"dartreport/internal/tester"
)

type fakeRetriever struct {
	passages []domain.Passage
}

func (f *fakeRetriever) Retrieve(ctx context.Context, queries []string, excludeURLs map[string]struct{}, k int) ([]domain.Passage, error) {
	return f.passages, nil
}

func TestHybridRetrieverPrefersInternalOnConflict(t *testing.T) {
	internal := &fakeRetriever{passages: []domain.Passage{{URL: "shared", Score: 0.9, Title: "internal"}}}
	web := &fakeRetriever{passages: []domain.Passage{{URL: "shared", Score: 0.95, Title: "web"}}}

	h := NewHybridRetriever(internal, web, 0.6)
	out, err := h.Retrieve(context.Background(), []string{"q"}, nil, 5)
	tester.NoErr(t, err)
	tester.Len(t, out, 1)
	tester.Eq(t, out[0].Title, "internal")
}

func TestHybridRetrieverAdmitsWebWhenInternalScoreBelowThreshold(t *testing.T) {
	internal := &fakeRetriever{passages: []domain.Passage{{URL: "a", Score: 0.3}}}
	web := &fakeRetriever{passages: []domain.Passage{{URL: "b", Score: 0.5}}}

	h := NewHybridRetriever(internal, web, 0.6)
	out, err := h.Retrieve(context.Background(), []string{"q"}, nil, 5)
	tester.NoErr(t, err)
	tester.Len(t, out, 2)
}

func TestHybridRetrieverWithholdsWebWhenInternalScoreAboveThreshold(t *testing.T) {
	internal := &fakeRetriever{passages: []domain.Passage{{URL: "a", Score: 0.9}}}
	web := &fakeRetriever{passages: []domain.Passage{{URL: "b", Score: 0.95}}}

	h := NewHybridRetriever(internal, web, 0.6)
	out, err := h.Retrieve(context.Background(), []string{"q"}, nil, 5)
	tester.NoErr(t, err)
	tester.Len(t, out, 1)
	tester.Eq(t, out[0].URL, "a")
}

func TestHybridRetrieverBothBackendsEmptyReturnsEmptyList(t *testing.T) {
	h := NewHybridRetriever(&fakeRetriever{}, &fakeRetriever{}, 0.6)
	out, err := h.Retrieve(context.Background(), []string{"q"}, nil, 5)
	tester.NoErr(t, err)
	tester.Len(t, out, 0)
}
