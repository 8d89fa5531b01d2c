package domain

import (
	"testing"

	"dartreport/internal/tester"
)

func TestRemapCitationsRewritesAndStrips(t *testing.T) {
	text := "Revenue grew 12%[1]. Headcount also rose[2]."
	remap := map[int]int{1: 7}
	got := RemapCitations(text, remap)
	tester.Eq(t, got, "Revenue grew 12%[7]. Headcount also rose.")
}

func TestValidateCitations(t *testing.T) {
	text := "Claim one[1] and claim two[5]."
	valid := map[int]struct{}{1: {}}
	bad := ValidateCitations(text, valid)
	tester.Eq(t, bad, []int{5})
}

func TestStripUnresolvedCitations(t *testing.T) {
	text := "Claim one[1] and claim two[5]."
	valid := map[int]struct{}{1: {}}
	got := StripUnresolvedCitations(text, valid)
	tester.Eq(t, got, "Claim one[1] and claim two.")
}

func TestArticleRenderPreservesHeadingLevels(t *testing.T) {
	a := &Article{Sections: []Section{
		{Heading: "Overview", Level: 1, Body: "Some text[1]."},
		{Heading: "History", Level: 2, Body: ""},
	}}
	got := a.Render()
	tester.Contains(t, got, "# Overview")
	tester.Contains(t, got, "## History")
	tester.Contains(t, got, "Some text[1].")
}
