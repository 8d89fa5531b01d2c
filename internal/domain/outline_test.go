package domain

import (
	"testing"

	"dartreport/internal/tester"
)

func TestParseOutlineNesting(t *testing.T) {
	md := "# Overview\n## History\n## Business\n### Segments\n# Financials\n"
	o := ParseOutline(md)

	top := o.TopLevel()
	tester.Len(t, top, 2)
	tester.Eq(t, top[0].Heading, "Overview")
	tester.Len(t, top[0].Children, 2)
	tester.Eq(t, top[0].Children[1].Heading, "Business")
	tester.Len(t, top[0].Children[1].Children, 1)
	tester.Eq(t, top[0].Children[1].Children[0].Heading, "Segments")
	tester.Eq(t, top[1].Heading, "Financials")
}

func TestParseOutlineDiscardsNonHeadingLines(t *testing.T) {
	md := "# Overview\nThis is prose, not a heading.\n## History\n"
	o := ParseOutline(md)
	tester.Eq(t, o.Headings(), []string{"Overview", "History"})
}

func TestParseOutlineRoundTrip(t *testing.T) {
	md := "# A\n## B\n### C\n# D\n"
	o := ParseOutline(md)
	again := ParseOutline(o.Render())
	tester.Eq(t, o.Headings(), again.Headings())
}

func TestIsSkippedSection(t *testing.T) {
	tester.True(t, IsSkippedSection("Introduction"))
	tester.True(t, IsSkippedSection("  SUMMARY "))
	tester.False(t, IsSkippedSection("Business Overview"))
}
