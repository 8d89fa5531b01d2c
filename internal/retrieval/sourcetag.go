package retrieval

import "dartreport/internal/domain"

// SourceTagger prepends a visible provenance header to each passage's
// raw content (§4.4), so downstream LM prompts read attribution
// lexically rather than relying on a side-channel field.
type SourceTagger struct{}

// NewSourceTagger returns a stateless tagger.
func NewSourceTagger() *SourceTagger { return &SourceTagger{} }

// Tag prepends "[[Source: {company} business report (Report ID:
// {report_id})]]\n\n" to the first snippet of each passage, and clears
// the transient provenance fields that should not leak past this
// boundary.
func (SourceTagger) Tag(passages []domain.Passage) []domain.Passage {
	out := make([]domain.Passage, len(passages))
	for i, p := range passages {
		header := "[[Source: " + p.Provenance.CompanyName + " business report (Report ID: " + p.Provenance.ReportID + ")]]\n\n"
		if len(p.Snippets) > 0 {
			p.Snippets = append([]string{}, p.Snippets...)
			p.Snippets[0] = header + p.Snippets[0]
		} else {
			p.Snippets = []string{header}
		}
		p.Provenance = domain.Provenance{}
		out[i] = p
	}
	return out
}
