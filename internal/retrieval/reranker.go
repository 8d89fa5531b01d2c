package retrieval

import (
	"sort"
	"strings"

	"dartreport/internal/domain"
)

// QueryIntent is the rule-based classification from §4.3 step 1.
type QueryIntent int

const (
	IntentAnalytical QueryIntent = iota
	IntentFactoid
)

var analyticalKeywords = []string{
	"비교", "대비", "경쟁", "경쟁사", "분석", "SWOT", "전망", "추세", "점유율", "순위", "성장률",
}

var factoidKeywords = []string{
	"설립", "설립일", "주소", "본사", "대표", "대표이사", "CEO", "임원", "전화", "연락처", "주주", "지분",
}

// ClassifyIntent applies the deterministic keyword rule from §4.3 step
// 1, defaulting to analytical when neither keyword set matches.
func ClassifyIntent(query string) QueryIntent {
	for _, kw := range factoidKeywords {
		if strings.Contains(query, kw) {
			return IntentFactoid
		}
	}
	for _, kw := range analyticalKeywords {
		if strings.Contains(query, kw) {
			return IntentAnalytical
		}
	}
	return IntentAnalytical
}

// AliasRegistry holds canonical_name -> alias strings for the
// substring matching in §4.3 step 2 (§3.1 supplemented entity).
type AliasRegistry struct {
	aliasToCanonical map[string]string
	aliasesByCanon   map[string][]string
	canonicals       []string
}

// NewAliasRegistry builds a registry from a canonical_name -> aliases
// map, as returned by KnowledgeStore.CompanyAliases.
func NewAliasRegistry(byCanonical map[string][]string) *AliasRegistry {
	r := &AliasRegistry{
		aliasToCanonical: make(map[string]string),
		aliasesByCanon:   make(map[string][]string),
	}
	for canonical, aliases := range byCanonical {
		r.canonicals = append(r.canonicals, canonical)
		r.aliasToCanonical[strings.ToLower(canonical)] = canonical
		r.aliasesByCanon[canonical] = append([]string{canonical}, aliases...)
		for _, a := range aliases {
			r.aliasToCanonical[strings.ToLower(a)] = canonical
		}
	}
	sort.Strings(r.canonicals)
	return r
}

// MatchEntity returns every canonical company name whose alias
// substring-matches query (§4.3 step 2: "if any alias is a substring
// of the query, add all of that canonical's aliases to targets"), so a
// cross-entity comparison query naming two companies boosts passages
// for both rather than arbitrarily picking one.
func (r *AliasRegistry) MatchEntity(query string) []string {
	if r == nil {
		return nil
	}
	lower := strings.ToLower(query)
	seen := make(map[string]bool)
	var matched []string
	for alias, canon := range r.aliasToCanonical {
		if alias == "" || seen[canon] {
			continue
		}
		if strings.Contains(lower, alias) {
			seen[canon] = true
			matched = append(matched, canon)
		}
	}
	sort.Strings(matched)
	return matched
}

// mentionsCanonical reports whether text contains the canonical name
// or any of its registered aliases.
func (r *AliasRegistry) mentionsCanonical(canonical, text string) bool {
	if r == nil {
		return false
	}
	lower := strings.ToLower(text)
	for _, name := range r.aliasesByCanon[canonical] {
		if name != "" && strings.Contains(lower, strings.ToLower(name)) {
			return true
		}
	}
	return false
}

// EntityAwareReranker is the highest-value differentiator named in
// §4.3: it boosts passages naming the query's target entity, drops
// unmatched factoid/table passages, and penalizes unmatched analytical
// text passages.
type EntityAwareReranker struct {
	aliases           *AliasRegistry
	boostMultiplier   float64
	penaltyMultiplier float64
}

// NewEntityAwareReranker constructs a reranker with the configured
// boost/penalty multipliers (RunConfig.BoostMultiplier/PenaltyMultiplier).
func NewEntityAwareReranker(aliases *AliasRegistry, boostMultiplier, penaltyMultiplier float64) *EntityAwareReranker {
	if boostMultiplier <= 0 {
		boostMultiplier = 1.3
	}
	if penaltyMultiplier <= 0 {
		penaltyMultiplier = 0.5
	}
	return &EntityAwareReranker{aliases: aliases, boostMultiplier: boostMultiplier, penaltyMultiplier: penaltyMultiplier}
}

// Rerank applies §4.3 steps 2-3 to passages retrieved for query, then
// resorts by score descending. A query that names no known entity
// skips reranking: passages are returned unchanged.
func (r *EntityAwareReranker) Rerank(query string, passages []domain.Passage) []domain.Passage {
	intent := ClassifyIntent(query)
	targets := r.aliases.MatchEntity(query)
	if len(targets) == 0 {
		return passages
	}

	out := make([]domain.Passage, 0, len(passages))
	for _, p := range passages {
		matched := false
		for _, target := range targets {
			if r.aliases.mentionsCanonical(target, p.Provenance.CompanyName+" "+p.SourceTag+" "+p.Title) {
				matched = true
				break
			}
		}
		isTable := p.Provenance.ChunkType == domain.ChunkTypeTable

		switch {
		case matched:
			p.Score *= r.boostMultiplier
		case !matched && intent == IntentFactoid:
			continue // drop
		case !matched && intent == IntentAnalytical && isTable:
			continue // drop
		case !matched && intent == IntentAnalytical:
			p.Score *= r.penaltyMultiplier
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
