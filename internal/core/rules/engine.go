package rules

import "math"

// CategoryMatch is one category that fired on a query.
type CategoryMatch struct {
	Category Category
	Priority int
	Keywords []string
}

// MatchCategories evaluates every category against text in priority order.
// Only categories with at least one hit are returned.
func (rs *RuleSet) MatchCategories(text string) []CategoryMatch {
	normalized := Normalize(text)
	var out []CategoryMatch
	for i, c := range rs.Categories {
		hits := MatchKeywords(normalized, c.Keywords)
		if len(hits) == 0 {
			continue
		}
		out = append(out, CategoryMatch{Category: c, Priority: i, Keywords: hits})
	}
	return out
}

// SubdomainScore sums the weight of every subdomain whose keywords appear in
// the question and whose dataset patterns appear in the dataset name or description.
func (rs *RuleSet) SubdomainScore(question, datasetName, datasetDescription string) float64 {
	q := Normalize(question)
	name := Normalize(datasetName)
	desc := Normalize(datasetDescription)

	score := 0.0
	for _, s := range rs.Subdomains {
		if !ContainsAny(q, s.Keywords) {
			continue
		}
		if ContainsAny(name, s.DatasetPatterns) || ContainsAny(desc, s.DatasetPatterns) {
			score += s.Weight
		}
	}
	return score
}

// RelevanceScore blends subdomain hits, generic relevance terms and a bounded
// document-count bonus. It ranks datasets for multi-dataset search.
func (rs *RuleSet) RelevanceScore(question, datasetName, datasetDescription string, documentCount int) float64 {
	score := rs.SubdomainScore(question, datasetName, datasetDescription)

	q := Normalize(question)
	name := Normalize(datasetName)
	desc := Normalize(datasetDescription)
	for _, term := range rs.Relevance.Terms {
		t := Normalize(term)
		if Contains(q, t) && (Contains(name, t) || Contains(desc, t)) {
			score += rs.Relevance.Weight
		}
	}

	if documentCount > 0 {
		score += math.Min(float64(documentCount)/rs.Relevance.DocumentBonusDivisor, rs.Relevance.DocumentBonusCap)
	}
	return score
}
