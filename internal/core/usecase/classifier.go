package usecase

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
	"github.com/kirillkom/hybrid-legal-search/internal/core/rules"
)

// StrategyClassifier maps a query to a retrieval strategy and a complexity
// level. It performs no I/O and is safe for concurrent use.
type StrategyClassifier struct {
	rules *rules.RuleSet
}

func NewStrategyClassifier(rs *rules.RuleSet) *StrategyClassifier {
	if rs == nil {
		rs = rules.Default()
	}
	return &StrategyClassifier{rules: rs}
}

// Classify counts keyword hits per category. The categories with the highest
// count decide: if they agree on a strategy, the earliest of them (by table
// priority) is reported; if they disagree, the query is treated as hybrid.
func (c *StrategyClassifier) Classify(query string) (domain.QueryAnalysis, error) {
	if strings.TrimSpace(query) == "" {
		return domain.QueryAnalysis{}, domain.WrapError(domain.ErrInvalidQuery, "classify", errors.New("query is empty"))
	}

	analysis := domain.QueryAnalysis{
		Strategy:          domain.StrategyHybrid,
		Reasoning:         []string{},
		MatchedKeywords:   []string{},
		ComplexityFactors: []string{},
	}

	matches := c.rules.MatchCategories(query)
	for _, m := range matches {
		analysis.MatchedKeywords = append(analysis.MatchedKeywords, m.Keywords...)
		analysis.Reasoning = append(analysis.Reasoning,
			fmt.Sprintf("%s keywords matched: %s", m.Category.Name, strings.Join(m.Keywords, ", ")))
	}

	switch leaders := dominantCategories(matches); {
	case len(leaders) == 0:
		analysis.Reasoning = append(analysis.Reasoning, "no category keywords matched, defaulting to hybrid")
	case sameStrategy(leaders):
		winner := leaders[0].Category
		analysis.Strategy = winner.Strategy
		analysis.Category = winner.Name
		reason := fmt.Sprintf("%s selected %s", winner.Name, winner.Strategy)
		if winner.Reason != "" {
			reason += ": " + winner.Reason
		}
		analysis.Reasoning = append(analysis.Reasoning, reason)
	default:
		names := make([]string, 0, len(leaders))
		for _, l := range leaders {
			names = append(names, l.Category.Name)
		}
		analysis.Reasoning = append(analysis.Reasoning,
			fmt.Sprintf("categories %s match equally with different strategies, using hybrid", strings.Join(names, ", ")))
	}

	score, factors := c.complexityScore(query)
	analysis.ComplexityScore = score
	analysis.ComplexityFactors = append(analysis.ComplexityFactors, factors...)
	analysis.Complexity = complexityLevel(score)
	return analysis, nil
}

// dominantCategories keeps the matches with the highest hit count, in priority order.
func dominantCategories(matches []rules.CategoryMatch) []rules.CategoryMatch {
	best := 0
	for _, m := range matches {
		if len(m.Keywords) > best {
			best = len(m.Keywords)
		}
	}
	var out []rules.CategoryMatch
	for _, m := range matches {
		if best > 0 && len(m.Keywords) == best {
			out = append(out, m)
		}
	}
	return out
}

func sameStrategy(matches []rules.CategoryMatch) bool {
	for _, m := range matches[1:] {
		if m.Category.Strategy != matches[0].Category.Strategy {
			return false
		}
	}
	return true
}

func (c *StrategyClassifier) complexityScore(query string) (int, []string) {
	cfg := c.rules.Complexity
	normalized := rules.Normalize(query)
	score := 0
	var factors []string

	length := utf8.RuneCountInString(strings.TrimSpace(query))
	switch {
	case length > cfg.LongQueryChars:
		score += 2
		factors = append(factors, fmt.Sprintf("long query (%d chars)", length))
	case length > cfg.MediumQueryChars:
		score++
		factors = append(factors, fmt.Sprintf("medium-length query (%d chars)", length))
	}

	if questions := strings.Count(query, "?") + strings.Count(query, "？"); questions > 1 {
		score += 2
		factors = append(factors, fmt.Sprintf("multiple questions (%d)", questions))
	}
	if hits := rules.MatchKeywords(normalized, cfg.Conjunctions); len(hits) > 0 {
		score++
		factors = append(factors, "multi-clause structure: "+strings.Join(hits, ", "))
	}
	if hits := rules.MatchKeywords(normalized, cfg.AnalyticalTerms); len(hits) > 0 {
		score++
		factors = append(factors, "analytical request: "+strings.Join(hits, ", "))
	}
	return score, factors
}

func complexityLevel(score int) domain.Complexity {
	switch {
	case score >= 4:
		return domain.ComplexityComplex
	case score >= 2:
		return domain.ComplexityMedium
	default:
		return domain.ComplexitySimple
	}
}

const (
	complexMinWebResults = 15
	simpleMaxWebResults  = 8
)

// AdjustForComplexity scales web search breadth. It never changes the strategy.
func AdjustForComplexity(opts domain.SearchOptions, complexity domain.Complexity) domain.SearchOptions {
	out := opts
	switch complexity {
	case domain.ComplexityComplex:
		if out.WebMaxResults < complexMinWebResults {
			out.WebMaxResults = complexMinWebResults
		}
		out.WebSearchDepth = domain.DepthAdvanced
		combine := true
		out.CombineResults = &combine
	case domain.ComplexitySimple:
		if out.WebMaxResults <= 0 {
			out.WebMaxResults = domain.DefaultWebMaxResults
		}
		if out.WebMaxResults > simpleMaxWebResults {
			out.WebMaxResults = simpleMaxWebResults
		}
		if !out.WebSearchDepth.Valid() {
			out.WebSearchDepth = domain.DepthBasic
		}
	default:
		if out.WebMaxResults <= 0 {
			out.WebMaxResults = domain.DefaultWebMaxResults
		}
		if !out.WebSearchDepth.Valid() {
			out.WebSearchDepth = domain.DefaultWebDepth
		}
	}
	return out
}
