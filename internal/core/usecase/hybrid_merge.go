package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
)

const (
	maxWebSources          = 5
	webSupplementResults   = 3
	webLeadSummaryResults  = 5
	webSummarySnippetRunes = 200
)

// buildHybridResult assembles the final artifact from whatever each branch
// produced. A nil argument means the branch failed or was not run.
func buildHybridResult(web *domain.WebSearchResponse, knowledge *domain.KnowledgeSearchResult, prioritizeKnowledge, combine bool) *domain.HybridSearchResult {
	webResults := []domain.SearchResult{}
	if web != nil && web.Results != nil {
		webResults = web.Results
	}

	result := &domain.HybridSearchResult{
		WebResults:       webResults,
		KnowledgeResults: knowledge,
		Sources:          MergeSources(webResults, knowledge),
		ModesUsed:        ModesUsed(webResults, knowledge),
	}
	if combine {
		result.CombinedAnswer = CombineAnswer(webResults, knowledge, prioritizeKnowledge)
	}
	return result
}

// ModesUsed lists the sources that returned something usable, web first.
func ModesUsed(webResults []domain.SearchResult, knowledge *domain.KnowledgeSearchResult) []domain.SearchMode {
	modes := []domain.SearchMode{}
	if len(webResults) > 0 {
		modes = append(modes, domain.ModeWeb)
	}
	if knowledge.Usable() {
		modes = append(modes, domain.ModeKnowledge)
	}
	return modes
}

// MergeSources lists knowledge sources first, then up to five web results.
// The order is for presentation only.
func MergeSources(webResults []domain.SearchResult, knowledge *domain.KnowledgeSearchResult) []domain.MergedSource {
	sources := []domain.MergedSource{}
	if knowledge != nil {
		for _, src := range knowledge.Sources {
			name := src.DatasetName
			if name == "" {
				name = knowledge.DatasetName
			}
			sources = append(sources, domain.MergedSource{
				Type:         domain.SourceTypeKnowledge,
				Content:      src.Content,
				DocumentName: src.DocumentName,
				ChunkID:      src.ChunkID,
				Similarity:   src.Similarity,
				DatasetName:  name,
			})
		}
	}
	for i, r := range webResults {
		if i == maxWebSources {
			break
		}
		sources = append(sources, domain.MergedSource{
			Type:          domain.SourceTypeWeb,
			Title:         r.Title,
			URL:           r.URL,
			Content:       r.Content,
			PublishedDate: r.PublishedDate,
		})
	}
	return sources
}

// CombineAnswer synthesizes one answer. With knowledge prioritized and
// available, the knowledge answer leads and the top web results follow;
// otherwise a web summary leads and the knowledge answer is appended.
func CombineAnswer(webResults []domain.SearchResult, knowledge *domain.KnowledgeSearchResult, prioritizeKnowledge bool) string {
	hasKnowledgeAnswer := knowledge != nil && strings.TrimSpace(knowledge.Answer) != ""

	if prioritizeKnowledge && hasKnowledgeAnswer {
		answer := knowledge.Answer
		if summary := SummarizeWebResults(head(webResults, webSupplementResults)); summary != "" {
			answer += "\n\n**Latest web information:**\n" + summary
		}
		return answer
	}

	if len(webResults) > 0 {
		answer := SummarizeWebResults(head(webResults, webLeadSummaryResults))
		if hasKnowledgeAnswer {
			answer += "\n\n**Knowledge-base insight:**\n" + knowledge.Answer
		}
		return answer
	}

	if hasKnowledgeAnswer {
		return knowledge.Answer
	}
	return ""
}

// SummarizeWebResults renders a numbered digest with 200-character snippets.
func SummarizeWebResults(results []domain.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, 0, len(results))
	for i, r := range results {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = "Untitled"
		}
		content := "No summary available"
		if strings.TrimSpace(r.Content) != "" {
			content = truncateRunes(r.Content, webSummarySnippetRunes) + "..."
		}
		parts = append(parts, fmt.Sprintf("%d. **%s**\n   %s\n   Source: %s", i+1, title, content, r.URL))
	}
	return strings.Join(parts, "\n\n")
}

func head(results []domain.SearchResult, n int) []domain.SearchResult {
	if len(results) > n {
		return results[:n]
	}
	return results
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
