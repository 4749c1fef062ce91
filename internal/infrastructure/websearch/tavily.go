package websearch

import (
	"context"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
)

type Tavily struct {
	transport
	apiKey string
}

func NewTavily(options Options) *Tavily {
	return &Tavily{
		transport: newTransport(ProviderTavily, "https://api.tavily.com", options),
		apiKey:    options.APIKey,
	}
}

type tavilyRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
}

type tavilyResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		PublishedDate string  `json:"published_date"`
		Score         float64 `json:"score"`
	} `json:"results"`
}

func (t *Tavily) Search(ctx context.Context, req domain.WebSearchRequest) (*domain.WebSearchResponse, error) {
	req, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	payload := tavilyRequest{
		APIKey:         t.apiKey,
		Query:          req.Query,
		SearchDepth:    string(req.Depth),
		MaxResults:     req.MaxResults,
		IncludeDomains: req.IncludeDomains,
		ExcludeDomains: req.ExcludeDomains,
	}
	var resp tavilyResponse
	if err := t.post(ctx, "/search", nil, payload, &resp); err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, domain.SearchResult{
			Title:         r.Title,
			URL:           r.URL,
			Content:       r.Content,
			PublishedDate: r.PublishedDate,
		})
	}
	return finalize(req.Query, results, req.MaxResults), nil
}
