package websearch

import (
	"context"
	"strings"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
)

// Exa has no depth knob; advanced depth asks for full page text instead of highlights only.
type Exa struct {
	transport
	apiKey string
}

func NewExa(options Options) *Exa {
	return &Exa{
		transport: newTransport(ProviderExa, "https://api.exa.ai", options),
		apiKey:    options.APIKey,
	}
}

type exaContents struct {
	Highlights bool `json:"highlights"`
	Text       bool `json:"text"`
}

type exaRequest struct {
	Query          string      `json:"query"`
	NumResults     int         `json:"numResults"`
	IncludeDomains []string    `json:"includeDomains,omitempty"`
	ExcludeDomains []string    `json:"excludeDomains,omitempty"`
	Contents       exaContents `json:"contents"`
}

type exaResponse struct {
	Results []struct {
		Title         *string  `json:"title"`
		URL           string   `json:"url"`
		PublishedDate string   `json:"publishedDate"`
		Text          string   `json:"text"`
		Highlights    []string `json:"highlights"`
	} `json:"results"`
}

func (e *Exa) Search(ctx context.Context, req domain.WebSearchRequest) (*domain.WebSearchResponse, error) {
	req, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	payload := exaRequest{
		Query:          req.Query,
		NumResults:     req.MaxResults,
		IncludeDomains: req.IncludeDomains,
		ExcludeDomains: req.ExcludeDomains,
		Contents: exaContents{
			Highlights: true,
			Text:       req.Depth == domain.DepthAdvanced,
		},
	}
	var resp exaResponse
	if err := e.post(ctx, "/search", map[string]string{"x-api-key": e.apiKey}, payload, &resp); err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		title := "Untitled"
		if r.Title != nil && strings.TrimSpace(*r.Title) != "" {
			title = *r.Title
		}
		content := strings.Join(r.Highlights, " ")
		if strings.TrimSpace(content) == "" {
			content = r.Text
		}
		results = append(results, domain.SearchResult{
			Title:         title,
			URL:           r.URL,
			Content:       content,
			PublishedDate: r.PublishedDate,
		})
	}
	return finalize(req.Query, results, req.MaxResults), nil
}
