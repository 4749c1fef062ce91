package websearch

import (
	"context"
	"strings"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
)

// Serper proxies Google results. Domain filters are expressed as site: operators.
type Serper struct {
	transport
	apiKey string
}

func NewSerper(options Options) *Serper {
	return &Serper{
		transport: newTransport(ProviderSerper, "https://google.serper.dev", options),
		apiKey:    options.APIKey,
	}
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"organic"`
}

func (s *Serper) Search(ctx context.Context, req domain.WebSearchRequest) (*domain.WebSearchResponse, error) {
	req, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	payload := serperRequest{
		Q:   serperQuery(req.Query, req.IncludeDomains, req.ExcludeDomains),
		Num: req.MaxResults,
	}
	var resp serperResponse
	if err := s.post(ctx, "/search", map[string]string{"X-API-KEY": s.apiKey}, payload, &resp); err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, 0, len(resp.Organic))
	for _, r := range resp.Organic {
		results = append(results, domain.SearchResult{
			Title:         r.Title,
			URL:           r.Link,
			Content:       r.Snippet,
			PublishedDate: r.Date,
		})
	}
	return finalize(req.Query, results, req.MaxResults), nil
}

func serperQuery(query string, include, exclude []string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(query))
	var sites []string
	for _, d := range include {
		if d = strings.TrimSpace(d); d != "" {
			sites = append(sites, "site:"+d)
		}
	}
	if len(sites) == 1 {
		b.WriteString(" " + sites[0])
	} else if len(sites) > 1 {
		b.WriteString(" (" + strings.Join(sites, " OR ") + ")")
	}
	for _, d := range exclude {
		if d = strings.TrimSpace(d); d != "" {
			b.WriteString(" -site:" + d)
		}
	}
	return b.String()
}
