// Package mcpadapter exposes the search use cases as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
	"github.com/kirillkom/hybrid-legal-search/internal/core/ports"
)

const (
	toolHybridSearch      = "hybrid_search"
	toolIntelligentSearch = "intelligent_search"
	toolAnalyzeQuery      = "analyze_query"
	toolListDatasets      = "list_datasets"
)

type Server struct {
	search    ports.HybridSearchService
	knowledge ports.KnowledgeService
}

func New(search ports.HybridSearchService, knowledge ports.KnowledgeService) *Server {
	return &Server{search: search, knowledge: knowledge}
}

// MCPServer builds the tool server; callers choose the transport.
func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer("hybrid-legal-search", version, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool(toolIntelligentSearch,
		mcp.WithDescription("Classify the question, then search the knowledge base and/or the web and return a combined answer."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The user's question.")),
		mcp.WithString("dataset_id", mcp.Description("Knowledge-base dataset to use instead of automatic selection.")),
	), s.handleIntelligentSearch)

	srv.AddTool(mcp.NewTool(toolHybridSearch,
		mcp.WithDescription("Query the web and the knowledge base concurrently and merge the results."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The user's question.")),
		mcp.WithString("web_search_depth", mcp.Enum("basic", "advanced"), mcp.Description("Web search depth.")),
		mcp.WithNumber("web_max_results", mcp.Description("Maximum number of web results.")),
		mcp.WithBoolean("prioritize_knowledge", mcp.Description("Lead the combined answer with the knowledge-base answer.")),
		mcp.WithString("dataset_id", mcp.Description("Knowledge-base dataset to use instead of automatic selection.")),
	), s.handleHybridSearch)

	srv.AddTool(mcp.NewTool(toolAnalyzeQuery,
		mcp.WithDescription("Return the search strategy and complexity chosen for a question without searching."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The user's question.")),
	), s.handleAnalyze)

	srv.AddTool(mcp.NewTool(toolListDatasets,
		mcp.WithDescription("List the knowledge-base datasets."),
	), s.handleListDatasets)

	return srv
}

func (s *Server) handleIntelligentSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := domain.SearchOptions{Knowledge: domain.KnowledgeOptions{DatasetID: req.GetString("dataset_id", "")}}
	result, err := s.search.IntelligentSearch(ctx, query, opts)
	if err != nil {
		return toolError(toolIntelligentSearch, err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleHybridSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := domain.SearchOptions{
		WebSearchDepth: domain.SearchDepth(req.GetString("web_search_depth", "")),
		WebMaxResults:  req.GetInt("web_max_results", 0),
		Knowledge:      domain.KnowledgeOptions{DatasetID: req.GetString("dataset_id", "")},
	}
	if args := req.GetArguments(); args != nil {
		if _, ok := args["prioritize_knowledge"]; ok {
			prioritize := req.GetBool("prioritize_knowledge", true)
			opts.PrioritizeKnowledge = &prioritize
		}
	}
	result, err := s.search.HybridSearch(ctx, query, opts)
	if err != nil {
		return toolError(toolHybridSearch, err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleAnalyze(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	analysis, err := s.search.Analyze(query)
	if err != nil {
		return toolError(toolAnalyzeQuery, err), nil
	}
	return jsonResult(analysis)
}

func (s *Server) handleListDatasets(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	datasets, err := s.knowledge.AvailableDatasets(ctx)
	if err != nil {
		return toolError(toolListDatasets, err), nil
	}
	return jsonResult(datasets)
}

// toolError keeps provider details in the log and gives the model a short reason.
func toolError(tool string, err error) *mcp.CallToolResult {
	slog.Warn("mcp_tool_failed", "tool", tool, "error", err)
	switch {
	case domain.IsKind(err, domain.ErrInvalidQuery), domain.IsKind(err, domain.ErrInvalidInput):
		return mcp.NewToolResultError("invalid query: the question must not be empty")
	case domain.IsKind(err, domain.ErrAllSourcesFailed):
		return mcp.NewToolResultError("search failed, please retry")
	default:
		return mcp.NewToolResultError("tool failed, please retry")
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(payload)), nil
}
