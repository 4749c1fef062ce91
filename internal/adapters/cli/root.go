// Package cli is the hybridctl command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
	"github.com/kirillkom/hybrid-legal-search/internal/core/ports"
)

// Services are built per command invocation, after flag parsing.
type Services struct {
	Search    ports.HybridSearchService
	Knowledge ports.KnowledgeService
}

type ServiceFactory func(ctx context.Context) (Services, func(), error)

type searchFlags struct {
	mode       string
	depth      string
	maxResults int
	datasetID  string
	include    []string
	exclude    []string
	noCombine  bool
	webFirst   bool
	asJSON     bool
}

func NewRootCommand(factory ServiceFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "hybridctl",
		Short:         "Query the hybrid legal search orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newSearchCommand(factory),
		newAnalyzeCommand(factory),
		newDatasetsCommand(factory),
		newHealthCommand(factory),
	)
	return root
}

func newSearchCommand(factory ServiceFactory) *cobra.Command {
	flags := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run an intelligent or hybrid search",
		Long: `Run a search against the web and the knowledge base.

Examples:
  hybridctl search "民法第184條關於侵權行為的規定是什么？"
  hybridctl search --mode hybrid --depth basic -n 5 "AI 法規"
  hybridctl search --json --dataset ds-1 "契約成立"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, factory, flags, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&flags.mode, "mode", "intelligent", "search mode: intelligent or hybrid")
	cmd.Flags().StringVar(&flags.depth, "depth", "", "web search depth: basic or advanced")
	cmd.Flags().IntVarP(&flags.maxResults, "max-results", "n", 0, "maximum number of web results")
	cmd.Flags().StringVar(&flags.datasetID, "dataset", "", "knowledge-base dataset id")
	cmd.Flags().StringSliceVar(&flags.include, "include-domain", nil, "restrict web results to these domains")
	cmd.Flags().StringSliceVar(&flags.exclude, "exclude-domain", nil, "drop web results from these domains")
	cmd.Flags().BoolVar(&flags.noCombine, "no-combine", false, "skip combined answer synthesis")
	cmd.Flags().BoolVar(&flags.webFirst, "web-first", false, "lead the combined answer with web results")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "output the full result as JSON")
	return cmd
}

func runSearch(cmd *cobra.Command, factory ServiceFactory, flags *searchFlags, query string) error {
	if flags.mode != "intelligent" && flags.mode != "hybrid" {
		return fmt.Errorf("unknown mode %q (want intelligent or hybrid)", flags.mode)
	}
	services, closeFn, err := factory(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	opts := domain.SearchOptions{
		WebSearchDepth: domain.SearchDepth(flags.depth),
		WebMaxResults:  flags.maxResults,
		IncludeDomains: flags.include,
		ExcludeDomains: flags.exclude,
		Knowledge:      domain.KnowledgeOptions{DatasetID: flags.datasetID},
	}
	if flags.noCombine {
		combine := false
		opts.CombineResults = &combine
	}
	if flags.webFirst {
		prioritize := false
		opts.PrioritizeKnowledge = &prioritize
	}

	var result *domain.HybridSearchResult
	if flags.mode == "hybrid" {
		result, err = services.Search.HybridSearch(cmd.Context(), query, opts)
	} else {
		result, err = services.Search.IntelligentSearch(cmd.Context(), query, opts)
	}
	if err != nil {
		return err
	}

	if flags.asJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	printResult(cmd.OutOrStdout(), result)
	return nil
}

func printResult(w io.Writer, result *domain.HybridSearchResult) {
	if result.Analysis != nil {
		fmt.Fprintf(w, "Strategy: %s (complexity %s)\n", result.Analysis.Strategy, result.Analysis.Complexity)
	}
	modes := make([]string, 0, len(result.ModesUsed))
	for _, m := range result.ModesUsed {
		modes = append(modes, string(m))
	}
	fmt.Fprintf(w, "Modes used: %s\n\n", strings.Join(modes, ", "))
	if result.CombinedAnswer != "" {
		fmt.Fprintln(w, result.CombinedAnswer)
	} else if result.KnowledgeResults != nil {
		fmt.Fprintln(w, result.KnowledgeResults.Answer)
	}
	if len(result.Sources) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for i, src := range result.Sources {
		label := src.Title
		if src.Type == domain.SourceTypeKnowledge {
			label = src.DocumentName
		}
		location := src.URL
		if location == "" {
			location = src.DatasetName
		}
		fmt.Fprintf(w, "  %d. [%s] %s  %s\n", i+1, src.Type, label, location)
	}
}

func newAnalyzeCommand(factory ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <query>",
		Short: "Show the strategy and complexity chosen for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, closeFn, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			analysis, err := services.Search.Analyze(strings.Join(args, " "))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), analysis)
		},
	}
}

func newDatasetsCommand(factory ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List knowledge-base datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, closeFn, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			datasets, err := services.Knowledge.AvailableDatasets(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(datasets) == 0 {
				fmt.Fprintln(w, "No datasets found.")
				return nil
			}
			for _, ds := range datasets {
				fmt.Fprintf(w, "%s\t%s\t%d docs\n", ds.ID, ds.Name, ds.DocumentCount)
			}
			return nil
		},
	}
}

func newHealthCommand(factory ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the knowledge base and the web search provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, closeFn, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			status := services.Search.HealthCheck(cmd.Context())
			if err := writeJSON(cmd.OutOrStdout(), status); err != nil {
				return err
			}
			if !status.RAGFlow || !status.WebSearch {
				return fmt.Errorf("one or more dependencies are unhealthy")
			}
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
