package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
	"github.com/kirillkom/hybrid-legal-search/internal/core/fanout"
	"github.com/kirillkom/hybrid-legal-search/internal/core/ports"
)

const (
	maxMultiDatasets       = 3
	maxMergedSources       = 5
	maxFormattedReferences = 3
	unknownDatasetName     = "unknown"
)

type KnowledgeAgentOptions struct {
	// DefaultDatasetID, when set, bypasses dataset selection entirely.
	DefaultDatasetID string
	// DefaultStrategy applies when a request does not name one.
	DefaultStrategy domain.DatasetStrategy
}

// KnowledgeAgent answers questions from the knowledge base: it picks the
// dataset(s), asks, scores confidence and merges multi-dataset answers.
type KnowledgeAgent struct {
	kb       ports.KnowledgeBase
	datasets ports.DatasetLister
	selector *DatasetSelector
	opts     KnowledgeAgentOptions
}

// NewKnowledgeAgent uses datasets for listing when non-nil (e.g. a cache in
// front of kb) and kb otherwise.
func NewKnowledgeAgent(kb ports.KnowledgeBase, datasets ports.DatasetLister, selector *DatasetSelector, opts KnowledgeAgentOptions) *KnowledgeAgent {
	if datasets == nil {
		datasets = kb
	}
	if selector == nil {
		selector = NewDatasetSelector(nil)
	}
	opts.DefaultDatasetID = strings.TrimSpace(opts.DefaultDatasetID)
	return &KnowledgeAgent{kb: kb, datasets: datasets, selector: selector, opts: opts}
}

func (a *KnowledgeAgent) AvailableDatasets(ctx context.Context) ([]domain.Dataset, error) {
	datasets, err := a.datasets.ListDatasets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return datasets, nil
}

// SearchWithStrategy dispatches to Search or MultiDatasetSearch.
func (a *KnowledgeAgent) SearchWithStrategy(ctx context.Context, question string, opts domain.KnowledgeOptions) (*domain.KnowledgeSearchResult, error) {
	if opts.SearchStrategy == "" {
		opts.SearchStrategy = a.opts.DefaultStrategy
	}
	if opts.SearchStrategy == domain.DatasetStrategyMulti {
		return a.MultiDatasetSearch(ctx, question, opts)
	}
	return a.Search(ctx, question, opts)
}

// Search asks one dataset: the caller's, the configured default, or the best match.
func (a *KnowledgeAgent) Search(ctx context.Context, question string, opts domain.KnowledgeOptions) (*domain.KnowledgeSearchResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidQuery, "knowledge search", errors.New("question is empty"))
	}

	datasetID := strings.TrimSpace(opts.DatasetID)
	if datasetID == "" {
		datasetID = a.opts.DefaultDatasetID
	}

	var datasets []domain.Dataset
	if datasetID == "" {
		list, err := a.AvailableDatasets(ctx)
		if err != nil {
			return nil, domain.WrapError(domain.ErrKnowledgeSearchFailed, "knowledge search", err)
		}
		selected, err := a.selector.Select(question, list)
		if err != nil {
			return nil, err
		}
		datasets = list
		datasetID = selected.ID
	}

	resp, err := a.ask(ctx, question, datasetID, opts)
	if err != nil {
		return nil, err
	}

	if datasets == nil {
		list, listErr := a.AvailableDatasets(ctx)
		if listErr != nil {
			slog.Warn("dataset_name_lookup_failed", "dataset_id", datasetID, "error", listErr)
		}
		datasets = list
	}
	return buildKnowledgeResult(resp, datasetName(datasets, datasetID)), nil
}

// MultiDatasetSearch asks the most relevant datasets concurrently and merges
// whatever succeeded. It fails only when every dataset fails.
func (a *KnowledgeAgent) MultiDatasetSearch(ctx context.Context, question string, opts domain.KnowledgeOptions) (*domain.KnowledgeSearchResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidQuery, "knowledge multi search", errors.New("question is empty"))
	}

	list, err := a.AvailableDatasets(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrKnowledgeSearchFailed, "knowledge multi search", err)
	}
	if len(list) == 0 {
		return nil, domain.WrapError(domain.ErrNoDatasets, "knowledge multi search", errors.New("dataset list is empty"))
	}

	ranked := a.selector.Rank(question, list, maxMultiDatasets)
	branches := make([]fanout.Branch[*domain.KnowledgeSearchResult], 0, len(ranked))
	for _, ds := range ranked {
		branches = append(branches, func(ctx context.Context) (*domain.KnowledgeSearchResult, error) {
			resp, err := a.ask(ctx, question, ds.ID, opts)
			if err != nil {
				return nil, err
			}
			return buildKnowledgeResult(resp, ds.Name), nil
		})
	}

	outcomes := fanout.SettleAll(ctx, branches...)
	results := make([]*domain.KnowledgeSearchResult, 0, len(outcomes))
	var errs []error
	for i, o := range outcomes {
		if !o.OK() {
			slog.Warn("dataset_search_failed", "dataset_id", ranked[i].ID, "dataset_name", ranked[i].Name, "error", o.Err)
			errs = append(errs, o.Err)
			continue
		}
		results = append(results, o.Value)
	}
	if len(results) == 0 {
		return nil, domain.WrapError(domain.ErrKnowledgeSearchFailed, "knowledge multi search", errors.Join(errs...))
	}
	return MergeKnowledgeResults(results), nil
}

// Chat answers the most recent user message of a conversation.
func (a *KnowledgeAgent) Chat(ctx context.Context, messages []domain.ChatMessage, opts domain.KnowledgeOptions) (*domain.KnowledgeSearchResult, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" && strings.TrimSpace(messages[i].Content) != "" {
			return a.SearchWithStrategy(ctx, messages[i].Content, opts)
		}
	}
	return nil, domain.WrapError(domain.ErrInvalidInput, "knowledge chat", errors.New("no user message found"))
}

// FormatAnswer renders the answer with up to three references and the dataset footer.
func (a *KnowledgeAgent) FormatAnswer(result *domain.KnowledgeSearchResult) string {
	if result == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(result.Answer)
	if len(result.Sources) > 0 {
		b.WriteString("\n\n**References:**\n")
		for i, src := range result.Sources {
			if i == maxFormattedReferences {
				break
			}
			name := src.DocumentName
			if name == "" {
				name = "Unknown document"
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, name)
		}
	}
	fmt.Fprintf(&b, "\n*Knowledge base: %s*", result.DatasetName)
	return b.String()
}

func (a *KnowledgeAgent) ask(ctx context.Context, question, datasetID string, opts domain.KnowledgeOptions) (*domain.AskResponse, error) {
	resp, err := a.kb.Ask(ctx, domain.AskRequest{
		Question:  question,
		DatasetID: datasetID,
		SessionID: opts.SessionID,
		UserID:    opts.UserID,
		Quote:     opts.QuoteOrDefault(),
		Stream:    opts.Stream,
	})
	if err != nil {
		if domain.IsKind(err, domain.ErrKnowledgeSearchFailed) || domain.IsKind(err, domain.ErrInvalidQuery) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrKnowledgeSearchFailed, "knowledge ask", err)
	}
	return resp, nil
}

func buildKnowledgeResult(resp *domain.AskResponse, name string) *domain.KnowledgeSearchResult {
	sources := make([]domain.KnowledgeSource, 0, len(resp.Sources))
	for _, src := range resp.Sources {
		if src.DatasetName == "" {
			src.DatasetName = name
		}
		sources = append(sources, src)
	}
	return &domain.KnowledgeSearchResult{
		Answer:      resp.Answer,
		Sources:     sources,
		SessionID:   resp.SessionID,
		DatasetName: name,
		Confidence:  SourceConfidence(sources),
	}
}

func datasetName(datasets []domain.Dataset, id string) string {
	for _, ds := range datasets {
		if ds.ID == id {
			return ds.Name
		}
	}
	return unknownDatasetName
}

// SourceConfidence scores one dataset answer from its evidence, within [0.1, 0.9].
func SourceConfidence(sources []domain.KnowledgeSource) float64 {
	if len(sources) == 0 {
		return 0.1
	}
	sum := 0.0
	for _, src := range sources {
		sum += src.SimilarityOr(domain.DefaultSimilarity)
	}
	avg := sum / float64(len(sources))
	confidence := math.Min(0.9, float64(len(sources))*0.1+avg*0.6)
	return math.Max(0.1, confidence)
}

// MergeKnowledgeResults combines per-dataset answers. The most confident one
// supplies the answer; sources are de-duplicated, ranked and capped.
func MergeKnowledgeResults(results []*domain.KnowledgeSearchResult) *domain.KnowledgeSearchResult {
	if len(results) == 0 {
		return nil
	}

	primary := results[0]
	for _, r := range results[1:] {
		if r.Confidence > primary.Confidence {
			primary = r
		}
	}

	type sourceKey struct{ doc, content string }
	seen := make(map[sourceKey]struct{})
	sources := make([]domain.KnowledgeSource, 0)
	names := make([]string, 0, len(results))
	seenNames := make(map[string]struct{})
	total := 0.0
	for _, r := range results {
		total += r.Confidence
		if _, ok := seenNames[r.DatasetName]; !ok {
			seenNames[r.DatasetName] = struct{}{}
			names = append(names, r.DatasetName)
		}
		for _, src := range r.Sources {
			key := sourceKey{src.DocumentName, src.Content}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			sources = append(sources, src)
		}
	}

	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].SimilarityOr(0) > sources[j].SimilarityOr(0)
	})
	if len(sources) > maxMergedSources {
		sources = sources[:maxMergedSources]
	}

	avg := total / float64(len(results))
	bonus := math.Min(float64(len(results))*0.1, 0.2)
	return &domain.KnowledgeSearchResult{
		Answer:      primary.Answer,
		Sources:     sources,
		SessionID:   primary.SessionID,
		DatasetName: strings.Join(names, ", "),
		Confidence:  math.Min(0.95, avg+bonus),
	}
}
