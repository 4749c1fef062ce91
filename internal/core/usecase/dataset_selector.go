package usecase

import (
	"errors"
	"sort"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
	"github.com/kirillkom/hybrid-legal-search/internal/core/rules"
)

// DatasetSelector picks knowledge-base datasets for a question using the
// shared rule table. Both methods are pure functions of their inputs.
type DatasetSelector struct {
	rules *rules.RuleSet
}

func NewDatasetSelector(rs *rules.RuleSet) *DatasetSelector {
	if rs == nil {
		rs = rules.Default()
	}
	return &DatasetSelector{rules: rs}
}

// Select returns the dataset with the best subdomain score. The first dataset
// wins ties. When nothing scores, the dataset with most documents is used.
func (s *DatasetSelector) Select(question string, datasets []domain.Dataset) (domain.Dataset, error) {
	if len(datasets) == 0 {
		return domain.Dataset{}, domain.WrapError(domain.ErrNoDatasets, "select dataset", errors.New("dataset list is empty"))
	}

	best, bestScore := 0, 0.0
	for i, ds := range datasets {
		score := s.rules.SubdomainScore(question, ds.Name, ds.Description)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if bestScore > 0 {
		return datasets[best], nil
	}

	largest := 0
	for i, ds := range datasets {
		if ds.DocumentCount > datasets[largest].DocumentCount {
			largest = i
		}
	}
	return datasets[largest], nil
}

type scoredDataset struct {
	dataset domain.Dataset
	score   float64
}

// Rank orders datasets by relevance and returns at most limit of them.
// Equal scores keep their listing order.
func (s *DatasetSelector) Rank(question string, datasets []domain.Dataset, limit int) []domain.Dataset {
	scored := make([]scoredDataset, 0, len(datasets))
	for _, ds := range datasets {
		scored = append(scored, scoredDataset{
			dataset: ds,
			score:   s.rules.RelevanceScore(question, ds.Name, ds.Description, ds.DocumentCount),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if limit <= 0 || limit > len(scored) {
		limit = len(scored)
	}
	out := make([]domain.Dataset, 0, limit)
	for _, item := range scored[:limit] {
		out = append(out, item.dataset)
	}
	return out
}
