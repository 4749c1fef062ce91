// Package rules holds the declarative keyword tables shared by the strategy
// classifier and the dataset selector.
package rules

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

type Category struct {
	Name     string          `yaml:"name"`
	Strategy domain.Strategy `yaml:"strategy"`
	Reason   string          `yaml:"reason"`
	Keywords []string        `yaml:"keywords"`
}

type Subdomain struct {
	Name            string   `yaml:"name"`
	Weight          float64  `yaml:"weight"`
	Keywords        []string `yaml:"keywords"`
	DatasetPatterns []string `yaml:"dataset_patterns"`
}

type Relevance struct {
	Weight               float64  `yaml:"weight"`
	Terms                []string `yaml:"terms"`
	DocumentBonusDivisor float64  `yaml:"document_bonus_divisor"`
	DocumentBonusCap     float64  `yaml:"document_bonus_cap"`
}

type Complexity struct {
	LongQueryChars   int      `yaml:"long_query_chars"`
	MediumQueryChars int      `yaml:"medium_query_chars"`
	Conjunctions     []string `yaml:"conjunctions"`
	AnalyticalTerms  []string `yaml:"analytical_terms"`
}

// RuleSet is immutable after loading and safe for concurrent readers.
type RuleSet struct {
	Categories []Category  `yaml:"categories"`
	Subdomains []Subdomain `yaml:"subdomains"`
	Relevance  Relevance   `yaml:"relevance"`
	Complexity Complexity  `yaml:"complexity"`
}

// Default returns the rule set compiled into the binary.
func Default() *RuleSet {
	rs, err := Parse(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("rules: embedded default rules are invalid: %v", err))
	}
	return rs
}

// Load reads the rule set from path, or returns the embedded default when path is empty.
func Load(path string) (*RuleSet, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

func Read(r io.Reader) (*RuleSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decode rules yaml: %w", err)
	}
	rs.applyDefaults()
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

func (rs *RuleSet) applyDefaults() {
	if rs.Relevance.DocumentBonusDivisor <= 0 {
		rs.Relevance.DocumentBonusDivisor = 100
	}
	if rs.Relevance.DocumentBonusCap <= 0 {
		rs.Relevance.DocumentBonusCap = 3
	}
	if rs.Complexity.LongQueryChars <= 0 {
		rs.Complexity.LongQueryChars = 100
	}
	if rs.Complexity.MediumQueryChars <= 0 {
		rs.Complexity.MediumQueryChars = 50
	}
	for i := range rs.Subdomains {
		if rs.Subdomains[i].Weight <= 0 {
			rs.Subdomains[i].Weight = 10
		}
	}
}

func (rs *RuleSet) Validate() error {
	seen := make(map[string]struct{}, len(rs.Categories))
	for i, c := range rs.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("rules: category %d has no name", i)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("rules: duplicate category %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		if !c.Strategy.Valid() {
			return fmt.Errorf("rules: category %q has unknown strategy %q", c.Name, c.Strategy)
		}
		if len(c.Keywords) == 0 {
			return fmt.Errorf("rules: category %q has no keywords", c.Name)
		}
	}
	for _, s := range rs.Subdomains {
		if len(s.Keywords) == 0 || len(s.DatasetPatterns) == 0 {
			return fmt.Errorf("rules: subdomain %q needs keywords and dataset_patterns", s.Name)
		}
	}
	if rs.Complexity.MediumQueryChars > rs.Complexity.LongQueryChars {
		return fmt.Errorf("rules: medium_query_chars must not exceed long_query_chars")
	}
	return nil
}
