package classify

import (
	"strings"

	"github.com/coolbeans/safetylex/pkg/corpus"
)

// Classification is the outcome of classifying one document.
type Classification struct {
	Category    corpus.Category `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
}

// Classifier applies a jurisdiction's rules to documents.
type Classifier struct {
	rules *Rules
}

// NewClassifier creates a classifier over an immutable rule set.
func NewClassifier(rules *Rules) *Classifier {
	return &Classifier{rules: rules}
}

// Rules returns the rule set the classifier was built with.
func (c *Classifier) Rules() *Rules {
	return c.rules
}

// Classify decides category and sub-series from the abbreviation and, if
// configured, abbreviation plus title. First matching sub-series wins.
func (c *Classifier) Classify(document *corpus.LegalDocument) Classification {
	candidates := c.candidates(document)

	subcategory := c.firstSubcategory(candidates)
	if subcategory != "" || c.isMember(candidates) {
		return Classification{
			Category:    corpus.CategorySupplementary,
			Subcategory: subcategory,
		}
	}

	return Classification{Category: corpus.CategoryPrimary}
}

func (c *Classifier) candidates(document *corpus.LegalDocument) []string {
	abbreviation := strings.TrimSpace(document.Abbreviation)
	title := strings.TrimSpace(document.Title)

	var candidates []string
	if abbreviation != "" {
		candidates = append(candidates, abbreviation)
	}
	if c.rules.matchTitle && title != "" {
		candidates = append(candidates, strings.TrimSpace(abbreviation+" "+title))
	}
	return candidates
}

func (c *Classifier) isMember(candidates []string) bool {
	for _, candidate := range candidates {
		for _, pattern := range c.rules.membership {
			if pattern.MatchString(candidate) {
				return true
			}
		}
	}
	return false
}

// firstSubcategory scans rules top to bottom; for each rule every candidate is tried
// before moving on, so table order decides between ambiguous series.
func (c *Classifier) firstSubcategory(candidates []string) string {
	for _, rule := range c.rules.subcategories {
		for _, candidate := range candidates {
			if rule.compiled.MatchString(candidate) {
				return rule.Label
			}
		}
	}
	return ""
}
