// Package classify decides whether a legal document is primary law or
// supplementary material, assigns the supplementary sub-series, and keeps the
// denormalized category fields and file names of a document consistent.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/coolbeans/safetylex/pkg/corpus"
)

// SubcategoryRule maps one named sub-series (ASR, DGUV, PGS, ...) to its pattern and metadata.
type SubcategoryRule struct {
	Label       string `yaml:"label" json:"label"`
	Pattern     string `yaml:"pattern" json:"pattern"`
	Title       string `yaml:"title" json:"title,omitempty"`
	TitleEN     string `yaml:"title_en" json:"title_en,omitempty"`
	Description string `yaml:"description" json:"description,omitempty"`

	compiled *regexp.Regexp
}

// Rules is the immutable, ordered rule set of one jurisdiction.
type Rules struct {
	jurisdiction  string
	matchTitle    bool
	membership    []*regexp.Regexp
	subcategories []SubcategoryRule
}

// RulesConfig is the uncompiled input to NewRules.
type RulesConfig struct {
	Jurisdiction string

	// MembershipPatterns mark a document as supplementary when any of them matches.
	MembershipPatterns []string

	// Subcategories are scanned top to bottom; the first match names the sub-series.
	// A matching subcategory also implies membership.
	Subcategories []SubcategoryRule

	// MatchTitle additionally tests "abbreviation title" when the abbreviation alone does not match.
	MatchTitle bool
}

// NewRules compiles all patterns case-insensitively.
func NewRules(config RulesConfig) (*Rules, error) {
	jurisdiction := corpus.NormalizeJurisdiction(config.Jurisdiction)
	if jurisdiction == "" {
		return nil, fmt.Errorf("rules jurisdiction is required")
	}

	rules := &Rules{
		jurisdiction: jurisdiction,
		matchTitle:   config.MatchTitle,
	}

	for i, pattern := range config.MembershipPatterns {
		compiled, err := compileInsensitive(pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling membership pattern %d %q: %w", i, pattern, err)
		}
		rules.membership = append(rules.membership, compiled)
	}

	seenLabels := make(map[string]bool)
	for i, subcategory := range config.Subcategories {
		if subcategory.Label == "" {
			return nil, fmt.Errorf("subcategory rule %d has no label", i)
		}
		if seenLabels[subcategory.Label] {
			return nil, fmt.Errorf("duplicate subcategory label %q", subcategory.Label)
		}
		seenLabels[subcategory.Label] = true

		compiled, err := compileInsensitive(subcategory.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling subcategory %s pattern %q: %w", subcategory.Label, subcategory.Pattern, err)
		}
		subcategory.compiled = compiled
		rules.subcategories = append(rules.subcategories, subcategory)
	}

	if len(rules.membership) == 0 && len(rules.subcategories) == 0 {
		return nil, fmt.Errorf("rules for %s define no patterns", jurisdiction)
	}

	return rules, nil
}

// Jurisdiction returns the jurisdiction the rules belong to.
func (r *Rules) Jurisdiction() string { return r.jurisdiction }

// Subcategories returns the ordered sub-series rules.
func (r *Rules) Subcategories() []SubcategoryRule {
	copied := make([]SubcategoryRule, len(r.subcategories))
	copy(copied, r.subcategories)
	return copied
}

// Subcategory looks up a sub-series rule by label.
func (r *Rules) Subcategory(label string) (SubcategoryRule, bool) {
	for _, subcategory := range r.subcategories {
		if subcategory.Label == label {
			return subcategory, true
		}
	}
	return SubcategoryRule{}, false
}

func compileInsensitive(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	return regexp.Compile("(?i)" + pattern)
}
