// Package ruleset loads the per-jurisdiction rule tables (document
// classification patterns and official chapter tables) from YAML and serves
// them as immutable snapshots.
package ruleset

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coolbeans/safetylex/pkg/classify"
	"github.com/coolbeans/safetylex/pkg/corpus"
	"github.com/coolbeans/safetylex/pkg/restructure"
)

// File is the on-disk schema of one jurisdiction's rules.
type File struct {
	Jurisdiction  string                     `yaml:"jurisdiction"`
	MatchTitle    bool                       `yaml:"match_title"`
	Membership    []string                   `yaml:"membership"`
	Subcategories []classify.SubcategoryRule `yaml:"subcategories"`
	Chapters      []ChapterTableSpec         `yaml:"chapters"`
}

// ChapterTableSpec is the chapter table of one law.
type ChapterTableSpec struct {
	Abbreviation string                    `yaml:"abbreviation"`
	Rules        []restructure.ChapterRule `yaml:"rules"`
}

// Rules is the compiled, immutable form of a File.
type Rules struct {
	Jurisdiction string
	Source       string

	classifier *classify.Classifier
	tables     map[string]*restructure.Table
	order      []string
}

// Parse decodes a rule file. Unknown keys are rejected so typos surface.
func Parse(data []byte) (*File, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var file File
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return &file, nil
}

// Validate checks the file without compiling it.
func (f *File) Validate() error {
	if corpus.NormalizeJurisdiction(f.Jurisdiction) == "" {
		return fmt.Errorf("jurisdiction is required")
	}
	if len(f.Membership) == 0 && len(f.Subcategories) == 0 {
		return fmt.Errorf("at least one membership or subcategory pattern is required")
	}
	seen := make(map[string]bool)
	for i, table := range f.Chapters {
		key := strings.ToLower(strings.TrimSpace(table.Abbreviation))
		if key == "" {
			return fmt.Errorf("chapter table %d has no abbreviation", i)
		}
		if seen[key] {
			return fmt.Errorf("duplicate chapter table for %s", table.Abbreviation)
		}
		seen[key] = true
	}
	return nil
}

// Compile validates the file and builds the classifier and chapter tables.
// source names where the file came from and is kept for listings.
func Compile(file *File, source string) (*Rules, error) {
	if err := file.Validate(); err != nil {
		return nil, err
	}

	jurisdiction := corpus.NormalizeJurisdiction(file.Jurisdiction)
	classifierRules, err := classify.NewRules(classify.RulesConfig{
		Jurisdiction:       jurisdiction,
		MembershipPatterns: file.Membership,
		Subcategories:      file.Subcategories,
		MatchTitle:         file.MatchTitle,
	})
	if err != nil {
		return nil, fmt.Errorf("compiling %s classification rules: %w", jurisdiction, err)
	}

	rules := &Rules{
		Jurisdiction: jurisdiction,
		Source:       source,
		classifier:   classify.NewClassifier(classifierRules),
		tables:       make(map[string]*restructure.Table, len(file.Chapters)),
	}

	for _, tableFile := range file.Chapters {
		table, err := restructure.NewTable(jurisdiction, strings.TrimSpace(tableFile.Abbreviation), tableFile.Rules)
		if err != nil {
			return nil, err
		}
		key := tableKey(tableFile.Abbreviation)
		rules.tables[key] = table
		rules.order = append(rules.order, table.Abbreviation())
	}

	return rules, nil
}

// Classifier returns the document classifier.
func (r *Rules) Classifier() *classify.Classifier {
	return r.classifier
}

// ChapterTable looks up a table by abbreviation, ignoring case.
func (r *Rules) ChapterTable(abbreviation string) (*restructure.Table, bool) {
	table, ok := r.tables[tableKey(abbreviation)]
	return table, ok
}

// Abbreviations lists the laws with a chapter table, in file order.
func (r *Rules) Abbreviations() []string {
	abbreviations := make([]string, len(r.order))
	copy(abbreviations, r.order)
	return abbreviations
}

func tableKey(abbreviation string) string {
	return strings.ToLower(strings.TrimSpace(abbreviation))
}

// Snapshot is an immutable view of all jurisdictions' rules. Components
// receive a Snapshot at construction and never observe later reloads.
type Snapshot struct {
	rules map[string]*Rules
}

// NewSnapshot builds a snapshot; later entries replace earlier ones of the same jurisdiction.
func NewSnapshot(rules ...*Rules) *Snapshot {
	snapshot := &Snapshot{rules: make(map[string]*Rules, len(rules))}
	for _, entry := range rules {
		snapshot.rules[entry.Jurisdiction] = entry
	}
	return snapshot
}

// Rules returns one jurisdiction's rules.
func (s *Snapshot) Rules(jurisdiction string) (*Rules, bool) {
	rules, ok := s.rules[corpus.NormalizeJurisdiction(jurisdiction)]
	return rules, ok
}

// Classifier returns the classifier for a jurisdiction.
func (s *Snapshot) Classifier(jurisdiction string) (*classify.Classifier, bool) {
	rules, ok := s.Rules(jurisdiction)
	if !ok {
		return nil, false
	}
	return rules.Classifier(), true
}

// ChapterTable returns the chapter table of a law in a jurisdiction.
func (s *Snapshot) ChapterTable(jurisdiction string, abbreviation string) (*restructure.Table, bool) {
	rules, ok := s.Rules(jurisdiction)
	if !ok {
		return nil, false
	}
	return rules.ChapterTable(abbreviation)
}

// Jurisdictions lists the jurisdictions with rules, sorted.
func (s *Snapshot) Jurisdictions() []string {
	jurisdictions := make([]string, 0, len(s.rules))
	for jurisdiction := range s.rules {
		jurisdictions = append(jurisdictions, jurisdiction)
	}
	sort.Strings(jurisdictions)
	return jurisdictions
}
