package restructure

import (
	"fmt"
	"sort"
	"strings"

	"github.com/coolbeans/safetylex/pkg/corpus"
)

// Range is a closed interval of section keys.
type Range struct {
	Low  Key `yaml:"low" json:"low"`
	High Key `yaml:"high" json:"high"`
}

// Contains reports whether low <= key <= high.
func (r Range) Contains(key Key) bool {
	return key >= r.Low && key <= r.High
}

func (r Range) overlaps(other Range) bool {
	return r.Low <= other.High && other.Low <= r.High
}

// ChapterRule is one row of an official chapter table.
type ChapterRule struct {
	Number  string `yaml:"number" json:"number"`
	Title   string `yaml:"title" json:"title"`
	TitleEN string `yaml:"title_en" json:"title_en"`
	Range   Range  `yaml:"range" json:"range"`
}

// Table is the ordered chapter table of one law in one jurisdiction.
// A Table is immutable after NewTable returns.
type Table struct {
	jurisdiction string
	abbreviation string
	rules        []ChapterRule
}

// NewTable validates and copies the rules. Ranges must be well-formed and
// must not overlap, so every section lands in at most one chapter.
func NewTable(jurisdiction string, abbreviation string, rules []ChapterRule) (*Table, error) {
	if strings.TrimSpace(jurisdiction) == "" {
		return nil, fmt.Errorf("chapter table jurisdiction is required")
	}
	if strings.TrimSpace(abbreviation) == "" {
		return nil, fmt.Errorf("chapter table abbreviation is required")
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("chapter table %s/%s has no rules", jurisdiction, abbreviation)
	}

	seenNumbers := make(map[string]bool, len(rules))
	for i, rule := range rules {
		if rule.Number == "" {
			return nil, fmt.Errorf("chapter table %s/%s: rule %d has no number", jurisdiction, abbreviation, i)
		}
		if seenNumbers[rule.Number] {
			return nil, fmt.Errorf("chapter table %s/%s: duplicate chapter number %q", jurisdiction, abbreviation, rule.Number)
		}
		seenNumbers[rule.Number] = true

		if rule.Range.Low > rule.Range.High {
			return nil, fmt.Errorf("chapter table %s/%s: chapter %s range [%v, %v] is inverted",
				jurisdiction, abbreviation, rule.Number, rule.Range.Low, rule.Range.High)
		}
		for _, previous := range rules[:i] {
			if rule.Range.overlaps(previous.Range) {
				return nil, fmt.Errorf("chapter table %s/%s: chapter %s range overlaps chapter %s",
					jurisdiction, abbreviation, rule.Number, previous.Number)
			}
		}
	}

	copied := make([]ChapterRule, len(rules))
	copy(copied, rules)

	return &Table{
		jurisdiction: corpus.NormalizeJurisdiction(jurisdiction),
		abbreviation: abbreviation,
		rules:        copied,
	}, nil
}

// MustTable is NewTable that panics on an invalid table. For static tables only.
func MustTable(jurisdiction string, abbreviation string, rules []ChapterRule) *Table {
	table, err := NewTable(jurisdiction, abbreviation, rules)
	if err != nil {
		panic(err)
	}
	return table
}

// Jurisdiction returns the table's jurisdiction code.
func (t *Table) Jurisdiction() string { return t.jurisdiction }

// Abbreviation returns the abbreviation of the law the table describes.
func (t *Table) Abbreviation() string { return t.abbreviation }

// Rules returns a copy of the ordered rules.
func (t *Table) Rules() []ChapterRule {
	copied := make([]ChapterRule, len(t.rules))
	copy(copied, t.rules)
	return copied
}

// ChapterID returns the deterministic chapter id, e.g. "at-aschg-ch8".
func (t *Table) ChapterID(ruleNumber string) string {
	return strings.ToLower(fmt.Sprintf("%s-%s-ch%s", t.jurisdiction, t.abbreviation, ruleNumber))
}

// Restructure partitions sections into the table's chapters by key range.
//
// Rules are evaluated in table order. Chapters without any matching section
// are omitted. Sections matching no rule are not part of the result; callers
// that need to audit the loss compare section counts before and after.
func Restructure(sections []corpus.Section, table *Table) []corpus.Chapter {
	keyed := make([]keyedSection, len(sections))
	for i, section := range sections {
		keyed[i] = keyedSection{key: Parse(section.Number), section: section}
	}

	var chapters []corpus.Chapter
	for _, rule := range table.rules {
		var matched []keyedSection
		for _, candidate := range keyed {
			if rule.Range.Contains(candidate.key) {
				matched = append(matched, candidate)
			}
		}
		if len(matched) == 0 {
			continue
		}

		sort.SliceStable(matched, func(i, j int) bool {
			if matched[i].key != matched[j].key {
				return matched[i].key < matched[j].key
			}
			return matched[i].section.Number < matched[j].section.Number
		})

		chapterSections := make([]corpus.Section, len(matched))
		for i, match := range matched {
			chapterSections[i] = match.section
		}

		chapters = append(chapters, corpus.Chapter{
			ID:       table.ChapterID(rule.Number),
			Number:   rule.Number,
			Title:    rule.Title,
			TitleEN:  rule.TitleEN,
			Sections: chapterSections,
		})
	}

	if chapters == nil {
		return []corpus.Chapter{}
	}
	return chapters
}

// Flatten gathers the sections of all chapters in chapter order.
func Flatten(chapters []corpus.Chapter) []corpus.Section {
	var sections []corpus.Section
	for _, chapter := range chapters {
		sections = append(sections, chapter.Sections...)
	}
	return sections
}

// Unmatched returns the sections no rule of the table claims, in input order.
func Unmatched(sections []corpus.Section, table *Table) []corpus.Section {
	var unmatched []corpus.Section
	for _, section := range sections {
		key := Parse(section.Number)
		claimed := false
		for _, rule := range table.rules {
			if rule.Range.Contains(key) {
				claimed = true
				break
			}
		}
		if !claimed {
			unmatched = append(unmatched, section)
		}
	}
	return unmatched
}

type keyedSection struct {
	key     Key
	section corpus.Section
}
