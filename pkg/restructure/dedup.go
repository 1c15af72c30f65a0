package restructure

import "github.com/coolbeans/safetylex/pkg/corpus"

// Dedup keeps one section per raw number: the variant with the longest text.
// On equal length the first one seen wins. The result keeps first-seen order.
func Dedup(sections []corpus.Section) []corpus.Section {
	if len(sections) == 0 {
		return []corpus.Section{}
	}

	positions := make(map[string]int, len(sections))
	deduplicated := make([]corpus.Section, 0, len(sections))

	for _, section := range sections {
		position, seen := positions[section.Number]
		if !seen {
			positions[section.Number] = len(deduplicated)
			deduplicated = append(deduplicated, section)
			continue
		}
		if len(section.Text) > len(deduplicated[position].Text) {
			deduplicated[position] = section
		}
	}

	return deduplicated
}
