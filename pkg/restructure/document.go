package restructure

import "github.com/coolbeans/safetylex/pkg/corpus"

// Result describes what restructuring did to one document.
type Result struct {
	Abbreviation      string   `json:"abbreviation"`
	SectionsBefore    int      `json:"sections_before"`
	SectionsAfter     int      `json:"sections_after"`
	DuplicatesRemoved int      `json:"duplicates_removed"`
	Dropped           []string `json:"dropped,omitempty"`
	Unparseable       []string `json:"unparseable,omitempty"`
	Chapters          int      `json:"chapters"`
}

// Lost returns the number of sections missing from the rebuilt document.
func (r Result) Lost() int {
	return r.SectionsBefore - r.SectionsAfter
}

// DropRatio is the share of distinct sections that matched no chapter.
func (r Result) DropRatio() float64 {
	distinct := r.SectionsBefore - r.DuplicatesRemoved
	if distinct <= 0 {
		return 0
	}
	return float64(len(r.Dropped)) / float64(distinct)
}

// RestructureDocument rebuilds the chapter list of a document in place.
//
// Existing chapters and the flat section list are flattened together,
// deduplicated and reclassified, so running it on an already restructured
// document yields the same chapters.
func RestructureDocument(document *corpus.LegalDocument, table *Table) Result {
	gathered := append(Flatten(document.Chapters), document.Sections...)
	deduplicated := Dedup(gathered)

	result := Result{
		Abbreviation:      document.Abbreviation,
		SectionsBefore:    len(gathered),
		DuplicatesRemoved: len(gathered) - len(deduplicated),
	}

	for _, section := range Unmatched(deduplicated, table) {
		result.Dropped = append(result.Dropped, section.Number)
	}
	for _, section := range deduplicated {
		if _, err := ParseStrict(section.Number); err != nil {
			result.Unparseable = append(result.Unparseable, section.Number)
		}
	}

	document.Chapters = Restructure(deduplicated, table)
	document.Sections = nil
	document.Metadata.ChapterCount = len(document.Chapters)
	document.Metadata.SectionCount = document.SectionCount()

	result.SectionsAfter = document.SectionCount()
	result.Chapters = len(document.Chapters)
	return result
}
