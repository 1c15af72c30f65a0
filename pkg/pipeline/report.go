package pipeline

import (
	"github.com/coolbeans/safetylex/pkg/classify"
	"github.com/coolbeans/safetylex/pkg/clean"
)

// Status values of a jurisdiction run.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RunReport summarizes a multi-jurisdiction run.
type RunReport struct {
	Succeeded     int                   `json:"succeeded"`
	Failed        int                   `json:"failed"`
	Jurisdictions []*JurisdictionReport `json:"jurisdictions"`
}

// JurisdictionReport is the outcome of processing one corpus file.
type JurisdictionReport struct {
	Jurisdiction   string                `json:"jurisdiction"`
	Status         string                `json:"status"`
	Error          string                `json:"error,omitempty"`
	Documents      int                   `json:"documents"`
	BackupPath     string                `json:"backup_path,omitempty"`
	Classification *ClassificationReport `json:"classification,omitempty"`
	Restructure    *RestructureReport    `json:"restructure,omitempty"`
	Extraction     *ExtractionReport     `json:"extraction,omitempty"`
	Cleaning       *clean.Summary        `json:"cleaning,omitempty"`
}

// ClassificationReport lists what the classify stage changed.
type ClassificationReport struct {
	Primary       int              `json:"primary"`
	Supplementary int              `json:"supplementary"`
	Changed       int              `json:"changed"`
	Documents     []DocumentChange `json:"documents,omitempty"`
	Conflicts     []string         `json:"conflicts,omitempty"`
	RenameErrors  []string         `json:"rename_errors,omitempty"`
}

// DocumentChange is the classification delta of one document.
type DocumentChange struct {
	Abbreviation string                 `json:"abbreviation"`
	Changes      []classify.FieldChange `json:"changes"`
	Moves        []classify.RenamedFile `json:"moves,omitempty"`
	Renamed      []classify.RenamedFile `json:"renamed,omitempty"`
}

// RestructureReport lists what the restructure stage changed.
type RestructureReport struct {
	Restructured      int                `json:"restructured"`
	NoTable           int                `json:"no_table"`
	DuplicatesRemoved int                `json:"duplicates_removed"`
	Dropped           int                `json:"dropped"`
	Documents         []RestructureEntry `json:"documents,omitempty"`
}

// RestructureEntry is the section audit of one restructured document.
type RestructureEntry struct {
	Abbreviation      string   `json:"abbreviation"`
	SectionsBefore    int      `json:"sections_before"`
	SectionsAfter     int      `json:"sections_after"`
	DuplicatesRemoved int      `json:"duplicates_removed"`
	Chapters          int      `json:"chapters"`
	Dropped           []string `json:"dropped,omitempty"`
}

// ExtractionReport counts PDF text extraction results.
type ExtractionReport struct {
	Attempted   int            `json:"attempted"`
	Extracted   int            `json:"extracted"`
	Failed      int            `json:"failed"`
	MissingFile int            `json:"missing_file"`
	ByExtractor map[string]int `json:"by_extractor,omitempty"`
}

func (r *RunReport) add(jurisdictionReport *JurisdictionReport) {
	r.Jurisdictions = append(r.Jurisdictions, jurisdictionReport)
	if jurisdictionReport.Status == StatusSucceeded {
		r.Succeeded++
	} else {
		r.Failed++
	}
}
