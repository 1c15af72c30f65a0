// Package corpus defines the legal document model and its JSON persistence.
package corpus

import (
	"strings"
	"time"
)

// Category is the top-level classification of a legal document.
type Category string

const (
	// CategoryPrimary marks statutory law (Gesetz, Verordnung, wet, besluit).
	CategoryPrimary Category = "law"

	// CategorySupplementary marks non-statutory guidance (Merkblatt, ASR, DGUV, PGS, ...).
	CategorySupplementary Category = "merkblatt"
)

const (
	// TypeMerkblatt is the denormalized type/doc_type value for supplementary documents.
	TypeMerkblatt = "merkblatt"

	// TypeLaw is the type/doc_type value written when a document leaves the supplementary category.
	TypeLaw = "law"
)

// Jurisdiction identifiers used across the corpus.
const (
	JurisdictionAT = "AT"
	JurisdictionDE = "DE"
	JurisdictionNL = "NL"
)

// KnownJurisdictions lists the jurisdictions the corpus is organized by.
func KnownJurisdictions() []string {
	return []string{JurisdictionAT, JurisdictionDE, JurisdictionNL}
}

// NormalizeJurisdiction upper-cases and trims a jurisdiction code.
func NormalizeJurisdiction(jurisdiction string) string {
	return strings.ToUpper(strings.TrimSpace(jurisdiction))
}

// Section is one numbered subdivision of a law (§ in AT/DE, Artikel in NL).
type Section struct {
	Number string `json:"number"`
	Title  string `json:"title,omitempty"`
	Text   string `json:"text"`

	Extra Extra `json:"-"`
}

// Chapter is an official grouping of sections (Abschnitt, Hoofdstuk).
type Chapter struct {
	ID       string    `json:"id"`
	Number   string    `json:"number"`
	Title    string    `json:"title"`
	TitleEN  string    `json:"title_en,omitempty"`
	Sections []Section `json:"sections"`

	Extra Extra `json:"-"`
}

// Source describes where a document was scraped from.
type Source struct {
	URL          string `json:"url,omitempty"`
	PDFURL       string `json:"pdf_url,omitempty"`
	LocalPDFPath string `json:"local_pdf_path,omitempty"`
	ScrapedAt    string `json:"scraped_at,omitempty"`

	Extra Extra `json:"-"`
}

// DocumentMetadata holds per-document bookkeeping fields.
type DocumentMetadata struct {
	IsSupplementary bool   `json:"is_supplementary"`
	Filename        string `json:"filename,omitempty"`
	SectionCount    int    `json:"section_count,omitempty"`
	ChapterCount    int    `json:"chapter_count,omitempty"`
	Language        string `json:"language,omitempty"`
	CleanedBy       string `json:"cleaned_by,omitempty"`

	Extra Extra `json:"-"`
}

// LegalDocument is one law or supplementary publication.
type LegalDocument struct {
	ID           string           `json:"id,omitempty"`
	Jurisdiction string           `json:"jurisdiction,omitempty"`
	URL          string           `json:"url,omitempty"`
	Abbreviation string           `json:"abbreviation"`
	Title        string           `json:"title"`
	TitleEN      string           `json:"title_en,omitempty"`
	Category     Category         `json:"category,omitempty"`
	Subcategory  string           `json:"subcategory,omitempty"`
	Type         string           `json:"type,omitempty"`
	DocType      string           `json:"doc_type,omitempty"`
	PDFPath      string           `json:"pdf_path,omitempty"`
	Source       Source           `json:"source"`
	Metadata     DocumentMetadata `json:"metadata"`
	Chapters     []Chapter        `json:"chapters"`
	Sections     []Section        `json:"sections,omitempty"`
	FullText     string           `json:"full_text"`

	Extra Extra `json:"-"`
}

// IsSupplementary reports whether the document is classified as supplementary material.
func (d *LegalDocument) IsSupplementary() bool {
	return d.Category == CategorySupplementary
}

// SectionCount returns the number of sections across chapters and the flat list.
func (d *LegalDocument) SectionCount() int {
	count := len(d.Sections)
	for _, chapter := range d.Chapters {
		count += len(chapter.Sections)
	}
	return count
}

// DisplayName returns the abbreviation, falling back to the title.
func (d *LegalDocument) DisplayName() string {
	if d.Abbreviation != "" {
		return d.Abbreviation
	}
	return d.Title
}

// Metadata is the corpus-level header of a jurisdiction file.
type Metadata struct {
	Jurisdiction    string     `json:"jurisdiction,omitempty"`
	DocumentCount   int        `json:"document_count"`
	GeneratedAt     *time.Time `json:"generated_at,omitempty"`
	ClassifiedAt    *time.Time `json:"classified_at,omitempty"`
	RestructuredAt  *time.Time `json:"restructured_at,omitempty"`
	TextExtractedAt *time.Time `json:"text_extracted_at,omitempty"`
	CleanedAt       *time.Time `json:"cleaned_at,omitempty"`
	CleaningMethod  string     `json:"cleaning_method,omitempty"`

	Extra Extra `json:"-"`
}

// Corpus is the full content of one jurisdiction file.
type Corpus struct {
	Metadata  Metadata
	Documents []*LegalDocument

	// Extra holds top-level keys besides metadata and the document list.
	Extra Extra

	// documentsKey is "documents" or the legacy "laws", preserved across save.
	documentsKey string
}

// Stamp returns the current UTC time truncated to seconds, for metadata timestamps.
func Stamp() *time.Time {
	now := time.Now().UTC().Truncate(time.Second)
	return &now
}
