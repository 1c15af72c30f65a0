package classify

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/coolbeans/safetylex/pkg/corpus"
)

func germanRules(t *testing.T) *Rules {
	t.Helper()
	rules, err := NewRules(RulesConfig{
		Jurisdiction:       "de",
		MembershipPatterns: []string{`^(ASR|DGUV|TRGS|TRBS)\b`, `merkblatt`, `leitfaden`},
		Subcategories: []SubcategoryRule{
			{Label: "ASR", Pattern: `^ASR\b`, Title: "Technische Regeln für Arbeitsstätten"},
			{Label: "DGUV", Pattern: `^DGUV\b`},
			{Label: "TRGS", Pattern: `^TRGS\b`, TitleEN: "Technical Rules for Hazardous Substances"},
			{Label: "TRBS", Pattern: `^TRBS\b`},
		},
		MatchTitle: true,
	})
	if err != nil {
		t.Fatalf("NewRules failed: %v", err)
	}
	return rules
}

func TestClassify(t *testing.T) {
	classifier := NewClassifier(germanRules(t))

	tests := []struct {
		name            string
		abbreviation    string
		title           string
		wantCategory    corpus.Category
		wantSubcategory string
	}{
		{"TRGS", "TRGS 900", "Arbeitsplatzgrenzwerte", corpus.CategorySupplementary, "TRGS"},
		{"primary law", "ArbSchG", "Arbeitsschutzgesetz", corpus.CategoryPrimary, ""},
		{"case insensitive", "asr a1.3", "", corpus.CategorySupplementary, "ASR"},
		{"DGUV", "DGUV Vorschrift 1", "Grundsätze der Prävention", corpus.CategorySupplementary, "DGUV"},
		{"member without series", "BG-Info", "Merkblatt Lärm", corpus.CategorySupplementary, ""},
		{"regulation", "BetrSichV", "Betriebssicherheitsverordnung", corpus.CategoryPrimary, ""},
		{"prefix only", "XASR 1", "", corpus.CategoryPrimary, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.Classify(&corpus.LegalDocument{Abbreviation: tt.abbreviation, Title: tt.title})
			if got.Category != tt.wantCategory {
				t.Errorf("category = %s, want %s", got.Category, tt.wantCategory)
			}
			if got.Subcategory != tt.wantSubcategory {
				t.Errorf("subcategory = %q, want %q", got.Subcategory, tt.wantSubcategory)
			}
		})
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	rules, err := NewRules(RulesConfig{
		Jurisdiction: "NL",
		Subcategories: []SubcategoryRule{
			{Label: "Volandis", Pattern: `volandis`},
			{Label: "Arbocatalogus", Pattern: `arbocatalogus`},
		},
	})
	if err != nil {
		t.Fatalf("NewRules failed: %v", err)
	}

	got := NewClassifier(rules).Classify(&corpus.LegalDocument{Abbreviation: "Arbocatalogus Volandis bouw"})
	if got.Subcategory != "Volandis" {
		t.Errorf("expected the first rule in table order to win, got %q", got.Subcategory)
	}
}

func TestClassifyTitleOnlyWhenConfigured(t *testing.T) {
	rules, err := NewRules(RulesConfig{Jurisdiction: "AT", MembershipPatterns: []string{`merkblatt`}})
	if err != nil {
		t.Fatalf("NewRules failed: %v", err)
	}
	document := &corpus.LegalDocument{Abbreviation: "M 040", Title: "AUVA Merkblatt Lärm"}

	if got := NewClassifier(rules).Classify(document); got.Category != corpus.CategoryPrimary {
		t.Errorf("title must be ignored without MatchTitle, got %s", got.Category)
	}
}

func TestNewRulesErrors(t *testing.T) {
	tests := []struct {
		name   string
		config RulesConfig
	}{
		{"no jurisdiction", RulesConfig{MembershipPatterns: []string{"x"}}},
		{"no patterns", RulesConfig{Jurisdiction: "DE"}},
		{"bad regex", RulesConfig{Jurisdiction: "DE", MembershipPatterns: []string{"("}}},
		{"empty pattern", RulesConfig{Jurisdiction: "DE", MembershipPatterns: []string{"  "}}},
		{"missing label", RulesConfig{Jurisdiction: "DE", Subcategories: []SubcategoryRule{{Pattern: "x"}}}},
		{"duplicate label", RulesConfig{Jurisdiction: "DE", Subcategories: []SubcategoryRule{
			{Label: "ASR", Pattern: "a"}, {Label: "ASR", Pattern: "b"},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRules(tt.config); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestApplyIdempotent(t *testing.T) {
	classifier := NewClassifier(germanRules(t))
	document := &corpus.LegalDocument{
		Abbreviation: "TRGS 900",
		Title:        "Arbeitsplatzgrenzwerte",
		Category:     corpus.CategoryPrimary,
		Type:         "law",
		DocType:      "law",
		PDFPath:      "pdfs/de/trgs_900_law.pdf",
		Source:       corpus.Source{LocalPDFPath: "pdfs/de/trgs_900_law.pdf"},
		Metadata:     corpus.DocumentMetadata{Filename: "trgs_900_law.pdf"},
	}

	first := classifier.Apply(document, classifier.Classify(document))
	if !first.Changed {
		t.Fatal("expected first Apply to change the document")
	}

	if document.Category != corpus.CategorySupplementary || document.Subcategory != "TRGS" {
		t.Errorf("unexpected classification: %s/%s", document.Category, document.Subcategory)
	}
	if document.Type != "merkblatt" || document.DocType != "merkblatt" {
		t.Errorf("type fields = %q/%q", document.Type, document.DocType)
	}
	if !document.Metadata.IsSupplementary {
		t.Error("metadata.is_supplementary must be true")
	}
	if document.PDFPath != "pdfs/de/trgs_900_merkblatt.pdf" ||
		document.Source.LocalPDFPath != "pdfs/de/trgs_900_merkblatt.pdf" ||
		document.Metadata.Filename != "trgs_900_merkblatt.pdf" {
		t.Errorf("paths not retargeted: %q %q %q", document.PDFPath, document.Source.LocalPDFPath, document.Metadata.Filename)
	}
	want := []RenamedFile{{From: "pdfs/de/trgs_900_law.pdf", To: "pdfs/de/trgs_900_merkblatt.pdf"}}
	if !reflect.DeepEqual(first.Moves, want) {
		t.Errorf("Moves = %+v, want %+v", first.Moves, want)
	}

	afterFirst, _ := json.Marshal(document)

	second := classifier.Apply(document, classifier.Classify(document))
	if second.Changed || len(second.Changes) != 0 || len(second.Moves) != 0 {
		t.Errorf("second Apply reported changes: %+v", second)
	}

	afterSecond, _ := json.Marshal(document)
	if string(afterFirst) != string(afterSecond) {
		t.Errorf("document changed on second Apply:\n%s\n%s", afterFirst, afterSecond)
	}
}

func TestApplyPrimaryKeepsSpecificType(t *testing.T) {
	document := &corpus.LegalDocument{
		Abbreviation: "ArbStättV",
		Category:     corpus.CategorySupplementary,
		Subcategory:  "ASR",
		Type:         "merkblatt",
		DocType:      "verordnung",
		PDFPath:      "arbstaettv_merkblatt.pdf",
		Metadata:     corpus.DocumentMetadata{IsSupplementary: true},
	}

	result := Apply(document, Classification{Category: corpus.CategoryPrimary, Subcategory: "ignored"})
	if !result.Changed {
		t.Fatal("expected changes")
	}
	if document.Subcategory != "" {
		t.Errorf("primary documents carry no subcategory, got %q", document.Subcategory)
	}
	if document.Type != "law" {
		t.Errorf("type = %q, want law", document.Type)
	}
	if document.DocType != "verordnung" {
		t.Errorf("doc_type = %q, want verordnung", document.DocType)
	}
	if document.PDFPath != "arbstaettv_law.pdf" {
		t.Errorf("pdf_path = %q", document.PDFPath)
	}
	if document.Metadata.IsSupplementary {
		t.Error("metadata.is_supplementary must be false")
	}
}

func TestApplyDoesNotTouchFiles(t *testing.T) {
	pdfRoot := t.TempDir()
	oldPath := filepath.Join(pdfRoot, "asr_a1_3_law.pdf")
	if err := os.WriteFile(oldPath, []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatal(err)
	}

	document := &corpus.LegalDocument{Abbreviation: "ASR A1.3", PDFPath: oldPath}
	classifier := NewClassifier(germanRules(t))
	result := classifier.Apply(document, classifier.Classify(document))

	if len(result.Moves) != 1 {
		t.Fatalf("expected one planned move, got %+v", result.Moves)
	}
	if _, err := os.Stat(oldPath); err != nil {
		t.Errorf("Apply must not rename files: %v", err)
	}
}

func TestApplyFilenameMovesOnlyWithoutPaths(t *testing.T) {
	withPath := &corpus.LegalDocument{
		PDFPath:  "de/asr_law.pdf",
		Metadata: corpus.DocumentMetadata{Filename: "asr_law.pdf"},
	}
	result := Apply(withPath, Classification{Category: corpus.CategorySupplementary})
	if len(result.Moves) != 1 || result.Moves[0].From != "de/asr_law.pdf" {
		t.Errorf("Moves = %+v", result.Moves)
	}

	bareName := &corpus.LegalDocument{Metadata: corpus.DocumentMetadata{Filename: "asr_law.pdf"}}
	result = Apply(bareName, Classification{Category: corpus.CategorySupplementary})
	if len(result.Moves) != 1 || result.Moves[0].To != "asr_merkblatt.pdf" {
		t.Errorf("Moves = %+v", result.Moves)
	}
}

func TestRenameFiles(t *testing.T) {
	pdfRoot := t.TempDir()
	if err := os.MkdirAll(filepath.Join(pdfRoot, "de"), 0755); err != nil {
		t.Fatal(err)
	}
	oldPath := filepath.Join(pdfRoot, "de", "asr_a1_3_law.pdf")
	if err := os.WriteFile(oldPath, []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatal(err)
	}

	document := &corpus.LegalDocument{
		Abbreviation: "ASR A1.3",
		PDFPath:      "de/asr_a1_3_law.pdf",
		Source:       corpus.Source{LocalPDFPath: "de/asr_a1_3_law.pdf"},
		Metadata:     corpus.DocumentMetadata{Filename: "asr_a1_3_law.pdf"},
	}

	classifier := NewClassifier(germanRules(t))
	applied := classifier.Apply(document, classifier.Classify(document))
	result, err := RenameFiles(FileRenamer{Root: pdfRoot}, applied.Moves)
	if err != nil {
		t.Fatalf("RenameFiles failed: %v", err)
	}

	if len(result.Renamed) != 1 {
		t.Fatalf("expected exactly one rename, got %+v", result.Renamed)
	}
	if len(result.Conflicts) != 0 {
		t.Errorf("unexpected conflicts: %v", result.Conflicts)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("old file still exists")
	}
	if _, err := os.Stat(filepath.Join(pdfRoot, "de", "asr_a1_3_merkblatt.pdf")); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
}

func TestRenameFilesKeepSource(t *testing.T) {
	pdfRoot := t.TempDir()
	oldPath := filepath.Join(pdfRoot, "trgs_900_law.pdf")
	if err := os.WriteFile(oldPath, []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatal(err)
	}

	moves := []RenamedFile{{From: "trgs_900_law.pdf", To: "trgs_900_merkblatt.pdf"}}
	result, err := RenameFiles(FileRenamer{Root: pdfRoot, KeepSource: true}, moves)
	if err != nil || len(result.Renamed) != 1 {
		t.Fatalf("RenameFiles = %+v, %v", result, err)
	}

	for _, name := range []string{"trgs_900_law.pdf", "trgs_900_merkblatt.pdf"} {
		content, err := os.ReadFile(filepath.Join(pdfRoot, name))
		if err != nil || string(content) != "%PDF-1.4" {
			t.Errorf("%s: content=%q err=%v", name, content, err)
		}
	}
}

func TestRenameFilesConflict(t *testing.T) {
	pdfRoot := t.TempDir()
	oldPath := filepath.Join(pdfRoot, "dguv_1_law.pdf")
	newPath := filepath.Join(pdfRoot, "dguv_1_merkblatt.pdf")
	os.WriteFile(oldPath, []byte("old"), 0644)
	os.WriteFile(newPath, []byte("existing"), 0644)

	document := &corpus.LegalDocument{Abbreviation: "DGUV Vorschrift 1", PDFPath: "dguv_1_law.pdf"}
	classifier := NewClassifier(germanRules(t))
	applied := classifier.Apply(document, classifier.Classify(document))

	result, err := RenameFiles(FileRenamer{Root: pdfRoot}, applied.Moves)
	if err != nil {
		t.Fatalf("a rename conflict must not be an error: %v", err)
	}
	if len(result.Conflicts) != 1 {
		t.Fatalf("expected one conflict, got %d", len(result.Conflicts))
	}

	var conflict *RenameConflictError
	if !errors.As(result.Conflicts[0], &conflict) || conflict.To != "dguv_1_merkblatt.pdf" {
		t.Errorf("unexpected conflict: %v", result.Conflicts[0])
	}

	existing, _ := os.ReadFile(newPath)
	if string(existing) != "existing" {
		t.Error("existing target must not be overwritten")
	}
	if _, err := os.Stat(oldPath); err != nil {
		t.Error("source file must stay in place on conflict")
	}
	if document.PDFPath != "dguv_1_merkblatt.pdf" {
		t.Errorf("pdf_path = %q", document.PDFPath)
	}
}

func TestRenameFilesMissingSource(t *testing.T) {
	moves := []RenamedFile{{From: "missing_law.pdf", To: "missing_merkblatt.pdf"}}
	result, err := RenameFiles(FileRenamer{Root: t.TempDir()}, moves)
	if err != nil {
		t.Fatalf("RenameFiles failed: %v", err)
	}
	if len(result.Renamed) != 0 || len(result.Conflicts) != 0 {
		t.Errorf("nothing should be renamed: %+v", result)
	}
}

type failingRenamer struct{}

func (failingRenamer) Exists(path string) (bool, error) { return path == "a_law.pdf", nil }
func (failingRenamer) Rename(string, string) error       { return errors.New("read-only file system") }

func TestRenameFilesError(t *testing.T) {
	moves := []RenamedFile{
		{From: "a_law.pdf", To: "a_merkblatt.pdf"},
		{From: "b_law.pdf", To: "b_merkblatt.pdf"},
	}

	result, err := RenameFiles(failingRenamer{}, moves)
	if err == nil {
		t.Fatal("expected rename error")
	}
	if len(result.Renamed) != 0 {
		t.Errorf("Renamed = %+v", result.Renamed)
	}
}

func TestRenameFilesNilRenamer(t *testing.T) {
	result, err := RenameFiles(nil, []RenamedFile{{From: "a_law.pdf", To: "a_merkblatt.pdf"}})
	if err != nil || len(result.Renamed) != 0 {
		t.Errorf("nil renamer must be a no-op, got %+v %v", result, err)
	}
}

func TestApplyUnchangedPlansNoMoves(t *testing.T) {
	document := &corpus.LegalDocument{
		Abbreviation: "ArbSchG",
		Category:     corpus.CategoryPrimary,
		Type:         "law",
		PDFPath:      "arbschg_law.pdf",
	}

	result := Apply(document, Classification{Category: corpus.CategoryPrimary})
	if result.Changed || len(result.Moves) != 0 {
		t.Errorf("expected no-op, got %+v", result)
	}
}
