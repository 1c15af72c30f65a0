package corpus

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleCorpusJSON = `{
  "metadata": {"jurisdiction": "DE", "document_count": 1},
  "documents": [
    {
      "abbreviation": "ArbSchG",
      "title": "Arbeitsschutzgesetz",
      "category": "law",
      "source": {"url": "https://www.gesetze-im-internet.de/arbschg/"},
      "metadata": {"is_supplementary": false},
      "chapters": [],
      "sections": [{"number": "1", "text": "Zielsetzung"}],
      "full_text": "Text"
    }
  ]
}`

func writeSampleCorpus(t *testing.T, directory string, name string, content string) string {
	t.Helper()
	corpusPath := filepath.Join(directory, name)
	if err := os.WriteFile(corpusPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write sample corpus: %v", err)
	}
	return corpusPath
}

func TestFileRepositoryLoad(t *testing.T) {
	dataDir := t.TempDir()
	writeSampleCorpus(t, dataDir, "de_database.json", sampleCorpusJSON)

	repository := NewFileRepository(dataDir)
	loaded, err := repository.Load("de")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(loaded.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(loaded.Documents))
	}
	document := loaded.Documents[0]
	if document.Abbreviation != "ArbSchG" {
		t.Errorf("unexpected abbreviation: %s", document.Abbreviation)
	}
	if document.Category != CategoryPrimary {
		t.Errorf("unexpected category: %s", document.Category)
	}
	if len(document.Sections) != 1 || document.Sections[0].Number != "1" {
		t.Errorf("unexpected sections: %+v", document.Sections)
	}
	if loaded.DocumentsKey() != "documents" {
		t.Errorf("unexpected documents key: %s", loaded.DocumentsKey())
	}
}

func TestFileRepositoryLoadMissing(t *testing.T) {
	repository := NewFileRepository(t.TempDir())

	_, err := repository.Load("AT")
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if !strings.HasSuffix(loadErr.Path, "at_database.json") {
		t.Errorf("unexpected path: %s", loadErr.Path)
	}
}

func TestFileRepositoryLoadMalformed(t *testing.T) {
	dataDir := t.TempDir()
	writeSampleCorpus(t, dataDir, "nl_database.json", `{"metadata": {`)

	_, err := NewFileRepository(dataDir).Load("NL")
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
}

func TestFileRepositoryLoadWithoutDocuments(t *testing.T) {
	dataDir := t.TempDir()
	writeSampleCorpus(t, dataDir, "nl_database.json", `{"metadata": {}}`)

	_, err := NewFileRepository(dataDir).Load("NL")
	if err == nil {
		t.Fatal("expected error for corpus without documents")
	}
}

func TestLegacyLawsKeyRoundTrip(t *testing.T) {
	dataDir := t.TempDir()
	writeSampleCorpus(t, dataDir, "at_database.json", `{"metadata": {}, "laws": [{"abbreviation": "ASchG", "title": "ArbeitnehmerInnenschutzgesetz"}]}`)

	repository := NewFileRepository(dataDir)
	loaded, err := repository.Load("AT")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.DocumentsKey() != "laws" {
		t.Fatalf("expected legacy key, got %s", loaded.DocumentsKey())
	}
	if loaded.Metadata.Jurisdiction != "AT" {
		t.Errorf("expected jurisdiction to default to AT, got %q", loaded.Metadata.Jurisdiction)
	}

	if err := repository.Save("AT", loaded); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	saved, err := os.ReadFile(repository.Path("AT"))
	if err != nil {
		t.Fatalf("failed to read saved corpus: %v", err)
	}
	if !bytes.Contains(saved, []byte(`"laws"`)) {
		t.Error("expected saved corpus to keep the laws key")
	}
	if bytes.Contains(saved, []byte(`"documents"`)) {
		t.Error("saved corpus should not introduce a documents key")
	}
}

func TestSaveUpdatesDocumentCountAndOverwrites(t *testing.T) {
	dataDir := t.TempDir()
	writeSampleCorpus(t, dataDir, "de_database.json", sampleCorpusJSON)

	repository := NewFileRepository(dataDir)
	loaded, err := repository.Load("DE")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	loaded.Documents = append(loaded.Documents, &LegalDocument{Abbreviation: "ASR A1.3", Category: CategorySupplementary})
	if err := repository.Save("DE", loaded); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := repository.Load("DE")
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Metadata.DocumentCount != 2 {
		t.Errorf("expected document_count 2, got %d", reloaded.Metadata.DocumentCount)
	}
	if len(reloaded.Documents) != 2 {
		t.Errorf("expected 2 documents, got %d", len(reloaded.Documents))
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".tmp-") {
			t.Errorf("temporary file left behind: %s", entry.Name())
		}
	}
}

func TestSaveToOutputDir(t *testing.T) {
	dataDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "cleaned")
	writeSampleCorpus(t, dataDir, "de_database.json", sampleCorpusJSON)

	repository := NewFileRepository(dataDir).WithOutputDir(outputDir)
	loaded, err := repository.Load("DE")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	loaded.Documents[0].FullText = "changed"

	if err := repository.Save("DE", loaded); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	original, _ := os.ReadFile(repository.Path("DE"))
	if string(original) != sampleCorpusJSON {
		t.Error("input file must not be modified when an output dir is set")
	}
	if _, err := os.Stat(filepath.Join(outputDir, "de_database.json")); err != nil {
		t.Errorf("expected output file: %v", err)
	}
}

func TestBackupIsByteIdentical(t *testing.T) {
	dataDir := t.TempDir()
	writeSampleCorpus(t, dataDir, "de_database.json", sampleCorpusJSON)

	repository := NewFileRepository(dataDir)
	repository.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	backupPath, err := repository.Backup("DE")
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	if filepath.Base(backupPath) != "de_database.backup-20250301T120000Z.json" {
		t.Errorf("unexpected backup name: %s", filepath.Base(backupPath))
	}

	backupContent, err := os.ReadFile(backupPath)
	if err != nil {
		t.Fatalf("failed to read backup: %v", err)
	}
	if string(backupContent) != sampleCorpusJSON {
		t.Error("backup differs from original")
	}

	// a second backup within the same second must not clobber the first
	secondPath, err := repository.Backup("DE")
	if err != nil {
		t.Fatalf("second Backup failed: %v", err)
	}
	if filepath.Base(secondPath) != "de_database.backup-20250301T120000Z-2.json" {
		t.Errorf("unexpected second backup name: %s", filepath.Base(secondPath))
	}
	if _, err := os.Stat(backupPath); err != nil {
		t.Errorf("first backup lost: %v", err)
	}
}

func TestBackupMissingFile(t *testing.T) {
	_, err := NewFileRepository(t.TempDir()).Backup("NL")
	var saveErr *SaveError
	if !errors.As(err, &saveErr) {
		t.Fatalf("expected SaveError, got %v", err)
	}
}

func TestMemoryRepository(t *testing.T) {
	repository := NewMemoryRepository()
	source := &Corpus{Documents: []*LegalDocument{{Abbreviation: "Arbowet", Title: "Arbeidsomstandighedenwet"}}}

	if err := repository.Put("nl", source); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	loaded, err := repository.Load("NL")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	loaded.Documents[0].Title = "mutated"

	again, _ := repository.Load("NL")
	if again.Documents[0].Title != "Arbeidsomstandighedenwet" {
		t.Error("Load must return an independent copy")
	}

	if _, err := repository.Backup("NL"); err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	if err := repository.Save("NL", loaded); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if repository.Saves() != 1 || len(repository.Backups("NL")) != 1 {
		t.Errorf("unexpected counters: saves=%d backups=%d", repository.Saves(), len(repository.Backups("NL")))
	}
}
