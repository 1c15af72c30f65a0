package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coolbeans/safetylex/pkg/corpus"
)

const germanCorpusJSON = `{
  "metadata": {"jurisdiction": "DE", "document_count": 2},
  "documents": [
    {
      "abbreviation": "ArbSchG",
      "title": "Arbeitsschutzgesetz",
      "category": "law",
      "metadata": {"is_supplementary": false},
      "chapters": [],
      "sections": [{"number": "1", "text": "Zielsetzung"}],
      "full_text": "Text"
    },
    {
      "abbreviation": "TRGS 900",
      "title": "Arbeitsplatzgrenzwerte",
      "category": "law",
      "type": "law",
      "metadata": {"is_supplementary": false},
      "chapters": [],
      "full_text": "Grenzwerte"
    }
  ]
}`

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var output bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&output)
	rootCmd.SetErr(&output)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return output.String(), err
}

func TestClassifyCommand(t *testing.T) {
	dataDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dataDir, "de_database.json"), []byte(germanCorpusJSON), 0644); err != nil {
		t.Fatalf("failed to write corpus: %v", err)
	}

	output, err := executeCommand(t, "classify",
		"-j", "DE",
		"--data-dir", dataDir,
		"--pdf-dir", dataDir,
		"--env-file", filepath.Join(dataDir, "missing.env"),
	)
	if err != nil {
		t.Fatalf("classify failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, "DE: succeeded (2 documents)") {
		t.Errorf("unexpected report:\n%s", output)
	}

	loaded, err := corpus.NewFileRepository(dataDir).Load("DE")
	if err != nil {
		t.Fatalf("failed to reload corpus: %v", err)
	}
	trgs := loaded.Documents[1]
	if trgs.Category != corpus.CategorySupplementary || trgs.Subcategory != "TRGS" {
		t.Errorf("TRGS 900 classified as %s/%s", trgs.Category, trgs.Subcategory)
	}
	if trgs.Type != corpus.TypeMerkblatt || !trgs.Metadata.IsSupplementary {
		t.Errorf("derived fields not updated: type=%q supplementary=%v", trgs.Type, trgs.Metadata.IsSupplementary)
	}
	if loaded.Documents[0].Category != corpus.CategoryPrimary {
		t.Errorf("ArbSchG should stay primary")
	}
	if loaded.Metadata.ClassifiedAt == nil {
		t.Error("classified_at not set")
	}
}

func TestRunCommandReportsFailedJurisdiction(t *testing.T) {
	dataDir := t.TempDir()

	output, err := executeCommand(t, "run",
		"-j", "NL",
		"--stages", "classify",
		"--data-dir", dataDir,
		"--env-file", filepath.Join(dataDir, "missing.env"),
		"--json",
	)
	if err == nil {
		t.Fatal("expected an error for a missing corpus file")
	}
	if !strings.Contains(output, `"status": "failed"`) {
		t.Errorf("JSON report does not show the failure:\n%s", output)
	}
}

func TestRunCommandRejectsUnknownStage(t *testing.T) {
	dataDir := t.TempDir()
	_, err := executeCommand(t, "run", "--stages", "translate", "--data-dir", dataDir)
	if err == nil {
		t.Fatal("expected an error for an unknown stage")
	}
}

func TestRulesListCommand(t *testing.T) {
	dataDir := t.TempDir()
	output, err := executeCommand(t, "rules", "list", "--env-file", filepath.Join(dataDir, "missing.env"))
	if err != nil {
		t.Fatalf("rules list failed: %v", err)
	}
	for _, want := range []string{"AT (builtin:at.yaml)", "ArbSchG", "TRGS", "Arbobesluit"} {
		if !strings.Contains(output, want) {
			t.Errorf("rules list output missing %q:\n%s", want, output)
		}
	}
}

func TestRulesValidateCommand(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "de.yaml")
	invalid := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(valid, []byte("jurisdiction: DE\nmembership: ['^TRGS']\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(invalid, []byte("jurisdiction: DE\nunknown_key: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	output, err := executeCommand(t, "rules", "validate", valid, "--env-file", filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("valid file rejected: %v\n%s", err, output)
	}
	if !strings.Contains(output, "ok   "+valid) {
		t.Errorf("unexpected output:\n%s", output)
	}

	output, err = executeCommand(t, "rules", "validate", valid, invalid, "--env-file", filepath.Join(dir, "missing.env"))
	if err == nil {
		t.Fatalf("broken file accepted:\n%s", output)
	}
	if !strings.Contains(output, "FAIL "+invalid) {
		t.Errorf("unexpected output:\n%s", output)
	}
}
