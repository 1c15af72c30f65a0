package classify

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/coolbeans/safetylex/pkg/corpus"
)

const (
	lawFileSuffix       = "_law.pdf"
	merkblattFileSuffix = "_merkblatt.pdf"
)

// RenameConflictError reports a rename that was skipped because the target already exists.
type RenameConflictError struct {
	From string
	To   string
}

func (e *RenameConflictError) Error() string {
	return fmt.Sprintf("cannot rename %s: target %s already exists", e.From, e.To)
}

// FieldChange records one field Apply modified.
type FieldChange struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// RenamedFile is one stored file move, planned by Apply and run by RenameFiles.
type RenamedFile struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ApplyResult describes the effect of Apply on one document.
type ApplyResult struct {
	Changed bool          `json:"changed"`
	Changes []FieldChange `json:"changes,omitempty"`

	// Moves are the file renames the new path fields require. Apply does not
	// run them; the caller does once the document is stored.
	Moves []RenamedFile `json:"moves,omitempty"`
}

// RenameResult is the outcome of RenameFiles.
type RenameResult struct {
	Renamed   []RenamedFile
	Conflicts []*RenameConflictError
}

// Renamer moves stored files. Paths are as written in the document.
type Renamer interface {
	// Exists reports whether a file is present.
	Exists(path string) (bool, error)

	// Rename moves a file; the target is known not to exist.
	Rename(from string, to string) error
}

// FileRenamer renames files on disk, resolving relative paths against Root.
// With KeepSource set the file is copied, so a corpus written elsewhere and
// the unchanged original both find their file.
type FileRenamer struct {
	Root       string
	KeepSource bool
}

// Exists reports whether the file exists.
func (r FileRenamer) Exists(path string) (bool, error) {
	_, err := os.Stat(r.resolve(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Rename moves, or with KeepSource copies, the file.
func (r FileRenamer) Rename(from string, to string) error {
	if !r.KeepSource {
		return os.Rename(r.resolve(from), r.resolve(to))
	}
	return copyFile(r.resolve(from), r.resolve(to))
}

func (r FileRenamer) resolve(path string) string {
	if filepath.IsAbs(path) || r.Root == "" {
		return path
	}
	return filepath.Join(r.Root, path)
}

func copyFile(from string, to string) error {
	source, err := os.Open(from)
	if err != nil {
		return err
	}
	defer source.Close()

	target, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(target, source); err != nil {
		target.Close()
		os.Remove(to)
		return err
	}
	return target.Close()
}

// Apply writes a classification into a document and keeps the derived fields
// (type, doc_type, metadata.is_supplementary, file names) consistent with it.
//
// Apply is idempotent: when every field already holds its target value the
// document is left untouched and Changed is false. Files are not touched;
// the moves the rewritten path fields need are returned in Moves.
func (c *Classifier) Apply(document *corpus.LegalDocument, classification Classification) ApplyResult {
	return Apply(document, classification)
}

// Apply is the rule-independent implementation of Classifier.Apply.
func Apply(document *corpus.LegalDocument, classification Classification) ApplyResult {
	var result ApplyResult
	supplementary := classification.Category == corpus.CategorySupplementary

	subcategory := ""
	if supplementary {
		subcategory = classification.Subcategory
	}

	setString := func(field string, target *string, value string) {
		if *target != value {
			result.Changes = append(result.Changes, FieldChange{Field: field, From: *target, To: value})
			*target = value
		}
	}

	if document.Category != classification.Category {
		result.Changes = append(result.Changes, FieldChange{
			Field: "category",
			From:  string(document.Category),
			To:    string(classification.Category),
		})
		document.Category = classification.Category
	}
	setString("subcategory", &document.Subcategory, subcategory)
	setString("type", &document.Type, targetType(document.Type, supplementary))
	setString("doc_type", &document.DocType, targetType(document.DocType, supplementary))

	if document.Metadata.IsSupplementary != supplementary {
		result.Changes = append(result.Changes, FieldChange{
			Field: "metadata.is_supplementary",
			From:  fmt.Sprint(document.Metadata.IsSupplementary),
			To:    fmt.Sprint(supplementary),
		})
		document.Metadata.IsSupplementary = supplementary
	}

	pathFields := []struct {
		name  string
		value *string
	}{
		{"pdf_path", &document.PDFPath},
		{"source.local_pdf_path", &document.Source.LocalPDFPath},
		{"metadata.filename", &document.Metadata.Filename},
	}

	for _, field := range pathFields {
		retargeted := retargetPath(*field.value, supplementary)
		if retargeted == *field.value {
			continue
		}
		// metadata.filename is a bare name; it only names a file of its own
		// when no full path is known.
		if field.name != "metadata.filename" || (document.PDFPath == "" && document.Source.LocalPDFPath == "") {
			result.Moves = appendMove(result.Moves, RenamedFile{From: *field.value, To: retargeted})
		}
		setString(field.name, field.value, retargeted)
	}

	result.Changed = len(result.Changes) > 0
	return result
}

// RenameFiles runs planned moves. A missing source is skipped, an existing
// target is reported as a conflict and leaves the source in place. Other
// failures are joined into the returned error; the remaining moves still run.
func RenameFiles(renamer Renamer, moves []RenamedFile) (RenameResult, error) {
	var result RenameResult
	if renamer == nil {
		return result, nil
	}

	var errs []error
	for _, move := range moves {
		renamed, conflict, err := renameFile(renamer, move)
		switch {
		case err != nil:
			errs = append(errs, err)
		case conflict != nil:
			result.Conflicts = append(result.Conflicts, conflict)
		case renamed:
			result.Renamed = append(result.Renamed, move)
		}
	}
	return result, errors.Join(errs...)
}

func renameFile(renamer Renamer, move RenamedFile) (bool, *RenameConflictError, error) {
	sourceExists, err := renamer.Exists(move.From)
	if err != nil {
		return false, nil, fmt.Errorf("checking %s: %w", move.From, err)
	}
	if !sourceExists {
		return false, nil, nil
	}

	targetExists, err := renamer.Exists(move.To)
	if err != nil {
		return false, nil, fmt.Errorf("checking %s: %w", move.To, err)
	}
	if targetExists {
		return false, &RenameConflictError{From: move.From, To: move.To}, nil
	}

	if err := renamer.Rename(move.From, move.To); err != nil {
		return false, nil, fmt.Errorf("renaming %s: %w", move.From, err)
	}
	return true, nil, nil
}

func appendMove(moves []RenamedFile, move RenamedFile) []RenamedFile {
	for _, existing := range moves {
		if filepath.Clean(existing.From) == filepath.Clean(move.From) {
			return moves
		}
	}
	return append(moves, move)
}

func targetType(current string, supplementary bool) string {
	if supplementary {
		return corpus.TypeMerkblatt
	}
	if current == corpus.TypeMerkblatt {
		return corpus.TypeLaw
	}
	return current
}

// retargetPath swaps the _law.pdf / _merkblatt.pdf suffix to agree with the category.
func retargetPath(path string, supplementary bool) string {
	lower := strings.ToLower(path)
	switch {
	case supplementary && strings.HasSuffix(lower, lawFileSuffix):
		return path[:len(path)-len(lawFileSuffix)] + merkblattFileSuffix
	case !supplementary && strings.HasSuffix(lower, merkblattFileSuffix):
		return path[:len(path)-len(merkblattFileSuffix)] + lawFileSuffix
	default:
		return path
	}
}
