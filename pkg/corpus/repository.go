package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	databaseFileSuffix = "_database.json"
	backupTimeLayout   = "20060102T150405Z"

	maxBackupsPerSecond = 100
)

// LoadError reports a missing, unreadable or malformed corpus file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load corpus %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SaveError reports a corpus file that could not be written.
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("failed to save corpus %s: %v", e.Path, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// Repository loads and stores one corpus per jurisdiction.
type Repository interface {
	// Load reads the corpus of a jurisdiction.
	Load(jurisdiction string) (*Corpus, error)

	// Save overwrites the corpus of a jurisdiction in full.
	Save(jurisdiction string, corpus *Corpus) error

	// Backup copies the current, unmodified corpus file and returns the backup path.
	Backup(jurisdiction string) (string, error)
}

// FileRepository stores each jurisdiction as {jurisdiction}_database.json in a directory.
type FileRepository struct {
	mu        sync.Mutex
	dataDir   string
	outputDir string
	now       func() time.Time
}

// NewFileRepository creates a repository reading and writing in dataDir.
func NewFileRepository(dataDir string) *FileRepository {
	return &FileRepository{
		dataDir:   dataDir,
		outputDir: dataDir,
		now:       time.Now,
	}
}

// WithOutputDir directs saves to a different directory; loads and backups still use the data directory.
func (r *FileRepository) WithOutputDir(outputDir string) *FileRepository {
	if outputDir != "" {
		r.outputDir = outputDir
	}
	return r
}

// Path returns the input file path of a jurisdiction.
func (r *FileRepository) Path(jurisdiction string) string {
	return filepath.Join(r.dataDir, fileName(jurisdiction))
}

// OutputPath returns the file path a save for the jurisdiction writes to.
func (r *FileRepository) OutputPath(jurisdiction string) string {
	return filepath.Join(r.outputDir, fileName(jurisdiction))
}

// Load reads and decodes the corpus of a jurisdiction.
func (r *FileRepository) Load(jurisdiction string) (*Corpus, error) {
	corpusPath := r.Path(jurisdiction)

	data, err := os.ReadFile(corpusPath)
	if err != nil {
		return nil, &LoadError{Path: corpusPath, Err: err}
	}

	corpus, err := Decode(data)
	if err != nil {
		return nil, &LoadError{Path: corpusPath, Err: err}
	}

	if corpus.Metadata.Jurisdiction == "" {
		corpus.Metadata.Jurisdiction = NormalizeJurisdiction(jurisdiction)
	}
	return corpus, nil
}

// Save writes the corpus atomically: the output file is either the previous
// version or the complete new one, never a partial write.
func (r *FileRepository) Save(jurisdiction string, corpus *Corpus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	outputPath := r.OutputPath(jurisdiction)

	data, err := Encode(corpus)
	if err != nil {
		return &SaveError{Path: outputPath, Err: err}
	}

	if err := writeFileAtomic(outputPath, data); err != nil {
		return &SaveError{Path: outputPath, Err: err}
	}
	return nil
}

// Backup copies the corpus file byte for byte next to the original.
func (r *FileRepository) Backup(jurisdiction string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	corpusPath := r.Path(jurisdiction)
	data, err := os.ReadFile(corpusPath)
	if err != nil {
		return "", &SaveError{Path: corpusPath, Err: fmt.Errorf("reading for backup: %w", err)}
	}

	backupPath, err := r.freeBackupPath(corpusPath)
	if err != nil {
		return "", &SaveError{Path: corpusPath, Err: err}
	}

	if err := writeFileAtomic(backupPath, data); err != nil {
		return "", &SaveError{Path: backupPath, Err: err}
	}
	return backupPath, nil
}

// freeBackupPath names the backup after the current UTC second. Backups
// taken within the same second get a -2, -3, ... suffix.
func (r *FileRepository) freeBackupPath(corpusPath string) (string, error) {
	base := strings.TrimSuffix(corpusPath, ".json") + ".backup-" + r.now().UTC().Format(backupTimeLayout)

	for attempt := 1; attempt <= maxBackupsPerSecond; attempt++ {
		candidate := base + ".json"
		if attempt > 1 {
			candidate = fmt.Sprintf("%s-%d.json", base, attempt)
		}
		_, err := os.Stat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking %s: %w", candidate, err)
		}
	}
	return "", fmt.Errorf("more than %d backups within one second", maxBackupsPerSecond)
}

func fileName(jurisdiction string) string {
	return strings.ToLower(NormalizeJurisdiction(jurisdiction)) + databaseFileSuffix
}

func writeFileAtomic(path string, data []byte) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", directory, err)
	}

	temporaryFile, err := os.CreateTemp(directory, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	temporaryPath := temporaryFile.Name()
	defer os.Remove(temporaryPath)

	if _, err := temporaryFile.Write(data); err != nil {
		temporaryFile.Close()
		return fmt.Errorf("write error: %w", err)
	}
	if err := temporaryFile.Sync(); err != nil {
		temporaryFile.Close()
		return fmt.Errorf("sync error: %w", err)
	}
	if err := temporaryFile.Close(); err != nil {
		return fmt.Errorf("close error: %w", err)
	}
	if err := os.Chmod(temporaryPath, 0644); err != nil {
		return fmt.Errorf("chmod error: %w", err)
	}

	return os.Rename(temporaryPath, path)
}
