package corpus

import (
	"fmt"
	"sync"
)

// MemoryRepository keeps corpora in memory. It is used by tests and dry runs.
type MemoryRepository struct {
	mu      sync.Mutex
	corpora map[string][]byte
	backups map[string][][]byte
	saves   int
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		corpora: make(map[string][]byte),
		backups: make(map[string][][]byte),
	}
}

// Put stores a corpus without counting it as a save.
func (r *MemoryRepository) Put(jurisdiction string, corpus *Corpus) error {
	data, err := Encode(corpus)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.corpora[NormalizeJurisdiction(jurisdiction)] = data
	return nil
}

// Load decodes a fresh copy of the stored corpus.
func (r *MemoryRepository) Load(jurisdiction string) (*Corpus, error) {
	r.mu.Lock()
	data, ok := r.corpora[NormalizeJurisdiction(jurisdiction)]
	r.mu.Unlock()

	if !ok {
		return nil, &LoadError{Path: jurisdiction, Err: fmt.Errorf("no corpus stored")}
	}

	corpus, err := Decode(data)
	if err != nil {
		return nil, &LoadError{Path: jurisdiction, Err: err}
	}
	return corpus, nil
}

// Save replaces the stored corpus.
func (r *MemoryRepository) Save(jurisdiction string, corpus *Corpus) error {
	data, err := Encode(corpus)
	if err != nil {
		return &SaveError{Path: jurisdiction, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.corpora[NormalizeJurisdiction(jurisdiction)] = data
	r.saves++
	return nil
}

// Backup records a copy of the currently stored corpus.
func (r *MemoryRepository) Backup(jurisdiction string) (string, error) {
	key := NormalizeJurisdiction(jurisdiction)

	r.mu.Lock()
	defer r.mu.Unlock()

	data, ok := r.corpora[key]
	if !ok {
		return "", &SaveError{Path: jurisdiction, Err: fmt.Errorf("no corpus stored")}
	}
	snapshot := make([]byte, len(data))
	copy(snapshot, data)
	r.backups[key] = append(r.backups[key], snapshot)
	return fmt.Sprintf("memory://%s/backup-%d", key, len(r.backups[key])), nil
}

// Backups returns the raw backup snapshots taken for a jurisdiction.
func (r *MemoryRepository) Backups(jurisdiction string) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backups[NormalizeJurisdiction(jurisdiction)]
}

// Saves returns how many times Save succeeded.
func (r *MemoryRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}
