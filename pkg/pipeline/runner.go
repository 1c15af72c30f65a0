// Package pipeline runs the corpus stages (classify, restructure, extract,
// clean) over the corpus file of each jurisdiction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/coolbeans/safetylex/pkg/classify"
	"github.com/coolbeans/safetylex/pkg/clean"
	"github.com/coolbeans/safetylex/pkg/corpus"
	"github.com/coolbeans/safetylex/pkg/logger"
	"github.com/coolbeans/safetylex/pkg/restructure"
	"github.com/coolbeans/safetylex/pkg/ruleset"
)

// TextExtractor pulls text out of a stored PDF and names the strategy that succeeded.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, string, error)
}

// Config wires a Runner. Repository and Rules are required; the other
// collaborators are only needed by the stages that use them.
type Config struct {
	Repository corpus.Repository
	Rules      *ruleset.Snapshot

	// PDFDir resolves relative PDF paths for renames and extraction.
	PDFDir    string
	Renamer   classify.Renamer
	Extractor TextExtractor
	Cleaner   *clean.Pipeline

	// Workers bounds concurrent document cleaning. Values below 1 mean 1.
	Workers int
	Logger  *logger.Logger
}

// Runner executes stages per jurisdiction.
type Runner struct {
	repository corpus.Repository
	rules      *ruleset.Snapshot
	pdfDir     string
	renamer    classify.Renamer
	extractor  TextExtractor
	cleaner    *clean.Pipeline
	workers    int
	logger     *logger.Logger
}

// NewRunner validates the configuration.
func NewRunner(config Config) (*Runner, error) {
	if config.Repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if config.Rules == nil {
		return nil, fmt.Errorf("rules snapshot is required")
	}
	workers := config.Workers
	if workers < 1 {
		workers = 1
	}

	return &Runner{
		repository: config.Repository,
		rules:      config.Rules,
		pdfDir:     config.PDFDir,
		renamer:    config.Renamer,
		extractor:  config.Extractor,
		cleaner:    config.Cleaner,
		workers:    workers,
		logger:     logger.OrNop(config.Logger),
	}, nil
}

// Run processes each jurisdiction in turn. A jurisdiction whose file cannot
// be loaded, backed up or saved is reported as failed and the run goes on.
// The returned error is non-nil only when ctx was cancelled.
func (r *Runner) Run(ctx context.Context, jurisdictions []string, stages []Stage) (*RunReport, error) {
	report := &RunReport{}
	ordered := append([]Stage(nil), stages...)
	sortStages(ordered)

	for _, jurisdiction := range jurisdictions {
		jurisdictionReport, err := r.RunJurisdiction(ctx, jurisdiction, ordered)
		report.add(jurisdictionReport)
		if err != nil && ctx.Err() != nil {
			return report, ctx.Err()
		}
	}
	return report, nil
}

// RunJurisdiction loads one corpus file, backs it up, runs the stages in
// memory and saves the result once. Nothing is written when a stage is
// interrupted, so the output is either the old or the complete new file.
// PDF renames planned by classify run only after the save succeeded.
func (r *Runner) RunJurisdiction(ctx context.Context, jurisdiction string, stages []Stage) (*JurisdictionReport, error) {
	jurisdiction = corpus.NormalizeJurisdiction(jurisdiction)
	report := &JurisdictionReport{Jurisdiction: jurisdiction, Status: StatusFailed}
	log := r.logger.With("jurisdiction", jurisdiction)

	fail := func(err error) (*JurisdictionReport, error) {
		report.Error = err.Error()
		log.Error("jurisdiction failed", "error", err)
		return report, err
	}

	loaded, err := r.repository.Load(jurisdiction)
	if err != nil {
		return fail(err)
	}
	report.Documents = len(loaded.Documents)

	backupPath, err := r.repository.Backup(jurisdiction)
	if err != nil {
		return fail(err)
	}
	report.BackupPath = backupPath
	log.Info("corpus loaded", "documents", report.Documents, "backup", backupPath)

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		switch stage {
		case StageClassify:
			report.Classification, err = r.classify(jurisdiction, loaded, log)
			loaded.Metadata.ClassifiedAt = corpus.Stamp()
		case StageRestructure:
			report.Restructure, err = r.restructure(jurisdiction, loaded, log)
			loaded.Metadata.RestructuredAt = corpus.Stamp()
		case StageExtract:
			report.Extraction, err = r.extract(ctx, loaded, pendingSources(report.Classification), log)
			loaded.Metadata.TextExtractedAt = corpus.Stamp()
		case StageClean:
			report.Cleaning, err = r.clean(ctx, jurisdiction, loaded)
			if err == nil {
				loaded.Metadata.CleanedAt = corpus.Stamp()
				loaded.Metadata.CleaningMethod = report.Cleaning.Method()
			}
		default:
			err = fmt.Errorf("unknown stage %q", stage)
		}
		if err != nil {
			return fail(fmt.Errorf("%s stage: %w", stage, err))
		}
	}

	if err := r.repository.Save(jurisdiction, loaded); err != nil {
		return fail(err)
	}
	if report.Classification != nil {
		r.renameFiles(report.Classification, log)
	}

	report.Status = StatusSucceeded
	log.Info("corpus saved", "documents", len(loaded.Documents))
	return report, nil
}

func (r *Runner) classify(jurisdiction string, loaded *corpus.Corpus, log *logger.Logger) (*ClassificationReport, error) {
	classifier, ok := r.rules.Classifier(jurisdiction)
	if !ok {
		return nil, fmt.Errorf("no classification rules for %s", jurisdiction)
	}

	report := &ClassificationReport{}
	for _, legalDocument := range loaded.Documents {
		result := classifier.Apply(legalDocument, classifier.Classify(legalDocument))

		if legalDocument.IsSupplementary() {
			report.Supplementary++
		} else {
			report.Primary++
		}
		if result.Changed {
			report.Changed++
			report.Documents = append(report.Documents, DocumentChange{
				Abbreviation: legalDocument.DisplayName(),
				Changes:      result.Changes,
				Moves:        result.Moves,
			})
		}
	}

	log.Info("classified", "primary", report.Primary, "supplementary", report.Supplementary, "changed", report.Changed)
	return report, nil
}

// renameFiles runs the file moves planned by the classify stage. It is called
// only after the corpus naming the new files has been saved.
func (r *Runner) renameFiles(report *ClassificationReport, log *logger.Logger) {
	for i := range report.Documents {
		change := &report.Documents[i]
		if len(change.Moves) == 0 {
			continue
		}

		result, err := classify.RenameFiles(r.renamer, change.Moves)
		change.Renamed = result.Renamed
		if err != nil {
			report.RenameErrors = append(report.RenameErrors, fmt.Sprintf("%s: %v", change.Abbreviation, err))
			log.Warn("rename failed", "document", change.Abbreviation, "error", err)
		}
		for _, conflict := range result.Conflicts {
			report.Conflicts = append(report.Conflicts, conflict.Error())
			log.Warn("rename conflict", "document", change.Abbreviation, "from", conflict.From, "to", conflict.To)
		}
	}
}

// pendingSources maps each planned move target to its still unrenamed source.
func pendingSources(report *ClassificationReport) map[string]string {
	if report == nil {
		return nil
	}
	sources := make(map[string]string)
	for _, change := range report.Documents {
		for _, move := range change.Moves {
			sources[move.To] = move.From
		}
	}
	return sources
}

func (r *Runner) restructure(jurisdiction string, loaded *corpus.Corpus, log *logger.Logger) (*RestructureReport, error) {
	report := &RestructureReport{}
	for _, legalDocument := range loaded.Documents {
		table, ok := r.rules.ChapterTable(jurisdiction, legalDocument.Abbreviation)
		if !ok {
			report.NoTable++
			continue
		}

		result := restructure.RestructureDocument(legalDocument, table)
		report.Restructured++
		report.DuplicatesRemoved += result.DuplicatesRemoved
		report.Dropped += len(result.Dropped)
		report.Documents = append(report.Documents, RestructureEntry{
			Abbreviation:      legalDocument.Abbreviation,
			SectionsBefore:    result.SectionsBefore,
			SectionsAfter:     result.SectionsAfter,
			DuplicatesRemoved: result.DuplicatesRemoved,
			Chapters:          result.Chapters,
			Dropped:           result.Dropped,
		})

		if len(result.Dropped) > 0 {
			log.Warn("sections outside every chapter range dropped",
				"document", legalDocument.Abbreviation,
				"dropped", strings.Join(result.Dropped, ","),
				"ratio", result.DropRatio())
		}
	}

	log.Info("restructured", "documents", report.Restructured, "no_table", report.NoTable, "dropped", report.Dropped)
	return report, nil
}

// extract fills the empty full_text of supplementary documents from their stored PDF.
// Files whose rename is still pending are read under their old name.
func (r *Runner) extract(ctx context.Context, loaded *corpus.Corpus, pending map[string]string, log *logger.Logger) (*ExtractionReport, error) {
	if r.extractor == nil {
		return nil, fmt.Errorf("no PDF extractor configured")
	}

	report := &ExtractionReport{ByExtractor: make(map[string]int)}
	for _, legalDocument := range loaded.Documents {
		if !legalDocument.IsSupplementary() || strings.TrimSpace(legalDocument.FullText) != "" {
			continue
		}

		pdfPath := r.localPDF(legalDocument, pending)
		if pdfPath == "" {
			report.MissingFile++
			continue
		}

		report.Attempted++
		text, extractorName, err := r.extractor.Extract(ctx, pdfPath)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			log.Warn("PDF text extraction failed", "document", legalDocument.DisplayName(), "path", pdfPath, "error", err)
			continue
		}

		legalDocument.FullText = text
		report.Extracted++
		report.ByExtractor[extractorName]++
	}

	log.Info("text extracted", "extracted", report.Extracted, "failed", report.Failed, "missing", report.MissingFile)
	return report, nil
}

// localPDF returns the first existing file among the document's path fields.
func (r *Runner) localPDF(legalDocument *corpus.LegalDocument, pending map[string]string) string {
	for _, candidate := range []string{legalDocument.Source.LocalPDFPath, legalDocument.PDFPath, legalDocument.Metadata.Filename} {
		if candidate == "" {
			continue
		}
		if resolved, ok := r.existingPDF(candidate); ok {
			return resolved
		}
		if source, ok := pending[candidate]; ok {
			if resolved, ok := r.existingPDF(source); ok {
				return resolved
			}
		}
	}
	return ""
}

func (r *Runner) existingPDF(path string) (string, bool) {
	resolved := path
	if !filepath.IsAbs(resolved) && r.pdfDir != "" {
		resolved = filepath.Join(r.pdfDir, path)
	}
	if info, err := os.Stat(resolved); err == nil && !info.IsDir() {
		return resolved, true
	}
	return "", false
}

// clean runs the cleaning pipeline over all documents on a bounded pool.
// Only cancellation aborts; unit failures are absorbed by the pipeline.
func (r *Runner) clean(ctx context.Context, jurisdiction string, loaded *corpus.Corpus) (*clean.Summary, error) {
	if r.cleaner == nil {
		return nil, fmt.Errorf("no cleaning pipeline configured")
	}

	var mu sync.Mutex
	summary := &clean.Summary{}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.workers)

	for _, legalDocument := range loaded.Documents {
		group.Go(func() error {
			documentSummary, err := r.cleaner.CleanDocument(groupCtx, jurisdiction, legalDocument)

			mu.Lock()
			summary.Add(documentSummary)
			mu.Unlock()

			return err
		})
	}

	if err := group.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return summary, err
		}
		return summary, fmt.Errorf("cleaning: %w", err)
	}

	r.logger.Info("cleaned",
		"jurisdiction", jurisdiction,
		"units", summary.Units,
		"ai", summary.AI,
		"fallback", summary.Fallback,
		"regex", summary.Regex,
		"failed", summary.Failed)
	return summary, nil
}
