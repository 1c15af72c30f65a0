package clean

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/coolbeans/safetylex/pkg/corpus"
	"github.com/coolbeans/safetylex/pkg/logger"
)

// Outcome is how a single text unit was cleaned.
type Outcome string

const (
	OutcomeAI       Outcome = "ai"
	OutcomeFallback Outcome = "fallback"
	OutcomeRegex    Outcome = "regex"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Summary counts unit outcomes. Units is the total of all the others.
type Summary struct {
	Units    int `json:"units"`
	AI       int `json:"ai"`
	Fallback int `json:"fallback"`
	Regex    int `json:"regex"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Record counts one outcome.
func (s *Summary) Record(outcome Outcome) {
	s.Units++
	switch outcome {
	case OutcomeAI:
		s.AI++
	case OutcomeFallback:
		s.Fallback++
	case OutcomeRegex:
		s.Regex++
	case OutcomeFailed:
		s.Failed++
	case OutcomeSkipped:
		s.Skipped++
	}
}

// Add merges another summary into this one.
func (s *Summary) Add(other Summary) {
	s.Units += other.Units
	s.AI += other.AI
	s.Fallback += other.Fallback
	s.Regex += other.Regex
	s.Failed += other.Failed
	s.Skipped += other.Skipped
}

// Method names the strategy mix recorded in metadata: "ai", "regex" or "ai+regex".
func (s Summary) Method() string {
	switch {
	case s.AI > 0 && s.Fallback+s.Regex > 0:
		return "ai+regex"
	case s.AI > 0:
		return "ai"
	case s.Fallback+s.Regex > 0:
		return "regex"
	default:
		return ""
	}
}

// Options controls the composition of the strategies.
type Options struct {
	// UseAI requests the AI strategy. Without an AI cleaner it has no effect.
	UseAI bool

	// MinAIChars is the shortest unit, in runes, that is sent to the AI strategy.
	MinAIChars int

	// DocumentDelay is the minimum spacing between document starts across all workers.
	DocumentDelay time.Duration
}

// Pipeline composes the AI strategy with the regex fallback. One Pipeline
// is shared by all workers of a run so its limiters are global.
type Pipeline struct {
	regex           *RegexCleaner
	ai              *AICleaner
	options         Options
	documentLimiter *rate.Limiter
	logger          *logger.Logger
}

// NewPipeline creates a pipeline. ai may be nil for regex-only runs.
func NewPipeline(ai *AICleaner, options Options, log *logger.Logger) *Pipeline {
	return &Pipeline{
		regex:           NewRegexCleaner(),
		ai:              ai,
		options:         options,
		documentLimiter: NewLimiter(options.DocumentDelay),
		logger:          logger.OrNop(log),
	}
}

// NewLimiter allows one event per delay; a non-positive delay means unlimited.
func NewLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// UsesAI reports whether the AI strategy will be attempted.
func (p *Pipeline) UsesAI() bool {
	return p.options.UseAI && p.ai != nil
}

// CleanText cleans one unit. AI failures fall back to regex for this unit
// only. The only error is context cancellation, in which case the text is
// returned unchanged with OutcomeFailed.
func (p *Pipeline) CleanText(ctx context.Context, jurisdiction string, text string) (string, Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return text, OutcomeSkipped, nil
	}
	if err := ctx.Err(); err != nil {
		return text, OutcomeFailed, err
	}

	if !p.UsesAI() || len([]rune(text)) < p.options.MinAIChars {
		return p.regex.Clean(jurisdiction, text), OutcomeRegex, nil
	}

	cleaned, err := p.ai.Clean(ctx, jurisdiction, text)
	if err == nil {
		return Normalize(cleaned), OutcomeAI, nil
	}
	if ctx.Err() != nil {
		return text, OutcomeFailed, ctx.Err()
	}

	var serviceErr *CleaningServiceError
	if errors.As(err, &serviceErr) {
		p.logger.Warn("AI cleaning failed, using regex", "jurisdiction", jurisdiction, "error", serviceErr)
	} else {
		p.logger.Warn("AI cleaning error, using regex", "jurisdiction", jurisdiction, "error", err)
	}
	return p.regex.Clean(jurisdiction, text), OutcomeFallback, nil
}

// CleanDocument cleans full_text and every section text of a document in
// place, sequentially. When the AI strategy is in use it waits on the shared
// document limiter first. On cancellation the units not yet cleaned are left
// as they were and the context error is returned with the partial summary.
func (p *Pipeline) CleanDocument(ctx context.Context, jurisdiction string, document *corpus.LegalDocument) (Summary, error) {
	var summary Summary
	if p.UsesAI() {
		if err := p.documentLimiter.Wait(ctx); err != nil {
			return summary, err
		}
	}

	units := []*string{&document.FullText}
	for chapterIndex := range document.Chapters {
		for sectionIndex := range document.Chapters[chapterIndex].Sections {
			units = append(units, &document.Chapters[chapterIndex].Sections[sectionIndex].Text)
		}
	}
	for sectionIndex := range document.Sections {
		units = append(units, &document.Sections[sectionIndex].Text)
	}

	for _, unit := range units {
		cleaned, outcome, err := p.CleanText(ctx, jurisdiction, *unit)
		summary.Record(outcome)
		if err != nil {
			return summary, err
		}
		*unit = cleaned
	}

	if method := summary.Method(); method != "" {
		document.Metadata.CleanedBy = method
	}
	return summary, nil
}
