package clean

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/coolbeans/safetylex/pkg/logger"
	"github.com/coolbeans/safetylex/pkg/retry"
)

// GenerateRequest is one call to a generative cleaning service.
type GenerateRequest struct {
	SystemInstruction string
	Text              string
	Temperature       float32
	MaxOutputTokens   int32
}

// Generator is a generative text service. Implementations return the raw
// response text; every error is treated as retryable unless marked with
// retry.Permanent.
type Generator interface {
	Name() string
	Generate(ctx context.Context, request GenerateRequest) (string, error)
}

// AISettings tunes the AI strategy.
type AISettings struct {
	MaxAttempts     int
	Backoff         retry.Backoff
	MaxInputChars   int
	Temperature     float32
	MaxOutputTokens int32

	// Timeout bounds a single service call. Zero means no per-call bound.
	Timeout time.Duration
}

// DefaultAISettings returns 3 attempts with 2^attempt second backoff.
func DefaultAISettings() AISettings {
	return AISettings{
		MaxAttempts:     3,
		Backoff:         retry.Exponential(time.Second, 0),
		MaxInputChars:   30000,
		Temperature:     0.1,
		MaxOutputTokens: 8192,
		Timeout:         2 * time.Minute,
	}
}

// AICleaner is the generative cleaning strategy.
type AICleaner struct {
	generator Generator
	regex     *RegexCleaner
	settings  AISettings
	limiter   *rate.Limiter
	logger    *logger.Logger
}

// NewAICleaner creates an AI cleaner. limiter spaces out service calls and is
// meant to be shared by every goroutine talking to the same service; nil
// means no spacing.
func NewAICleaner(generator Generator, settings AISettings, limiter *rate.Limiter, log *logger.Logger) *AICleaner {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if settings.Backoff == nil {
		settings.Backoff = retry.Exponential(time.Second, 0)
	}
	return &AICleaner{
		generator: generator,
		regex:     NewRegexCleaner(),
		settings:  settings,
		limiter:   limiter,
		logger:    logger.OrNop(log),
	}
}

// Clean sends text to the service. Text beyond MaxInputChars runes is not
// sent; it is regex-cleaned and appended so no provision is lost. Exhausted
// retries yield a *CleaningServiceError; a cancelled context yields the
// context error.
func (c *AICleaner) Clean(ctx context.Context, jurisdiction string, text string) (string, error) {
	head, tail := splitRunes(text, c.settings.MaxInputChars)

	request := GenerateRequest{
		SystemInstruction: SystemInstruction(jurisdiction),
		Text:              head,
		Temperature:       c.settings.Temperature,
		MaxOutputTokens:   c.settings.MaxOutputTokens,
	}

	cleaned, err := retry.Do(ctx, c.settings.MaxAttempts, c.settings.Backoff,
		func(ctx context.Context) (string, error) {
			return c.call(ctx, request)
		},
		retry.OnRetry(func(attempt int, err error, delay time.Duration) {
			c.logger.Warn("cleaning call failed, retrying",
				"generator", c.generator.Name(),
				"jurisdiction", jurisdiction,
				"attempt", attempt+1,
				"delay", delay,
				"error", err)
		}))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &CleaningServiceError{
			Generator:    c.generator.Name(),
			Jurisdiction: jurisdiction,
			Err:          err,
		}
	}

	if tail != "" {
		cleaned = cleaned + "\n\n" + c.regex.Clean(jurisdiction, tail)
	}
	return cleaned, nil
}

func (c *AICleaner) call(ctx context.Context, request GenerateRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", retry.Permanent(err)
	}

	callCtx := ctx
	if c.settings.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.settings.Timeout)
		defer cancel()
	}

	response, err := c.generator.Generate(callCtx, request)
	if err != nil {
		return "", err
	}

	cleaned := stripCodeFence(response)
	if strings.TrimSpace(cleaned) == "" {
		return "", &MalformedResponseError{Reason: "empty text"}
	}
	return cleaned, nil
}

// splitRunes cuts text after limit runes. A limit <= 0 keeps everything in head.
func splitRunes(text string, limit int) (string, string) {
	if limit <= 0 {
		return text, ""
	}

	count := 0
	for index := range text {
		if count == limit {
			return text[:index], text[index:]
		}
		count++
	}
	return text, ""
}

func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		trimmed = trimmed[newline+1:]
	} else {
		trimmed = ""
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
