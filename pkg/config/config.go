// Package config reads run settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/coolbeans/safetylex/pkg/clean"
	"github.com/coolbeans/safetylex/pkg/retry"
)

// Config holds all settings of a processing run.
type Config struct {
	DataDir   string `env:"SAFETYLEX_DATA_DIR" envDefault:"data"`
	OutputDir string `env:"SAFETYLEX_OUTPUT_DIR" envDefault:""`
	PDFDir    string `env:"SAFETYLEX_PDF_DIR" envDefault:"data/pdfs"`
	RulesDir  string `env:"SAFETYLEX_RULES_DIR" envDefault:""`
	LogMode   string `env:"SAFETYLEX_LOG_MODE" envDefault:"dev"`
	Workers   int    `env:"SAFETYLEX_WORKERS" envDefault:"1"`

	Cleaning CleaningConfig
}

// CleaningConfig holds the cleaning strategy settings.
type CleaningConfig struct {
	UseAI    bool   `env:"SAFETYLEX_USE_AI" envDefault:"false"`
	Provider string `env:"SAFETYLEX_AI_PROVIDER" envDefault:"gemini"`
	Model    string `env:"SAFETYLEX_AI_MODEL" envDefault:""`

	GoogleAPIKey  string `env:"GOOGLE_API_KEY" envDefault:""`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:""`

	MaxAttempts     int           `env:"SAFETYLEX_AI_MAX_ATTEMPTS" envDefault:"3"`
	MaxInputChars   int           `env:"SAFETYLEX_AI_MAX_INPUT_CHARS" envDefault:"30000"`
	MinAIChars      int           `env:"SAFETYLEX_AI_MIN_CHARS" envDefault:"200"`
	CallDelay       time.Duration `env:"SAFETYLEX_AI_CALL_DELAY" envDefault:"1s"`
	DocumentDelay   time.Duration `env:"SAFETYLEX_AI_DOCUMENT_DELAY" envDefault:"3s"`
	Timeout         time.Duration `env:"SAFETYLEX_AI_TIMEOUT" envDefault:"120s"`
	Temperature     float32       `env:"SAFETYLEX_AI_TEMPERATURE" envDefault:"0.1"`
	MaxOutputTokens int32         `env:"SAFETYLEX_AI_MAX_OUTPUT_TOKENS" envDefault:"8192"`
}

// Providers of the AI strategy.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Load reads envFile (if it exists) into the process environment without
// overriding variables already set, then parses the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

// FromMap parses settings from a map instead of the process environment.
func FromMap(environment map[string]string) (*Config, error) {
	config := &Config{}
	if err := env.ParseWithOptions(config, env.Options{Environment: environment}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

// Validate checks the settings that cannot be checked by parsing alone.
func (c *Config) Validate() error {
	var problems []string

	if c.DataDir == "" {
		problems = append(problems, "data directory is required")
	}
	if c.Workers < 1 {
		problems = append(problems, fmt.Sprintf("workers must be at least 1, got %d", c.Workers))
	}
	if c.Cleaning.MaxAttempts < 1 {
		problems = append(problems, fmt.Sprintf("AI max attempts must be at least 1, got %d", c.Cleaning.MaxAttempts))
	}

	if c.Cleaning.UseAI {
		switch strings.ToLower(c.Cleaning.Provider) {
		case ProviderGemini:
			if c.Cleaning.GoogleAPIKey == "" {
				problems = append(problems, "GOOGLE_API_KEY is required for the gemini provider")
			}
		case ProviderOpenAI:
			if c.Cleaning.OpenAIAPIKey == "" {
				problems = append(problems, "OPENAI_API_KEY is required for the openai provider")
			}
		default:
			problems = append(problems, fmt.Sprintf("unknown AI provider %q", c.Cleaning.Provider))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// AISettings converts the cleaning settings for clean.NewAICleaner.
// Backoff is 2^attempt seconds.
func (c CleaningConfig) AISettings() clean.AISettings {
	return clean.AISettings{
		MaxAttempts:     c.MaxAttempts,
		Backoff:         retry.Exponential(time.Second, 0),
		MaxInputChars:   c.MaxInputChars,
		Temperature:     c.Temperature,
		MaxOutputTokens: c.MaxOutputTokens,
		Timeout:         c.Timeout,
	}
}

// PipelineOptions converts the cleaning settings for clean.NewPipeline.
func (c CleaningConfig) PipelineOptions() clean.Options {
	return clean.Options{
		UseAI:         c.UseAI,
		MinAIChars:    c.MinAIChars,
		DocumentDelay: c.DocumentDelay,
	}
}
