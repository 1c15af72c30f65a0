package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coolbeans/safetylex/pkg/classify"
	"github.com/coolbeans/safetylex/pkg/clean"
	"github.com/coolbeans/safetylex/pkg/config"
	"github.com/coolbeans/safetylex/pkg/corpus"
	"github.com/coolbeans/safetylex/pkg/logger"
	"github.com/coolbeans/safetylex/pkg/pdftext"
	"github.com/coolbeans/safetylex/pkg/pipeline"
	"github.com/coolbeans/safetylex/pkg/ruleset"
)

var version = "0.1.0"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	envFile       string
	jurisdictions []string
	dataDir       string
	outputDir     string
	pdfDir        string
	rulesDir      string
	logMode       string
	workers       int
	useAI         bool
	jsonReport    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "safetylex",
		Short: "Workplace-safety legal corpus processor",
		Long: `Safetylex turns scraped Austrian, German and Dutch workplace-safety
law into a classified, chapter-structured and cleaned corpus.

Each jurisdiction is one JSON file ({jurisdiction}_database.json) in the
data directory. Every run backs the file up before overwriting it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&flags.envFile, "env-file", ".env", "Optional .env file with settings")
	persistent.StringSliceVarP(&flags.jurisdictions, "jurisdiction", "j", nil, "Jurisdictions to process (default: all)")
	persistent.StringVar(&flags.dataDir, "data-dir", "", "Directory with the corpus JSON files")
	persistent.StringVar(&flags.outputDir, "output", "", "Write results to this directory instead of overwriting")
	persistent.StringVar(&flags.pdfDir, "pdf-dir", "", "Directory the document PDF paths are relative to")
	persistent.StringVar(&flags.rulesDir, "rules-dir", "", "Directory with YAML rule overrides")
	persistent.StringVar(&flags.logMode, "log-mode", "", "Log format: dev or prod")
	persistent.IntVar(&flags.workers, "workers", 0, "Documents cleaned concurrently")
	persistent.BoolVar(&flags.useAI, "ai", false, "Clean with the generative service, falling back to regex")
	persistent.BoolVar(&flags.jsonReport, "json", false, "Print the run report as JSON")

	rootCmd.AddCommand(stageCmd(flags, pipeline.StageClassify, "Classify documents as law or supplementary material"))
	rootCmd.AddCommand(stageCmd(flags, pipeline.StageRestructure, "Group sections into official chapters"))
	rootCmd.AddCommand(stageCmd(flags, pipeline.StageExtract, "Extract text of supplementary documents from stored PDFs"))
	rootCmd.AddCommand(stageCmd(flags, pipeline.StageClean, "Remove publisher boilerplate from document text"))
	rootCmd.AddCommand(runCmd(flags))
	rootCmd.AddCommand(rulesCmd(flags))

	return rootCmd
}

func stageCmd(flags *globalFlags, stage pipeline.Stage, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(stage),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(cmd, flags, []pipeline.Stage{stage})
		},
	}
}

func runCmd(flags *globalFlags) *cobra.Command {
	var stageNames []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run several stages in one pass",
		Long: `Run stages in their fixed order (classify, restructure, extract, clean)
and save each corpus file once.

Example:
  safetylex run -j DE -j AT
  safetylex run --stages classify,restructure --output out/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stages := pipeline.AllStages()
			if len(stageNames) > 0 {
				parsed, err := pipeline.ParseStages(stageNames)
				if err != nil {
					return err
				}
				stages = parsed
			}
			return runStages(cmd, flags, stages)
		},
	}

	cmd.Flags().StringSliceVar(&stageNames, "stages", nil, "Stages to run (default: all)")
	return cmd
}

func rulesCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect classification and chapter rules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the active rules per jurisdiction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, log, err := loadSettings(flags)
			if err != nil {
				return err
			}
			defer log.Sync()

			registry, err := ruleset.NewRegistryWithDirectory(settings.RulesDir, log)
			if err != nil {
				return err
			}
			printRules(cmd.OutOrStdout(), registry)
			return nil
		},
	})

	var watch bool
	validateCmd := &cobra.Command{
		Use:   "validate [file...]",
		Short: "Validate rule files, or the rules directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, log, err := loadSettings(flags)
			if err != nil {
				return err
			}
			defer log.Sync()
			out := cmd.OutOrStdout()

			if len(args) > 0 {
				failed := 0
				for _, path := range args {
					rules, err := ruleset.ValidateFile(path)
					if err != nil {
						failed++
						fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
						continue
					}
					fmt.Fprintf(out, "ok   %s (%s, %d chapter tables)\n", path, rules.Jurisdiction, len(rules.Abbreviations()))
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d rule files invalid", failed, len(args))
				}
				return nil
			}

			if settings.RulesDir == "" {
				return fmt.Errorf("no rule files given and no rules directory configured")
			}
			registry, err := ruleset.NewRegistryWithDirectory(settings.RulesDir, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "rules in %s are valid\n", settings.RulesDir)

			if !watch {
				return nil
			}

			registry.SetOnChange(func(event string, path string, err error) {
				if err != nil {
					fmt.Fprintf(out, "%s %s: INVALID: %v\n", event, path, err)
					return
				}
				fmt.Fprintf(out, "%s %s: ok\n", event, path)
			})
			if err := registry.Watch(); err != nil {
				return err
			}
			defer registry.StopWatch()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(out, "watching %s, press Ctrl+C to stop\n", settings.RulesDir)
			<-ctx.Done()
			return nil
		},
	}
	validateCmd.Flags().BoolVar(&watch, "watch", false, "Keep validating the rules directory on every change")
	cmd.AddCommand(validateCmd)

	return cmd
}

// loadSettings reads the environment and applies the flags that were set.
func loadSettings(flags *globalFlags) (*config.Config, *logger.Logger, error) {
	settings, err := config.Load(flags.envFile)
	if err != nil {
		return nil, nil, err
	}

	if flags.dataDir != "" {
		settings.DataDir = flags.dataDir
	}
	if flags.outputDir != "" {
		settings.OutputDir = flags.outputDir
	}
	if flags.pdfDir != "" {
		settings.PDFDir = flags.pdfDir
	}
	if flags.rulesDir != "" {
		settings.RulesDir = flags.rulesDir
	}
	if flags.logMode != "" {
		settings.LogMode = flags.logMode
	}
	if flags.workers > 0 {
		settings.Workers = flags.workers
	}
	if flags.useAI {
		settings.Cleaning.UseAI = true
	}

	if err := settings.Validate(); err != nil {
		return nil, nil, err
	}

	log, err := logger.New(settings.LogMode)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return settings, log, nil
}

func runStages(cmd *cobra.Command, flags *globalFlags, stages []pipeline.Stage) error {
	settings, log, err := loadSettings(flags)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := ruleset.NewRegistryWithDirectory(settings.RulesDir, log)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	cleaner, err := buildCleaner(ctx, settings, log)
	if err != nil {
		return err
	}

	runner, err := pipeline.NewRunner(pipeline.Config{
		Repository: corpus.NewFileRepository(settings.DataDir).WithOutputDir(settings.OutputDir),
		Rules:      registry.Snapshot(),
		PDFDir:     settings.PDFDir,
		Renamer:    classify.FileRenamer{Root: settings.PDFDir, KeepSource: settings.OutputDir != ""},
		Extractor:  pdftext.DefaultChain(),
		Cleaner:    cleaner,
		Workers:    settings.Workers,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	jurisdictions := flags.jurisdictions
	if len(jurisdictions) == 0 {
		jurisdictions = corpus.KnownJurisdictions()
	}

	report, runErr := runner.Run(ctx, jurisdictions, stages)
	if report != nil {
		if err := printReport(cmd.OutOrStdout(), report, flags.jsonReport); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d jurisdictions failed", report.Failed, len(report.Jurisdictions))
	}
	return nil
}

// buildCleaner creates the cleaning pipeline, with the configured AI back-end when requested.
func buildCleaner(ctx context.Context, settings *config.Config, log *logger.Logger) (*clean.Pipeline, error) {
	cleaning := settings.Cleaning
	if !cleaning.UseAI {
		return clean.NewPipeline(nil, cleaning.PipelineOptions(), log), nil
	}

	var generator clean.Generator
	switch strings.ToLower(cleaning.Provider) {
	case config.ProviderOpenAI:
		openAI, err := clean.NewOpenAIGenerator(clean.OpenAIConfig{
			APIKey:  cleaning.OpenAIAPIKey,
			Model:   cleaning.Model,
			BaseURL: cleaning.OpenAIBaseURL,
		}, nil)
		if err != nil {
			return nil, err
		}
		generator = openAI
	default:
		gemini, err := clean.NewGeminiGenerator(ctx, clean.GeminiConfig{
			APIKey: cleaning.GoogleAPIKey,
			Model:  cleaning.Model,
		})
		if err != nil {
			return nil, err
		}
		generator = gemini
	}

	log.Info("AI cleaning enabled", "generator", generator.Name(), "call_delay", cleaning.CallDelay, "document_delay", cleaning.DocumentDelay)
	ai := clean.NewAICleaner(generator, cleaning.AISettings(), clean.NewLimiter(cleaning.CallDelay), log)
	return clean.NewPipeline(ai, cleaning.PipelineOptions(), log), nil
}

func printReport(out io.Writer, report *pipeline.RunReport, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	for _, jurisdictionReport := range report.Jurisdictions {
		fmt.Fprintf(out, "%s: %s (%d documents)\n", jurisdictionReport.Jurisdiction, jurisdictionReport.Status, jurisdictionReport.Documents)
		if jurisdictionReport.Error != "" {
			fmt.Fprintf(out, "  error: %s\n", jurisdictionReport.Error)
		}
		if jurisdictionReport.BackupPath != "" {
			fmt.Fprintf(out, "  backup: %s\n", jurisdictionReport.BackupPath)
		}
		if classification := jurisdictionReport.Classification; classification != nil {
			fmt.Fprintf(out, "  classify: %d law, %d supplementary, %d changed, %d rename conflicts\n",
				classification.Primary, classification.Supplementary, classification.Changed, len(classification.Conflicts))
		}
		if restructured := jurisdictionReport.Restructure; restructured != nil {
			fmt.Fprintf(out, "  restructure: %d documents, %d without table, %d duplicates removed, %d sections dropped\n",
				restructured.Restructured, restructured.NoTable, restructured.DuplicatesRemoved, restructured.Dropped)
			for _, entry := range restructured.Documents {
				if len(entry.Dropped) > 0 {
					fmt.Fprintf(out, "    %s dropped: %s\n", entry.Abbreviation, strings.Join(entry.Dropped, ", "))
				}
			}
		}
		if extraction := jurisdictionReport.Extraction; extraction != nil {
			fmt.Fprintf(out, "  extract: %d extracted, %d failed, %d without file\n",
				extraction.Extracted, extraction.Failed, extraction.MissingFile)
		}
		if cleaning := jurisdictionReport.Cleaning; cleaning != nil {
			fmt.Fprintf(out, "  clean: %d units, %d ai, %d fallback, %d regex, %d skipped, %d failed\n",
				cleaning.Units, cleaning.AI, cleaning.Fallback, cleaning.Regex, cleaning.Skipped, cleaning.Failed)
		}
	}
	fmt.Fprintf(out, "\n%d succeeded, %d failed\n", report.Succeeded, report.Failed)
	return nil
}

func printRules(out io.Writer, registry *ruleset.Registry) {
	snapshot := registry.Snapshot()
	sources := registry.Sources()

	for _, jurisdiction := range snapshot.Jurisdictions() {
		rules, _ := snapshot.Rules(jurisdiction)
		fmt.Fprintf(out, "%s (%s)\n", jurisdiction, sources[jurisdiction])

		fmt.Fprintln(out, "  subcategories:")
		for _, subcategory := range rules.Classifier().Rules().Subcategories() {
			fmt.Fprintf(out, "    %-14s %s\n", subcategory.Label, subcategory.Title)
		}

		fmt.Fprintln(out, "  chapter tables:")
		for _, abbreviation := range rules.Abbreviations() {
			table, _ := rules.ChapterTable(abbreviation)
			fmt.Fprintf(out, "    %-14s %d chapters\n", abbreviation, len(table.Rules()))
		}
	}
}
