package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-renderer/internal/generation"
	"github.com/jonathan/resume-renderer/internal/observability"
	"github.com/jonathan/resume-renderer/internal/schemas"
	"github.com/jonathan/resume-renderer/internal/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a PDF from a resume and a template",
	Long:  "Runs the full pipeline: tier check, content validation, LaTeX rendering and compilation in a sandbox container reached through the configured Docker endpoint.",
	Args:  cobra.NoArgs,
	RunE:  runGenerate,
}

var (
	generateTemplate   string
	generateResumeFile string
	generateTier       string
	generateLocale     string
	generateOutputFile string
	generateVerbose    bool
)

func init() {
	generateCmd.Flags().StringVarP(&generateTemplate, "template", "t", "", "Template id (required)")
	generateCmd.Flags().StringVarP(&generateResumeFile, "resume", "r", "", "Path to resume JSON file (required)")
	generateCmd.Flags().StringVar(&generateTier, "tier", "", "Caller subscription tier: FREE, BASIC or PROFESSIONAL (required)")
	generateCmd.Flags().StringVarP(&generateLocale, "locale", "l", "", "Locale for section titles and dates (default: templates.default_locale)")
	generateCmd.Flags().StringVarP(&generateOutputFile, "out", "o", "", "Output PDF path, or - for stdout (required)")
	generateCmd.Flags().BoolVarP(&generateVerbose, "verbose", "v", false, "Print a generation summary")

	_ = generateCmd.MarkFlagRequired("template")
	_ = generateCmd.MarkFlagRequired("resume")
	_ = generateCmd.MarkFlagRequired("tier")
	_ = generateCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	start := time.Now()

	tier, err := types.ParseTier(generateTier)
	if err != nil {
		return err
	}

	resume, err := schemas.LoadResume(generateResumeFile)
	if err != nil {
		return err
	}

	c, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}

	pdfCompiler, closer, err := newPDFCompiler(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up sandbox compiler: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	svc := generation.NewService(c.catalog, c.validator, c.engine, pdfCompiler, logger)
	stream, err := svc.Generate(cmd.Context(), generation.Request{
		TemplateID: generateTemplate,
		Resume:     resume,
		Tier:       tier,
		Locale:     generateLocale,
	})
	if err != nil {
		return publicError(err)
	}
	defer stream.Close()

	pdf, err := io.ReadAll(stream)
	if err != nil {
		return fmt.Errorf("failed to read generated PDF: %w", err)
	}
	if err := writeOutput(cmd.OutOrStdout(), generateOutputFile, pdf); err != nil {
		return err
	}

	if generateVerbose {
		summary := &observability.GenerationSummary{
			TemplateID: generateTemplate,
			Tier:       tier,
			Locale:     generateLocale,
			OutputPath: generateOutputFile,
			Bytes:      int64(len(pdf)),
			Duration:   time.Since(start),
		}
		if meta, err := c.catalog.FindByID(cmd.Context(), generateTemplate); err == nil && generateLocale != "" && !meta.SupportsLocale(generateLocale) {
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("template %s does not declare locale %s; default translations were used where missing", meta.ID, generateLocale))
		}
		if !resume.HasContent() {
			summary.Warnings = append(summary.Warnings, "resume has no work, education or skills entries")
		}
		observability.NewPrinter(cmd.ErrOrStderr()).PrintGeneration(summary)
	}
	return nil
}
