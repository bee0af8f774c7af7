package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-renderer/internal/generation"
	"github.com/jonathan/resume-renderer/internal/schemas"
	"github.com/jonathan/resume-renderer/internal/types"
)

var renderLaTeXCmd = &cobra.Command{
	Use:   "render-latex",
	Short: "Render a resume to LaTeX source without compiling it",
	Long:  "Validates a JSON resume, checks tier access and renders it through a catalog template. Nothing is compiled; useful for template development.",
	Args:  cobra.NoArgs,
	RunE:  runRenderLaTeX,
}

var (
	renderLaTeXTemplate   string
	renderLaTeXResumeFile string
	renderLaTeXTier       string
	renderLaTeXLocale     string
	renderLaTeXOutputFile string
)

func init() {
	renderLaTeXCmd.Flags().StringVarP(&renderLaTeXTemplate, "template", "t", "", "Template id (required)")
	renderLaTeXCmd.Flags().StringVarP(&renderLaTeXResumeFile, "resume", "r", "", "Path to resume JSON file (required)")
	renderLaTeXCmd.Flags().StringVar(&renderLaTeXTier, "tier", "FREE", "Subscription tier to render as")
	renderLaTeXCmd.Flags().StringVarP(&renderLaTeXLocale, "locale", "l", "", "Locale for section titles and dates (default: templates.default_locale)")
	renderLaTeXCmd.Flags().StringVarP(&renderLaTeXOutputFile, "out", "o", "", "Output .tex path (default: stdout)")

	_ = renderLaTeXCmd.MarkFlagRequired("template")
	_ = renderLaTeXCmd.MarkFlagRequired("resume")

	rootCmd.AddCommand(renderLaTeXCmd)
}

func runRenderLaTeX(cmd *cobra.Command, _ []string) error {
	tier, err := types.ParseTier(renderLaTeXTier)
	if err != nil {
		return err
	}

	resume, err := schemas.LoadResume(renderLaTeXResumeFile)
	if err != nil {
		return err
	}

	c, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	svc := generation.NewService(c.catalog, c.validator, c.engine, nil, logger)

	source, _, err := svc.RenderLaTeX(cmd.Context(), generation.Request{
		TemplateID: renderLaTeXTemplate,
		Resume:     resume,
		Tier:       tier,
		Locale:     renderLaTeXLocale,
	})
	if err != nil {
		return publicError(err)
	}

	if err := writeOutput(cmd.OutOrStdout(), renderLaTeXOutputFile, []byte(source)); err != nil {
		return err
	}
	if renderLaTeXOutputFile != "" && renderLaTeXOutputFile != "-" {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Rendered %s to %s\n", renderLaTeXTemplate, renderLaTeXOutputFile)
	}
	return nil
}
