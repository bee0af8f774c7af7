// Package main provides the resume_pdf CLI: template catalog inspection,
// LaTeX rendering, sandboxed PDF generation and the operational listener.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/jonathan/resume-renderer/internal/config"
	"github.com/jonathan/resume-renderer/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:               "resume_pdf",
	Short:             "Render resumes to PDF through sandboxed LaTeX",
	Long:              "resume_pdf renders JSON resumes into LaTeX from a tiered template catalog and compiles them to PDF in a locked-down, network-less container.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	configFile string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *zap.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: ./config.yaml or ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override logging.format (json, console)")
}

func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Logging.Level = logLevel
	}
	if logFormat != "" {
		loaded.Logging.Format = logFormat
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	l, err := observability.NewLogger(loaded.Logging.Level, loaded.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	// Error ignored: Set only fails on an invalid GOMAXPROCS, in which case
	// the runtime default stays in effect.
	_, _ = maxprocs.Set(maxprocs.Logger(l.Sugar().Debugf))

	cfg = loaded
	logger = l.With(zap.String("command", cmd.Name()))
	return nil
}

func main() {
	if err := config.LoadEnvFiles(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
