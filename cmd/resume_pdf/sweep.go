package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-renderer/internal/compiler"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove orphaned sandbox containers",
	Long:  "Lists containers labelled as managed by the PDF compiler and removes those older than the max age. Needs the container-list permission on the Docker endpoint.",
	Args:  cobra.NoArgs,
	RunE:  runSweep,
}

var sweepMaxAge time.Duration

func init() {
	sweepCmd.Flags().DurationVar(&sweepMaxAge, "max-age", 0, "Minimum container age to remove (default: sandbox.orphan_max_age)")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	engine, err := newContainerLister(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	maxAge := cfg.Sandbox.OrphanMaxAge
	if sweepMaxAge > 0 {
		maxAge = sweepMaxAge
	}

	removed, err := compiler.NewSweeper(engine, maxAge, logger).Sweep(cmd.Context())
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d orphaned container(s)\n", removed)
	if err != nil {
		return fmt.Errorf("sweep incomplete: %w", err)
	}
	return nil
}
