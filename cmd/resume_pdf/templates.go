package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-renderer/internal/observability"
	"github.com/jonathan/resume-renderer/internal/types"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Inspect the template catalog",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates, optionally only those a tier may use",
	Args:  cobra.NoArgs,
	RunE:  runTemplatesList,
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one template descriptor",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesShow,
}

var (
	templatesListTier  string
	templatesListLimit int
	templatesJSON      bool
)

func init() {
	templatesListCmd.Flags().StringVar(&templatesListTier, "tier", "", "Only list templates accessible to this tier (FREE, BASIC, PROFESSIONAL)")
	templatesListCmd.Flags().IntVar(&templatesListLimit, "limit", 0, "Maximum number of templates (default: templates.list_limit)")
	templatesCmd.PersistentFlags().BoolVar(&templatesJSON, "json", false, "Print JSON instead of a table")

	templatesCmd.AddCommand(templatesListCmd, templatesShowCmd)
	rootCmd.AddCommand(templatesCmd)
}

func runTemplatesList(cmd *cobra.Command, _ []string) error {
	c, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}

	var list []types.TemplateMetadata
	if strings.TrimSpace(templatesListTier) != "" {
		tier, err := types.ParseTier(templatesListTier)
		if err != nil {
			return err
		}
		list, err = c.catalog.ListAccessible(cmd.Context(), tier, templatesListLimit)
		if err != nil {
			return fmt.Errorf("failed to list templates: %w", err)
		}
	} else {
		list, err = c.catalog.List(cmd.Context(), templatesListLimit)
		if err != nil {
			return fmt.Errorf("failed to list templates: %w", err)
		}
	}

	if templatesJSON {
		return writeJSON(cmd.OutOrStdout(), list)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintTemplates(list)
	return nil
}

func runTemplatesShow(cmd *cobra.Command, args []string) error {
	c, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}

	meta, err := c.catalog.FindByID(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if templatesJSON {
		return writeJSON(cmd.OutOrStdout(), meta)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintTemplate(&meta)
	return nil
}
