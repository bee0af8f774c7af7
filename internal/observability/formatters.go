package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/resume-renderer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose CLI mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintTemplates outputs a table of template descriptors.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintTemplates(templates []types.TemplateMetadata) {
	if len(templates) == 0 {
		fmt.Fprintln(p.out, "No templates available.")
		return
	}

	fmt.Fprintf(p.out, "%-16s %-24s %-8s %-13s %s\n", "ID", "NAME", "VERSION", "TIER", "SOURCE")
	for _, t := range templates {
		fmt.Fprintf(p.out, "%-16s %-24s %-8s %-13s %s\n", t.ID, t.Name, t.Version, t.RequiredSubscriptionTier, t.Source)
	}
}

// PrintTemplate outputs the full descriptor of one template.
func (p *Printer) PrintTemplate(meta *types.TemplateMetadata) {
	if meta == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ID:       %s\n", meta.ID))
	sb.WriteString(fmt.Sprintf("Name:     %s\n", meta.Name))
	sb.WriteString(fmt.Sprintf("Version:  %s\n", meta.Version))
	sb.WriteString(fmt.Sprintf("Tier:     %s\n", meta.RequiredSubscriptionTier))
	sb.WriteString(fmt.Sprintf("Path:     %s\n", meta.TemplatePath))
	sb.WriteString(fmt.Sprintf("Source:   %s\n", meta.Source))

	locales := "all"
	if len(meta.SupportedLocales) > 0 {
		locales = strings.Join(meta.SupportedLocales, ", ")
	}
	sb.WriteString(fmt.Sprintf("Locales:  %s", locales))

	if meta.PreviewURL != "" {
		sb.WriteString(fmt.Sprintf("\nPreview:  %s", meta.PreviewURL))
	}

	p.printBox("TEMPLATE "+strings.ToUpper(meta.ID), sb.String())
}

// GenerationSummary describes one completed generation for verbose output
type GenerationSummary struct {
	TemplateID string
	Tier       types.Tier
	Locale     string
	OutputPath string
	Bytes      int64
	Duration   time.Duration
	Warnings   []string
}

// PrintGeneration outputs a summary of a generated PDF.
func (p *Printer) PrintGeneration(summary *GenerationSummary) {
	if summary == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Template: %s\n", summary.TemplateID))
	sb.WriteString(fmt.Sprintf("Tier:     %s\n", summary.Tier))
	sb.WriteString(fmt.Sprintf("Locale:   %s\n", summary.Locale))
	sb.WriteString(fmt.Sprintf("Output:   %s\n", summary.OutputPath))
	sb.WriteString(fmt.Sprintf("Size:     %d bytes\n", summary.Bytes))
	sb.WriteString(fmt.Sprintf("Duration: %s", summary.Duration.Round(time.Millisecond)))

	if len(summary.Warnings) > 0 {
		sb.WriteString("\n\nWarnings:")
		count := min(len(summary.Warnings), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("\n  • %s", summary.Warnings[i]))
		}
		if len(summary.Warnings) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("\n  ... and %d more", len(summary.Warnings)-maxItemsToShow))
		}
	}

	p.printBox("GENERATED PDF", sb.String())
}
