package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/quarrylabs/quarry/internal/cli/output"
	"github.com/quarrylabs/quarry/internal/engine"
	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [definitions-file]",
		Short: "List all metric definitions",
		Long: `List the loaded metric definitions with their sources and dimensions.

Output adapts to environment:
  - Terminal: Styled table output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # List all metrics (auto-detect output format)
  quarry list

  # List metrics from a specific file
  quarry list metrics/sales.yml

  # List metrics as JSON
  quarry list --output json

  # List metrics as Markdown (for agents/scripts)
  quarry list --output markdown`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args)
		},
	}

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	cmdCtx, cleanup, err := NewCommandContextAt(cmd, definitionsArg(args))
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	loadResult, err := eng.Load(engine.LoadOptions{})
	if err != nil {
		return fmt.Errorf("failed to load definitions: %w", err)
	}

	effectiveMode := r.EffectiveMode()
	switch effectiveMode {
	case output.ModeJSON:
		return listJSON(cmdCtx, loadResult)
	case output.ModeMarkdown:
		return listMarkdown(cmdCtx)
	default:
		return listText(cmdCtx)
	}
}

// listText outputs metrics as a styled table.
func listText(cmdCtx *CommandContext) error {
	eng := cmdCtx.Engine
	r := cmdCtx.Renderer
	metrics := eng.Definitions().Metrics()

	r.Header(1, fmt.Sprintf("Metrics (%d total)", len(metrics)))

	if len(metrics) == 0 {
		r.Muted("No metric definitions found")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Metric", "Source", "Dimensions", "File"})
	for i, m := range metrics {
		t.AppendRow(table.Row{i + 1, m.Name, m.Source, strings.Join(m.Dimensions, ", "), eng.Origin(m.Name)})
	}
	t.Render()
	r.Muted(fmt.Sprintf("(%d metrics, dialect: %s)", len(metrics), eng.Dialect().Name))

	return nil
}

// listMarkdown outputs metrics in markdown format.
func listMarkdown(cmdCtx *CommandContext) error {
	eng := cmdCtx.Engine
	r := cmdCtx.Renderer
	metrics := eng.Definitions().Metrics()

	r.Println(output.FormatHeader(1, fmt.Sprintf("Metrics (%d total)", len(metrics))))
	r.Println("")

	for _, m := range metrics {
		r.Println(output.FormatHeader(2, m.Name))

		r.Println(output.FormatKeyValue("Source", m.Source))
		r.Println(output.FormatKeyValue("Expression", m.Expression))
		if len(m.Dimensions) > 0 {
			r.Println(output.FormatKeyValue("Dimensions", strings.Join(m.Dimensions, ", ")))
		}
		if len(m.Filters) > 0 {
			r.Println(output.FormatKeyValue("Filters", strings.Join(m.Filters, " AND ")))
		}
		if m.Description != "" {
			r.Println(output.FormatKeyValue("Description", m.Description))
		}
		r.Println(output.FormatKeyValue("File", eng.Origin(m.Name)))

		r.Println("")
	}

	return nil
}

// listJSON outputs metrics in JSON format.
func listJSON(cmdCtx *CommandContext, loadResult *engine.LoadResult) error {
	eng := cmdCtx.Engine
	metrics := eng.Definitions().Metrics()

	listOutput := output.ListOutput{
		Metrics: make([]output.MetricInfo, 0, len(metrics)),
		Summary: output.ListSummary{
			TotalMetrics: len(metrics),
			TotalFiles:   len(loadResult.Files),
			Dialect:      eng.Dialect().Name,
		},
	}

	for _, m := range metrics {
		listOutput.Metrics = append(listOutput.Metrics, output.MetricInfo{
			Name:        m.Name,
			Source:      m.Source,
			Expression:  m.Expression,
			Dimensions:  m.Dimensions,
			Filters:     m.Filters,
			Description: m.Description,
			File:        eng.Origin(m.Name),
		})
	}

	return cmdCtx.Renderer.JSON(listOutput)
}
