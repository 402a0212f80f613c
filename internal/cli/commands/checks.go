package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/checks"
	"github.com/quarrylabs/quarry/internal/cli/output"
)

// ChecksOptions holds the options for the checks command.
type ChecksOptions struct {
	List   bool
	Format string
}

// NewChecksCommand creates the checks command.
func NewChecksCommand() *cobra.Command {
	opts := &ChecksOptions{}

	cmd := &cobra.Command{
		Use:   "checks [name...]",
		Short: "Print built-in health queries for the ingest state database",
		Long: `Print the SQL of the built-in state database health checks. With no
arguments every check is printed; name one or more checks to print just
those. The output is a runnable script, one "-- check: <name>" block
per check, ready to pipe into a SQLite client:

  quarry checks failed_runs | sqlite3 .quarry/state.db`,
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return checks.Names(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChecks(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVarP(&opts.List, "list", "l", false, "list check names and descriptions instead of SQL")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "output format (text, markdown, json)")

	return cmd
}

func runChecks(cmd *cobra.Command, opts *ChecksOptions, args []string) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)

	r := cmdCtx.Renderer
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	selected, err := selectChecks(args)
	if err != nil {
		return err
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(buildChecksOutput(selected, !opts.List))
	case output.ModeMarkdown:
		renderChecksMarkdown(r, selected, opts.List)
		return nil
	default:
		if opts.List {
			renderChecksList(r, selected)
			return nil
		}
		// The script goes out verbatim so it stays pipeable.
		r.Printf("%s", checks.Render(selected))
		return nil
	}
}

func selectChecks(names []string) ([]checks.Check, error) {
	if len(names) == 0 {
		return checks.All(), nil
	}
	selected := make([]checks.Check, 0, len(names))
	for _, name := range names {
		c, ok := checks.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown check %q (available: %s)", name, strings.Join(checks.Names(), ", "))
		}
		selected = append(selected, c)
	}
	return selected, nil
}

func buildChecksOutput(selected []checks.Check, includeSQL bool) output.ChecksOutput {
	out := output.ChecksOutput{}
	for _, c := range selected {
		info := output.CheckInfo{Name: c.Name, Description: c.Description}
		if includeSQL {
			info.SQL = c.SQL
		}
		out.Checks = append(out.Checks, info)
	}
	return out
}

func renderChecksList(r *output.Renderer, selected []checks.Check) {
	r.Header(1, fmt.Sprintf("Checks (%d)", len(selected)))
	r.Println("")

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Description"})
	for _, c := range selected {
		t.AppendRow(table.Row{c.Name, c.Description})
	}
	t.Render()
}

func renderChecksMarkdown(r *output.Renderer, selected []checks.Check, listOnly bool) {
	r.Println(output.FormatHeader(1, "Checks"))
	r.Println("")
	for _, c := range selected {
		r.Println(output.FormatHeader(2, c.Name))
		r.Println("")
		if c.Description != "" {
			r.Println(c.Description)
			r.Println("")
		}
		if !listOnly {
			r.Println(output.FormatCodeBlock("sql", c.SQL))
			r.Println("")
		}
	}
}
