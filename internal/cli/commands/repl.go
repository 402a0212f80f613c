package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/cli/output"
	"github.com/quarrylabs/quarry/internal/compiler"
	"github.com/quarrylabs/quarry/internal/dialect"
	"github.com/quarrylabs/quarry/internal/engine"
	"github.com/quarrylabs/quarry/internal/template"
	"github.com/quarrylabs/quarry/pkg/core"
)

// NewReplCommand creates the repl command.
func NewReplCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl [definitions-file]",
		Short: "Explore metrics interactively",
		Long: `Start an interactive session over the loaded metric definitions.
Dot commands inspect metrics and render their SQL; any other input is
evaluated as a Starlark expression with the project vars, env, and
macros in scope. Input containing {{ ... }} is expanded as a template.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(cmd, args)
		},
	}
}

// replSession carries the state one repl invocation mutates: the engine
// stays shared, the dialect is session-local so .dialect switches do not
// leak into the config.
type replSession struct {
	cmd     *cobra.Command
	eng     *engine.Engine
	r       *output.Renderer
	dialect *dialect.Dialect
}

func runRepl(cmd *cobra.Command, args []string) error {
	cmdCtx, cleanup, err := NewCommandContextAt(cmd, definitionsArg(args))
	if err != nil {
		return err
	}
	defer cleanup()

	// Bad files should not keep the session from starting; metrics from
	// clean files still load and .reload picks up fixes.
	loadResult, err := cmdCtx.Engine.Load(engine.LoadOptions{ContinueOnError: true})
	if err != nil {
		return fmt.Errorf("failed to load definitions: %w", err)
	}

	s := &replSession{
		cmd:     cmd,
		eng:     cmdCtx.Engine,
		r:       cmdCtx.Renderer,
		dialect: cmdCtx.Engine.Dialect(),
	}

	historyFile := filepath.Join(filepath.Dir(cmdCtx.Cfg.StatePath), "repl_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "quarry> ",
		HistoryFile:     historyFile,
		AutoComplete:    newReplCompleter(s.eng),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize repl: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Quarry REPL (dialect: %s, %d metrics)\n", s.dialect.Name, loadResult.MetricsTotal)
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)
	for _, msg := range loadErrors(loadResult) {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", msg)
	}

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			if s.handleDotCommand(line) {
				if line == ".quit" || line == ".exit" {
					break
				}
				continue
			}
		}

		if err := s.eval(line); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}

	return nil
}

func loadErrors(result *engine.LoadResult) []string {
	var msgs []string
	for _, f := range result.Files {
		msgs = append(msgs, f.Errors...)
	}
	return msgs
}

// eval evaluates free-form repl input. Template syntax goes through the
// expander, everything else is a bare Starlark expression. Both carry
// the session dialect so env.dialect tracks .dialect switches.
func (s *replSession) eval(line string) error {
	ctx := s.eng.ExpressionContextWith(s.dialect, nil)

	if strings.Contains(line, "{{") {
		expanded, err := template.Expander("<repl>", ctx)(line)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(s.cmd.OutOrStdout(), expanded)
		return nil
	}

	value, err := ctx.EvalExprString(line, "<repl>", 1)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(s.cmd.OutOrStdout(), value)
	return nil
}

func (s *replSession) handleDotCommand(line string) bool {
	out := s.cmd.OutOrStdout()
	errOut := s.cmd.ErrOrStderr()
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printReplHelp(out)
		return true

	case ".metrics":
		metrics := s.eng.Definitions().Metrics()
		if len(metrics) == 0 {
			s.r.Muted("No metrics loaded")
			return true
		}
		for i, m := range metrics {
			s.r.MetricLine(i+1, m.Name, m.Source, m.Dimensions)
		}
		return true

	case ".show":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .show <metric>")
			return true
		}
		s.showMetric(parts[1])
		return true

	case ".dims":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .dims <metric>")
			return true
		}
		if m := s.eng.Definitions().Get(parts[1]); m != nil {
			_, _ = fmt.Fprintln(out, strings.Join(m.Dimensions, ", "))
		} else {
			_, _ = fmt.Fprintf(errOut, "Error: metric %q not found\n", parts[1])
		}
		return true

	case ".sql":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .sql <metric>")
			return true
		}
		if err := s.renderMetricSQL(parts[1]); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}
		return true

	case ".dialect":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(out, "Current dialect: %s (available: %s)\n",
				s.dialect.Name, strings.Join(dialect.List(), ", "))
			return true
		}
		d, err := dialect.Lookup(parts[1])
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return true
		}
		s.dialect = d
		_, _ = fmt.Fprintf(out, "Switched to dialect %s\n", d.Name)
		return true

	case ".reload":
		result, err := s.eng.Load(engine.LoadOptions{ContinueOnError: true})
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return true
		}
		_, _ = fmt.Fprintln(out, result.Summary())
		for _, msg := range loadErrors(result) {
			_, _ = fmt.Fprintf(errOut, "Warning: %s\n", msg)
		}
		return true

	case ".clear":
		fmt.Print("\033[H\033[2J")
		return true

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", command)
		return true
	}
}

func (s *replSession) showMetric(name string) {
	out := s.cmd.OutOrStdout()
	m := s.eng.Definitions().Get(name)
	if m == nil {
		_, _ = fmt.Fprintf(s.cmd.ErrOrStderr(), "Error: metric %q not found\n", name)
		return
	}

	_, _ = fmt.Fprintf(out, "  name:        %s\n", m.Name)
	_, _ = fmt.Fprintf(out, "  source:      %s\n", m.Source)
	_, _ = fmt.Fprintf(out, "  expression:  %s\n", m.Expression)
	if len(m.Dimensions) > 0 {
		_, _ = fmt.Fprintf(out, "  dimensions:  %s\n", strings.Join(m.Dimensions, ", "))
	}
	if len(m.Filters) > 0 {
		_, _ = fmt.Fprintf(out, "  filters:     %s\n", strings.Join(m.Filters, " AND "))
	}
	if m.Description != "" {
		_, _ = fmt.Fprintf(out, "  description: %s\n", m.Description)
	}
	_, _ = fmt.Fprintf(out, "  file:        %s\n", s.eng.Origin(m.Name))
}

func (s *replSession) renderMetricSQL(name string) error {
	result, err := compiler.RenderBatch(s.eng.Definitions(), compiler.BatchOptions{
		Metrics: []string{name},
		Dialect: s.dialect,
		ExpandFor: func(def *core.MetricDefinition) compiler.ExpandFunc {
			return s.eng.ExpandWith(s.dialect, def)
		},
	})
	if err != nil {
		return err
	}
	for _, q := range result.Compiled {
		_, _ = fmt.Fprintln(s.cmd.OutOrStdout(), q.SQL)
	}
	return nil
}

func printReplHelp(w io.Writer) {
	help := `
Commands:
  .help             Show this help message
  .metrics          List loaded metrics
  .show <metric>    Show a metric definition
  .dims <metric>    Show a metric's dimensions
  .sql <metric>     Render a metric's SQL
  .dialect [name]   Show or switch the SQL dialect
  .reload           Reload the definitions from disk
  .clear            Clear the screen
  .quit / .exit     Exit the REPL

Tips:
  - Any other input is evaluated as a Starlark expression
  - Input with {{ ... }} is expanded as a template
  - Tab completion works for metric names
`
	_, _ = fmt.Fprintln(w, help)
}

// newReplCompleter builds tab completion over the dot commands, the
// loaded metric names, and the registered dialects. Metric names resolve
// dynamically so .reload picks up new ones.
func newReplCompleter(eng *engine.Engine) *readline.PrefixCompleter {
	metricNames := func(string) []string {
		return eng.Definitions().Names()
	}

	var dialectItems []readline.PrefixCompleterInterface
	for _, name := range dialect.List() {
		dialectItems = append(dialectItems, readline.PcItem(name))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".metrics"),
		readline.PcItem(".show", readline.PcItemDynamic(metricNames)),
		readline.PcItem(".dims", readline.PcItemDynamic(metricNames)),
		readline.PcItem(".sql", readline.PcItemDynamic(metricNames)),
		readline.PcItem(".dialect", dialectItems...),
		readline.PcItem(".reload"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
