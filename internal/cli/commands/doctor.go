package commands

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/cli/config"
	"github.com/quarrylabs/quarry/internal/cli/output"
	"github.com/quarrylabs/quarry/internal/compiler"
	"github.com/quarrylabs/quarry/internal/dialect"
	"github.com/quarrylabs/quarry/internal/engine"
	"github.com/quarrylabs/quarry/internal/ingest"
)

// DoctorOptions holds the options for the doctor command.
type DoctorOptions struct {
	Format string
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run a project health check",
		Long: `Analyze the project for problems: configuration, definition files,
metric compilation, and the ingest setup.

The report groups checks by category, scores the project 0-100, and
lists the most useful fixes first.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run health check
  quarry doctor

  # Output as JSON
  quarry doctor --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "output format (text, markdown, json)")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         ProjectSummary `json:"summary"`
	HealthChecks    []HealthCheck  `json:"health_checks"`
	Score           int            `json:"score"`
	Recommendations []string       `json:"recommendations"`
	IssueCount      int            `json:"issue_count"`
}

// ProjectSummary contains project-level statistics.
type ProjectSummary struct {
	Metrics         int    `json:"metrics"`
	Files           int    `json:"files"`
	MacroNamespaces int    `json:"macro_namespaces"`
	Dialect         string `json:"dialect"`
	Environment     string `json:"environment"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	RuleID     string   `json:"rule_id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	doctorOutput := buildDoctorOutput(cmdCtx)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(doctorOutput)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, doctorOutput)
	default:
		return renderDoctorText(r, doctorOutput)
	}
}

func buildDoctorOutput(cmdCtx *CommandContext) *DoctorOutput {
	eng := cmdCtx.Engine
	cfg := cmdCtx.Cfg

	// A broken definitions path surfaces as DF01; everything downstream
	// reports against whatever did load.
	loadResult, loadErr := eng.Load(engine.LoadOptions{ContinueOnError: true})

	checks := []HealthCheck{
		checkConfigFile(),
		checkDialect(cfg),
		checkStateStore(eng),
		checkDefinitionsPath(loadErr),
		checkDefinitionErrors(loadResult, cfg.MacrosDir),
		checkMacros(loadResult, cfg.MacrosDir),
		checkCompile(eng),
		checkDescriptions(eng),
	}
	checks = append(checks, ingestChecks(cfg)...)

	// Sort health checks by group then by rule ID
	sort.Slice(checks, func(i, j int) bool {
		if checks[i].Group != checks[j].Group {
			return checks[i].Group < checks[j].Group
		}
		return checks[i].RuleID < checks[j].RuleID
	})

	summary := ProjectSummary{
		Metrics:         loadResult.MetricsTotal,
		Files:           len(loadResult.Files),
		MacroNamespaces: loadResult.MacroNamespaces,
		Dialect:         eng.Dialect().Name,
		Environment:     eng.Environment(),
	}

	issueCount := 0
	for _, check := range checks {
		issueCount += check.IssueCount
	}

	return &DoctorOutput{
		Summary:         summary,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks, summary.Metrics),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issueCount,
	}
}

func checkConfigFile() HealthCheck {
	check := HealthCheck{RuleID: "CF01", Name: "Config file present", Group: "configuration", Status: "pass"}
	if config.GetConfigFileUsed() == "" {
		check.Status = "warn"
		check.IssueCount = 1
		check.Details = []string{"no quarry.yaml found; running on built-in defaults"}
	}
	return check
}

func checkDialect(cfg *config.Config) HealthCheck {
	check := HealthCheck{RuleID: "CF02", Name: "Dialect registered", Group: "configuration", Status: "pass"}
	if cfg.Dialect == "" {
		return check
	}
	if _, err := dialect.Lookup(cfg.Dialect); err != nil {
		check.Status = "error"
		check.IssueCount = 1
		check.Details = []string{err.Error()}
	}
	return check
}

func checkStateStore(eng *engine.Engine) HealthCheck {
	check := HealthCheck{RuleID: "CF03", Name: "State database", Group: "configuration", Status: "pass"}
	store, err := eng.Store()
	if err != nil {
		check.Status = "error"
		check.IssueCount = 1
		check.Details = []string{err.Error()}
		return check
	}
	if m, ok := store.(interface{ GetMigrationVersion() (int64, error) }); ok {
		if _, err := m.GetMigrationVersion(); err != nil {
			check.Status = "warn"
			check.IssueCount = 1
			check.Details = []string{fmt.Sprintf("migration version unavailable: %v", err)}
		}
	}
	return check
}

func checkDefinitionsPath(loadErr error) HealthCheck {
	check := HealthCheck{RuleID: "DF01", Name: "Definitions path", Group: "definitions", Status: "pass"}
	if loadErr != nil {
		check.Status = "error"
		check.IssueCount = 1
		check.Details = []string{loadErr.Error()}
	}
	return check
}

func checkDefinitionErrors(result *engine.LoadResult, macrosDir string) HealthCheck {
	check := HealthCheck{RuleID: "DF02", Name: "Definitions parse", Group: "definitions", Status: "pass"}
	for _, f := range result.Files {
		if f.Path == macrosDir {
			continue
		}
		check.Details = append(check.Details, f.Errors...)
	}
	check.IssueCount = len(check.Details)
	if check.IssueCount > 0 {
		check.Status = "error"
	}
	return check
}

func checkMacros(result *engine.LoadResult, macrosDir string) HealthCheck {
	check := HealthCheck{RuleID: "DF03", Name: "Macros load", Group: "definitions", Status: "pass"}
	for _, f := range result.Files {
		if f.Path != macrosDir {
			continue
		}
		check.Details = append(check.Details, f.Errors...)
	}
	check.IssueCount = len(check.Details)
	if check.IssueCount > 0 {
		check.Status = "error"
	}
	return check
}

func checkCompile(eng *engine.Engine) HealthCheck {
	check := HealthCheck{RuleID: "CP01", Name: "Metrics compile", Group: "compilation", Status: "pass"}
	result, err := compiler.RenderBatch(eng.Definitions(), compiler.BatchOptions{
		Dialect:         eng.Dialect(),
		ExpandFor:       eng.ExpandFor,
		ContinueOnError: true,
	})
	if err != nil {
		check.Status = "error"
		check.IssueCount = 1
		check.Details = []string{err.Error()}
		return check
	}
	for _, f := range result.Failed {
		check.Details = append(check.Details, fmt.Sprintf("%s: %v", f.Metric, f.Err))
	}
	check.IssueCount = len(check.Details)
	if check.IssueCount > 0 {
		check.Status = "error"
	}
	return check
}

func checkDescriptions(eng *engine.Engine) HealthCheck {
	check := HealthCheck{RuleID: "DF04", Name: "Metrics documented", Group: "definitions", Status: "pass"}
	for _, m := range eng.Definitions().Metrics() {
		if m.Description == "" {
			check.Details = append(check.Details, fmt.Sprintf("metric %q has no description", m.Name))
		}
	}
	check.IssueCount = len(check.Details)
	if check.IssueCount > 0 {
		check.Status = "warn"
	}
	return check
}

// ingestChecks validates the ingest setup. Nothing to check when the
// project does not configure ingest.
func ingestChecks(cfg *config.Config) []HealthCheck {
	if cfg.Ingest == nil {
		return nil
	}

	landing := HealthCheck{RuleID: "IN01", Name: "Landing directory", Group: "ingest", Status: "pass"}
	if cfg.Ingest.LandingDir == "" {
		landing.Status = "warn"
		landing.IssueCount = 1
		landing.Details = []string{"ingest configured without a landing_dir"}
	} else if _, err := os.Stat(cfg.Ingest.LandingDir); err != nil {
		landing.Status = "error"
		landing.IssueCount = 1
		landing.Details = []string{fmt.Sprintf("landing directory not readable: %v", err)}
	}

	// The inbox is created by the run itself, so only the manifest needs
	// checking beyond the landing directory.
	manifest := HealthCheck{RuleID: "IN02", Name: "Manifest readable", Group: "ingest", Status: "pass"}
	if cfg.Ingest.ManifestPath != "" {
		if _, err := ingest.LoadManifest(cfg.Ingest.ManifestPath); err != nil {
			manifest.Status = "error"
			manifest.IssueCount = 1
			manifest.Details = []string{err.Error()}
		}
	}

	return []HealthCheck{landing, manifest}
}

// calculateHealthScore computes a health score from 0-100.
// The scoring weights:
// - Each passing rule adds points
// - Each issue reduces points
// - More metrics means issues have less individual impact
func calculateHealthScore(checks []HealthCheck, metricCount int) int {
	if len(checks) == 0 {
		return 100
	}

	// Base score starts at 100
	score := 100.0

	// Calculate penalty per issue
	// With more metrics, each individual issue has less impact
	basePenalty := 5.0
	if metricCount > 10 {
		basePenalty = 3.0
	}
	if metricCount > 50 {
		basePenalty = 2.0
	}
	if metricCount > 100 {
		basePenalty = 1.0
	}

	for _, check := range checks {
		switch check.Status {
		case "error":
			score -= float64(check.IssueCount) * basePenalty * 2 // Errors count double
		case "warn":
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	// Clamp to 0-100
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return int(score)
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	seen := make(map[string]bool)

	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}

		rec := getRecommendation(check.RuleID)
		if rec != "" && !seen[rec] {
			recommendations = append(recommendations, rec)
			seen[rec] = true
		}
	}

	// Limit to top 5 recommendations
	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}

	return recommendations
}

// getRecommendation returns a recommendation for a specific rule.
func getRecommendation(ruleID string) string {
	switch ruleID {
	case "CF01":
		return "Create a quarry.yaml (quarry init) so settings are explicit instead of defaulted"
	case "CF02":
		return "Set dialect to one of the registered dialects"
	case "CF03":
		return "Check state_path in quarry.yaml and the permissions of its directory"
	case "DF01":
		return "Create the definitions directory or point definitions_path at the right one"
	case "DF02":
		return "Fix the definition errors; quarry validate lists them per file"
	case "DF03":
		return "Fix the Starlark macro errors; macros load before any metric compiles"
	case "DF04":
		return "Add descriptions to metrics so listings document themselves"
	case "CP01":
		return "Fix the compile errors; quarry validate lists them per metric"
	case "IN01":
		return "Create the landing directory or update ingest.landing_dir"
	case "IN02":
		return "Fix the manifest file or update ingest.manifest_path"
	default:
		return ""
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	// Header
	r.Println("")
	r.Println(styles.Header1.Render("Quarry Project Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	// Project Summary
	r.Println(styles.Header2.Render("Project Summary"))
	r.Printf("   Metrics: %d | Files: %d | Macro namespaces: %d\n",
		out.Summary.Metrics, out.Summary.Files, out.Summary.MacroNamespaces)
	r.Printf("   Dialect: %s | Environment: %s\n", out.Summary.Dialect, out.Summary.Environment)
	r.Println("")

	// Health Checks grouped by category
	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.StatusSuccess.String()
		switch check.Status {
		case "warn":
			icon = styles.Warning.Render("!")
		case "error":
			icon = styles.StatusFailed.String()
		}

		status := fmt.Sprintf("%s %s: %s", icon, check.RuleID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + status)

		// Show first 3 details for issues
		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	// Health Score
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	// Recommendations
	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# Quarry Project Health Report")
	r.Println("")

	// Project Summary
	r.Println("## Project Summary")
	r.Println("")
	r.Printf("- **Metrics**: %d\n", out.Summary.Metrics)
	r.Printf("- **Files**: %d\n", out.Summary.Files)
	r.Printf("- **Macro Namespaces**: %d\n", out.Summary.MacroNamespaces)
	r.Printf("- **Dialect**: %s\n", out.Summary.Dialect)
	r.Printf("- **Environment**: %s\n", out.Summary.Environment)
	r.Println("")

	// Health Checks
	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		status := "PASS"
		switch check.Status {
		case "warn":
			status = "WARN"
		case "error":
			status = "ERROR"
		}

		r.Printf("- **[%s]** %s: %s", status, check.RuleID, check.Name)
		if check.IssueCount > 0 {
			r.Printf(" (%d issues)", check.IssueCount)
		}
		r.Println("")

		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	// Health Score
	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	// Recommendations
	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
