package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/cli/output"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new Quarry project",
		Long: `Initialize a new Quarry project with default directory structure and configuration.

This creates:
  - metrics/ directory for metric definitions
  - quarry.yaml configuration file

Use --example to create a full working demo project with sample metrics,
Starlark macros, and an ingest setup with landing data and a manifest.`,
		Example: `  # Initialize in current directory
  quarry init

  # Initialize with a full working example
  quarry init --example

  # Initialize in a new directory
  quarry init my-project --example

  # Force overwrite existing config
  quarry init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			// Create renderer
			cfg := getConfig()
			mode := output.Mode(cfg.OutputFormat)
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

			if example {
				return runInitExample(r, dir, force)
			}
			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&example, "example", false, "Create a full example project with metrics, macros, and ingest data")

	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	// Create directory if specified and doesn't exist
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Check if config already exists
	configPath := dir + "/quarry.yaml"
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("quarry.yaml already exists. Use --force to overwrite")
	}

	// Copy minimal template
	if err := copyTemplate("minimal", dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	// List created files
	files, _ := listTemplateFiles("minimal")
	for _, f := range files {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Success("Quarry project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Define metrics in metrics/")
	r.Println("  2. Run 'quarry validate' to check them")
	r.Println("  3. Run 'quarry render <metric>' to see the SQL")
	r.Println("  4. Run 'quarry list' to see all metrics")

	return nil
}

func runInitExample(r *output.Renderer, dir string, force bool) error {
	// Create directory if specified and doesn't exist
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Check if config already exists
	configPath := dir + "/quarry.yaml"
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("quarry.yaml already exists. Use --force to overwrite")
	}

	// Copy example template
	if err := copyTemplate("example", dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	// List created files by category
	files, _ := listTemplateFiles("example")
	groups := groupTemplateFiles(files)

	// Display files by category
	r.Header(2, "Configuration")
	for _, f := range groups["config"] {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Header(2, "Metrics")
	for _, f := range groups["metrics"] {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Header(2, "Macros")
	for _, f := range groups["macros"] {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Header(2, "Data")
	for _, f := range groups["data"] {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Success("Quarry project initialized with example data!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  quarry list              View the example metrics")
	r.Println("  quarry render margin     Compile one metric to SQL")
	r.Println("  quarry ingest --dry-run  Preview the sample file intake")
	r.Println("  quarry serve             Serve compiled metrics over HTTP")

	return nil
}
