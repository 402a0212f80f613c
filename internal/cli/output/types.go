package output

// JSON output shapes shared by commands. Field order matches the order
// commands populate them in, so encoded output reads top-down.

// RenderOutput is the JSON form of a render invocation.
type RenderOutput struct {
	File    string           `json:"file"`
	Dialect string           `json:"dialect"`
	Metrics []RenderedMetric `json:"metrics"`
}

// RenderedMetric is one compiled metric inside a RenderOutput. Exactly
// one of SQL and Error is set.
type RenderedMetric struct {
	Name  string `json:"name"`
	SQL   string `json:"sql,omitempty"`
	Error string `json:"error,omitempty"`
}

// ListOutput is the JSON form of the list command.
type ListOutput struct {
	Metrics []MetricInfo `json:"metrics"`
	Summary ListSummary  `json:"summary"`
}

// MetricInfo describes one loaded metric definition.
type MetricInfo struct {
	Name        string   `json:"name"`
	Source      string   `json:"source"`
	Expression  string   `json:"expression"`
	Dimensions  []string `json:"dimensions"`
	Filters     []string `json:"filters,omitempty"`
	Description string   `json:"description,omitempty"`
	File        string   `json:"file"`
}

// ListSummary aggregates the list command's results.
type ListSummary struct {
	TotalMetrics int    `json:"total_metrics"`
	TotalFiles   int    `json:"total_files"`
	Dialect      string `json:"dialect"`
}

// ValidateOutput is the JSON form of the validate command.
type ValidateOutput struct {
	Files   []FileValidation `json:"files"`
	Summary ValidateSummary  `json:"summary"`
}

// FileValidation reports validation of one definition file.
type FileValidation struct {
	Path    string   `json:"path"`
	Metrics int      `json:"metrics"`
	Errors  []string `json:"errors,omitempty"`
}

// ValidateSummary aggregates validation results.
type ValidateSummary struct {
	FilesChecked  int `json:"files_checked"`
	MetricsLoaded int `json:"metrics_loaded"`
	Errors        int `json:"errors"`
}

// RunsOutput is the JSON form of the runs command.
type RunsOutput struct {
	Runs []RunInfo `json:"runs"`
}

// RunInfo describes one recorded ingest run.
type RunInfo struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	LandingDir  string        `json:"landing_dir"`
	Ingested    int           `json:"ingested"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	StartedAt   string        `json:"started_at"`
	CompletedAt string        `json:"completed_at,omitempty"`
	Error       *string       `json:"error,omitempty"`
	Files       []RunFileInfo `json:"files,omitempty"`
}

// RunFileInfo describes one file decision within an ingest run.
type RunFileInfo struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum,omitempty"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

// ChecksOutput is the JSON form of the checks command.
type ChecksOutput struct {
	Checks []CheckInfo `json:"checks"`
}

// CheckInfo describes one quality check.
type CheckInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SQL         string `json:"sql,omitempty"`
}
