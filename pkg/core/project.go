package core

// ProjectConfig holds project-level configuration.
type ProjectConfig struct {
	// DefinitionsPath is a metric definitions file or a directory of them.
	DefinitionsPath string `koanf:"definitions_path"`
	// MacrosDir holds .star macro files.
	MacrosDir string `koanf:"macros_dir"`
	// Dialect names the SQL dialect rendered queries target.
	Dialect string `koanf:"dialect"`
	// Vars are project variables exposed to macro expressions as vars["..."].
	Vars   map[string]any  `koanf:"vars"`
	Ingest *IngestSettings `koanf:"ingest"`
	Serve  *ServeSettings  `koanf:"serve"`
}

// IngestSettings configures the landing-directory ingest pipeline.
// Paths support ${VAR} environment expansion.
type IngestSettings struct {
	// LandingDir is where an external transfer process deposits files.
	LandingDir string `koanf:"landing_dir"`
	// InboxDir is where verified files are promoted to.
	InboxDir string `koanf:"inbox_dir"`
	// Glob filters landing files by name (e.g. "*.csv").
	Glob string `koanf:"glob"`
	// ManifestPath points at the YAML manifest declaring expected files.
	ManifestPath string `koanf:"manifest_path"`
	// EnforceSize rejects files whose size differs from the manifest entry.
	EnforceSize bool `koanf:"enforce_size"`
	// EnforceChecksum rejects files whose SHA-256 differs from the manifest entry.
	EnforceChecksum bool `koanf:"enforce_checksum"`
}

// ServeSettings configures the HTTP definition service.
type ServeSettings struct {
	Port int `koanf:"port"`
	// Watch reloads the definition set when the source files change.
	Watch bool `koanf:"watch"`
}

// EnvConfig holds per-environment overrides applied on top of the base config.
type EnvConfig struct {
	Dialect         string          `koanf:"dialect"`
	DefinitionsPath string          `koanf:"definitions_path"`
	Vars            map[string]any  `koanf:"vars"`
	Ingest          *IngestSettings `koanf:"ingest"`
}
