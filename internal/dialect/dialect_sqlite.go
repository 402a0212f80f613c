package dialect

// SQLite dialect definition. SQLite has no CREATE OR REPLACE VIEW, so view
// materialization is unsupported for this target.

func init() {
	Register(SQLite)
}

// SQLite is the SQLite dialect configuration.
var SQLite = New("sqlite").
	WithIdentifiers(`"`, `"`, `""`).
	Reserved(ansiReservedWords...).
	Reserved(
		"ABORT", "ATTACH", "AUTOINCREMENT", "DETACH", "EXPLAIN",
		"GLOB", "INDEXED", "LIMIT", "OFFSET", "PRAGMA",
		"REINDEX", "REPLACE", "ROWID", "VACUUM",
	).
	Build()
