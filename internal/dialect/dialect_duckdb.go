package dialect

// DuckDB dialect definition. DuckDB keeps identifier rules close to
// PostgreSQL but reserves very little beyond the standard set.

func init() {
	Register(DuckDB)
}

// DuckDB is the DuckDB dialect configuration.
var DuckDB = New("duckdb").
	WithIdentifiers(`"`, `"`, `""`).
	Reserved(ansiReservedWords...).
	Reserved("DESCRIBE", "LIMIT", "OFFSET", "PIVOT", "QUALIFY", "UNPIVOT").
	ViewDDL("CREATE OR REPLACE VIEW %s AS\n%s").
	Build()
