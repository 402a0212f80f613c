package dialect

// PostgreSQL dialect definition.

func init() {
	Register(Postgres)
}

// Postgres is the PostgreSQL dialect configuration.
var Postgres = New("postgres").
	WithIdentifiers(`"`, `"`, `""`).
	Reserved(ansiReservedWords...).
	Reserved(
		// PostgreSQL-specific reserved words (sql-keywords-appendix)
		"ANALYSE", "ANALYZE", "ARRAY", "ASYMMETRIC", "BOTH",
		"CONCURRENTLY", "DEFERRABLE", "DO", "FREEZE", "ILIKE",
		"INITIALLY", "ISNULL", "LEADING", "LIMIT", "LOCALTIME",
		"LOCALTIMESTAMP", "NOTNULL", "OFFSET", "ONLY", "PLACING",
		"RETURNING", "SIMILAR", "SYMMETRIC", "TRAILING", "VARIADIC",
		"VERBOSE",
	).
	ViewDDL("CREATE OR REPLACE VIEW %s AS\n%s").
	Build()
