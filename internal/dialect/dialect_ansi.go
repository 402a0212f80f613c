package dialect

// ANSI dialect definition. The default target when no dialect is configured.

func init() {
	Register(ANSI)
}

// ANSI is the standard SQL dialect configuration.
var ANSI = New("ansi").
	WithIdentifiers(`"`, `"`, `""`).
	Reserved(ansiReservedWords...).
	ViewDDL("CREATE OR REPLACE VIEW %s AS\n%s").
	Build()
