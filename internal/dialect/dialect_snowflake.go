package dialect

// Snowflake dialect definition. The reserved word table is generated from
// the Snowflake documentation by scripts/genkeywords.

func init() {
	Register(Snowflake)
}

// Snowflake is the Snowflake dialect configuration.
var Snowflake = New("snowflake").
	WithIdentifiers(`"`, `"`, `""`).
	Reserved(snowflakeReservedWords...).
	ViewDDL("CREATE OR REPLACE VIEW %s AS\n%s").
	Build()
