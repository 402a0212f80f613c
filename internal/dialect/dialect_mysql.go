package dialect

// MySQL dialect definition.

func init() {
	Register(MySQL)
}

// MySQL is the MySQL dialect configuration.
var MySQL = New("mysql").
	WithIdentifiers("`", "`", "``"). // backtick quoting, escape by doubling
	Reserved(ansiReservedWords...).
	Reserved(
		// MySQL-specific reserved words
		"ACCESSIBLE", "BINARY", "BLOB", "CHANGE", "CONDITION",
		"DATABASE", "DATABASES", "DIV", "DUAL", "EXPLAIN",
		"FORCE", "FULLTEXT", "GENERATED", "IGNORE", "INDEX",
		"INFILE", "KEY", "KEYS", "KILL", "LIMIT",
		"LOAD", "LOCK", "LONGBLOB", "LONGTEXT", "LOW_PRIORITY",
		"MATCH", "MEDIUMBLOB", "MEDIUMTEXT", "OPTIMIZE", "OUTFILE",
		"PURGE", "READ", "REGEXP", "RENAME", "REPLACE",
		"REQUIRE", "RLIKE", "SCHEMA", "SCHEMAS", "SHOW",
		"SPATIAL", "SQL", "SSL", "STRAIGHT_JOIN", "TERMINATED",
		"UNLOCK", "UNSIGNED", "USE", "VARBINARY", "VARCHAR",
		"XOR", "ZEROFILL",
	).
	ViewDDL("CREATE OR REPLACE VIEW %s AS\n%s").
	Build()
