package dialect

// ansiReservedWords are the SQL standard reserved words shared by every
// dialect. Dialect files add their engine-specific extras on top.
var ansiReservedWords = []string{
	"ADD", "ALL", "ALTER", "AND", "ANY",
	"AS", "ASC", "BETWEEN", "BY", "CASE",
	"CAST", "CHECK", "COLLATE", "COLUMN", "CONSTRAINT",
	"CREATE", "CROSS", "CURRENT", "CURRENT_DATE", "CURRENT_TIME",
	"CURRENT_TIMESTAMP", "CURRENT_USER", "DEFAULT", "DELETE", "DESC",
	"DISTINCT", "DROP", "ELSE", "END", "ESCAPE",
	"EXCEPT", "EXISTS", "FALSE", "FETCH", "FOR",
	"FOREIGN", "FROM", "FULL", "GRANT", "GROUP",
	"HAVING", "IN", "INNER", "INSERT", "INTERSECT",
	"INTO", "IS", "JOIN", "LATERAL", "LEFT",
	"LIKE", "NATURAL", "NOT", "NULL", "ON",
	"OR", "ORDER", "OUTER", "OVER", "PARTITION",
	"PRIMARY", "REFERENCES", "RIGHT", "SELECT", "SESSION_USER",
	"SET", "SOME", "TABLE", "THEN", "TO",
	"TRUE", "UNION", "UNIQUE", "UPDATE", "USER",
	"USING", "VALUES", "WHEN", "WHERE", "WINDOW",
	"WITH",
}
