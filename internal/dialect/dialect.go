// Package dialect defines the SQL dialects rendered queries can target.
//
// A dialect carries identifier quoting rules, the reserved words that force
// quoting, and the DDL template used for view materialization. Dialects are
// registered in init() functions of their dialect_*.go files and looked up
// by name through the registry.
package dialect

import (
	"fmt"
	"strings"
)

// Identifiers configures identifier quoting for a dialect.
type Identifiers struct {
	// Quote opens a quoted identifier (e.g. `"` or "`").
	Quote string
	// QuoteEnd closes a quoted identifier.
	QuoteEnd string
	// Escape is the replacement for QuoteEnd occurrences inside an identifier.
	Escape string
}

// Dialect describes one SQL target.
type Dialect struct {
	Name        string
	Identifiers Identifiers

	reserved map[string]struct{}
	viewDDL  string
}

// IsReservedWord returns true if the word needs quoting when used as an identifier.
// Matching is case-insensitive.
func (d *Dialect) IsReservedWord(word string) bool {
	_, ok := d.reserved[strings.ToUpper(word)]
	return ok
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// QuoteIdentifierIfNeeded quotes an identifier only if it's a reserved word.
// Plain identifiers pass through unchanged so output stays stable across dialects.
func (d *Dialect) QuoteIdentifierIfNeeded(name string) string {
	if d.IsReservedWord(name) {
		return d.QuoteIdentifier(name)
	}
	return name
}

// QuoteQualified applies QuoteIdentifierIfNeeded to each dot-separated part
// of a possibly schema-qualified name ("analytics.fact_sales").
func (d *Dialect) QuoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdentifierIfNeeded(p)
	}
	return strings.Join(parts, ".")
}

// SupportsViewMaterialization returns true if the dialect has a view DDL template.
func (d *Dialect) SupportsViewMaterialization() bool {
	return d.viewDDL != ""
}

// ViewDDL wraps a SELECT statement in the dialect's view DDL.
// The view name is quoted if it collides with a reserved word.
func (d *Dialect) ViewDDL(name, query string) (string, error) {
	if d.viewDDL == "" {
		return "", fmt.Errorf("dialect %q does not support view materialization", d.Name)
	}
	return fmt.Sprintf(d.viewDDL, d.QuoteIdentifierIfNeeded(name), query), nil
}

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
}

// New creates a dialect builder with the given name and ANSI double-quote
// identifier defaults.
func New(name string) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name: name,
			Identifiers: Identifiers{
				Quote:    `"`,
				QuoteEnd: `"`,
				Escape:   `""`,
			},
			reserved: make(map[string]struct{}),
		},
	}
}

// WithIdentifiers configures identifier quoting.
func (b *Builder) WithIdentifiers(quote, quoteEnd, escape string) *Builder {
	b.dialect.Identifiers = Identifiers{Quote: quote, QuoteEnd: quoteEnd, Escape: escape}
	return b
}

// Reserved registers words that need quoting when used as identifiers.
// May be called multiple times; words accumulate.
func (b *Builder) Reserved(words ...string) *Builder {
	for _, w := range words {
		b.dialect.reserved[strings.ToUpper(w)] = struct{}{}
	}
	return b
}

// ViewDDL sets the view materialization template. The template receives the
// view name and the SELECT statement, in that order.
func (b *Builder) ViewDDL(tmpl string) *Builder {
	b.dialect.viewDDL = tmpl
	return b
}

// Build returns the constructed dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}
