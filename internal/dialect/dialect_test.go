package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsReservedWord(t *testing.T) {
	d := New("test").Reserved("SELECT", "ORDER", "user").Build()

	tests := []struct {
		name string
		want bool
	}{
		{"select", true},
		{"SELECT", true}, // case insensitive
		{"Order", true},
		{"USER", true},
		{"region", false},
		{"fact_sales", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.IsReservedWord(tt.name))
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		dialect string
		ident   string
		want    string
	}{
		{"ansi", "order", `"order"`},
		{"ansi", `odd"name`, `odd""name`},
		{"mysql", "order", "`order`"},
		{"mysql", "odd`name", "odd``name"},
	}

	for _, tt := range tests {
		t.Run(tt.dialect+"/"+tt.ident, func(t *testing.T) {
			d, ok := Get(tt.dialect)
			require.True(t, ok)
			got := d.QuoteIdentifier(tt.ident)
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestQuoteIdentifierIfNeeded(t *testing.T) {
	d := Default()

	// Plain identifiers pass through so rendered SQL stays stable.
	assert.Equal(t, "region", d.QuoteIdentifierIfNeeded("region"))
	assert.Equal(t, `"order"`, d.QuoteIdentifierIfNeeded("order"))
}

func TestQuoteQualified(t *testing.T) {
	d := Default()

	tests := []struct {
		in   string
		want string
	}{
		{"fact_sales", "fact_sales"},
		{"analytics.fact_sales", "analytics.fact_sales"},
		{"analytics.order", `analytics."order"`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, d.QuoteQualified(tt.in))
		})
	}
}

func TestViewDDL(t *testing.T) {
	d, ok := Get("postgres")
	require.True(t, ok)

	ddl, err := d.ViewDDL("margin", "SELECT region, SUM(revenue - cost) AS margin FROM fact_sales GROUP BY region")
	require.NoError(t, err)
	assert.Equal(t, "CREATE OR REPLACE VIEW margin AS\nSELECT region, SUM(revenue - cost) AS margin FROM fact_sales GROUP BY region", ddl)
}

func TestViewDDLUnsupported(t *testing.T) {
	d, ok := Get("sqlite")
	require.True(t, ok)
	require.False(t, d.SupportsViewMaterialization())

	_, err := d.ViewDDL("margin", "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `dialect "sqlite" does not support view materialization`)
}

func TestRegistry(t *testing.T) {
	names := List()
	assert.Contains(t, names, "ansi")
	assert.Contains(t, names, "duckdb")
	assert.Contains(t, names, "mysql")
	assert.Contains(t, names, "postgres")
	assert.Contains(t, names, "snowflake")
	assert.Contains(t, names, "sqlite")

	_, err := Lookup("oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown dialect "oracle"`)
	assert.Contains(t, err.Error(), "known dialects:")
}

func TestDefault(t *testing.T) {
	d := Default()
	require.NotNil(t, d)
	assert.Equal(t, "ansi", d.Name)
}
