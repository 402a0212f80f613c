package starlark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestBuildVarsDict(t *testing.T) {
	dict := BuildVarsDict(map[string]any{
		"start_date": "2024-01-01",
		"regions":    []string{"emea", "amer"},
		"limits":     map[string]any{"rows": 1000},
	})

	require.NotNil(t, dict, "BuildVarsDict returned nil")

	d, ok := dict.(*starlark.Dict)
	require.True(t, ok, "expected *starlark.Dict, got %T", dict)

	// Check start_date
	dateVal, found, _ := d.Get(starlark.String("start_date"))
	assert.True(t, found, "start_date not found in dict")
	assert.Equal(t, `"2024-01-01"`, dateVal.String(), "start_date value")

	// Check regions
	regionsVal, found, _ := d.Get(starlark.String("regions"))
	assert.True(t, found, "regions not found in dict")
	regionsList, ok := regionsVal.(*starlark.List)
	require.True(t, ok, "regions is not a list: %T", regionsVal)
	assert.Equal(t, 2, regionsList.Len(), "regions length")

	// Check limits
	limitsVal, found, _ := d.Get(starlark.String("limits"))
	assert.True(t, found, "limits not found in dict")
	limitsDict, ok := limitsVal.(*starlark.Dict)
	require.True(t, ok, "limits is not a dict: %T", limitsVal)
	rowsVal, found, _ := limitsDict.Get(starlark.String("rows"))
	assert.True(t, found, "limits.rows not found")
	assert.Equal(t, "1000", rowsVal.String(), "limits.rows value")
}

func TestBuildVarsDict_Empty(t *testing.T) {
	dict := BuildVarsDict(nil)

	d, ok := dict.(*starlark.Dict)
	require.True(t, ok, "expected *starlark.Dict, got %T", dict)

	assert.Equal(t, 0, d.Len(), "expected empty dict")
}

func TestBuildVarsDict_SkipsUnrepresentable(t *testing.T) {
	dict := BuildVarsDict(map[string]any{
		"good": "value",
		"bad":  struct{}{},
	})

	d, ok := dict.(*starlark.Dict)
	require.True(t, ok, "expected *starlark.Dict, got %T", dict)
	assert.Equal(t, 1, d.Len(), "expected unrepresentable entry to be dropped")
}

func TestPredeclared(t *testing.T) {
	vars := starlark.NewDict(1)
	vars.SetKey(starlark.String("start_date"), starlark.String("2024-01-01"))

	metric := &MetricInfo{
		Name:   "margin",
		Source: "fact_sales",
	}

	globals := Predeclared(vars, "dev", "duckdb", metric)

	// Check vars
	_, ok := globals["vars"]
	assert.True(t, ok, "vars not found in globals")

	// Check env
	envVal, ok := globals["env"]
	assert.True(t, ok, "env not found in globals")
	assert.Equal(t, `"dev"`, envVal.String(), "env value")

	// Check dialect
	dialectVal, ok := globals["dialect"]
	assert.True(t, ok, "dialect not found in globals")
	assert.Equal(t, `"duckdb"`, dialectVal.String(), "dialect value")

	// Check metric
	_, ok = globals["metric"]
	assert.True(t, ok, "metric not found in globals")
}

func TestPredeclared_NilMetric(t *testing.T) {
	globals := Predeclared(nil, "prod", "ansi", nil)

	// Should have vars, env, and dialect
	_, ok := globals["vars"]
	assert.True(t, ok, "vars not found in globals")
	_, ok = globals["env"]
	assert.True(t, ok, "env not found in globals")
	_, ok = globals["dialect"]
	assert.True(t, ok, "dialect not found in globals")

	// Should not have metric
	_, ok = globals["metric"]
	assert.False(t, ok, "metric should not be in globals when nil")
}
