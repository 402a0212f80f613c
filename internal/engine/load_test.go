package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeProject lays out a small project with two definitions files and
// one macro namespace.
func writeProject(t *testing.T) (metricsDir, macrosDir string) {
	t.Helper()

	dir := t.TempDir()
	metricsDir = filepath.Join(dir, "metrics")
	macrosDir = filepath.Join(dir, "macros")
	require.NoError(t, os.MkdirAll(metricsDir, 0o750))
	require.NoError(t, os.MkdirAll(macrosDir, 0o750))

	sales := `margin:
  expression: SUM(revenue - cost)
  source: fact_sales
  dimensions: [region]
  filters:
    - region IS NOT NULL
order_count:
  expression: COUNT(*)
  source: fact_orders
  dimensions: [region, channel]
`
	require.NoError(t, os.WriteFile(filepath.Join(metricsDir, "sales.yml"), []byte(sales), 0o600))

	ops := `error_rate:
  expression: AVG(CASE WHEN status = 'error' THEN 1 ELSE 0 END)
  source: fact_requests
`
	require.NoError(t, os.WriteFile(filepath.Join(metricsDir, "ops.yml"), []byte(ops), 0o600))

	dates := "def month_floor(col):\n" +
		"    return \"DATE_TRUNC('month', \" + col + \")\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(macrosDir, "dates.star"), []byte(dates), 0o600))

	return metricsDir, macrosDir
}

func newProjectEngine(t *testing.T, metricsDir, macrosDir string) *Engine {
	t.Helper()
	e, err := New(Config{
		DefinitionsPath: metricsDir,
		MacrosDir:       macrosDir,
		Vars:            map[string]any{"schema": "analytics"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestLoadDirectory(t *testing.T) {
	metricsDir, macrosDir := writeProject(t)
	e := newProjectEngine(t, metricsDir, macrosDir)

	result, err := e.Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.MetricsTotal)
	assert.Len(t, result.Files, 2)
	assert.Equal(t, 1, result.MacroNamespaces)
	assert.False(t, result.HasErrors())

	// Files are visited in name order: ops.yml before sales.yml.
	assert.Equal(t, filepath.Join(metricsDir, "ops.yml"), result.Files[0].Path)
	assert.Equal(t, 1, result.Files[0].Metrics)
	assert.Equal(t, 2, result.Files[1].Metrics)

	require.NotNil(t, e.Definitions().Get("margin"))
	assert.Equal(t, filepath.Join(metricsDir, "sales.yml"), e.Origin("margin"))
	assert.Equal(t, filepath.Join(metricsDir, "ops.yml"), e.Origin("error_rate"))
	assert.True(t, e.Macros().Has("dates"))
}

func TestLoadSingleFile(t *testing.T) {
	metricsDir, macrosDir := writeProject(t)
	path := filepath.Join(metricsDir, "sales.yml")

	e := newProjectEngine(t, path, macrosDir)

	result, err := e.Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.MetricsTotal)
	require.Len(t, result.Files, 1)
	assert.Equal(t, path, result.Files[0].Path)
	assert.Equal(t, path, e.Origin("margin"))
}

func TestLoadMissingPath(t *testing.T) {
	e := newProjectEngine(t, filepath.Join(t.TempDir(), "absent"), "")

	_, err := e.Load(LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stat definitions path")
}

func TestLoadFailFastKeepsPreviousState(t *testing.T) {
	metricsDir, macrosDir := writeProject(t)
	e := newProjectEngine(t, metricsDir, macrosDir)

	_, err := e.Load(LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, e.Definitions().Len())

	// A broken file appearing later must not wipe the loaded set.
	bad := "broken:\n  source: t\n"
	require.NoError(t, os.WriteFile(filepath.Join(metricsDir, "bad.yml"), []byte(bad), 0o600))

	_, err = e.Load(LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expression")

	assert.Equal(t, 3, e.Definitions().Len())
	assert.NotNil(t, e.Definitions().Get("margin"))
}

func TestLoadContinueOnError(t *testing.T) {
	metricsDir, macrosDir := writeProject(t)

	bad := "broken:\n  source: t\n"
	require.NoError(t, os.WriteFile(filepath.Join(metricsDir, "bad.yml"), []byte(bad), 0o600))

	e := newProjectEngine(t, metricsDir, macrosDir)

	result, err := e.Load(LoadOptions{ContinueOnError: true})
	require.NoError(t, err)

	assert.True(t, result.HasErrors())
	assert.Equal(t, 1, result.ErrorCount())
	assert.Equal(t, 3, result.MetricsTotal)
	assert.NotNil(t, e.Definitions().Get("margin"))
	assert.Nil(t, e.Definitions().Get("broken"))

	var badResult *FileResult
	for i := range result.Files {
		if filepath.Base(result.Files[i].Path) == "bad.yml" {
			badResult = &result.Files[i]
		}
	}
	require.NotNil(t, badResult)
	require.Len(t, badResult.Errors, 1)
	assert.Contains(t, badResult.Errors[0], "missing required field")
}

func TestLoadDuplicateAcrossFiles(t *testing.T) {
	metricsDir, macrosDir := writeProject(t)

	dup := "margin:\n  expression: SUM(profit)\n  source: fact_other\n"
	require.NoError(t, os.WriteFile(filepath.Join(metricsDir, "zz_dup.yml"), []byte(dup), 0o600))

	e := newProjectEngine(t, metricsDir, macrosDir)

	_, err := e.Load(LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already defined in")

	// In batch mode the first definition wins and the clash is recorded.
	result, err := e.Load(LoadOptions{ContinueOnError: true})
	require.NoError(t, err)
	assert.Equal(t, 3, result.MetricsTotal)
	assert.Equal(t, 1, result.ErrorCount())
	assert.Equal(t, "SUM(revenue - cost)", e.Definitions().Get("margin").Expression)
}

func TestLoadMacroError(t *testing.T) {
	metricsDir, macrosDir := writeProject(t)

	require.NoError(t, os.WriteFile(filepath.Join(macrosDir, "bad.star"), []byte("def broken(\n"), 0o600))

	e := newProjectEngine(t, metricsDir, macrosDir)

	_, err := e.Load(LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "macro loading failed")

	result, err := e.Load(LoadOptions{ContinueOnError: true})
	require.NoError(t, err)
	assert.True(t, result.HasErrors())
	assert.Equal(t, 0, result.MacroNamespaces)
	assert.Equal(t, 3, result.MetricsTotal)
}

func TestLoadResultSummary(t *testing.T) {
	metricsDir, macrosDir := writeProject(t)
	e := newProjectEngine(t, metricsDir, macrosDir)

	result, err := e.Load(LoadOptions{})
	require.NoError(t, err)

	summary := result.Summary()
	assert.Contains(t, summary, "Metrics: 3")
	assert.Contains(t, summary, "2 file(s)")
	assert.Contains(t, summary, "Macro namespaces: 1")
}

func TestExpandForEvaluatesMacrosAndVars(t *testing.T) {
	metricsDir, macrosDir := writeProject(t)
	e := newProjectEngine(t, metricsDir, macrosDir)

	_, err := e.Load(LoadOptions{})
	require.NoError(t, err)

	def := e.Definitions().Get("margin")
	require.NotNil(t, def)

	expand := e.ExpandFor(def)

	out, err := expand(`{{ dates.month_floor("order_date") }}`)
	require.NoError(t, err)
	assert.Equal(t, "DATE_TRUNC('month', order_date)", out)

	out, err = expand(`{{ vars["schema"] }}.fact_sales`)
	require.NoError(t, err)
	assert.Equal(t, "analytics.fact_sales", out)

	out, err = expand(`{{ metric.name }}`)
	require.NoError(t, err)
	assert.Equal(t, "margin", out)

	// Fragments without expressions pass through untouched.
	out, err = expand("SUM(revenue - cost)")
	require.NoError(t, err)
	assert.Equal(t, "SUM(revenue - cost)", out)
}
