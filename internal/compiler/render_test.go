package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/internal/dialect"
	"github.com/quarrylabs/quarry/pkg/core"
)

func testSet(t *testing.T) *core.DefinitionSet {
	t.Helper()
	set := core.NewDefinitionSet()
	defs := []*core.MetricDefinition{
		{
			Name:       "margin",
			Expression: "SUM(revenue - cost)",
			Source:     "fact_sales",
			Dimensions: []string{"region"},
			Filters:    []string{"region IS NOT NULL"},
		},
		{
			Name:       "orders",
			Expression: "COUNT(*)",
			Source:     "fact_orders",
		},
		{
			Name:       "aov",
			Expression: "SUM(amount) / COUNT(DISTINCT order_id)",
			Source:     "fact_orders",
			Dimensions: []string{"channel"},
		},
	}
	for _, def := range defs {
		require.NoError(t, set.Add(def))
	}
	return set
}

func TestRenderBatchAll(t *testing.T) {
	result, err := RenderBatch(testSet(t), BatchOptions{})
	require.NoError(t, err)

	want := "-- metric: margin\n" +
		"SELECT region, SUM(revenue - cost) AS margin FROM fact_sales WHERE (region IS NOT NULL) GROUP BY region\n" +
		"\n" +
		"-- metric: orders\n" +
		"SELECT COUNT(*) AS orders FROM fact_orders\n" +
		"\n" +
		"-- metric: aov\n" +
		"SELECT channel, SUM(amount) / COUNT(DISTINCT order_id) AS aov FROM fact_orders GROUP BY channel\n"
	assert.Equal(t, want, result.SQL)
	assert.Len(t, result.Compiled, 3)
	assert.Empty(t, result.Failed)
}

func TestRenderBatchSelectionOrder(t *testing.T) {
	result, err := RenderBatch(testSet(t), BatchOptions{Metrics: []string{"aov", "margin"}})
	require.NoError(t, err)

	require.Len(t, result.Compiled, 2)
	assert.Equal(t, "aov", result.Compiled[0].Metric.Name)
	assert.Equal(t, "margin", result.Compiled[1].Metric.Name)
	assert.True(t, strings.HasPrefix(result.SQL, "-- metric: aov\n"))
}

func TestRenderBatchUnknownMetricFailFast(t *testing.T) {
	_, err := RenderBatch(testSet(t), BatchOptions{Metrics: []string{"margin", "missing"}})
	require.Error(t, err)

	var compErr *CompileError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, "missing", compErr.Metric)
	assert.Contains(t, compErr.Reason, "not found in definition set")
}

func TestRenderBatchFailFastNoPartialOutput(t *testing.T) {
	set := testSet(t)
	require.NoError(t, set.Add(&core.MetricDefinition{
		Name:       "broken",
		Expression: "1; DROP TABLE x",
		Source:     "fact_sales",
	}))

	result, err := RenderBatch(set, BatchOptions{})
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestRenderBatchContinueOnError(t *testing.T) {
	set := testSet(t)
	require.NoError(t, set.Add(&core.MetricDefinition{
		Name:       "broken",
		Expression: "1; DROP TABLE x",
		Source:     "fact_sales",
	}))

	result, err := RenderBatch(set, BatchOptions{ContinueOnError: true})
	require.NoError(t, err)

	assert.Len(t, result.Compiled, 3)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "broken", result.Failed[0].Metric)
	assert.NotContains(t, result.SQL, "broken")
	assert.Contains(t, result.SQL, "-- metric: margin\n")
}

func TestRenderBatchContinueCollectsUnknownNames(t *testing.T) {
	result, err := RenderBatch(testSet(t), BatchOptions{
		Metrics:         []string{"missing", "orders"},
		ContinueOnError: true,
	})
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, "missing", result.Failed[0].Metric)
	require.Len(t, result.Compiled, 1)
	assert.Equal(t, "orders", result.Compiled[0].Metric.Name)
}

func TestRenderBatchExpandFor(t *testing.T) {
	set := core.NewDefinitionSet()
	require.NoError(t, set.Add(&core.MetricDefinition{
		Name:       "margin",
		Expression: "SUM(revenue - cost)",
		Source:     "fact_sales",
		Filters:    []string{"src = '@self'"},
	}))

	result, err := RenderBatch(set, BatchOptions{
		ExpandFor: func(def *core.MetricDefinition) ExpandFunc {
			return func(fragment string) (string, error) {
				return strings.ReplaceAll(fragment, "@self", def.Source), nil
			}
		},
	})
	require.NoError(t, err)

	assert.Contains(t, result.SQL, "WHERE (src = 'fact_sales')")
}

func TestRenderBatchEmptySet(t *testing.T) {
	result, err := RenderBatch(core.NewDefinitionSet(), BatchOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.SQL)
	assert.Empty(t, result.Compiled)
}

func TestRenderBatchMaterializeView(t *testing.T) {
	result, err := RenderBatch(testSet(t), BatchOptions{
		Metrics:     []string{"orders"},
		Materialize: MaterializeView,
	})
	require.NoError(t, err)

	want := "-- metric: orders\n" +
		"CREATE OR REPLACE VIEW orders AS\n" +
		"SELECT COUNT(*) AS orders FROM fact_orders\n"
	assert.Equal(t, want, result.SQL)
}

func TestRenderBatchMaterializeUnsupportedDialect(t *testing.T) {
	sqlite, ok := dialect.Get("sqlite")
	require.True(t, ok)

	_, err := RenderBatch(testSet(t), BatchOptions{
		Dialect:     sqlite,
		Materialize: MaterializeView,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support view materialization")
}

func TestRenderBatchUnknownMaterialization(t *testing.T) {
	_, err := RenderBatch(testSet(t), BatchOptions{Materialize: "table"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported materialization type "table"`)
}
