package starlark

import (
	"testing"

	"github.com/quarrylabs/quarry/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoToStarlark(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantStr string
		wantErr bool
	}{
		{
			name:    "string",
			input:   "hello",
			wantStr: `"hello"`,
		},
		{
			name:    "int",
			input:   42,
			wantStr: "42",
		},
		{
			name:    "int64",
			input:   int64(123456789),
			wantStr: "123456789",
		},
		{
			name:    "float64",
			input:   3.14,
			wantStr: "3.14",
		},
		{
			name:    "bool true",
			input:   true,
			wantStr: "True",
		},
		{
			name:    "bool false",
			input:   false,
			wantStr: "False",
		},
		{
			name:    "nil",
			input:   nil,
			wantStr: "None",
		},
		{
			name:    "string slice",
			input:   []string{"a", "b", "c"},
			wantStr: `["a", "b", "c"]`,
		},
		{
			name:    "empty string slice",
			input:   []string{},
			wantStr: "[]",
		},
		{
			name:    "any slice",
			input:   []any{"x", 1, true},
			wantStr: `["x", 1, True]`,
		},
		{
			name:    "map",
			input:   map[string]any{"key": "value"},
			wantStr: `{"key": "value"}`,
		},
		{
			name:    "unsupported type",
			input:   struct{}{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GoToStarlark(tt.input)
			if tt.wantErr {
				assert.Error(t, err, "expected error")
				return
			}
			require.NoError(t, err, "unexpected error")
			assert.Equal(t, tt.wantStr, got.String(), "GoToStarlark()")
		})
	}
}

func TestMetricInfo_ToStarlark(t *testing.T) {
	metric := &MetricInfo{
		Name:   "monthly_revenue",
		Source: "analytics.fact_sales",
	}

	val := metric.ToStarlark()
	require.NotNil(t, val, "ToStarlark returned nil")

	str := val.String()
	assert.NotEmpty(t, str, "expected non-empty string representation")
}

func TestMetricInfoFromDefinition(t *testing.T) {
	def := &core.MetricDefinition{
		Name:       "margin",
		Expression: "SUM(revenue - cost)",
		Source:     "fact_sales",
	}

	info := MetricInfoFromDefinition(def)
	require.NotNil(t, info, "expected non-nil MetricInfo")
	assert.Equal(t, "margin", info.Name, "Name")
	assert.Equal(t, "fact_sales", info.Source, "Source")
}

func TestMetricInfoFromDefinition_Nil(t *testing.T) {
	assert.Nil(t, MetricInfoFromDefinition(nil), "expected nil for nil definition")
}
