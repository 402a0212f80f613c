package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/pkg/core"
)

func TestLoadYAML(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantNames []string
		checkFunc func(t *testing.T, set *core.DefinitionSet)
	}{
		{
			name: "single metric",
			doc: `margin:
  expression: "SUM(revenue - cost)"
  source: fact_sales
  dimensions: [region]
  filters:
    - region IS NOT NULL
`,
			wantNames: []string{"margin"},
			checkFunc: func(t *testing.T, set *core.DefinitionSet) {
				m := set.Get("margin")
				require.NotNil(t, m)
				assert.Equal(t, "SUM(revenue - cost)", m.Expression)
				assert.Equal(t, "fact_sales", m.Source)
				assert.Equal(t, []string{"region"}, m.Dimensions)
				assert.Equal(t, []string{"region IS NOT NULL"}, m.Filters)
			},
		},
		{
			name: "document order preserved",
			doc: `zeta:
  expression: COUNT(*)
  source: fact_sales
alpha:
  expression: COUNT(*)
  source: fact_sales
middle:
  expression: COUNT(*)
  source: fact_sales
`,
			wantNames: []string{"zeta", "alpha", "middle"},
		},
		{
			name: "optional fields absent",
			doc: `orders:
  expression: COUNT(*)
  source: fact_orders
`,
			wantNames: []string{"orders"},
			checkFunc: func(t *testing.T, set *core.DefinitionSet) {
				m := set.Get("orders")
				require.NotNil(t, m)
				assert.Empty(t, m.Dimensions)
				assert.Empty(t, m.Filters)
				assert.Empty(t, m.Description)
			},
		},
		{
			name: "description carried through",
			doc: `margin:
  expression: SUM(revenue - cost)
  source: fact_sales
  description: Gross margin by configured dimensions
`,
			wantNames: []string{"margin"},
			checkFunc: func(t *testing.T, set *core.DefinitionSet) {
				assert.Equal(t, "Gross margin by configured dimensions", set.Get("margin").Description)
			},
		},
		{
			name:      "empty document",
			doc:       "",
			wantNames: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Load([]byte(tt.doc), FormatYAML)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNames, append([]string{}, set.Names()...))
			if tt.checkFunc != nil {
				tt.checkFunc(t, set)
			}
		})
	}
}

func TestLoadJSON(t *testing.T) {
	doc := `{
  "margin": {
    "expression": "SUM(revenue - cost)",
    "source": "fact_sales",
    "dimensions": ["region", "channel"]
  },
  "orders": {
    "expression": "COUNT(*)",
    "source": "fact_orders"
  }
}`

	set, err := Load([]byte(doc), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, []string{"margin", "orders"}, set.Names())
	assert.Equal(t, []string{"region", "channel"}, set.Get("margin").Dimensions)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name       string
		doc        string
		format     Format
		wantMetric string
		wantField  string
		wantMsg    string
	}{
		{
			name:    "unparseable yaml",
			doc:     "margin: [unclosed",
			format:  FormatYAML,
			wantMsg: "invalid YAML",
		},
		{
			name:    "unparseable json",
			doc:     `{"margin": `,
			format:  FormatJSON,
			wantMsg: "invalid",
		},
		{
			name:    "top level list",
			doc:     "- margin\n- orders\n",
			format:  FormatYAML,
			wantMsg: "top level must be a mapping",
		},
		{
			name:       "missing expression",
			doc:        "margin:\n  source: fact_sales\n",
			format:     FormatYAML,
			wantMetric: "margin",
			wantField:  "expression",
			wantMsg:    `missing required field "expression"`,
		},
		{
			name:       "missing source",
			doc:        "margin:\n  expression: COUNT(*)\n",
			format:     FormatYAML,
			wantMetric: "margin",
			wantField:  "source",
			wantMsg:    `missing required field "source"`,
		},
		{
			name:       "empty expression",
			doc:        "margin:\n  expression: \"\"\n  source: fact_sales\n",
			format:     FormatYAML,
			wantMetric: "margin",
			wantField:  "expression",
			wantMsg:    "missing required field",
		},
		{
			name:       "unknown field",
			doc:        "margin:\n  expression: COUNT(*)\n  source: fact_sales\n  experssion: typo\n",
			format:     FormatYAML,
			wantMetric: "margin",
			wantField:  "experssion",
			wantMsg:    `unknown field "experssion"`,
		},
		{
			name:       "duplicate dimension",
			doc:        "margin:\n  expression: COUNT(*)\n  source: fact_sales\n  dimensions: [region, region]\n",
			format:     FormatYAML,
			wantMetric: "margin",
			wantField:  "dimensions",
			wantMsg:    `duplicate dimension "region"`,
		},
		{
			name:       "duplicate metric name",
			doc:        "margin:\n  expression: COUNT(*)\n  source: a\nmargin:\n  expression: SUM(x)\n  source: b\n",
			format:     FormatYAML,
			wantMetric: "margin",
			wantMsg:    `duplicate metric "margin"`,
		},
		{
			name:       "duplicate metric name json",
			doc:        `{"margin": {"expression": "COUNT(*)", "source": "a"}, "margin": {"expression": "SUM(x)", "source": "b"}}`,
			format:     FormatJSON,
			wantMetric: "margin",
			wantMsg:    `duplicate metric "margin"`,
		},
		{
			name:    "scalar metric body",
			doc:     "margin: 42\n",
			format:  FormatYAML,
			wantMsg: "metric body must be a mapping",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.doc), tt.format)
			require.Error(t, err)

			var defErr *DefinitionError
			require.ErrorAs(t, err, &defErr)
			assert.Equal(t, tt.wantMetric, defErr.Metric)
			assert.Equal(t, tt.wantField, defErr.Field)
			assert.Contains(t, defErr.Error(), tt.wantMsg)
		})
	}
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("metrics.yml"))
	assert.Equal(t, FormatYAML, DetectFormat("metrics.YAML"))
	assert.Equal(t, FormatJSON, DetectFormat("metrics.json"))
	assert.Equal(t, FormatJSON, DetectFormat("metrics.txt"))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metrics.yml")
	doc := `margin:
  expression: SUM(revenue - cost)
  source: fact_sales
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	set, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
}

func TestLoadFileAttachesPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metrics.yml")
	require.NoError(t, os.WriteFile(path, []byte("margin:\n  source: fact_sales\n"), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)

	var defErr *DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, path, defErr.File)
	assert.Contains(t, err.Error(), path)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_sales.yml"), []byte("margin:\n  expression: SUM(revenue - cost)\n  source: fact_sales\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_orders.json"), []byte(`{"orders": {"expression": "COUNT(*)", "source": "fact_orders"}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	set, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"margin", "orders"}, set.Names())
}

func TestLoadDirCrossFileDuplicate(t *testing.T) {
	dir := t.TempDir()
	body := "margin:\n  expression: COUNT(*)\n  source: fact_sales\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yml"), []byte(body), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte(body), 0o644))

	_, err := LoadDir(dir)
	require.Error(t, err)

	var defErr *DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, "margin", defErr.Metric)
	assert.Contains(t, err.Error(), "already defined in")
}
