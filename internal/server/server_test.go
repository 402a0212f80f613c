package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/quarrylabs/quarry/internal/engine"
)

const testDefinitions = `margin:
  expression: SUM(revenue - cost)
  source: fact_sales
  dimensions: [region]
  filters:
    - region IS NOT NULL
orders:
  expression: COUNT(*)
  source: fact_orders
  dimensions: [status, channel]
`

func newTestServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	defs := filepath.Join(dir, "metrics.yml")
	if err := os.WriteFile(defs, []byte(testDefinitions), 0o600); err != nil {
		t.Fatal(err)
	}

	eng, err := engine.New(engine.Config{DefinitionsPath: defs})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Load(engine.LoadOptions{}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = eng.Close() })

	return New(Config{Engine: eng, DefinitionsPath: defs})
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	mux := chi.NewMux()
	s.routes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Status  string `json:"status"`
		Metrics int    `json:"metrics"`
		Dialect string `json:"dialect"`
	}
	decode(t, rec, &body)
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if body.Metrics != 2 {
		t.Errorf("metrics = %d, want 2", body.Metrics)
	}
	if body.Dialect == "" {
		t.Error("dialect should not be empty")
	}
}

func TestListMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Metrics []metricJSON `json:"metrics"`
	}
	decode(t, rec, &body)
	if len(body.Metrics) != 2 {
		t.Fatalf("got %d metrics, want 2", len(body.Metrics))
	}
	if body.Metrics[0].Name != "margin" || body.Metrics[1].Name != "orders" {
		t.Errorf("unexpected order: %q, %q", body.Metrics[0].Name, body.Metrics[1].Name)
	}
	if body.Metrics[0].File == "" {
		t.Error("metric file should be populated")
	}
}

func TestGetMetric(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/metrics/margin")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var m metricJSON
	decode(t, rec, &m)
	if m.Source != "fact_sales" {
		t.Errorf("source = %q, want fact_sales", m.Source)
	}
	if len(m.Dimensions) != 1 || m.Dimensions[0] != "region" {
		t.Errorf("dimensions = %v, want [region]", m.Dimensions)
	}
}

func TestGetMetricNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/metrics/nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var body struct {
		Error string `json:"error"`
	}
	decode(t, rec, &body)
	if body.Error == "" {
		t.Error("expected an error message")
	}
}

func TestMetricSQL(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/metrics/margin/sql")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Metric  string `json:"metric"`
		Dialect string `json:"dialect"`
		SQL     string `json:"sql"`
	}
	decode(t, rec, &body)
	want := "SELECT region, SUM(revenue - cost) AS margin FROM fact_sales WHERE (region IS NOT NULL) GROUP BY region"
	if body.SQL != want {
		t.Errorf("sql = %q, want %q", body.SQL, want)
	}
}

func TestMetricSQLWithParams(t *testing.T) {
	s := newTestServer(t)

	params := url.Values{}
	params.Add("filter", "region <> 'EU'")
	params.Set("dialect", "postgres")
	rec := get(t, s, "/api/metrics/margin/sql?"+params.Encode())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Dialect string `json:"dialect"`
		SQL     string `json:"sql"`
	}
	decode(t, rec, &body)
	if body.Dialect != "postgres" {
		t.Errorf("dialect = %q, want postgres", body.Dialect)
	}
	want := "SELECT region, SUM(revenue - cost) AS margin FROM fact_sales WHERE (region IS NOT NULL) AND (region <> 'EU') GROUP BY region"
	if body.SQL != want {
		t.Errorf("sql = %q, want %q", body.SQL, want)
	}
}

func TestMetricSQLDimensionSubset(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/metrics/orders/sql?dimensions=status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		SQL string `json:"sql"`
	}
	decode(t, rec, &body)
	want := "SELECT status, COUNT(*) AS orders FROM fact_orders GROUP BY status"
	if body.SQL != want {
		t.Errorf("sql = %q, want %q", body.SQL, want)
	}
}

func TestMetricSQLEmptyDimensions(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/metrics/margin/sql?dimensions=")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		SQL string `json:"sql"`
	}
	decode(t, rec, &body)
	want := "SELECT SUM(revenue - cost) AS margin FROM fact_sales WHERE (region IS NOT NULL)"
	if body.SQL != want {
		t.Errorf("sql = %q, want %q", body.SQL, want)
	}
}

func TestMetricSQLUndeclaredDimension(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/metrics/orders/sql?dimensions=region")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestMetricSQLBadDialect(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/metrics/margin/sql?dialect=nope")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMetricSQLUnknownMetric(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/metrics/nope/sql")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestMetricSQLBadFilter(t *testing.T) {
	s := newTestServer(t)

	params := url.Values{}
	params.Add("filter", "region = 'x'; DROP TABLE fact_sales")
	rec := get(t, s, "/api/metrics/margin/sql?"+params.Encode())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestListDialects(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/dialects")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Dialects []string `json:"dialects"`
	}
	decode(t, rec, &body)
	found := false
	for _, d := range body.Dialects {
		if d == "postgres" {
			found = true
		}
	}
	if !found {
		t.Errorf("postgres missing from dialects: %v", body.Dialects)
	}
}
