package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quarrylabs/quarry/internal/compiler"
	"github.com/quarrylabs/quarry/internal/dialect"
	"github.com/quarrylabs/quarry/pkg/core"
)

// metricJSON is the API form of one metric definition.
type metricJSON struct {
	Name        string   `json:"name"`
	Source      string   `json:"source"`
	Expression  string   `json:"expression"`
	Dimensions  []string `json:"dimensions,omitempty"`
	Filters     []string `json:"filters,omitempty"`
	Description string   `json:"description,omitempty"`
	File        string   `json:"file,omitempty"`
}

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/metrics", s.handleListMetrics)
		r.Get("/metrics/{name}", s.handleGetMetric)
		r.Get("/metrics/{name}/sql", s.handleMetricSQL)
		r.Get("/dialects", s.handleListDialects)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"metrics": s.engine.Definitions().Len(),
		"dialect": s.engine.Dialect().Name,
	})
}

func (s *Server) handleListMetrics(w http.ResponseWriter, _ *http.Request) {
	metrics := s.engine.Definitions().Metrics()
	out := make([]metricJSON, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, s.toMetricJSON(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"metrics": out})
}

func (s *Server) handleGetMetric(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	m := s.engine.Definitions().Get(name)
	if m == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("metric %q not found", name))
		return
	}
	writeJSON(w, http.StatusOK, s.toMetricJSON(m))
}

// handleMetricSQL renders one metric. Query parameters narrow the
// rendering: dimensions (comma separated or repeated), filter (repeated,
// one SQL predicate each), and dialect.
func (s *Server) handleMetricSQL(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if s.engine.Definitions().Get(name) == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("metric %q not found", name))
		return
	}

	q := r.URL.Query()

	d := s.engine.Dialect()
	if dn := q.Get("dialect"); dn != "" {
		var err error
		d, err = dialect.Lookup(dn)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	// A present but empty dimensions parameter means "no dimensions":
	// the compiler renders a global aggregate for an empty non-nil list.
	var dims []string
	if vals, ok := q["dimensions"]; ok {
		dims = []string{}
		for _, v := range vals {
			for _, dim := range strings.Split(v, ",") {
				if dim = strings.TrimSpace(dim); dim != "" {
					dims = append(dims, dim)
				}
			}
		}
	}
	// Filters are whole SQL predicates; commas inside them are data, so
	// only repeating the parameter separates filters.
	filters := q["filter"]

	result, err := compiler.RenderBatch(s.engine.Definitions(), compiler.BatchOptions{
		Metrics:      []string{name},
		Dimensions:   dims,
		ExtraFilters: filters,
		Dialect:      d,
		ExpandFor: func(def *core.MetricDefinition) compiler.ExpandFunc {
			return s.engine.ExpandWith(d, def)
		},
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"metric":  name,
		"dialect": d.Name,
		"sql":     result.Compiled[0].SQL,
	})
}

func (s *Server) handleListDialects(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"dialects": dialect.List()})
}

func (s *Server) toMetricJSON(m *core.MetricDefinition) metricJSON {
	return metricJSON{
		Name:        m.Name,
		Source:      m.Source,
		Expression:  m.Expression,
		Dimensions:  m.Dimensions,
		Filters:     m.Filters,
		Description: m.Description,
		File:        s.engine.Origin(m.Name),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
