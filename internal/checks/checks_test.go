package checks

import (
	"sort"
	"strings"
	"testing"
)

func TestAllChecksAreWellFormed(t *testing.T) {
	all := All()
	if len(all) == 0 {
		t.Fatal("expected embedded checks, got none")
	}

	names := make([]string, 0, len(all))
	for _, c := range all {
		names = append(names, c.Name)
		if c.Description == "" {
			t.Errorf("check %q has no description comment", c.Name)
		}
		if !strings.Contains(c.SQL, "SELECT") {
			t.Errorf("check %q has no SELECT in its SQL", c.Name)
		}
		if strings.HasSuffix(c.SQL, "\n") {
			t.Errorf("check %q SQL should be trimmed", c.Name)
		}
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("checks not sorted by name: %v", names)
	}
}

func TestGet(t *testing.T) {
	c, ok := Get("failed_runs")
	if !ok {
		t.Fatal("failed_runs not found")
	}
	if !strings.Contains(c.SQL, "ingest_runs") {
		t.Errorf("failed_runs should query ingest_runs, got:\n%s", c.SQL)
	}

	if _, ok := Get("nope"); ok {
		t.Error("expected miss for unknown check name")
	}
}

func TestNamesMatchAll(t *testing.T) {
	names := Names()
	all := All()
	if len(names) != len(all) {
		t.Fatalf("Names() returned %d entries, All() returned %d", len(names), len(all))
	}
	for i, c := range all {
		if names[i] != c.Name {
			t.Errorf("names[%d] = %q, want %q", i, names[i], c.Name)
		}
	}
}

func TestRenderBlockFormat(t *testing.T) {
	selected := []Check{
		{Name: "a", SQL: "SELECT 1;"},
		{Name: "b", SQL: "SELECT 2;"},
	}

	got := Render(selected)
	want := "-- check: a\nSELECT 1;\n\n-- check: b\nSELECT 2;\n"
	if got != want {
		t.Errorf("Render mismatch:\ngot:\n%q\nwant:\n%q", got, want)
	}
}

func TestDescriptionExtraction(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"comment first", "-- finds bad rows\nSELECT 1;", "finds bad rows"},
		{"leading blank line", "\n--  padded \nSELECT 1;", "padded"},
		{"no comment", "SELECT 1;", ""},
		{"comment after sql ignored", "SELECT 1;\n-- trailing", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := description(tt.sql); got != tt.want {
				t.Errorf("description(%q) = %q, want %q", tt.sql, got, tt.want)
			}
		})
	}
}
