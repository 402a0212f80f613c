// Package checks ships the built-in health queries for the ingest state
// database. Each check is a SQL file embedded in the binary; the checks
// command prints them so operators can run them with any SQLite client.
package checks

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"embed"
)

//go:embed sql/*.sql
var checkFS embed.FS

// Check is one built-in health query.
type Check struct {
	// Name identifies the check, derived from its file name.
	Name string
	// Description is the first comment line of the file.
	Description string
	// SQL is the full query text, leading comment included.
	SQL string
}

var (
	loadOnce sync.Once
	all      []Check
	byName   map[string]Check
)

func load() {
	loadOnce.Do(func() {
		entries, err := checkFS.ReadDir("sql")
		if err != nil {
			panic(fmt.Sprintf("checks: read embedded dir: %v", err))
		}
		byName = make(map[string]Check, len(entries))
		for _, entry := range entries {
			data, err := checkFS.ReadFile("sql/" + entry.Name())
			if err != nil {
				panic(fmt.Sprintf("checks: read %s: %v", entry.Name(), err))
			}
			c := Check{
				Name:        strings.TrimSuffix(entry.Name(), ".sql"),
				SQL:         strings.TrimSpace(string(data)),
				Description: description(string(data)),
			}
			all = append(all, c)
			byName[c.Name] = c
		}
		sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	})
}

// description extracts the first "-- " comment line of a check file.
func description(sql string) string {
	for _, line := range strings.Split(sql, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "--"); ok {
			return strings.TrimSpace(rest)
		}
		break
	}
	return ""
}

// All returns every built-in check, sorted by name.
func All() []Check {
	load()
	out := make([]Check, len(all))
	copy(out, all)
	return out
}

// Get returns the check with the given name.
func Get(name string) (Check, bool) {
	load()
	c, ok := byName[name]
	return c, ok
}

// Names returns the sorted check names.
func Names() []string {
	load()
	names := make([]string, 0, len(all))
	for _, c := range all {
		names = append(names, c.Name)
	}
	return names
}

// Render formats the given checks as one SQL script. Each check gets a
// "-- check: <name>" header line, and blocks are separated by a blank
// line, mirroring the batch format the compiler uses for metrics.
func Render(selected []Check) string {
	blocks := make([]string, 0, len(selected))
	for _, c := range selected {
		blocks = append(blocks, fmt.Sprintf("-- check: %s\n%s\n", c.Name, c.SQL))
	}
	return strings.Join(blocks, "\n")
}
