package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest declares the files an external transfer is expected to deliver,
// keyed by bare filename:
//
//	files:
//	  - name: orders_2024.csv
//	    size: 1048576
//	    sha256: 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08
//
// Size and sha256 are optional per entry. Whether they are enforced is
// decided by the ingest settings, not by the manifest.
type Manifest struct {
	Files []ManifestEntry `yaml:"files"`

	byName map[string]*ManifestEntry
}

// ManifestEntry declares one expected file.
type ManifestEntry struct {
	Name   string `yaml:"name"`
	Size   int64  `yaml:"size,omitempty"`
	SHA256 string `yaml:"sha256,omitempty"`
}

// LoadManifest reads and validates a manifest file. Unknown keys and
// duplicate names are errors. Declared sha256 values are lowercased, so
// comparisons against computed digests are case insensitive.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from project configuration
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return &Manifest{byName: map[string]*ManifestEntry{}}, nil
		}
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	m.byName = make(map[string]*ManifestEntry, len(m.Files))
	for i := range m.Files {
		entry := &m.Files[i]
		if entry.Name == "" {
			return nil, fmt.Errorf("manifest %s: entry %d: name is required", path, i)
		}
		if strings.ContainsAny(entry.Name, `/\`) {
			return nil, fmt.Errorf("manifest %s: entry %q: name must be a bare filename", path, entry.Name)
		}
		if entry.Size < 0 {
			return nil, fmt.Errorf("manifest %s: entry %q: size must not be negative", path, entry.Name)
		}
		entry.SHA256 = strings.ToLower(entry.SHA256)
		if entry.SHA256 != "" && !isHexDigest(entry.SHA256) {
			return nil, fmt.Errorf("manifest %s: entry %q: sha256 must be 64 hex characters", path, entry.Name)
		}
		if _, ok := m.byName[entry.Name]; ok {
			return nil, fmt.Errorf("manifest %s: duplicate entry %q", path, entry.Name)
		}
		m.byName[entry.Name] = entry
	}
	return &m, nil
}

// Entry returns the declaration for name, or nil when the manifest does not
// list it.
func (m *Manifest) Entry(name string) *ManifestEntry {
	if m == nil {
		return nil
	}
	return m.byName[name]
}

func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
