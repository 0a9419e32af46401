package catalog

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
)

//go:embed data/*.json
var dataFS embed.FS

const (
	dataDir      = "data"
	defaultsFile = "defaults.json"
	schemaFile   = "catalog.schema.json"
)

// Catalog maps a manager name to its ordered candidate records.
type Catalog struct {
	entries  map[string][]json.RawMessage
	defaults map[string]json.RawMessage
}

var (
	bundled     *Catalog
	bundledOnce sync.Once
	bundledErr  error
)

// Bundled returns the catalog embedded in the binary, loading it on first call.
func Bundled() (*Catalog, error) {
	bundledOnce.Do(func() {
		files, err := readBundle()
		if err != nil {
			bundledErr = err
			return
		}
		bundled, bundledErr = Parse(files)
	})
	return bundled, bundledErr
}

func readBundle() (map[string][]byte, error) {
	dirEntries, err := dataFS.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("reading embedded catalog: %w", err)
	}
	files := make(map[string][]byte, len(dirEntries))
	for _, e := range dirEntries {
		if e.Name() == schemaFile {
			continue
		}
		data, err := dataFS.ReadFile(path.Join(dataDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		files[e.Name()] = data
	}
	return files, nil
}

// Parse builds a Catalog from file name to contents. Every "<manager>.json"
// is a JSON array of records and "defaults.json" maps manager names to one
// record each. The whole set must satisfy the catalog schema.
func Parse(files map[string][]byte) (*Catalog, error) {
	result, err := validate(files)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, &InvalidError{Issues: result.Issues}
	}

	c := &Catalog{
		entries:  make(map[string][]json.RawMessage),
		defaults: make(map[string]json.RawMessage),
	}
	for name, data := range files {
		if name == defaultsFile {
			if err := json.Unmarshal(data, &c.defaults); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", name, err)
			}
			continue
		}
		var records []json.RawMessage
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		c.entries[strings.TrimSuffix(name, ".json")] = records
	}
	return c, nil
}

// Entries returns the catalog records of one manager in bundled order.
func (c *Catalog) Entries(name string) ([]json.RawMessage, error) {
	records, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("no catalog for %q", name)
	}
	out := make([]json.RawMessage, len(records))
	for i, r := range records {
		out[i] = append(json.RawMessage(nil), r...)
	}
	return out, nil
}

// Default returns the record "mir default" applies for one manager.
func (c *Catalog) Default(name string) (json.RawMessage, error) {
	rec, ok := c.defaults[name]
	if !ok {
		return nil, fmt.Errorf("no default mirror for %q", name)
	}
	return bytes.Clone(rec), nil
}

// InvalidError reports schema violations in catalog data.
type InvalidError struct {
	Issues []ValidationIssue
}

func (e *InvalidError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Path == "" {
			msgs = append(msgs, is.Message)
			continue
		}
		msgs = append(msgs, is.Path+": "+is.Message)
	}
	return "invalid catalog: " + strings.Join(msgs, "; ")
}
