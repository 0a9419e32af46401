package manager

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/pelletier/go-toml/v2"
	"github.com/reine-ishyanami/mirrors/internal/probe"
)

const (
	cratesIO    = "crates-io"
	replaceWith = "replace-with"
)

var cargoNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// CargoMirror is a named crates.io index replacement.
type CargoMirror struct {
	Name string `json:"name"`
	URL  string `json:"url"`

	latency int64
}

func (m CargoMirror) String() string   { return m.Name + ": " + m.URL }
func (m CargoMirror) Endpoint() string { return m.URL }
func (m CargoMirror) Latency() int64   { return m.latency }

func (m CargoMirror) Values() map[string]string {
	return map[string]string{"name": m.Name, "url": m.URL}
}

func (m CargoMirror) withLatency(ms int64) CargoMirror {
	m.latency = ms
	return m
}

// cargoFormat edits the source and registries tables of config.toml.
type cargoFormat struct{}

func (cargoFormat) fields() []Field {
	return []Field{
		{Name: "name", Usage: "mirror name, used as the source and registry key", Required: true, Key: true},
		{Name: "url", Usage: "index url, e.g. sparse+https://rsproxy.cn/index/", Required: true},
	}
}

func (cargoFormat) fromFields(v map[string]string) (CargoMirror, error) {
	m := CargoMirror{Name: v["name"], URL: v["url"], latency: probe.Unreachable}
	return m, m.validate()
}

func (cargoFormat) decode(rec json.RawMessage) (CargoMirror, error) {
	var m CargoMirror
	if err := json.Unmarshal(rec, &m); err != nil {
		return CargoMirror{}, fmt.Errorf("decoding cargo mirror: %w", err)
	}
	m.latency = probe.Unreachable
	return m, m.validate()
}

func (m CargoMirror) validate() error {
	if !cargoNamePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: cargo mirror name %q must use letters, digits, '-' or '_'", ErrInvalidMirror, m.Name)
	}
	if m.Name == cratesIO {
		return fmt.Errorf("%w: %q cannot replace itself", ErrInvalidMirror, cratesIO)
	}
	if m.URL != "" {
		return checkURL(m.URL)
	}
	return nil
}

func (cargoFormat) template(m CargoMirror) (string, error) {
	return render("config.toml.tmpl", m)
}

func (cargoFormat) apply(m CargoMirror, existing string) (string, error) {
	doc, err := parseCargo(existing)
	if err != nil {
		return "", err
	}
	source, err := subTable(doc, "source", true)
	if err != nil {
		return "", err
	}
	registries, err := subTable(doc, "registries", true)
	if err != nil {
		return "", err
	}
	crates, err := subTable(source, cratesIO, true)
	if err != nil {
		return "", err
	}

	crates[replaceWith] = m.Name
	source[m.Name] = map[string]any{"registry": m.URL}
	registries[m.Name] = map[string]any{"index": m.URL}
	return marshalCargo(doc)
}

func (cargoFormat) current(existing string) (CargoMirror, bool) {
	doc, err := parseCargo(existing)
	if err != nil {
		return CargoMirror{}, false
	}
	source, _ := subTable(doc, "source", false)
	crates, _ := subTable(source, cratesIO, false)
	name, _ := crates[replaceWith].(string)
	if name == "" {
		return CargoMirror{}, false
	}

	registries, _ := subTable(doc, "registries", false)
	reg, _ := subTable(registries, name, false)
	url, _ := reg["index"].(string)
	if url == "" {
		src, _ := subTable(source, name, false)
		url, _ = src["registry"].(string)
	}
	if url == "" {
		return CargoMirror{}, false
	}
	return CargoMirror{Name: name, URL: url, latency: probe.Unreachable}, true
}

func (cargoFormat) remove(m CargoMirror, existing string) (string, bool, error) {
	doc, err := parseCargo(existing)
	if err != nil {
		return "", false, err
	}
	changed := false

	source, err := subTable(doc, "source", false)
	if err != nil {
		return "", false, err
	}
	if crates, _ := subTable(source, cratesIO, false); crates != nil && crates[replaceWith] == m.Name {
		delete(crates, replaceWith)
		if len(crates) == 0 {
			delete(source, cratesIO)
		}
		changed = true
	}
	if _, ok := source[m.Name]; ok {
		delete(source, m.Name)
		changed = true
	}

	registries, err := subTable(doc, "registries", false)
	if err != nil {
		return "", false, err
	}
	if _, ok := registries[m.Name]; ok {
		delete(registries, m.Name)
		changed = true
	}

	if !changed {
		return existing, false, nil
	}
	dropEmpty(doc, "source", "registries")
	out, err := marshalCargo(doc)
	return out, true, err
}

func (cargoFormat) reset(existing string) (string, bool, error) {
	doc, err := parseCargo(existing)
	if err != nil {
		return "", false, err
	}
	source, err := subTable(doc, "source", false)
	if err != nil {
		return "", false, err
	}
	registries, err := subTable(doc, "registries", false)
	if err != nil {
		return "", false, err
	}

	crates, _ := subTable(source, cratesIO, false)
	_, pointed := crates[replaceWith]
	otherSources := len(source) > 1 || (len(source) == 1 && crates == nil)
	if !pointed && !otherSources && len(registries) == 0 {
		return existing, false, nil
	}

	kept := make(map[string]any, len(crates))
	for k, v := range crates {
		if k != replaceWith {
			kept[k] = v
		}
	}
	doc["source"] = map[string]any{cratesIO: kept}
	delete(doc, "registries")

	out, err := marshalCargo(doc)
	return out, true, err
}

func parseCargo(text string) (map[string]any, error) {
	doc := make(map[string]any)
	if err := toml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return doc, nil
}

func marshalCargo(doc map[string]any) (string, error) {
	out, err := toml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding cargo config: %w", err)
	}
	return string(out), nil
}

// subTable returns parent[key] as a table. With create set a missing table
// is added. A key holding a non-table value is a parse error.
func subTable(parent map[string]any, key string, create bool) (map[string]any, error) {
	if parent == nil {
		return nil, nil
	}
	v, ok := parent[key]
	if !ok {
		if !create {
			return nil, nil
		}
		t := make(map[string]any)
		parent[key] = t
		return t, nil
	}
	t, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a table", ErrParse, key)
	}
	return t, nil
}

func dropEmpty(doc map[string]any, keys ...string) {
	for _, k := range keys {
		if t, ok := doc[k].(map[string]any); ok && len(t) == 0 {
			delete(doc, k)
		}
	}
}
