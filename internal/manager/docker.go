package manager

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/reine-ishyanami/mirrors/internal/probe"
)

const dockerMirrorsKey = "registry-mirrors"

// DockerMirror is a registry mirror of the docker daemon.
type DockerMirror struct {
	URL string `json:"url"`

	latency int64
}

func (m DockerMirror) String() string   { return m.URL }
func (m DockerMirror) Endpoint() string { return m.URL }
func (m DockerMirror) Latency() int64   { return m.latency }

func (m DockerMirror) Values() map[string]string {
	return map[string]string{"url": m.URL}
}

func (m DockerMirror) withLatency(ms int64) DockerMirror {
	m.latency = ms
	return m
}

// dockerFormat edits the registry-mirrors array of daemon.json. Other keys
// keep their position and value.
type dockerFormat struct{}

func (dockerFormat) fields() []Field {
	return urlField("registry mirror url, e.g. https://docker.m.daocloud.io")
}

func (dockerFormat) fromFields(v map[string]string) (DockerMirror, error) {
	return DockerMirror{URL: v["url"], latency: probe.Unreachable}, optionalURL(v["url"])
}

func (dockerFormat) decode(rec json.RawMessage) (DockerMirror, error) {
	var m DockerMirror
	if err := json.Unmarshal(rec, &m); err != nil {
		return DockerMirror{}, fmt.Errorf("decoding docker mirror: %w", err)
	}
	m.latency = probe.Unreachable
	return m, checkURL(m.URL)
}

func (dockerFormat) template(m DockerMirror) (string, error) {
	return render("daemon.json.tmpl", m)
}

func (dockerFormat) apply(m DockerMirror, existing string) (string, error) {
	doc, err := parseDaemon(existing)
	if err != nil {
		return "", err
	}
	mirrors, err := doc.mirrors()
	if err != nil {
		return "", err
	}
	next := append([]string{m.URL}, slices.DeleteFunc(mirrors, func(u string) bool { return u == m.URL })...)
	doc.setMirrors(next)
	return doc.encode()
}

func (dockerFormat) current(existing string) (DockerMirror, bool) {
	doc, err := parseDaemon(existing)
	if err != nil {
		return DockerMirror{}, false
	}
	mirrors, err := doc.mirrors()
	if err != nil || len(mirrors) == 0 || mirrors[0] == "" {
		return DockerMirror{}, false
	}
	return DockerMirror{URL: mirrors[0], latency: probe.Unreachable}, true
}

func (dockerFormat) remove(m DockerMirror, existing string) (string, bool, error) {
	return editDaemon(existing, func(mirrors []string) []string {
		return slices.DeleteFunc(mirrors, func(u string) bool { return u == m.URL })
	})
}

func (dockerFormat) reset(existing string) (string, bool, error) {
	return editDaemon(existing, func([]string) []string { return []string{} })
}

func editDaemon(existing string, edit func([]string) []string) (string, bool, error) {
	doc, err := parseDaemon(existing)
	if err != nil {
		return "", false, err
	}
	mirrors, err := doc.mirrors()
	if err != nil {
		return "", false, err
	}
	before := len(mirrors)
	next := edit(slices.Clone(mirrors))
	if before == 0 || len(next) == before {
		return existing, false, nil
	}
	doc.setMirrors(next)
	out, err := doc.encode()
	return out, err == nil, err
}

// daemonDoc is a JSON object whose members keep their original order.
type daemonDoc struct {
	keys   []string
	values map[string]json.RawMessage
}

func parseDaemon(text string) (*daemonDoc, error) {
	doc := &daemonDoc{values: make(map[string]json.RawMessage)}
	if strings.TrimSpace(text) == "" {
		return doc, nil
	}

	dec := json.NewDecoder(strings.NewReader(text))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: daemon.json is not a JSON object", ErrParse)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		key := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		if _, dup := doc.values[key]; !dup {
			doc.keys = append(doc.keys, key)
		}
		doc.values[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON object", ErrParse)
	}
	return doc, nil
}

func (d *daemonDoc) mirrors() ([]string, error) {
	raw, ok := d.values[dockerMirrorsKey]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	var mirrors []string
	if err := json.Unmarshal(raw, &mirrors); err != nil {
		return nil, fmt.Errorf("%w: %s must be an array of strings", ErrParse, dockerMirrorsKey)
	}
	return mirrors, nil
}

func (d *daemonDoc) setMirrors(mirrors []string) {
	quoted := make([]string, len(mirrors))
	for i, u := range mirrors {
		quoted[i] = jsonString(u)
	}
	raw := json.RawMessage("[" + strings.Join(quoted, ",") + "]")
	if _, ok := d.values[dockerMirrorsKey]; !ok {
		d.keys = append(d.keys, dockerMirrorsKey)
	}
	d.values[dockerMirrorsKey] = raw
}

// encode writes the object with two-space indentation.
func (d *daemonDoc) encode() (string, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		buf.WriteString(jsonString(k))
		buf.WriteString(": ")

		var compact, value bytes.Buffer
		if err := json.Compact(&compact, d.values[k]); err != nil {
			return "", fmt.Errorf("encoding %s: %w", k, err)
		}
		if err := json.Indent(&value, compact.Bytes(), "  ", "  "); err != nil {
			return "", fmt.Errorf("encoding %s: %w", k, err)
		}
		buf.Write(value.Bytes())
	}
	if len(d.keys) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.String(), nil
}

// jsonString quotes s as a JSON string without HTML escaping.
func jsonString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
