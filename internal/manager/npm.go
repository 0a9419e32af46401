package manager

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reine-ishyanami/mirrors/internal/probe"
)

const npmRegistryKey = "registry"

// NpmMirror is the default registry of npm.
type NpmMirror struct {
	URL string `json:"url"`

	latency int64
}

func (m NpmMirror) String() string   { return m.URL }
func (m NpmMirror) Endpoint() string { return m.URL }
func (m NpmMirror) Latency() int64   { return m.latency }

func (m NpmMirror) Values() map[string]string {
	return map[string]string{"url": m.URL}
}

func (m NpmMirror) withLatency(ms int64) NpmMirror {
	m.latency = ms
	return m
}

// npmFormat rewrites registry= lines of .npmrc and copies every other line.
type npmFormat struct{}

func (npmFormat) fields() []Field {
	return urlField("registry url, e.g. https://registry.npmmirror.com/")
}

func (npmFormat) fromFields(v map[string]string) (NpmMirror, error) {
	return NpmMirror{URL: v["url"], latency: probe.Unreachable}, optionalURL(v["url"])
}

func (npmFormat) decode(rec json.RawMessage) (NpmMirror, error) {
	var m NpmMirror
	if err := json.Unmarshal(rec, &m); err != nil {
		return NpmMirror{}, fmt.Errorf("decoding npm mirror: %w", err)
	}
	m.latency = probe.Unreachable
	return m, checkURL(m.URL)
}

func (npmFormat) template(m NpmMirror) (string, error) {
	return render("npmrc.tmpl", m)
}

func (npmFormat) apply(m NpmMirror, existing string) (string, error) {
	lines, trailing := splitLines(existing)
	replaced := false
	for i, line := range lines {
		if isRegistryLine(line) {
			lines[i] = npmRegistryKey + "=" + m.URL + carriageReturn(line)
			replaced = true
		}
	}
	if !replaced {
		// A CRLF file keeps CRLF endings on the appended line.
		cr := ""
		if strings.Contains(existing, "\r\n") {
			last := len(lines) - 1
			if !strings.HasSuffix(lines[last], "\r") {
				lines[last] += "\r"
			}
			if trailing {
				cr = "\r"
			}
		}
		lines = append(lines, npmRegistryKey+"="+m.URL+cr)
		if len(lines) == 1 {
			trailing = true
		}
	}
	return joinLines(lines, trailing), nil
}

func (npmFormat) current(existing string) (NpmMirror, bool) {
	lines, _ := splitLines(existing)
	for _, line := range lines {
		if !isRegistryLine(line) {
			continue
		}
		_, value, _ := strings.Cut(line, "=")
		if value = strings.TrimSpace(value); value != "" {
			return NpmMirror{URL: value, latency: probe.Unreachable}, true
		}
	}
	return NpmMirror{}, false
}

func (npmFormat) remove(m NpmMirror, existing string) (string, bool, error) {
	if m.URL == "" {
		return existing, false, nil
	}
	return filterLines(existing, func(line string) bool {
		return strings.Contains(line, m.URL)
	})
}

func (npmFormat) reset(existing string) (string, bool, error) {
	return filterLines(existing, isRegistryLine)
}

// isRegistryLine matches "registry=..." with optional spaces around the key.
// Scoped keys such as "@org:registry" do not match.
func isRegistryLine(line string) bool {
	key, _, ok := strings.Cut(line, "=")
	return ok && strings.TrimSpace(key) == npmRegistryKey
}

func carriageReturn(line string) string {
	if strings.HasSuffix(line, "\r") {
		return "\r"
	}
	return ""
}

// splitLines splits text into lines and reports whether it ended with a
// newline. Empty text has no lines.
func splitLines(text string) ([]string, bool) {
	if text == "" {
		return nil, false
	}
	trailing := strings.HasSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n"), trailing
}

func joinLines(lines []string, trailing bool) string {
	if len(lines) == 0 {
		return ""
	}
	out := strings.Join(lines, "\n")
	if trailing {
		out += "\n"
	}
	return out
}

// filterLines drops lines matching drop and reports whether any were dropped.
func filterLines(text string, drop func(string) bool) (string, bool, error) {
	lines, trailing := splitLines(text)
	kept := lines[:0:0]
	for _, line := range lines {
		if !drop(line) {
			kept = append(kept, line)
		}
	}
	if len(kept) == len(lines) {
		return text, false, nil
	}
	return joinLines(kept, trailing), true, nil
}

func urlField(usage string) []Field {
	return []Field{{Name: "url", Usage: usage, Required: true, Key: true}}
}

func optionalURL(u string) error {
	if u == "" {
		return nil
	}
	return checkURL(u)
}
