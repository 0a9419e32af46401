package manager

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reine-ishyanami/mirrors/internal/probe"
)

// Upstream repositories the generated init script redirects.
const (
	GradleMavenCentral = "https://repo.maven.apache.org/maven2"
	GradleGoogle       = "https://dl.google.com/dl/android/maven2"
	GradlePlugins      = "https://plugins.gradle.org/m2"
)

// GradleMirror redirects the three repositories gradle builds use.
type GradleMirror struct {
	Maven   string `json:"maven"`
	Android string `json:"android"`
	Plugins string `json:"plugins"`

	latency int64
}

func (m GradleMirror) String() string {
	return fmt.Sprintf("maven: %s, android: %s, plugins: %s", m.Maven, m.Android, m.Plugins)
}

func (m GradleMirror) Endpoint() string { return m.Maven }
func (m GradleMirror) Latency() int64   { return m.latency }

func (m GradleMirror) Values() map[string]string {
	return map[string]string{"maven": m.Maven, "android": m.Android, "plugins": m.Plugins}
}

func (m GradleMirror) withLatency(ms int64) GradleMirror {
	m.latency = ms
	return m
}

// withDefaults fills blank fields with the upstream repository.
func (m GradleMirror) withDefaults() GradleMirror {
	if m.Maven == "" {
		m.Maven = GradleMavenCentral
	}
	if m.Android == "" {
		m.Android = GradleGoogle
	}
	if m.Plugins == "" {
		m.Plugins = GradlePlugins
	}
	return m
}

func (m GradleMirror) validate() error {
	for _, u := range []string{m.Maven, m.Android, m.Plugins} {
		if err := checkURL(u); err != nil {
			return err
		}
	}
	return nil
}

// gradleFormat owns the whole init.gradle.kts file: it is regenerated on
// every set and deleted on reset.
type gradleFormat struct{}

func (gradleFormat) fields() []Field {
	return []Field{
		{Name: "maven", Usage: "mirror of Maven Central"},
		{Name: "android", Usage: "mirror of Google's Android repository"},
		{Name: "plugins", Usage: "mirror of the Gradle plugin portal"},
	}
}

func (gradleFormat) fromFields(v map[string]string) (GradleMirror, error) {
	m := GradleMirror{Maven: v["maven"], Android: v["android"], Plugins: v["plugins"], latency: probe.Unreachable}.withDefaults()
	return m, m.validate()
}

func (gradleFormat) decode(rec json.RawMessage) (GradleMirror, error) {
	var m GradleMirror
	if err := json.Unmarshal(rec, &m); err != nil {
		return GradleMirror{}, fmt.Errorf("decoding gradle mirror: %w", err)
	}
	m = m.withDefaults()
	m.latency = probe.Unreachable
	return m, m.validate()
}

func (gradleFormat) template(m GradleMirror) (string, error) {
	m = m.withDefaults()
	return render("init.gradle.kts.tmpl", struct {
		GradleMirror
		DefaultMaven, DefaultAndroid, DefaultPlugins string
	}{m, GradleMavenCentral, GradleGoogle, GradlePlugins})
}

func (f gradleFormat) apply(m GradleMirror, _ string) (string, error) {
	return f.template(m)
}

// current reads the mappings back out of a generated script. Each mapping
// line looks like `"<upstream>" to "<mirror>",`; a file without any such
// line holds no mirror.
func (gradleFormat) current(existing string) (GradleMirror, bool) {
	var m GradleMirror
	found := false
	for _, line := range strings.Split(existing, "\n") {
		compact := strings.ReplaceAll(strings.TrimSpace(line), " ", "")
		for _, slot := range []struct {
			upstream string
			dst      *string
		}{
			{GradleMavenCentral, &m.Maven},
			{GradleGoogle, &m.Android},
			{GradlePlugins, &m.Plugins},
		} {
			prefix := `"` + slot.upstream + `"to`
			if !strings.HasPrefix(compact, prefix) {
				continue
			}
			value := strings.Trim(strings.TrimPrefix(compact, prefix), `",`)
			if value != "" {
				*slot.dst = value
				found = true
			}
		}
	}
	if !found {
		return GradleMirror{}, false
	}
	m = m.withDefaults()
	m.latency = probe.Unreachable
	return m, true
}

func (f gradleFormat) remove(m GradleMirror, existing string) (string, bool, error) {
	cur, ok := f.current(existing)
	if !ok || !sameMirror(cur, m) {
		return existing, false, nil
	}
	return "", true, nil
}

func (gradleFormat) reset(existing string) (string, bool, error) {
	return "", existing != "", nil
}
