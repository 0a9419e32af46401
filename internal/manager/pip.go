package manager

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reine-ishyanami/mirrors/internal/probe"
	"gopkg.in/ini.v1"
)

const (
	pipGlobal      = "global"
	pipInstall     = "install"
	pipIndexURL    = "index-url"
	pipTrustedHost = "trusted-host"
)

func init() {
	// pip writes "key=value" without aligned padding.
	ini.PrettyFormat = false
}

// PipMirror is the package index pip installs from. Host is trusted so that
// plain http indexes work.
type PipMirror struct {
	URL  string `json:"url"`
	Host string `json:"host,omitempty"`

	latency int64
}

// NewPipMirror derives the trusted host from url.
func NewPipMirror(url string) PipMirror {
	return PipMirror{URL: url, Host: pipHost(url), latency: probe.Unreachable}
}

func (m PipMirror) String() string   { return m.URL }
func (m PipMirror) Endpoint() string { return m.URL }
func (m PipMirror) Latency() int64   { return m.latency }

func (m PipMirror) Values() map[string]string {
	return map[string]string{"url": m.URL, "host": m.Host}
}

func (m PipMirror) withLatency(ms int64) PipMirror {
	m.latency = ms
	return m
}

// pipHost returns the authority of url: the text after "://" up to the
// first "/", port included.
func pipHost(url string) string {
	rest := url
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	host, _, _ := strings.Cut(rest, "/")
	return host
}

// pipFormat edits two keys of pip.conf and keeps every other section and key.
type pipFormat struct{}

func (pipFormat) fields() []Field {
	return urlField("index url, e.g. https://pypi.tuna.tsinghua.edu.cn/simple")
}

func (pipFormat) fromFields(v map[string]string) (PipMirror, error) {
	return NewPipMirror(v["url"]), optionalURL(v["url"])
}

func (pipFormat) decode(rec json.RawMessage) (PipMirror, error) {
	var m PipMirror
	if err := json.Unmarshal(rec, &m); err != nil {
		return PipMirror{}, fmt.Errorf("decoding pip mirror: %w", err)
	}
	if m.Host == "" {
		m.Host = pipHost(m.URL)
	}
	m.latency = probe.Unreachable
	return m, checkURL(m.URL)
}

func (pipFormat) template(m PipMirror) (string, error) {
	return render("pip.conf.tmpl", m)
}

func (pipFormat) apply(m PipMirror, existing string) (string, error) {
	f, err := loadPip(existing)
	if err != nil {
		return "", err
	}
	f.Section(pipGlobal).Key(pipIndexURL).SetValue(m.URL)
	f.Section(pipInstall).Key(pipTrustedHost).SetValue(m.Host)
	return writePip(f)
}

// current is valid only when both keys are set and the trusted host is part
// of the index url.
func (pipFormat) current(existing string) (PipMirror, bool) {
	f, err := loadPip(existing)
	if err != nil {
		return PipMirror{}, false
	}
	url := strings.TrimSpace(f.Section(pipGlobal).Key(pipIndexURL).String())
	host := strings.TrimSpace(f.Section(pipInstall).Key(pipTrustedHost).String())
	if url == "" || host == "" || !strings.Contains(url, host) {
		return PipMirror{}, false
	}
	return PipMirror{URL: url, Host: host, latency: probe.Unreachable}, true
}

func (pipFormat) remove(m PipMirror, existing string) (string, bool, error) {
	f, err := loadPip(existing)
	if err != nil {
		return "", false, err
	}
	if m.URL == "" || strings.TrimSpace(f.Section(pipGlobal).Key(pipIndexURL).String()) != m.URL {
		return existing, false, nil
	}
	clearPipKeys(f)
	out, err := writePip(f)
	return out, err == nil, err
}

func (pipFormat) reset(existing string) (string, bool, error) {
	f, err := loadPip(existing)
	if err != nil {
		return "", false, err
	}
	if !clearPipKeys(f) {
		return existing, false, nil
	}
	out, err := writePip(f)
	return out, err == nil, err
}

// clearPipKeys deletes both mirror keys, leaving their sections in place.
func clearPipKeys(f *ini.File) bool {
	changed := false
	for _, k := range []struct{ section, key string }{
		{pipGlobal, pipIndexURL},
		{pipInstall, pipTrustedHost},
	} {
		sec, err := f.GetSection(k.section)
		if err != nil || !sec.HasKey(k.key) {
			continue
		}
		sec.DeleteKey(k.key)
		changed = true
	}
	return changed
}

func loadPip(text string) (*ini.File, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:     true,
		AllowNestedValues:       true,
		PreserveSurroundedQuote: true,
	}, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return f, nil
}

func writePip(f *ini.File) (string, error) {
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("encoding pip config: %w", err)
	}
	return buf.String(), nil
}
