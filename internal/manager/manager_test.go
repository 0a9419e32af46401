package manager

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/reine-ishyanami/mirrors/internal/catalog"
	"github.com/reine-ishyanami/mirrors/internal/probe"
	"github.com/reine-ishyanami/mirrors/internal/profile"
	"github.com/spf13/afero"
)

func testEnv(goos string, vars map[string]string) profile.Env {
	return profile.Env{
		Home:      "/home/u",
		ConfigDir: "/home/u/AppData/Roaming",
		GOOS:      goos,
		Getenv:    func(k string) string { return vars[k] },
	}
}

func testOptions(t *testing.T, goos string, vars map[string]string) Options {
	t.Helper()
	cat, err := catalog.Bundled()
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}
	return Options{
		Env:     testEnv(goos, vars),
		Fs:      afero.NewMemMapFs(),
		Catalog: cat,
	}
}

func newTest(t *testing.T, kind Kind, opts Options) Configurator {
	t.Helper()
	c, err := New(kind, opts)
	if err != nil {
		t.Fatalf("New(%s): %v", kind, err)
	}
	return c
}

func readFile(t *testing.T, fsys afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func writeFile(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fsys, path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestProfilePaths(t *testing.T) {
	tests := []struct {
		kind Kind
		goos string
		vars map[string]string
		want profile.Paths
	}{
		{Cargo, "linux", nil, profile.Paths{"/home/u/.cargo/config.toml"}},
		{Cargo, "linux", map[string]string{"CARGO_HOME": "/opt/cargo"}, profile.Paths{
			"/opt/cargo/config.toml",
			"/home/u/.cargo/config.toml",
		}},
		{Maven, "linux", nil, profile.Paths{"/home/u/.m2/settings.xml"}},
		{Maven, "linux", map[string]string{"M2_HOME": "/opt/m2"}, profile.Paths{"/opt/m2/settings.xml", "/home/u/.m2/settings.xml"}},
		{Gradle, "linux", map[string]string{"GRADLE_USER_HOME": "/g"}, profile.Paths{"/g/init.gradle.kts", "/home/u/.gradle/init.gradle.kts"}},
		{Npm, "linux", nil, profile.Paths{"/home/u/.npmrc"}},
		{Pip, "linux", nil, profile.Paths{"/home/u/.pip/pip.conf"}},
		{Pip, "windows", nil, profile.Paths{"/home/u/AppData/Roaming/pip/pip.ini"}},
		{Docker, "linux", nil, profile.Paths{"/etc/docker/daemon.json"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+tt.goos, func(t *testing.T) {
			got, err := ProfilePaths(tt.kind, testEnv(tt.goos, tt.vars))
			if err != nil {
				t.Fatalf("ProfilePaths: %v", err)
			}
			for i := range got {
				got[i] = filepath.ToSlash(got[i])
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ProfilePaths mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range All() {
		got, ok := ParseKind(string(k))
		if !ok || got != k {
			t.Errorf("ParseKind(%q) = %q, %v", k, got, ok)
		}
	}
	if got, ok := ParseKind("mvn"); !ok || got != Maven {
		t.Errorf("ParseKind(mvn) = %q, %v, want maven", got, ok)
	}
	if _, ok := ParseKind("conda"); ok {
		t.Error("ParseKind(conda) succeeded")
	}
	if _, err := New(Kind("conda"), Options{}); !errors.Is(err, ErrUnknownManager) {
		t.Errorf("New(conda) error = %v, want ErrUnknownManager", err)
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	opts := testOptions(t, "darwin", nil)
	c := newTest(t, Docker, opts)
	if c.Supported() {
		t.Fatal("docker reported as supported on darwin")
	}

	ctx := context.Background()
	checks := map[string]error{}
	_, checks["current"] = c.Current()
	_, checks["catalog"] = c.Catalog(ctx)
	_, checks["default"] = c.Default()
	_, checks["set"] = c.SetFields(ctx, map[string]string{"url": "https://docker.m.daocloud.io"})
	_, checks["set-default"] = c.SetDefault(ctx)
	_, checks["remove"] = c.Remove(map[string]string{"url": "https://docker.m.daocloud.io"})
	_, checks["reset"] = c.Reset()

	for op, err := range checks {
		if !errors.Is(err, ErrUnsupportedPlatform) {
			t.Errorf("%s error = %v, want ErrUnsupportedPlatform", op, err)
		}
	}
	if ok, _ := afero.Exists(opts.Fs, DockerDaemonConfig); ok {
		t.Error("daemon.json written on an unsupported platform")
	}
}

func TestSetFields_Validation(t *testing.T) {
	opts := testOptions(t, "linux", nil)
	ctx := context.Background()

	tests := []struct {
		kind   Kind
		fields map[string]string
	}{
		{Cargo, map[string]string{"name": "ustc"}},
		{Cargo, map[string]string{"name": "crates-io", "url": "https://example.com/index"}},
		{Cargo, map[string]string{"name": "bad name", "url": "https://example.com/index"}},
		{Maven, map[string]string{"url": "https://example.com/maven"}},
		{Npm, map[string]string{"url": "registry.npmmirror.com"}},
		{Npm, map[string]string{"url": "https://registry.npmmirror.com/", "token": "x"}},
		{Pip, map[string]string{"url": `https://bad"quote.example/simple`}},
		{Gradle, map[string]string{"maven": "not a url"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			c := newTest(t, tt.kind, opts)
			if _, err := c.SetFields(ctx, tt.fields); !errors.Is(err, ErrInvalidMirror) {
				t.Errorf("SetFields(%v) error = %v, want ErrInvalidMirror", tt.fields, err)
			}
		})
	}
}

func TestSet_RejectsForeignMirror(t *testing.T) {
	c := newTest(t, Npm, testOptions(t, "linux", nil))
	_, err := c.Set(context.Background(), DockerMirror{URL: "https://docker.m.daocloud.io"})
	if !errors.Is(err, ErrInvalidMirror) {
		t.Errorf("Set(foreign) error = %v, want ErrInvalidMirror", err)
	}
}

func TestRead_OverrideThenDefault(t *testing.T) {
	opts := testOptions(t, "linux", map[string]string{"CARGO_HOME": "/opt/cargo"})
	writeFile(t, opts.Fs, "/home/u/.cargo/config.toml", cargoConfig)
	c := newTest(t, Cargo, opts)

	cur, err := c.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur.Values()["name"] != "ustc" {
		t.Errorf("Current() = %v, want ustc", cur)
	}

	// Writes always target the first candidate.
	if _, err := c.SetFields(context.Background(), map[string]string{"name": "rsproxy", "url": "sparse+https://rsproxy.cn/index/"}); err != nil {
		t.Fatalf("SetFields: %v", err)
	}
	if got := readFile(t, opts.Fs, "/home/u/.cargo/config.toml"); got != cargoConfig {
		t.Errorf("default profile modified:\n%s", got)
	}
	written := readFile(t, opts.Fs, "/opt/cargo/config.toml")
	if !strings.Contains(written, "rsproxy") || !strings.Contains(written, "git-fetch-with-cli") {
		t.Errorf("override profile = %s, want merged content", written)
	}
}

// Cargo prefers an extension-less config over config.toml, so mir leaves it
// alone and never reports its mirror as the one in effect through config.toml.
func TestCargo_LegacyConfigNotMerged(t *testing.T) {
	opts := testOptions(t, "linux", nil)
	writeFile(t, opts.Fs, "/home/u/.cargo/config", cargoConfig)
	c := newTest(t, Cargo, opts)

	if _, err := c.Current(); !errors.Is(err, ErrNoMirror) {
		t.Errorf("Current() error = %v, want ErrNoMirror", err)
	}
	if _, err := c.SetFields(context.Background(), map[string]string{"name": "rsproxy", "url": "sparse+https://rsproxy.cn/index/"}); err != nil {
		t.Fatalf("SetFields: %v", err)
	}
	written := readFile(t, opts.Fs, "/home/u/.cargo/config.toml")
	if strings.Contains(written, "git-fetch-with-cli") || !strings.Contains(written, "rsproxy") {
		t.Errorf("config.toml = %s, want a fresh rsproxy config", written)
	}
	if got := readFile(t, opts.Fs, "/home/u/.cargo/config"); got != cargoConfig {
		t.Errorf("legacy config modified:\n%s", got)
	}
}

func TestCurrent_NoFile(t *testing.T) {
	opts := testOptions(t, "linux", nil)
	for _, c := range NewAll(opts) {
		t.Run(string(c.Kind()), func(t *testing.T) {
			if _, err := c.Current(); !errors.Is(err, ErrNoMirror) {
				t.Errorf("Current() error = %v, want ErrNoMirror", err)
			}
			changed, err := c.Reset()
			if err != nil || changed {
				t.Errorf("Reset() = %v, %v, want no-op", changed, err)
			}
		})
	}
}

// TestSetThenResetClearsMirror covers every manager: set from the default
// catalog value, read it back, then reset leaves no mirror configured.
func TestSetThenResetClearsMirror(t *testing.T) {
	opts := testOptions(t, "linux", nil)
	ctx := context.Background()
	for _, c := range NewAll(opts) {
		t.Run(string(c.Kind()), func(t *testing.T) {
			set, err := c.SetDefault(ctx)
			if err != nil {
				t.Fatalf("SetDefault: %v", err)
			}
			if set.Latency() != probe.Unreachable {
				t.Errorf("latency without a prober = %d, want %d", set.Latency(), probe.Unreachable)
			}
			cur, err := c.Current()
			if err != nil {
				t.Fatalf("Current: %v", err)
			}
			if diff := cmp.Diff(set.Values(), cur.Values()); diff != "" {
				t.Errorf("Current() mismatch (-set +current):\n%s", diff)
			}

			changed, err := c.Reset()
			if err != nil || !changed {
				t.Fatalf("Reset() = %v, %v", changed, err)
			}
			if _, err := c.Current(); !errors.Is(err, ErrNoMirror) {
				t.Errorf("Current() after reset error = %v, want ErrNoMirror", err)
			}
		})
	}
}

func TestCatalog_ProbedInOrder(t *testing.T) {
	opts := testOptions(t, "linux", nil)
	opts.Prober = probe.New(time.Second, 4).WithDialer(func(ctx context.Context, network, addr string) (net.Conn, error) {
		if strings.HasPrefix(addr, "rsproxy.cn:") {
			client, server := net.Pipe()
			server.Close()
			return client, nil
		}
		return nil, errors.New("unreachable")
	})
	c := newTest(t, Cargo, opts)

	mirrors, err := c.Catalog(context.Background())
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	records, _ := opts.Catalog.Entries("cargo")
	if len(mirrors) != len(records) {
		t.Fatalf("len = %d, want %d", len(mirrors), len(records))
	}
	for i, m := range mirrors {
		decoded, _ := c.Decode(records[i])
		if m.Values()["name"] != decoded.Values()["name"] {
			t.Errorf("entry %d = %v, want catalog order", i, m)
		}
		reachable := strings.Contains(m.Endpoint(), "rsproxy.cn")
		if reachable && m.Latency() < 0 {
			t.Errorf("%v latency = %d, want >= 0", m, m.Latency())
		}
		if !reachable && m.Latency() != probe.Unreachable {
			t.Errorf("%v latency = %d, want %d", m, m.Latency(), probe.Unreachable)
		}
	}
}

// denyFs refuses writes below prefix.
type denyFs struct {
	afero.Fs
	prefix string
}

func (d denyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR) != 0 && strings.HasPrefix(filepath.ToSlash(name), d.prefix) {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return d.Fs.OpenFile(name, flag, perm)
}

func TestApplyDefaults_IsolatesFailures(t *testing.T) {
	opts := testOptions(t, "linux", nil)
	opts.Fs = denyFs{Fs: afero.NewMemMapFs(), prefix: "/home/u/.m2/"}

	results := ApplyDefaults(context.Background(), NewAll(opts))
	if len(results) != len(All()) {
		t.Fatalf("got %d results, want %d", len(results), len(All()))
	}
	for _, r := range results {
		if r.Kind == Maven {
			if !errors.Is(r.Err, os.ErrPermission) {
				t.Errorf("maven error = %v, want permission error", r.Err)
			}
			continue
		}
		if r.Err != nil {
			t.Errorf("%s error = %v", r.Kind, r.Err)
		}
	}
	if !Failed(results) {
		t.Error("Failed() = false, want true")
	}

	statuses := List(NewAll(opts))
	for _, st := range statuses {
		if st.Kind == Maven {
			if st.Mirror != nil {
				t.Errorf("maven mirror = %v, want none", st.Mirror)
			}
			continue
		}
		if st.Mirror == nil || st.Err != nil {
			t.Errorf("%s status = %+v, want a mirror", st.Kind, st)
		}
	}
}

func TestResetAll_UnsupportedIsNotFailure(t *testing.T) {
	opts := testOptions(t, "darwin", nil)
	results := ResetAll(NewAll(opts))
	for _, r := range results {
		if r.Kind == Docker && !errors.Is(r.Err, ErrUnsupportedPlatform) {
			t.Errorf("docker error = %v, want ErrUnsupportedPlatform", r.Err)
		}
	}
	if Failed(results) {
		t.Error("Failed() = true for an unsupported manager only")
	}
}

func TestFieldsOf_MatchesConfigurator(t *testing.T) {
	opts := testOptions(t, "linux", nil)
	for _, k := range All() {
		got, err := FieldsOf(k)
		if err != nil {
			t.Fatalf("FieldsOf(%s): %v", k, err)
		}
		if diff := cmp.Diff(newTest(t, k, opts).Fields(), got); diff != "" {
			t.Errorf("FieldsOf(%s) mismatch (-want +got):\n%s", k, diff)
		}
	}
}
