package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/reine-ishyanami/mirrors/internal/catalog"
	"github.com/reine-ishyanami/mirrors/internal/manager"
	"github.com/reine-ishyanami/mirrors/internal/probe"
	"github.com/reine-ishyanami/mirrors/internal/profile"
	"github.com/reine-ishyanami/mirrors/internal/toolchain"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

type harness struct {
	app *app
	fs  afero.Fs
}

// newHarness builds an app over an in-memory home directory. Every probe
// fails at once, so catalogs keep their bundled order.
func newHarness(t *testing.T, goos string) *harness {
	t.Helper()
	t.Setenv("MIR_HOME", t.TempDir())
	viper.Reset()
	t.Cleanup(viper.Reset)

	cat, err := catalog.Bundled()
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}
	h := &harness{fs: afero.NewMemMapFs()}
	refuse := func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("offline")
	}
	h.app = newApp(buildInfo{Version: "1.2.3", Commit: "abc1234", Date: "2026-01-02"})
	h.app.newOptions = func() (manager.Options, error) {
		return manager.Options{
			Env: profile.Env{
				Home:      "/home/u",
				ConfigDir: "/home/u/.config",
				GOOS:      goos,
				Getenv:    func(string) string { return "" },
			},
			Fs:      h.fs,
			Prober:  probe.New(time.Second, 2).WithDialer(refuse),
			Catalog: cat,
		}, nil
	}
	h.app.tools = toolchain.New().
		WithLookPath(func(string) (string, error) { return "", errors.New("not found") })
	return h
}

func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(h.app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) read(t *testing.T, path string) string {
	t.Helper()
	data, err := afero.ReadFile(h.fs, path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func TestManagerSetThenGet(t *testing.T) {
	h := newHarness(t, "linux")

	out, err := h.run(t, "", "npm", "set", "--url", "https://registry.npmmirror.com/")
	if err != nil {
		t.Fatalf("npm set: %v\n%s", err, out)
	}
	if !strings.Contains(out, "npm mirror config updated") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if got := h.read(t, "/home/u/.npmrc"); got != "registry=https://registry.npmmirror.com/\n" {
		t.Errorf(".npmrc = %q", got)
	}

	out, err = h.run(t, "", "npm", "get", "--json")
	if err != nil {
		t.Fatalf("npm get: %v", err)
	}
	var view mirrorView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if view.Manager != "npm" || view.Mirror["url"] != "https://registry.npmmirror.com/" {
		t.Errorf("get --json = %+v", view)
	}
}

func TestManagerGet_NoMirror(t *testing.T) {
	h := newHarness(t, "linux")
	out, err := h.run(t, "", "cargo", "get")
	if err != nil {
		t.Fatalf("cargo get: %v", err)
	}
	if strings.TrimSpace(out) != "cargo has no mirror configured" {
		t.Errorf("output = %q", out)
	}
}

func TestManagerSet_InvalidFields(t *testing.T) {
	h := newHarness(t, "linux")
	_, err := h.run(t, "", "cargo", "set", "--name", "ustc")
	if !errors.Is(err, manager.ErrInvalidMirror) {
		t.Errorf("error = %v, want ErrInvalidMirror", err)
	}
}

func TestMavenAlias(t *testing.T) {
	h := newHarness(t, "linux")
	out, err := h.run(t, "", "mvn", "custom", "--id", "tencent", "--url", "https://mirrors.cloud.tencent.com/nexus/repository/maven-public/")
	if err != nil {
		t.Fatalf("mvn custom: %v\n%s", err, out)
	}
	if !strings.Contains(h.read(t, "/home/u/.m2/settings.xml"), "<id>tencent</id>") {
		t.Error("settings.xml does not hold the mirror")
	}

	out, err = h.run(t, "", "maven", "remove", "--id", "tencent")
	if err != nil || !strings.Contains(out, "maven mirror removed") {
		t.Errorf("maven remove = %q, %v", out, err)
	}
}

func TestManagerRemove_RequiresKey(t *testing.T) {
	h := newHarness(t, "linux")
	if _, err := h.run(t, "", "maven", "remove"); !errors.Is(err, manager.ErrInvalidMirror) {
		t.Errorf("error = %v, want ErrInvalidMirror", err)
	}
}

func TestSelect(t *testing.T) {
	h := newHarness(t, "linux")
	out, err := h.run(t, "2\n", "npm", "select")
	if err != nil {
		t.Fatalf("npm select: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1) https://registry.npmmirror.com/ (unreachable)") {
		t.Errorf("menu not shown:\n%s", out)
	}
	if got := h.read(t, "/home/u/.npmrc"); got != "registry=https://mirrors.cloud.tencent.com/npm/\n" {
		t.Errorf(".npmrc = %q", got)
	}
}

func TestSelect_EmptyAnswerPicksFirst(t *testing.T) {
	h := newHarness(t, "linux")
	if _, err := h.run(t, "\n", "npm", "select"); err != nil {
		t.Fatalf("npm select: %v", err)
	}
	if got := h.read(t, "/home/u/.npmrc"); got != "registry=https://registry.npmmirror.com/\n" {
		t.Errorf(".npmrc = %q", got)
	}
}

func TestSelect_InvalidChoice(t *testing.T) {
	h := newHarness(t, "linux")
	_, err := h.run(t, "42\n", "npm", "select")
	if err == nil || !strings.Contains(err.Error(), "invalid selection") {
		t.Errorf("error = %v, want invalid selection", err)
	}
	if ok, _ := afero.Exists(h.fs, "/home/u/.npmrc"); ok {
		t.Error(".npmrc written despite invalid choice")
	}
}

func TestCatalogJSON(t *testing.T) {
	h := newHarness(t, "linux")
	out, err := h.run(t, "", "pip", "catalog", "--json")
	if err != nil {
		t.Fatalf("pip catalog: %v", err)
	}
	var views []mirrorView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decoding: %v\n%s", err, out)
	}
	if len(views) == 0 {
		t.Fatal("empty catalog")
	}
	for _, v := range views {
		if v.LatencyMS == nil || *v.LatencyMS != probe.Unreachable {
			t.Errorf("%v latency = %v, want unreachable", v.Mirror, v.LatencyMS)
		}
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	h := newHarness(t, "darwin")
	for _, args := range [][]string{
		{"docker", "get"},
		{"docker", "default"},
		{"docker", "reset"},
		{"docker", "catalog"},
	} {
		out, err := h.run(t, "", args...)
		if err != nil {
			t.Errorf("%v: %v", args, err)
		}
		if strings.TrimSpace(out) != "docker is not supported on this platform" {
			t.Errorf("%v output = %q", args, out)
		}
	}
}

func TestDefaultAndList(t *testing.T) {
	h := newHarness(t, "darwin")
	out, err := h.run(t, "", "default")
	if err != nil {
		t.Fatalf("default: %v\n%s", err, out)
	}
	for _, want := range []string{
		"cargo mirror config updated",
		"pip mirror config updated",
		"docker is not supported on this platform",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("default output is missing %q:\n%s", want, out)
		}
	}

	out, err = h.run(t, "", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	rows := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n")[1:] {
		name, rest, _ := strings.Cut(line, " ")
		rows[name] = strings.TrimSpace(rest)
	}
	if rows["cargo"] != "rsproxy-sparse: sparse+https://rsproxy.cn/index/" {
		t.Errorf("cargo row = %q", rows["cargo"])
	}
	if rows["docker"] != "not supported on this platform" {
		t.Errorf("docker row = %q", rows["docker"])
	}
}

func TestListYAML(t *testing.T) {
	h := newHarness(t, "linux")
	if _, err := h.run(t, "", "gradle", "default"); err != nil {
		t.Fatalf("gradle default: %v", err)
	}
	out, err := h.run(t, "", "list", "--yaml")
	if err != nil {
		t.Fatalf("list --yaml: %v", err)
	}
	if !strings.Contains(out, "manager: gradle") || !strings.Contains(out, "maven: https://maven.aliyun.com/repository/public") {
		t.Errorf("list --yaml:\n%s", out)
	}
}

func TestResetAll(t *testing.T) {
	h := newHarness(t, "linux")
	if _, err := h.run(t, "", "default"); err != nil {
		t.Fatalf("default: %v", err)
	}
	out, err := h.run(t, "", "reset")
	if err != nil {
		t.Fatalf("reset: %v\n%s", err, out)
	}
	for _, k := range manager.All() {
		if !strings.Contains(out, string(k)+" mirror has reset") {
			t.Errorf("reset output is missing %s:\n%s", k, out)
		}
	}
	if ok, _ := afero.Exists(h.fs, "/home/u/.npmrc"); ok {
		t.Error(".npmrc left behind although it only held the registry")
	}
}

func TestDefault_ReportsFailures(t *testing.T) {
	h := newHarness(t, "linux")
	h.fs = afero.NewReadOnlyFs(afero.NewMemMapFs())

	out, err := h.run(t, "", "default")
	if !errors.Is(err, errBatch) {
		t.Fatalf("error = %v, want errBatch", err)
	}
	if !strings.Contains(out, "cargo: updating cargo config") {
		t.Errorf("failure not reported:\n%s", out)
	}
}

func TestDoctor(t *testing.T) {
	h := newHarness(t, "linux")
	h.app.tools = toolchain.New().
		WithLookPath(func(name string) (string, error) {
			if name == "cargo" {
				return "/usr/bin/cargo", nil
			}
			return "", errors.New("not found")
		}).
		WithRunner(func(context.Context, string, ...string) ([]byte, error) {
			return []byte("cargo 1.67.1 (8ecd4f20a 2023-01-10)\n"), nil
		})
	if _, err := h.run(t, "", "cargo", "default"); err != nil {
		t.Fatalf("cargo default: %v", err)
	}
	if err := afero.WriteFile(h.fs, "/home/u/.cargo/config", []byte("[net]\noffline = true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := h.run(t, "", "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	for _, want := range []string{
		"[ OK ] cargo 1.67.1 found at /usr/bin/cargo",
		"[ OK ] config /home/u/.cargo/config.toml",
		"[WARN] cargo 1.67.1 cannot read sparse+ indexes",
		"[WARN] cargo reads /home/u/.cargo/config before config.toml",
		"[MISS] mvn not found on PATH",
		"[INFO] no config file yet, mir will create /home/u/.npmrc",
		"All checks passed.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("doctor output is missing %q:\n%s", want, out)
		}
	}
}

func TestVersion(t *testing.T) {
	h := newHarness(t, "linux")
	out, err := h.run(t, "", "version", "--short")
	if err != nil || strings.TrimSpace(out) != "1.2.3" {
		t.Errorf("version --short = %q, %v", out, err)
	}

	out, err = h.run(t, "", "version")
	if err != nil || !strings.Contains(out, "https://github.com/reine-ishyanami/mirrors") {
		t.Errorf("version = %q, %v", out, err)
	}

	out, err = h.run(t, "", "version", "--json")
	if err != nil {
		t.Fatalf("version --json: %v", err)
	}
	var info buildInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil || info.Commit != "abc1234" {
		t.Errorf("version --json = %q, %v", out, err)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	h := newHarness(t, "linux")
	if _, err := h.run(t, "", "--log-level", "loud", "list"); err == nil {
		t.Error("expected an error for an unknown log level")
	}
}

func TestFormatLatency(t *testing.T) {
	if got := formatLatency(probe.Unreachable); got != "unreachable" {
		t.Errorf("formatLatency(-1) = %q", got)
	}
	if got := formatLatency(1234); got != "1,234 ms" {
		t.Errorf("formatLatency(1234) = %q", got)
	}
}
