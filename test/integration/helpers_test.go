//go:build integration

package integration_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/reine-ishyanami/mirrors/internal/catalog"
	"github.com/reine-ishyanami/mirrors/internal/manager"
	"github.com/reine-ishyanami/mirrors/internal/profile"
	"github.com/spf13/afero"
)

// testEnv is a sandboxed home directory on the real filesystem.
type testEnv struct {
	HomeDir string
	Opts    manager.Options
}

// setupTestEnv points every manager at a temp home directory. vars stands
// in for the process environment.
func setupTestEnv(t *testing.T, vars map[string]string) *testEnv {
	t.Helper()

	home := t.TempDir()
	cat, err := catalog.Bundled()
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}
	return &testEnv{
		HomeDir: home,
		Opts: manager.Options{
			Env: profile.Env{
				Home:      home,
				ConfigDir: filepath.Join(home, ".config"),
				GOOS:      "linux",
				Getenv:    func(k string) string { return vars[k] },
			},
			Fs:      afero.NewOsFs(),
			Catalog: cat,
		},
	}
}

func (e *testEnv) configurator(t *testing.T, kind manager.Kind) manager.Configurator {
	t.Helper()
	c, err := manager.New(kind, e.Opts)
	if err != nil {
		t.Fatalf("New(%s): %v", kind, err)
	}
	return c
}

func writeFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file at %s: %v", path, err)
	}
}

func assertNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected %s to be absent, stat error = %v", path, err)
	}
}
