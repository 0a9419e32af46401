package profile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/reine-ishyanami/mirrors/internal/platform"
)

// Env is the slice of the process environment the resolver depends on.
type Env struct {
	Home      string
	ConfigDir string
	GOOS      string
	Getenv    func(string) string
}

// SystemEnv captures the current user's environment.
func SystemEnv() (Env, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Env{}, fmt.Errorf("resolving home directory: %w", err)
	}
	cfg, err := os.UserConfigDir()
	if err != nil {
		cfg = filepath.Join(home, ".config")
	}
	return Env{
		Home:      home,
		ConfigDir: cfg,
		GOOS:      platform.Current(),
		Getenv:    os.Getenv,
	}, nil
}

func (e Env) lookup(name string) string {
	if name == "" || e.Getenv == nil {
		return ""
	}
	return e.Getenv(name)
}

// Candidates builds a path list for files under a manager home directory.
// When overrideVar is set in the environment its directory comes first,
// followed by ~/homeSubdir. Within each directory the names keep their order.
func (e Env) Candidates(overrideVar, homeSubdir string, names ...string) Paths {
	var dirs []string
	if v := e.lookup(overrideVar); v != "" {
		dirs = append(dirs, v)
	}
	def := filepath.Join(e.Home, homeSubdir)
	if len(dirs) == 0 || filepath.Clean(dirs[0]) != def {
		dirs = append(dirs, def)
	}

	var paths Paths
	for _, d := range dirs {
		for _, n := range names {
			paths = append(paths, filepath.Join(d, n))
		}
	}
	return paths
}
