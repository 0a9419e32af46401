package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/reine-ishyanami/mirrors/internal/manager"
	"github.com/reine-ishyanami/mirrors/internal/toolchain"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// cargoSparseMin is the first cargo release that reads sparse+ indexes.
const cargoSparseMin = "1.68.0"

var managerTools = map[manager.Kind]toolchain.Tool{
	manager.Cargo:  {Name: "cargo", Args: []string{"--version"}},
	manager.Maven:  {Name: "mvn", Args: []string{"--version"}},
	manager.Gradle: {Name: "gradle", Args: []string{"--version"}},
	manager.Npm:    {Name: "npm", Args: []string{"--version"}},
	manager.Pip:    {Name: "pip", Args: []string{"--version"}},
	manager.Docker: {Name: "docker", Args: []string{"--version"}},
}

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check each package manager, its config file and mirror",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.newOptions()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failed := 0
			for _, c := range manager.NewAll(opts) {
				if !checkManager(cmd, a.tools, opts.Fs, c) {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d package manager check(s) failed", failed)
			}
			fmt.Fprintln(out, "\nAll checks passed.")
			return nil
		},
	}
}

// checkManager prints the report of one manager and reports whether it
// is healthy. A missing tool is not a failure.
func checkManager(cmd *cobra.Command, tools *toolchain.Inspector, fsys afero.Fs, c manager.Configurator) bool {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s:\n", c.Kind())
	if !c.Supported() {
		fmt.Fprintf(w, "  [SKIP] %s is %s\n", c.Kind(), manager.ErrUnsupportedPlatform)
		return true
	}

	tool := managerTools[c.Kind()]
	info, err := tools.Inspect(cmd.Context(), tool)
	switch {
	case errors.Is(err, toolchain.ErrNotInstalled):
		fmt.Fprintf(w, "  [MISS] %s not found on PATH\n", tool.Name)
	case err != nil:
		fmt.Fprintf(w, "  [WARN] %s found at %s, version unknown: %v\n", tool.Name, info.Path, err)
	default:
		fmt.Fprintf(w, "  [ OK ] %s %s found at %s\n", tool.Name, info.Version, info.Path)
	}

	checkProfile(w, fsys, c)
	if c.Kind() == manager.Cargo {
		checkCargoLegacy(w, fsys, c)
	}

	mir, err := c.Current()
	switch {
	case errors.Is(err, manager.ErrNoMirror):
		fmt.Fprintln(w, "  [INFO] no mirror configured")
		return true
	case err != nil:
		fmt.Fprintf(w, "  [FAIL] reading config: %v\n", err)
		return false
	}
	fmt.Fprintf(w, "  [ OK ] mirror %s\n", mir)

	if c.Kind() == manager.Cargo && strings.HasPrefix(mir.Endpoint(), "sparse+") && info.Version != nil {
		if ok, _ := toolchain.AtLeast(info.Version, cargoSparseMin); !ok {
			fmt.Fprintf(w, "  [WARN] cargo %s cannot read sparse+ indexes, upgrade to %s or newer\n", info.Version, cargoSparseMin)
		}
	}
	return true
}

func checkProfile(w io.Writer, fsys afero.Fs, c manager.Configurator) {
	for _, p := range c.Paths() {
		if ok, _ := afero.Exists(fsys, p); ok {
			fmt.Fprintf(w, "  [ OK ] config %s\n", p)
			return
		}
	}
	fmt.Fprintf(w, "  [INFO] no config file yet, mir will create %s\n", c.Paths().Target())
}

// checkCargoLegacy warns about extension-less cargo configs. Cargo reads
// them instead of config.toml in the same directory, and mir never edits them.
func checkCargoLegacy(w io.Writer, fsys afero.Fs, c manager.Configurator) {
	for _, p := range c.Paths() {
		legacy := filepath.Join(filepath.Dir(p), "config")
		if ok, _ := afero.Exists(fsys, legacy); ok {
			fmt.Fprintf(w, "  [WARN] cargo reads %s before %s, move its settings into %s and delete it\n", legacy, filepath.Base(p), filepath.Base(p))
		}
	}
}
