package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/reine-ishyanami/mirrors/internal/branding"
	"github.com/reine-ishyanami/mirrors/internal/catalog"
	"github.com/reine-ishyanami/mirrors/internal/config"
	"github.com/reine-ishyanami/mirrors/internal/manager"
	"github.com/reine-ishyanami/mirrors/internal/probe"
	"github.com/reine-ishyanami/mirrors/internal/profile"
	"github.com/reine-ishyanami/mirrors/internal/toolchain"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// buildInfo is injected via ldflags.
type buildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// app carries what every command needs. Tests swap the factories.
type app struct {
	build      buildInfo
	newOptions func() (manager.Options, error)
	tools      *toolchain.Inspector

	logLevel  string
	logFormat string
}

func newApp(build buildInfo) *app {
	return &app{
		build:      build,
		newOptions: systemOptions,
		tools:      toolchain.New(),
	}
}

// systemOptions wires managers to the real home directory and filesystem.
func systemOptions() (manager.Options, error) {
	env, err := profile.SystemEnv()
	if err != nil {
		return manager.Options{}, err
	}
	cat, err := catalog.Bundled()
	if err != nil {
		return manager.Options{}, fmt.Errorf("loading bundled catalog: %w", err)
	}
	return manager.Options{
		Env:     env,
		Fs:      afero.NewOsFs(),
		Prober:  probe.New(config.ProbeTimeout(), config.ProbeWorkers()),
		Catalog: cat,
		Logger:  slog.Default(),
	}, nil
}

// configurator builds the manager for kind.
func (a *app) configurator(kind manager.Kind) (manager.Configurator, error) {
	opts, err := a.newOptions()
	if err != nil {
		return nil, err
	}
	return manager.New(kind, opts)
}

// configurators builds every manager in display order.
func (a *app) configurators() ([]manager.Configurator, error) {
	opts, err := a.newOptions()
	if err != nil {
		return nil, err
	}
	return manager.NewAll(opts), nil
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   branding.CLIName(),
		Short: branding.Description(),
		Long: branding.DisplayName() + ` switches the download mirrors of cargo, maven, gradle, npm, pip and
docker by editing each tool's own config file in place.`,
		Example: `  mir list
  mir cargo select
  mir npm set --url https://registry.npmmirror.com/
  mir maven remove --id aliyun
  mir default`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.Load()
			return a.setupLogging(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to the log_level setting")
	cmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "text", "log format (text or json)")

	for _, k := range manager.All() {
		cmd.AddCommand(newManagerCmd(a, k))
	}
	cmd.AddCommand(
		newListCmd(a),
		newDefaultCmd(a),
		newResetCmd(a),
		newDoctorCmd(a),
		newConfigCmd(),
		newVersionCmd(a),
	)
	return cmd
}

// setupLogging installs the slog default handler on w.
func (a *app) setupLogging(w io.Writer) error {
	name := a.logLevel
	if name == "" {
		name = config.LogLevel()
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("invalid log level %q: use debug, info, warn or error", name)
	}

	var handler slog.Handler
	if strings.ToLower(a.logFormat) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	cmd := newRootCmd(newApp(buildInfo{Version: version, Commit: commit, Date: date}))
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
