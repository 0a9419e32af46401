package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/reine-ishyanami/mirrors/internal/manager"
	"github.com/reine-ishyanami/mirrors/internal/probe"
	"github.com/spf13/cobra"
)

var managerShort = map[manager.Kind]string{
	manager.Cargo:  "Manage the crates.io mirror in ~/.cargo/config.toml",
	manager.Maven:  "Manage mirrors in ~/.m2/settings.xml",
	manager.Gradle: "Manage the repository mirror init script ~/.gradle/init.gradle.kts",
	manager.Npm:    "Manage the npm registry in ~/.npmrc",
	manager.Pip:    "Manage the pip index in pip.conf",
	manager.Docker: "Manage registry mirrors in /etc/docker/daemon.json (linux)",
}

// newManagerCmd builds the command group of one package manager.
func newManagerCmd(a *app, kind manager.Kind) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: managerShort[kind],
	}
	if kind == manager.Maven {
		cmd.Aliases = []string{"mvn"}
	}

	// kind comes from manager.All, so it always has fields.
	fields, _ := manager.FieldsOf(kind)

	cmd.AddCommand(
		newGetCmd(a, kind),
		newSetCmd(a, kind, fields),
		newSelectCmd(a, kind),
		newManagerDefaultCmd(a, kind),
		newRemoveCmd(a, kind, fields),
		newManagerResetCmd(a, kind),
		newCatalogCmd(a, kind),
	)
	return cmd
}

func newGetCmd(a *app, kind manager.Kind) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show the configured mirror",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.configurator(kind)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			mir, err := c.Current()
			if unsupported(out, err) {
				return nil
			}
			if err != nil && !errors.Is(err, manager.ErrNoMirror) {
				return fmt.Errorf("reading %s config: %w", kind, err)
			}

			if asJSON {
				return printJSON(out, viewOf(kind, mir, false))
			}
			if mir == nil {
				fmt.Fprintf(out, "%s has no mirror configured\n", kind)
				return nil
			}
			fmt.Fprintf(out, "%s mirror: %s\n", kind, mir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

// addFieldFlags registers one string flag per mirror field.
func addFieldFlags(cmd *cobra.Command, fields []manager.Field, values map[string]*string) {
	for _, f := range fields {
		v := new(string)
		values[f.Name] = v
		cmd.Flags().StringVar(v, f.Name, "", f.Usage)
	}
}

func collect(values map[string]*string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = *v
	}
	return out
}

func newSetCmd(a *app, kind manager.Kind, fields []manager.Field) *cobra.Command {
	values := make(map[string]*string)
	cmd := &cobra.Command{
		Use:     "set",
		Aliases: []string{"custom"},
		Short:   "Configure a mirror given on the command line",
		Example: setExample(kind, fields),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.configurator(kind)
			if err != nil {
				return err
			}
			mir, err := c.SetFields(cmd.Context(), collect(values))
			return reportSet(cmd, kind, mir, err)
		},
	}
	addFieldFlags(cmd, fields, values)
	return cmd
}

func setExample(kind manager.Kind, fields []manager.Field) string {
	var b strings.Builder
	b.WriteString("  mir " + string(kind) + " set")
	for _, f := range fields {
		if f.Required {
			b.WriteString(" --" + f.Name + " <" + f.Name + ">")
		}
	}
	return b.String()
}

// reportSet prints the outcome of a set-like operation.
func reportSet(cmd *cobra.Command, kind manager.Kind, mir manager.Mirror, err error) error {
	out := cmd.OutOrStdout()
	if unsupported(out, err) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s mirror config updated\n", kind)
	fmt.Fprintf(out, "  %s (%s)\n", mir, formatLatency(mir.Latency()))
	return nil
}

func newSelectCmd(a *app, kind manager.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "select",
		Short: "Pick a bundled mirror from a menu, fastest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.configurator(kind)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			mirrors, err := probeCatalog(cmd.Context(), cmd.ErrOrStderr(), c)
			if unsupported(out, err) {
				return nil
			}
			if err != nil {
				return err
			}

			ranked := rankMirrors(mirrors)
			items := make([]string, len(ranked))
			for i, m := range ranked {
				items[i] = fmt.Sprintf("%s (%s)", m, formatLatency(m.Latency()))
			}
			idx, err := selectFromList(bufio.NewReader(cmd.InOrStdin()), out, "Pick the mirror you want:", items)
			if err != nil {
				return err
			}
			mir, err := c.Set(cmd.Context(), ranked[idx])
			return reportSet(cmd, kind, mir, err)
		},
	}
}

func newManagerDefaultCmd(a *app, kind manager.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "default",
		Short: "Configure the bundled default mirror",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.configurator(kind)
			if err != nil {
				return err
			}
			mir, err := c.SetDefault(cmd.Context())
			return reportSet(cmd, kind, mir, err)
		},
	}
}

func newRemoveCmd(a *app, kind manager.Kind, fields []manager.Field) *cobra.Command {
	values := make(map[string]*string)
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove one configured mirror",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.configurator(kind)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			changed, err := c.Remove(collect(values))
			if unsupported(out, err) {
				return nil
			}
			if err != nil {
				return err
			}
			if changed {
				fmt.Fprintf(out, "%s mirror removed\n", kind)
			} else {
				fmt.Fprintf(out, "%s has no matching mirror\n", kind)
			}
			return nil
		},
	}
	addFieldFlags(cmd, fields, values)
	return cmd
}

func newManagerResetCmd(a *app, kind manager.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove all mirror configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.configurator(kind)
			if err != nil {
				return err
			}
			changed, err := c.Reset()
			out := cmd.OutOrStdout()
			if unsupported(out, err) {
				return nil
			}
			if err != nil {
				return err
			}
			printReset(out, kind, changed)
			return nil
		},
	}
}

func newCatalogCmd(a *app, kind manager.Kind) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the bundled mirrors with their latency, fastest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.configurator(kind)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			mirrors, err := probeCatalog(cmd.Context(), cmd.ErrOrStderr(), c)
			if unsupported(out, err) {
				return nil
			}
			if err != nil {
				return err
			}
			ranked := rankMirrors(mirrors)

			if asJSON {
				views := make([]mirrorView, len(ranked))
				for i, m := range ranked {
					views[i] = viewOf(kind, m, true)
				}
				return printJSON(out, views)
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "#\tLATENCY\tMIRROR")
			for i, m := range ranked {
				fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, formatLatency(m.Latency()), m)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

// rankMirrors orders mirrors by latency, unreachable ones last.
func rankMirrors(mirrors []manager.Mirror) []manager.Mirror {
	latencies := make([]int64, len(mirrors))
	for i, m := range mirrors {
		latencies[i] = m.Latency()
	}
	out := make([]manager.Mirror, len(mirrors))
	for i, idx := range probe.Rank(latencies) {
		out[i] = mirrors[idx]
	}
	return out
}
