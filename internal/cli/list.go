package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/reine-ishyanami/mirrors/internal/manager"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var asJSON, asYAML bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the configured mirror of every package manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := a.configurators()
			if err != nil {
				return err
			}
			statuses := manager.List(cs)
			out := cmd.OutOrStdout()

			if asJSON || asYAML {
				views := make([]mirrorView, 0, len(statuses))
				for _, st := range statuses {
					v := viewOf(st.Kind, st.Mirror, false)
					switch {
					case !st.Supported:
						v.Error = manager.ErrUnsupportedPlatform.Error()
					case st.Err != nil:
						v.Error = st.Err.Error()
					}
					views = append(views, v)
				}
				if asYAML {
					return printYAML(out, views)
				}
				return printJSON(out, views)
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "MANAGER\tMIRROR")
			for _, st := range statuses {
				fmt.Fprintf(w, "%s\t%s\n", st.Kind, describeStatus(st))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Output in YAML format")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml")
	return cmd
}

func describeStatus(st manager.Status) string {
	switch {
	case !st.Supported:
		return manager.ErrUnsupportedPlatform.Error()
	case st.Err != nil:
		return "error: " + st.Err.Error()
	case st.Mirror == nil:
		return "-"
	default:
		return st.Mirror.String()
	}
}
