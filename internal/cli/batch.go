package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/reine-ishyanami/mirrors/internal/manager"
	"github.com/spf13/cobra"
)

// errBatch is returned when at least one manager of a batch command failed.
var errBatch = errors.New("some package managers could not be updated")

func newDefaultCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "default",
		Short: "Configure the bundled default mirror of every package manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := a.configurators()
			if err != nil {
				return err
			}
			results := manager.ApplyDefaults(cmd.Context(), cs)
			out := cmd.OutOrStdout()
			for _, r := range results {
				switch {
				case unsupported(out, r.Err):
				case r.Err != nil:
					fmt.Fprintf(out, "%s: %v\n", r.Kind, r.Err)
				default:
					fmt.Fprintf(out, "%s mirror config updated\n", r.Kind)
				}
			}
			if manager.Failed(results) {
				return errBatch
			}
			return nil
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove the mirror configuration of every package manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := a.configurators()
			if err != nil {
				return err
			}
			results := manager.ResetAll(cs)
			out := cmd.OutOrStdout()
			for _, r := range results {
				switch {
				case unsupported(out, r.Err):
				case r.Err != nil:
					fmt.Fprintf(out, "%s: %v\n", r.Kind, r.Err)
				default:
					printReset(out, r.Kind, r.Changed)
				}
			}
			if manager.Failed(results) {
				return errBatch
			}
			return nil
		},
	}
}

func printReset(w io.Writer, kind manager.Kind, changed bool) {
	if changed {
		fmt.Fprintf(w, "%s mirror has reset\n", kind)
		return
	}
	fmt.Fprintf(w, "%s has no mirror to reset\n", kind)
}
