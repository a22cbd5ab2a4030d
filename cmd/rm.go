package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:          "rm ID...",
	Short:        "Remove documents and their cached renders",
	Args:         cobra.MinimumNArgs(1),
	RunE:         runRm,
	SilenceUsage: true,
}

func runRm(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	ids, err := a.resolve(ctx, args)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := a.library.Delete(ctx, id); err != nil {
			return err
		}

		if err := a.renderer.Forget(ctx, id); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id)
	}

	return nil
}
