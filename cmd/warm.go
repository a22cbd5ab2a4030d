package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/docrender/internal/document"
	"github.com/Norgate-AV/docrender/internal/utils"
)

var warmCmd = &cobra.Command{
	Use:   "warm [ID...]",
	Short: "Render documents ahead of time",
	Long: `Render the given documents, or every document in the library, so later
requests are served from the cache.`,
	RunE:         runWarm,
	SilenceUsage: true,
}

func init() {
	warmCmd.Flags().IntP("jobs", "j", runtime.NumCPU(), "Number of renders to run at once")
}

func runWarm(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	var ids []document.ID
	if len(args) > 0 {
		ids, err = a.resolve(ctx, args)
	} else {
		ids, err = a.knownIDs(ctx)
	}
	if err != nil {
		return err
	}

	jobs, _ := cmd.Flags().GetInt("jobs")

	outcomes, err := a.renderer.RenderAll(ctx, ids, jobs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0

	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			failed++
			fmt.Fprintf(out, "%s\terror\t%v\n", utils.ShortID(o.ID), o.Err)
		case o.Result.Cached:
			fmt.Fprintf(out, "%s\t%s\tcached\n", utils.ShortID(o.ID), o.Result.Kind)
		default:
			fmt.Fprintf(out, "%s\t%s\trendered\n", utils.ShortID(o.ID), o.Result.Kind)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(outcomes))
	}

	return nil
}
