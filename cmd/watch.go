package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/docrender/internal/document"
	"github.com/Norgate-AV/docrender/internal/render"
	"github.com/Norgate-AV/docrender/internal/utils"
	"github.com/Norgate-AV/docrender/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-render documents as they change",
	Long: `Watch the library and render each changed document once it has been quiet
for --delay. Deleted documents have their renders removed.`,
	Args:         cobra.NoArgs,
	RunE:         runWatch,
	SilenceUsage: true,
}

func init() {
	watchCmd.Flags().Duration("delay", watch.DefaultDelay, "Quiet period before a changed document is rendered")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	if err := a.renderer.Recover(ctx); err != nil {
		return err
	}

	delay, _ := cmd.Flags().GetDuration("delay")

	w, err := watch.New(a.cfg.DocumentsDir, delay, a.logger)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", a.cfg.DocumentsDir, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s\n", a.cfg.DocumentsDir)

	return w.Run(ctx, func(ctx context.Context, id document.ID) {
		res, err := a.renderer.Render(ctx, id)
		switch {
		case render.IsNotFound(err):
			if err := a.renderer.Forget(ctx, id); err != nil {
				a.logger.Error("failed to forget render", "id", id, "error", err)
				return
			}

			fmt.Fprintf(out, "%s\tremoved\n", utils.ShortID(id))

		case err != nil:
			a.logger.Error("render failed", "id", id, "error", err)

		case !res.Cached:
			fmt.Fprintf(out, "%s\t%s\t%s\n", utils.ShortID(id), res.Kind, res.Path)
		}
	})
}
