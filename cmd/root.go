package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/docrender/internal/version"
)

var rootCmd = &cobra.Command{
	Use:          "docrender",
	Short:        "Render and cache documents",
	Long:         `Keep HTML and PDF renders of Markdown, LaTeX and Xournal++ documents up to date, rendering each version only once.`,
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := fang.Execute(ctx, rootCmd,
		fang.WithVersion(version.Version),
		fang.WithCommit(version.Commit),
	)
	if err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (default $XDG_DATA_HOME/docrender)")
	rootCmd.PersistentFlags().String("store", "", "Cache store driver (sqlite, bolt)")
	rootCmd.PersistentFlags().String("markdown-engine", "", "Markdown renderer (pandoc, goldmark)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Timeout for a single tool run (default 2m)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(warmCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}
