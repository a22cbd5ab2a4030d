package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/docrender/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the render cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:          "stats",
	Short:        "Show cache statistics",
	Args:         cobra.NoArgs,
	RunE:         runCacheStats,
	SilenceUsage: true,
}

var cacheClearCmd = &cobra.Command{
	Use:          "clear",
	Short:        "Remove every cached render",
	Args:         cobra.NoArgs,
	RunE:         runCacheClear,
	SilenceUsage: true,
}

var cacheRecoverCmd = &cobra.Command{
	Use:          "recover",
	Short:        "Repair the cache after an unclean shutdown",
	Args:         cobra.NoArgs,
	RunE:         runCacheRecover,
	SilenceUsage: true,
}

func init() {
	cacheStatsCmd.Flags().Bool("json", false, "Output as JSON")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheRecoverCmd)
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.renderer.Stats(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("", "VALUE")

	t.Row("store", a.cfg.StoreDriver)
	t.Row("location", a.cfg.CacheDir)
	t.Row("entries", fmt.Sprint(stats.Entries))

	for _, kind := range []cache.Kind{cache.Plain, cache.HTML, cache.PDF} {
		t.Row(kind.String(), fmt.Sprint(stats.ByKind[kind]))
	}

	t.Row("size", formatBytes(stats.Bytes))

	fmt.Fprintln(out, t.String())

	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.renderer.Clear(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")

	return nil
}

func runCacheRecover(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.renderer.Recover(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Cache recovered")

	return nil
}
