package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/docrender/internal/cache"
	"github.com/Norgate-AV/docrender/internal/document"
	"github.com/Norgate-AV/docrender/internal/utils"
)

var lsCmd = &cobra.Command{
	Use:          "ls",
	Short:        "List documents and the state of their renders",
	Args:         cobra.NoArgs,
	RunE:         runLs,
	SilenceUsage: true,
}

func init() {
	lsCmd.Flags().Bool("json", false, "Output as JSON")
}

// listing is one row of ls
type listing struct {
	ID    document.ID   `json:"id"`
	Title string        `json:"title"`
	Type  document.Type `json:"type"`
	Tags  []string      `json:"tags"`

	// Render is the cached kind, empty when nothing valid is cached
	Render string `json:"render,omitempty"`
}

func runLs(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	metas, err := a.library.List(ctx)
	if err != nil {
		return err
	}

	rows := make([]listing, 0, len(metas))
	for _, meta := range metas {
		row := listing{ID: meta.ID, Title: meta.Title, Type: meta.Type, Tags: meta.Tags}

		fresh, err := a.renderer.Cached(ctx, meta.ID)
		if err != nil {
			return err
		}

		if fresh {
			entry, err := a.store.Get(ctx, meta.ID)
			if err != nil && !errors.Is(err, cache.ErrNotFound) {
				return err
			}

			if entry != nil {
				row.Render = entry.Kind.String()
			}
		}

		rows = append(rows, row)
	}

	out := cmd.OutOrStdout()

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, "No documents")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TYPE", "TITLE", "TAGS", "RENDER")

	for _, row := range rows {
		render := row.Render
		if render == "" {
			render = "-"
		}

		t.Row(utils.ShortID(row.ID), row.Type.String(), row.Title, strings.Join(row.Tags, ","), render)
	}

	fmt.Fprintln(out, t.String())

	return nil
}
