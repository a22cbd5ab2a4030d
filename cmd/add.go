package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/docrender/internal/document"
	"github.com/Norgate-AV/docrender/internal/library"
)

var addCmd = &cobra.Command{
	Use:   "add FILE...",
	Short: "Add files to the library",
	Long: `Import files as new documents. The document type is taken from --type or
guessed from the file extension, falling back to plain text.`,
	Args:         cobra.MinimumNArgs(1),
	RunE:         runAdd,
	SilenceUsage: true,
}

func init() {
	addCmd.Flags().String("title", "", "Document title (default is the file name)")
	addCmd.Flags().String("type", "", "Document type (plain, md, tex, xopp)")
	addCmd.Flags().StringSliceP("tag", "t", []string{}, "Tags for the document")
}

// typeForFile guesses the document type from the file extension
func typeForFile(path string) document.Type {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if t, err := document.ParseType(ext); err == nil {
		return t
	}

	return document.Plain
}

func runAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	title, _ := cmd.Flags().GetString("title")
	typeName, _ := cmd.Flags().GetString("type")
	tags, _ := cmd.Flags().GetStringSlice("tag")

	if title != "" && len(args) > 1 {
		return fmt.Errorf("--title needs exactly one file")
	}

	for _, path := range args {
		opts := library.CreateOptions{Title: title, Tags: tags, Type: typeForFile(path)}

		if typeName != "" {
			t, err := document.ParseType(typeName)
			if err != nil {
				return err
			}

			opts.Type = t
		}

		meta, err := a.library.Import(cmd.Context(), path, opts)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", meta.ID, meta.Type, meta.Title)
	}

	return nil
}
