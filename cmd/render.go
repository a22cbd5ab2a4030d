package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Norgate-AV/docrender/internal/cache"
)

var renderCmd = &cobra.Command{
	Use:   "render ID",
	Short: "Render a document",
	Long: `Render a document, or reuse its cached render if the document has not
changed, and print the path of the result. A failed render is cached as a
plain text report of the failure.`,
	Args:         cobra.ExactArgs(1),
	RunE:         runRender,
	SilenceUsage: true,
}

func init() {
	renderCmd.Flags().BoolP("print", "p", false, "Write the rendered content to stdout instead of its path")
	renderCmd.Flags().Bool("force", false, "Allow writing a PDF to a terminal")
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runRender(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ids, err := a.resolve(cmd.Context(), args)
	if err != nil {
		return err
	}

	res, err := a.renderer.Render(cmd.Context(), ids[0])
	if err != nil {
		return err
	}

	a.logger.Debug("render ready", "id", res.ID, "kind", res.Kind, "cached", res.Cached, "fingerprint", res.Fingerprint)

	out := cmd.OutOrStdout()

	printContent, _ := cmd.Flags().GetBool("print")
	if !printContent {
		fmt.Fprintln(out, res.Path)
		return nil
	}

	force, _ := cmd.Flags().GetBool("force")
	if res.Kind == cache.PDF && !force && isTerminal(out) {
		return fmt.Errorf("refusing to write a PDF to a terminal, use --force or redirect the output")
	}

	f, err := os.Open(res.Path)
	if err != nil {
		return fmt.Errorf("failed to open render: %w", err)
	}
	defer f.Close()

	_, err = io.Copy(out, f)
	return err
}
