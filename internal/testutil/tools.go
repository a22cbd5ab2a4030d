// Package testutil provides fake rendering tools for tests.
//
// Fake tools are small shell scripts. Each one appends its arguments to a
// calls file so tests can count invocations.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Tool is a fake executable
type Tool struct {
	Path  string
	calls string
}

// NewTool writes an executable script running body and returns it
func NewTool(t *testing.T, name, body string) *Tool {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake tools need a POSIX shell")
	}

	dir := t.TempDir()
	calls := filepath.Join(dir, name+".calls")
	path := filepath.Join(dir, name)

	script := fmt.Sprintf("#!/bin/sh\necho \"$*\" >> %q\n%s\n", calls, body)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	return &Tool{Path: path, calls: calls}
}

// Calls returns the argument lines of every invocation so far
func (tool *Tool) Calls(t *testing.T) []string {
	t.Helper()

	data, err := os.ReadFile(tool.calls)
	if os.IsNotExist(err) {
		return nil
	}

	require.NoError(t, err)

	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// Count returns the number of invocations so far
func (tool *Tool) Count(t *testing.T) int {
	t.Helper()
	return len(tool.Calls(t))
}

// Pandoc fakes `pandoc in.md -o out.html -s` by wrapping the input in a page
func Pandoc(t *testing.T) *Tool {
	return NewTool(t, "pandoc", `in="$1"
out="$3"
{
	echo '<!DOCTYPE html>'
	echo '<html><head><title>fake</title></head><body><p>'
	cat "$in"
	echo '</p></body></html>'
} > "$out"`)
}

// PdfLaTeX fakes both pdflatex passes; only the final pass writes in.pdf
func PdfLaTeX(t *testing.T) *Tool {
	return NewTool(t, "pdflatex", `if [ "$1" = "-draftmode" ]; then
	exit 0
fi
printf '%%PDF-1.4\n%% fake\n' > in.pdf
cat in.tex >> in.pdf`)
}

// Xournal fakes `xournalpp -p out.pdf in.xopp`
func Xournal(t *testing.T) *Tool {
	return NewTool(t, "xournalpp", `cp "$3" "$2"`)
}

// Failing exits with code after writing stderr
func Failing(t *testing.T, name string, code int, stderr string) *Tool {
	return NewTool(t, name, fmt.Sprintf("echo %q >&2\nexit %d", stderr, code))
}

// Slow wraps body after a sleep of the given seconds
func Slow(t *testing.T, name string, seconds float64, body string) *Tool {
	return NewTool(t, name, fmt.Sprintf("sleep %g\n%s", seconds, body))
}
