package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Norgate-AV/docrender/internal/codes"
)

// maxReport caps how much captured output goes into an error report
const maxReport = 16 << 10

// ToolError is returned when an external tool exits non-zero or cannot be started
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Stdout   string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s failed (exit code %d: %s)", e.Tool, e.ExitCode, codes.GetErrorMessage(e.Tool, e.ExitCode))
}

// Report returns the human readable text stored in place of a failed render
func (e *ToolError) Report() string {
	var b strings.Builder
	b.WriteString(e.Error())
	b.WriteString("\n")

	// pdflatex reports errors on stdout
	output := e.Stderr
	if strings.TrimSpace(output) == "" {
		output = e.Stdout
	}

	if output != "" {
		b.WriteString("\n")
		b.WriteString(tail(output, maxReport))
	}

	return b.String()
}

// TimeoutError is returned when an external tool exceeds its time limit
type TimeoutError struct {
	Tool   string
	After  time.Duration
	Stderr string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Tool, e.After)
}

// Report returns the human readable text stored in place of a failed render
func (e *TimeoutError) Report() string {
	if e.Stderr == "" {
		return e.Error() + "\n"
	}

	return e.Error() + "\n\n" + tail(e.Stderr, maxReport)
}

// OutputError is returned when a tool succeeded but its output is missing or unusable
type OutputError struct {
	Tool   string
	Output string
	Err    error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("%s produced no usable %s: %v", e.Tool, e.Output, e.Err)
}

func (e *OutputError) Unwrap() error {
	return e.Err
}

// Report returns the human readable text stored in place of a failed render
func (e *OutputError) Report() string {
	return e.Error() + "\n"
}

// IsRecoverable reports whether err is a render failure that should be
// cached as a degraded result rather than surfaced to the caller
func IsRecoverable(err error) bool {
	var toolErr *ToolError
	var timeoutErr *TimeoutError
	var outputErr *OutputError

	return errors.As(err, &toolErr) || errors.As(err, &timeoutErr) || errors.As(err, &outputErr)
}

// Report returns the text to cache for a recoverable render failure
func Report(err error) string {
	var reporter interface{ Report() string }
	if errors.As(err, &reporter) {
		return reporter.Report()
	}

	return err.Error() + "\n"
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}

	// Start on a character boundary so the text stays valid UTF-8
	cut := len(s) - n
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}

	return "...\n" + s[cut:]
}
