package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/Norgate-AV/docrender/internal/codes"
)

// DefaultTimeout bounds a single tool invocation
const DefaultTimeout = 2 * time.Minute

// Commander interface for testing
type Commander interface {
	Run() error
}

// Invocation records one run of an external tool
type Invocation struct {
	Tool     string
	Path     string
	Args     []string
	Dir      string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration

	// TimedOut is set when the tool was killed for exceeding the timeout;
	// ExitCode then holds what the killed process reported
	TimedOut bool
}

// Transcript renders the invocation as log text
func (inv *Invocation) Transcript() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "$ %s %s\n", inv.Path, strings.Join(inv.Args, " "))
	b.Write(inv.Stdout)
	b.Write(inv.Stderr)
	if inv.TimedOut {
		fmt.Fprintf(&b, "[timed out after %s, killed with exit %d]\n", inv.Duration.Round(time.Millisecond), inv.ExitCode)
	} else {
		fmt.Fprintf(&b, "[exit %d after %s]\n", inv.ExitCode, inv.Duration.Round(time.Millisecond))
	}

	return b.Bytes()
}

// CommandBuilder builds and runs external tool commands
type CommandBuilder struct {
	execCommand func(ctx context.Context, name string, args ...string) Commander
	timeout     time.Duration
	logger      *slog.Logger
}

// NewCommandBuilder creates a new command builder.
// A zero timeout uses DefaultTimeout.
func NewCommandBuilder(timeout time.Duration, logger *slog.Logger) *CommandBuilder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &CommandBuilder{
		execCommand: func(ctx context.Context, name string, args ...string) Commander {
			cmd := exec.CommandContext(ctx, name, args...)
			cmd.WaitDelay = 5 * time.Second
			return cmd
		},
		timeout: timeout,
		logger:  logger,
	}
}

// MarkdownArgs builds the pandoc arguments for a standalone HTML conversion
func MarkdownArgs(input, output string) []string {
	return []string{input, "-o", output, "-s"}
}

// LaTeXDraftArgs builds the pdflatex arguments for the draft pass
func LaTeXDraftArgs(input string) []string {
	return []string{"-draftmode", "-halt-on-error", input}
}

// LaTeXFinalArgs builds the pdflatex arguments for the final pass
func LaTeXFinalArgs(input string) []string {
	return []string{"-halt-on-error", input}
}

// XournalArgs builds the xournalpp arguments for a PDF export
func XournalArgs(input, output string) []string {
	return []string{"-p", output, input}
}

// ExecuteCommand runs a tool in dir and captures its output.
//
// A non-zero exit or a failure to start returns a *ToolError, exceeding the
// timeout returns a *TimeoutError. Cancellation of ctx itself is returned
// as the context error. The invocation is returned in every case.
func (cb *CommandBuilder) ExecuteCommand(ctx context.Context, dir, tool, path string, args []string) (*Invocation, error) {
	runCtx, cancel := context.WithTimeout(ctx, cb.timeout)
	defer cancel()

	inv := &Invocation{
		Tool: tool,
		Path: path,
		Args: args,
		Dir:  dir,
	}

	var stdout, stderr bytes.Buffer

	c := cb.execCommand(runCtx, path, args...)
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Dir = dir
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	cb.logger.Debug("running tool", "tool", tool, "path", path, "args", args, "dir", dir)

	start := time.Now()
	err := c.Run()
	inv.Duration = time.Since(start)
	inv.Stdout = stdout.Bytes()
	inv.Stderr = stderr.Bytes()

	if err == nil {
		cb.logger.Debug("tool finished", "tool", tool, "duration", inv.Duration)
		return inv, nil
	}

	var exitErr *exec.ExitError
	exited := errors.As(err, &exitErr)
	if exited {
		inv.ExitCode = exitErr.ExitCode()
	} else {
		inv.ExitCode = codes.SpawnFailed
	}

	if ctx.Err() != nil {
		return inv, ctx.Err()
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		inv.TimedOut = true
		cb.logger.Warn("tool timed out", "tool", tool, "timeout", cb.timeout)
		return inv, &TimeoutError{Tool: tool, After: cb.timeout, Stderr: string(inv.Stderr)}
	}

	if !exited {
		// Could not start: missing binary, permissions
		if len(inv.Stderr) == 0 {
			inv.Stderr = []byte(err.Error())
		}
	}

	if codes.IsSuccess(inv.ExitCode) {
		return inv, nil
	}

	cb.logger.Warn("tool failed",
		"tool", tool,
		"exit_code", inv.ExitCode,
		"reason", codes.GetErrorMessage(tool, inv.ExitCode),
	)

	return inv, &ToolError{
		Tool:     tool,
		ExitCode: inv.ExitCode,
		Stderr:   string(inv.Stderr),
		Stdout:   string(inv.Stdout),
	}
}
