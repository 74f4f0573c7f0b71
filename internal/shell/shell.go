// Package shell runs local processes on behalf of the adb device driver and the
// session manager.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Command is one process invocation. When Stdout is nil the output is
// captured into Result.Stdout; otherwise it is streamed to Stdout.
type Command struct {
	Name   string
	Args   []string
	Stdin  io.Reader
	Stdout io.Writer
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result holds the captured output of a finished process.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner is the process-execution capability.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExitError is returned when a process ran but exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// ExecRunner runs commands with os/exec. A zero Timeout means no per-command
// deadline beyond the caller's context.
type ExecRunner struct {
	logger  *zap.Logger
	Timeout time.Duration
}

var _ Runner = (*ExecRunner)(nil)

// NewExecRunner creates a runner that applies timeout to every command.
func NewExecRunner(logger *zap.Logger, timeout time.Duration) *ExecRunner {
	return &ExecRunner{logger: logger.Named("shell"), Timeout: timeout}
}

// Run executes cmd and waits for it to exit.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	proc := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	proc.Stdin = cmd.Stdin
	proc.Stderr = &stderr
	if cmd.Stdout != nil {
		proc.Stdout = cmd.Stdout
	} else {
		proc.Stdout = &stdout
	}

	start := time.Now()
	err := proc.Run()
	r.logger.Debug("Command finished",
		zap.String("command", cmd.String()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))

	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("command %q aborted: %w", cmd.String(), ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &ExitError{
			Command:  cmd.String(),
			ExitCode: res.ExitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
		}
	}
	return res, fmt.Errorf("failed to start %q: %w", cmd.String(), err)
}
