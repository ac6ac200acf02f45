// Package shellrun executes command-handler shell actions (restart/stop/
// start/exec/scale) as subprocesses, adapted from the teacher's agent/
// internal/hooks runner: a shell-wrapped exec.CommandContext with captured
// output and a timeout, but with the exit-status-to-Result mapping replaced
// to match this agent's own contract rather than the teacher's pre/post
// backup hook semantics.
package shellrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// Result holds the outcome of one shell invocation.
type Result struct {
	// Success is whether the process exited 0.
	Success bool
	// Output is the trimmed stdout on success, or empty if stdout was empty.
	Output string
	// Reason is the failure explanation on !Success: trimmed stderr, else
	// trimmed stdout, else "exit code: N", else a timeout or spawn-error
	// description.
	Reason string
}

// Run spawns command under the platform shell, bounded by timeout. It never
// returns a Go error — every outcome, including a timeout or a failure to
// spawn the process at all, is reported through Result so callers can build
// a Result frame uniformly.
func Run(ctx context.Context, command string, timeout time.Duration) Result {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := buildShellCmd(runCtx, command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if err == nil {
		return Result{Success: true, Output: strings.TrimSpace(stdout.String())}
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return Result{Reason: fmt.Sprintf("timeout (%ds)", int(timeout.Seconds()))}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{Reason: selectFailureReason(stderr.String(), stdout.String(), exitErr.ExitCode())}
	}

	// The process never started (missing shell, permission error, etc).
	return Result{Reason: err.Error()}
}

// selectFailureReason implements the non-zero-exit reason priority: trimmed
// stderr, else trimmed stdout, else "exit code: N".
func selectFailureReason(stderr, stdout string, exitCode int) string {
	if s := strings.TrimSpace(stderr); s != "" {
		return s
	}
	if s := strings.TrimSpace(stdout); s != "" {
		return s
	}
	return fmt.Sprintf("exit code: %d", exitCode)
}

// buildShellCmd wraps command in the platform shell, the same split the
// teacher's hooks package uses.
func buildShellCmd(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "/bin/sh", "-c", command)
}
