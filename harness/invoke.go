package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Exit statuses at or above this value signal an engine runtime failure
// (missing dependency, malformed configuration). Below it the engine is in
// its findings mode: with --no-exit it exits 0 whether or not alerts fired.
const engineRuntimeFailureExit = 2

// invoke runs the engine synchronously against target and returns its raw
// JSON report.
//
// The outcome is two-way by construction: a nil error means "diagnostics
// produced" (possibly zero of them); a non-nil error is always a classified
// *Error with ErrCodeExecution and a Reason distinguishing a missing
// binary, a timeout, and a non-findings exit.
func (s *Sandbox) invoke(ctx context.Context, target string, level Severity) ([]byte, error) {
	args := []string{
		"--config=" + s.configPath,
		"--no-global",
		"--no-exit",
		"--output=JSON",
	}
	if level != "" {
		args = append(args, "--minAlertLevel="+string(level))
	}
	args = append(args, target)

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, s.enginePath, args...)
	cmd.Dir = s.root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	s.logger.Debug("engine invoked",
		"target", target,
		"duration", time.Since(start),
		"stdout_bytes", stdout.Len(),
	)

	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return nil, newExecutionError(ReasonTimeout,
			fmt.Sprintf("engine exceeded %s budget", s.timeout), cctx.Err())
	}
	if ctx.Err() != nil {
		return nil, newExecutionError(ReasonCanceled, "engine invocation canceled", ctx.Err())
	}

	if runErr != nil {
		if errors.Is(runErr, exec.ErrNotFound) {
			return nil, newExecutionError(ReasonMissingBinary,
				"engine executable "+s.engine+" not found", runErr)
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			code := exitErr.ExitCode()
			if code > 0 && code < engineRuntimeFailureExit {
				// Findings-present exit from engines that ignore --no-exit.
				return stdout.Bytes(), nil
			}
			return nil, &Error{
				Code:     ErrCodeExecution,
				Message:  fmt.Sprintf("engine failed with exit code %d", code),
				Reason:   ReasonExitStatus,
				ExitCode: code,
				Stderr:   stderr.String(),
				Err:      runErr,
			}
		}
		return nil, newExecutionError(ReasonExitStatus, "engine invocation failed", runErr)
	}

	return stdout.Bytes(), nil
}
