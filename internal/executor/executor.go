// Package executor runs a strategy's backtest in an isolated child
// process. It is the only component that spawns user code; every other
// package only ever sees the JSON RawExecutionResult it produces.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
)

// Executor spawns cmd/sandboxrunner once per backtest and speaks a single
// JSON document each way over stdin/stdout, modeled on the teacher's
// subprocess-wrapping pattern in internal/deployment/sketch.go (spawn,
// capture, wrap the error with context) but piped instead of combined
// output, since the sandbox's contract is one document, not a log stream.
type Executor struct {
	binaryPath string
	timeout    time.Duration
	log        zerolog.Logger
}

// New builds an Executor that runs binaryPath (the built cmd/sandboxrunner
// binary) with a per-backtest wall-clock timeout.
func New(binaryPath string, timeout time.Duration, log zerolog.Logger) *Executor {
	return &Executor{binaryPath: binaryPath, timeout: timeout, log: log}
}

// Execute writes payload to the isolate's stdin and decodes its stdout as
// a RawExecutionResult. A timeout, non-zero exit, or malformed output is
// reported as an ExecutionError; the caller is never handed a partial
// result.
func (e *Executor) Execute(ctx context.Context, payload domain.ExecutionPayload) (*domain.RawExecutionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	in, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal execution payload: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.binaryPath)
	cmd.Stdin = bytes.NewReader(in)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	hardenProcess(cmd)

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	e.log.Debug().
		Dur("elapsed", elapsed).
		Int("stdout_bytes", stdout.Len()).
		Msg("sandbox run finished")

	if ctx.Err() == context.DeadlineExceeded {
		return nil, domain.NewExecutionError(fmt.Sprintf("backtest timed out after %s", e.timeout))
	}

	// cmd/sandboxrunner always writes a RawExecutionResult to stdout, even
	// on failure (Errors populated, non-zero exit) — decode it before
	// falling back to the exit code/stderr for a diagnostic.
	var result domain.RawExecutionResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		if runErr != nil {
			return nil, domain.NewExecutionError(fmt.Sprintf("sandbox exited with error: %v: %s", runErr, firstLine(stderr.String())))
		}
		return nil, domain.NewExecutionError(fmt.Sprintf("sandbox produced malformed output: %v", err))
	}
	if len(result.Errors) > 0 {
		errs := &domain.ErrorList{}
		for _, msg := range result.Errors {
			errs.Add(msg)
		}
		return nil, &domain.ExecutionError{Errors: errs}
	}
	if runErr != nil {
		return nil, domain.NewExecutionError(fmt.Sprintf("sandbox exited with error: %v: %s", runErr, firstLine(stderr.String())))
	}

	return &result, nil
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
