// Command sandboxrunner is the isolate child: it reads a single
// ExecutionPayload JSON document from stdin, runs the backtest engine
// against it, and writes a single RawExecutionResult JSON document to
// stdout. It is spawned by internal/executor and never invoked directly
// against untrusted input from any other path.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/engine"
)

func main() {
	applyResourceLimits()

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		fail(fmt.Errorf("read stdin: %w", err))
	}

	var payload domain.ExecutionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		fail(fmt.Errorf("decode execution payload: %w", err))
	}

	result, err := engine.Run(payload)
	if err != nil {
		fail(err)
	}

	out, err := json.Marshal(result)
	if err != nil {
		fail(fmt.Errorf("encode execution result: %w", err))
	}
	if _, err := os.Stdout.Write(out); err != nil {
		os.Exit(1)
	}
}

// fail writes a RawExecutionResult carrying only Errors, so the parent's
// stdout decode still succeeds and reports a proper ExecutionError instead
// of a malformed-output error.
func fail(err error) {
	result := domain.RawExecutionResult{Errors: []string{err.Error()}}
	out, _ := json.Marshal(result)
	os.Stdout.Write(out)
	os.Exit(1)
}
