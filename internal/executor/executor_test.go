package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
)

// fakeSandbox writes a shell script standing in for cmd/sandboxrunner so
// the executor's stdin/stdout/timeout plumbing can be tested without
// building the real isolate binary.
func fakeSandbox(t *testing.T, script string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-sandbox.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestExecuteDecodesSuccessfulResult(t *testing.T) {
	bin := fakeSandbox(t, `cat <<'EOF'
{"trades":[],"equity_curve":{},"ohlc":{},"final_value":10500,"final_cash":10500,"final_positions":{},"execution_time_ms":5,"bar_size":"DAILY","errors":null}
EOF
`)
	exec := New(bin, time.Second, zerolog.Nop())
	result, err := exec.Execute(context.Background(), domain.ExecutionPayload{})
	require.NoError(t, err)
	require.Equal(t, 10500.0, result.FinalValue)
}

func TestExecuteReportsExecutionErrorsFromPayload(t *testing.T) {
	bin := fakeSandbox(t, `cat <<'EOF'
{"trades":null,"equity_curve":null,"ohlc":null,"final_value":0,"final_cash":0,"final_positions":null,"execution_time_ms":0,"bar_size":"","errors":["division by zero"]}
EOF
exit 1
`)
	exec := New(bin, time.Second, zerolog.Nop())
	_, err := exec.Execute(context.Background(), domain.ExecutionPayload{})
	require.Error(t, err)
	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Contains(t, execErr.Errors.Messages(), "division by zero")
}

func TestExecuteTimesOut(t *testing.T) {
	bin := fakeSandbox(t, `sleep 5`)
	exec := New(bin, 50*time.Millisecond, zerolog.Nop())
	_, err := exec.Execute(context.Background(), domain.ExecutionPayload{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "timed out")
}

func TestExecuteReportsMalformedOutput(t *testing.T) {
	bin := fakeSandbox(t, `echo 'not json'`)
	exec := New(bin, time.Second, zerolog.Nop())
	_, err := exec.Execute(context.Background(), domain.ExecutionPayload{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "malformed output")
}
