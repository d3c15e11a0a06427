//go:build !linux

package executor

import "os/exec"

// hardenProcess is a no-op outside Linux: the rlimit/process-group
// confinement cmd/sandboxrunner relies on has no portable equivalent, and
// exec.Cmd's default cancellation (kill the direct child) is good enough
// for local development on other platforms.
func hardenProcess(cmd *exec.Cmd) {}
