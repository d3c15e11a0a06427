//go:build linux

package executor

import (
	"os/exec"
	"syscall"
)

// hardenProcess confines the sandbox child to its own process group, so a
// context cancellation can kill the whole tree and signals sent to the
// parent's process group do not reach it. It does not start a new session.
// Per-process CPU/address-space/process-count limits
// (RLIMIT_CPU, RLIMIT_AS, RLIMIT_NPROC) are applied by cmd/sandboxrunner
// itself on startup via syscall.Setrlimit, since Cmd.SysProcAttr has no
// portable rlimit field.
func hardenProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
