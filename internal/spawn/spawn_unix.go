//go:build unix || linux || darwin

// Package spawn launches and probes the per-workstation Daemon process on
// behalf of the Client (spec.md §4.3: the client spawns the daemon on first
// use and otherwise just talks to it). Process detachment and the
// permission-aware liveness check are adapted from the teacher's
// cmd/bd/daemon_unix.go (configureDaemonProcess, isProcessRunning).
package spawn

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Detach configures cmd to survive the spawning process's exit: a new
// session via setsid, detached from the controlling terminal.
func Detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// Start launches path with args, detached, and returns its PID without
// waiting for it to exit.
func Start(path string, args []string, logFile *os.File) (int, error) {
	cmd := exec.Command(path, args...)
	Detach(cmd)
	if logFile != nil {
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn: start %s: %w", path, err)
	}
	return cmd.Process.Pid, nil
}

// IsRunning reports whether pid identifies a live process. Sandboxed
// environments (containers, restricted seccomp profiles) can return EPERM
// for a signal sent to a process that genuinely exists; that case is
// treated as "running" rather than as an error, matching the teacher's
// isProcessRunning.
func IsRunning(pid int) bool {
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	if err == syscall.EPERM {
		return true
	}
	return false
}

// Stop sends SIGTERM to pid, asking the daemon to shut down gracefully.
func Stop(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("spawn: find process %d: %w", pid, err)
	}
	return process.Signal(syscall.SIGTERM)
}
