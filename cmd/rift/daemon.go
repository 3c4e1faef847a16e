package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/riftsync/rift/internal/daemonclient"
	"github.com/riftsync/rift/internal/spawn"
)

// daemonCmd groups subcommands that manage the riftd process itself,
// distinct from the project-tracking commands at the root (beam, status),
// grounded in the teacher's cmd/bd daemon_start.go PID-file lifecycle.
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start, stop, or check the local Daemon process",
}

func pidFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".rift")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	return filepath.Join(dir, "daemon.pid"), nil
}

func readPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, false
	}
	return pid, true
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start riftd in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		pidPath, err := pidFilePath()
		if err != nil {
			return err
		}

		if pid, ok := readPID(pidPath); ok && spawn.IsRunning(pid) {
			fmt.Printf("Daemon already running (pid %d)\n", pid)
			return nil
		}

		binPath, err := exec.LookPath("riftd")
		if err != nil {
			return fmt.Errorf("riftd not found on PATH: %w", err)
		}

		pid, err := spawn.Start(binPath, nil, nil)
		if err != nil {
			return fmt.Errorf("start riftd: %w", err)
		}
		if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)), 0o644); err != nil {
			return fmt.Errorf("write pid file: %w", err)
		}

		fmt.Printf("Started riftd (pid %d)\n", pid)
		return nil
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running riftd",
	RunE: func(cmd *cobra.Command, args []string) error {
		pidPath, err := pidFilePath()
		if err != nil {
			return err
		}
		pid, ok := readPID(pidPath)
		if !ok || !spawn.IsRunning(pid) {
			fmt.Println("Daemon is not running")
			_ = os.Remove(pidPath)
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if err := daemonclient.New(daemonURL).Shutdown(ctx); err != nil {
			// Fall back to a process signal if the IPC shutdown call itself
			// couldn't be reached (daemon wedged, already exiting, etc).
			if stopErr := spawn.Stop(pid); stopErr != nil {
				return fmt.Errorf("shutdown via ipc failed (%v), and stop signal failed: %w", err, stopErr)
			}
		}
		_ = os.Remove(pidPath)
		fmt.Println("Stopped riftd")
		return nil
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether riftd is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		pidPath, err := pidFilePath()
		if err != nil {
			return err
		}
		pid, ok := readPID(pidPath)
		if !ok || !spawn.IsRunning(pid) {
			fmt.Println("Daemon is not running")
			return nil
		}
		fmt.Printf("Daemon running (pid %d)\n", pid)
		return nil
	},
}

func init() {
	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonStatusCmd)
	rootCmd.AddCommand(daemonCmd)
}
