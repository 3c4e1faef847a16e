// Command rift is the end-user CLI (spec.md §4.3): it authenticates
// against the Coordinator, manages projects/rifts, and drives the local
// Daemon (spawning it on first use) through beam/disconnect/status.
// Command-tree shape grounded in the teacher's cmd/bd: one root cobra
// command, subcommands split one-file-per-command, persistent flags for
// global addressing.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	daemonURL      string
	coordinatorURL string
)

var rootCmd = &cobra.Command{
	Use:   "rift",
	Short: "Rift: real-time collaborative file sync",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&daemonURL, "daemon-url", "http://127.0.0.1:7525", "local Daemon IPC address")
	rootCmd.PersistentFlags().StringVar(&coordinatorURL, "coordinator-url", "http://localhost:8787", "Coordinator address")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rift:", err)
		os.Exit(1)
	}
}
