package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/riftsync/rift/internal/daemonclient"
)

var beamCmd = &cobra.Command{
	Use:   "beam <project-name> [rift-name] [local-path]",
	Short: "Start tracking a project's rift through the local Daemon",
	Args:  cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentSession()
		if err != nil {
			return err
		}

		riftName := ""
		if len(args) > 1 {
			riftName = args[1]
		}
		localRoot := "."
		if len(args) > 2 {
			localRoot = args[2]
		}
		abs, err := filepath.Abs(localRoot)
		if err != nil {
			return fmt.Errorf("resolve local path: %w", err)
		}

		dc := daemonclient.New(daemonURL)
		status, err := dc.Beam(cmd.Context(), args[0], riftName, sess.UserID, abs)
		if err != nil {
			return fmt.Errorf("beam: %w (is the daemon running? try `rift daemon start`)", err)
		}

		fmt.Printf("Beamed into %s at %s\n", status.ProjectID, status.LocalRoot)
		if status.InitialSyncRequired {
			fmt.Printf("Synced %d file(s) from the rift's current state\n", status.CheckpointCount)
		}
		return nil
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <project-id>",
	Short: "Stop tracking a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dc := daemonclient.New(daemonURL)
		if err := dc.Disconnect(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Disconnected %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(beamCmd, disconnectCmd)
}
