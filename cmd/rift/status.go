package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riftsync/rift/internal/daemonclient"
)

var showPrevious bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the Daemon's currently tracked projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		dc := daemonclient.New(daemonURL)

		if showPrevious {
			entries, err := dc.PreviouslyTracked(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s\t%s\t%s (last beamed %s)\n", e.ProjectID, e.RiftID, e.LocalRoot,
					e.LastBeamed.Format("2006-01-02T15:04:05Z"))
			}
			return nil
		}

		tracked, err := dc.ListTracked(cmd.Context())
		if err != nil {
			return fmt.Errorf("status: %w (is the daemon running? try `rift daemon start`)", err)
		}
		if len(tracked) == 0 {
			fmt.Println("No projects tracked")
			return nil
		}
		for _, t := range tracked {
			connected := "disconnected"
			if t.Connected {
				connected = "connected"
			}
			fmt.Printf("%s\t%s\t%s\t%s\n", t.ProjectID, t.RiftID, t.LocalRoot, connected)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&showPrevious, "previous", false, "show tracked-project history instead of the live set")
	rootCmd.AddCommand(statusCmd)
}
