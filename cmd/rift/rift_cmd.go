package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riftsync/rift/internal/coordinatorclient"
)

// riftSubCmd manages rifts within a project. Named riftSubCmd (not
// riftCmd) to avoid colliding with the rootCmd's "rift" program name.
var riftSubCmd = &cobra.Command{
	Use:   "rift",
	Short: "Manage rifts within a project",
}

var riftListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List a project's rifts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := coordinatorclient.New(coordinatorURL)
		rifts, err := c.ListRifts(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, r := range rifts {
			fmt.Printf("%s\t%s\tparent=%s\n", r.ID, r.Name, r.ParentRiftID)
		}
		return nil
	},
}

var forkFrom string

var riftCreateCmd = &cobra.Command{
	Use:   "create <project-id> <name>",
	Short: "Create a rift, optionally forked from another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := coordinatorclient.New(coordinatorURL)
		r, err := c.CreateRift(cmd.Context(), args[0], args[1], forkFrom)
		if err != nil {
			return err
		}
		fmt.Printf("Created rift %s (id: %s)\n", r.Name, r.ID)
		return nil
	},
}

var riftSwitchCmd = &cobra.Command{
	Use:   "switch <rift-id>",
	Short: "Switch your active rift",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentSession()
		if err != nil {
			return err
		}
		c := coordinatorclient.New(coordinatorURL)
		if err := c.SwitchRift(cmd.Context(), args[0], sess.UserID); err != nil {
			return err
		}
		fmt.Printf("Switched to rift %s\n", args[0])
		return nil
	},
}

var historyLimit int

var riftHistoryCmd = &cobra.Command{
	Use:   "history <rift-id>",
	Short: "Show a rift's checkpoint history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := coordinatorclient.New(coordinatorURL)
		checkpoints, err := c.RiftHistory(cmd.Context(), args[0], historyLimit)
		if err != nil {
			return err
		}
		for _, cp := range checkpoints {
			fmt.Printf("%s\t%s\t%s\t%d changes\n", cp.ID, cp.AuthorUserID, cp.Timestamp.Format("2006-01-02T15:04:05Z"), len(cp.Changes))
		}
		return nil
	},
}

func init() {
	riftCreateCmd.Flags().StringVar(&forkFrom, "from", "", "parent rift id to fork from")
	riftHistoryCmd.Flags().IntVar(&historyLimit, "limit", 0, "maximum checkpoints to return (0 = server default)")
	riftSubCmd.AddCommand(riftListCmd, riftCreateCmd, riftSwitchCmd, riftHistoryCmd)
	rootCmd.AddCommand(riftSubCmd)
}
