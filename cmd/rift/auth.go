package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/riftsync/rift/internal/coordinatorclient"
	"github.com/riftsync/rift/internal/daemonstate"
)

var loginCmd = &cobra.Command{
	Use:   "login <username> <email>",
	Short: "Authenticate against the Coordinator and persist the session locally",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := coordinatorclient.New(coordinatorURL)
		user, err := c.VerifyAuth(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("verify auth: %w", err)
		}

		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		if err := daemonstate.SaveSession(home, daemonstate.Session{
			UserID: user.ID, Username: user.Username, Email: user.Email,
		}); err != nil {
			return fmt.Errorf("save session: %w", err)
		}

		fmt.Printf("Logged in as %s (user_id: %s)\n", user.Username, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

// currentSession loads the persisted session, erroring with a `rift login`
// hint when there isn't one yet.
func currentSession() (daemonstate.Session, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return daemonstate.Session{}, fmt.Errorf("resolve home directory: %w", err)
	}
	sess, err := daemonstate.LoadSession(home)
	if err != nil {
		return daemonstate.Session{}, err
	}
	if sess.UserID == "" {
		return daemonstate.Session{}, fmt.Errorf("not logged in; run `rift login <username> <email>` first")
	}
	return sess, nil
}
