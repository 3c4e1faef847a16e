package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riftsync/rift/internal/coordinatorclient"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var includeInactive bool

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects you're a member of",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentSession()
		if err != nil {
			return err
		}
		c := coordinatorclient.New(coordinatorURL)
		projects, err := c.ListProjects(cmd.Context(), sess.UserID, includeInactive)
		if err != nil {
			return err
		}
		for _, p := range projects {
			fmt.Printf("%s\t%s\t%s\n", p.ID, p.Name, p.Description)
		}
		return nil
	},
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name> [description]",
	Short: "Create a project and its main rift",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentSession()
		if err != nil {
			return err
		}
		description := ""
		if len(args) > 1 {
			description = args[1]
		}

		c := coordinatorclient.New(coordinatorURL)
		result, err := c.CreateProject(cmd.Context(), args[0], description, sess.UserID)
		if err != nil {
			return err
		}
		fmt.Printf("Created project %s (id: %s), main rift %s (id: %s)\n",
			result.Project.Name, result.Project.ID, result.MainRift.Name, result.MainRift.ID)
		return nil
	},
}

func init() {
	projectListCmd.Flags().BoolVar(&includeInactive, "include-inactive", false, "include inactive projects")
	projectCmd.AddCommand(projectListCmd, projectCreateCmd)
	rootCmd.AddCommand(projectCmd)
}
