package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamspace-hq/teamspace/workspace/internal/applications"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Application catalog commands",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a catalog file without importing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		apps, err := applications.LoadCatalog(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %d applications\n", args[0], len(apps))
		for _, app := range apps {
			state := "unpublished"
			if app.Published {
				state = "published"
			}
			fmt.Fprintf(out, "  %-24s %-24s %s\n", app.ID, app.Identity.Name, state)
		}
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogValidateCmd)
}
