package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var cleanupYes bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete every event in the calendar and unlink all notes",
	Long: `Delete every event in the configured calendar, then remove the matching
event id line from every note in the vault.

This touches events notecal did not create. It requires --yes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		calendarID := store.Get().CalendarID
		if !cleanupYes {
			fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(fmt.Sprintf("This deletes every event in calendar %q.", calendarID)))
			return errors.New("refusing to clean up without --yes")
		}

		ctx := cmd.Context()
		rt, err := newRuntime(ctx, openGateway(ctx), progressPrinter(cmd.ErrOrStderr(), "Deleting"))
		if err != nil {
			return err
		}
		defer rt.Close()

		res, err := rt.engine.Cleanup(ctx)
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupYes, "yes", false, "confirm deleting every event")
	rootCmd.AddCommand(cleanupCmd)
}
