package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	syncQuick bool
	syncTag   string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push tagged task notes to the calendar",
	Long: `Run one sync pass over every tagged note in the OPEN folders.

With --quick only notes created or modified since the last pass are visited.
Failures of individual notes are reported in the summary and written to the
error log; the command only fails when the pass cannot start.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tag := syncTag
		if tag == "" {
			tag = store.Get().SyncTag
		}

		rt, err := newRuntime(ctx, openGateway(ctx), progressPrinter(cmd.ErrOrStderr(), "Syncing"))
		if err != nil {
			return err
		}
		defer rt.Close()

		res, err := rt.engine.Run(ctx, tag, syncQuick)
		if res != nil {
			printSummary(cmd.OutOrStdout(), res)
		}
		if err != nil {
			return err
		}
		if res.Recreated > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render(fmt.Sprintf("%d events deleted in the calendar were recreated", res.Recreated)))
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVarP(&syncQuick, "quick", "q", false, "only sync notes changed since the last pass")
	syncCmd.Flags().StringVarP(&syncTag, "tag", "t", "", "tag selecting task notes (default from settings)")
	rootCmd.AddCommand(syncCmd)
}
