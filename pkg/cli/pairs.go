package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pairsCmd = &cobra.Command{
	Use:   "pairs",
	Short: "List the OPEN/DONE folder pairs under the task root",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context(), nil, nil)
		if err != nil {
			return err
		}
		defer rt.Close()

		pairs, err := rt.engine.Pairs()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(pairs) == 0 {
			s := store.Get()
			fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("No %s/%s pairs under %q", s.SearchFolderName, s.DoneFolderName, s.TaskFolderPath)))
			return nil
		}
		fmt.Fprintln(out, headerStyle.Render("Folder pairs"))
		for _, p := range pairs.Sorted() {
			fmt.Fprintf(out, "%s -> %s\n", p.SearchPath, p.DonePath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pairsCmd)
}
