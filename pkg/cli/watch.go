package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/notecal/pkg/engine"
	"github.com/harrisonrobin/notecal/pkg/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run quick syncs whenever task notes change",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newRuntime(ctx, openGateway(ctx), nil)
		if err != nil {
			return err
		}
		defer rt.Close()

		s := store.Get()
		out := cmd.OutOrStdout()
		pass := func(ctx context.Context) error {
			res, err := rt.engine.Run(ctx, s.SyncTag, true)
			var cfgErr *engine.ConfigError
			if errors.As(err, &cfgErr) {
				log.Debug().Str("reason", cfgErr.Reason).Msg("nothing to sync")
				return nil
			}
			if err != nil {
				return err
			}
			printSummary(out, res)
			return nil
		}

		w, err := watch.New(pass, s.DoneFolderName)
		if err != nil {
			return err
		}
		pairs, err := rt.engine.Pairs()
		if err != nil {
			return err
		}
		if len(pairs) == 0 {
			return fmt.Errorf("no %s/%s folder pairs to watch under %q", s.SearchFolderName, s.DoneFolderName, s.TaskFolderPath)
		}
		for _, p := range pairs.Sorted() {
			dir, err := rt.vault.Abs(p.SearchPath)
			if err != nil {
				return err
			}
			if err := w.Add(dir); err != nil {
				return err
			}
		}

		if err := pass(ctx); err != nil {
			log.Warn().Err(err).Msg("initial pass did not run")
		}
		fmt.Fprintf(out, "Watching %d folders, press Ctrl+C to stop\n", len(pairs))
		return w.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
