// Package cli implements the notecal command line.
package cli

import (
	"context"
	"errors"
	"io"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/notecal/pkg/auth"
	"github.com/harrisonrobin/notecal/pkg/config"
	"github.com/harrisonrobin/notecal/pkg/engine"
	"github.com/harrisonrobin/notecal/pkg/google"
	"github.com/harrisonrobin/notecal/pkg/logging"
	"github.com/harrisonrobin/notecal/pkg/secret"
	"github.com/harrisonrobin/notecal/pkg/vault"
)

var (
	configPath string
	vaultFlag  string
	verbose    bool

	store     *config.Store
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "notecal",
	Short: "Sync tagged markdown task notes with Google Calendar",
	Long: `notecal turns notes tagged for sync into calendar events.

Notes live in OPEN folders under the task root. Each tagged note becomes one
event; the event id is written back into the note. When a note's status
reaches the configured done value its event is deleted and the note moves to
the sibling DONE folder.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		st, err := config.Load(configPath)
		if err != nil {
			return err
		}
		store = st
		logCloser = logging.Setup(logging.Options{
			Dir:     st.Dir(),
			Path:    st.Get().LogPath,
			Verbose: verbose,
			Console: cmd.ErrOrStderr(),
		})
		log.Debug().Str("config", st.Path()).Msg("settings loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "settings file (default ~/.config/notecal/settings.json)")
	rootCmd.PersistentFlags().StringVar(&vaultFlag, "vault", "", "vault directory (overrides vaultPath)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug output")
}

// Execute runs the root command. The log file is closed afterwards whether
// or not the command failed.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if closeErr := closeLog(); err == nil {
		err = closeErr
	}
	return err
}

func closeLog() error {
	if logCloser == nil {
		return nil
	}
	err := logCloser.Close()
	logCloser = nil
	return err
}

// openVault opens the configured vault with its metadata cache.
func openVault() (*vault.Vault, error) {
	root := vaultFlag
	if root == "" {
		root = store.Get().VaultPath
	}
	if root == "" {
		return nil, errors.New("no vault configured: pass --vault or run `notecal config set vaultPath <dir>`")
	}
	cache, err := vault.NewMetadataCache(filepath.Join(root, ".notecal", vault.CacheFile))
	if err != nil {
		log.Warn().Err(err).Msg("ignoring unreadable metadata cache")
		cache = nil
	}
	return vault.Open(root, cache)
}

// openSession loads the stored credential. It fails when no client secrets
// file is installed.
func openSession() (*auth.Session, error) {
	cfg, err := auth.GetConfig(store.Dir())
	if err != nil {
		return nil, err
	}
	box, err := secret.LoadOrCreate(store.Dir())
	if err != nil {
		return nil, err
	}
	return auth.NewSession(cfg, store, box)
}

// openGateway returns nil, without error, when the calendar is not
// authorized; the engine reports that as a precondition failure.
func openGateway(ctx context.Context) engine.Gateway {
	session, err := openSession()
	if err != nil {
		log.Warn().Err(err).Msg("calendar credential unavailable")
		return nil
	}
	gw, err := google.NewClient(ctx, session, store.Get().CalendarID)
	if err != nil {
		if !errors.Is(err, auth.ErrNoCredential) {
			log.Warn().Err(err).Msg("could not create calendar client")
		}
		return nil
	}
	return gw
}

type runtime struct {
	vault  *vault.Vault
	engine *engine.Engine
	closer io.Closer
}

func (r *runtime) Close() error { return r.closer.Close() }

// newRuntime wires the vault, gateway and engine for one command.
func newRuntime(ctx context.Context, gw engine.Gateway, progress func(done, total int)) (*runtime, error) {
	v, err := openVault()
	if err != nil {
		return nil, err
	}
	errlog, errlogPath := logging.NewErrorLog(store.Dir())
	eng := engine.New(v, gw, store, engine.Options{
		ErrorLog:     errlog,
		ErrorLogPath: errlogPath,
		Progress:     progress,
	})
	return &runtime{vault: v, engine: eng, closer: errlog}, nil
}
