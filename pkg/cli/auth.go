package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/notecal/pkg/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize notecal to manage calendar events",
	Long: fmt.Sprintf(`Run the OAuth flow in the browser and store the token encrypted in the
settings file. The Google client secrets must be saved as %s in the
config directory first.`, auth.ClientSecretsFile),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := auth.GetConfig(store.Dir())
		if err != nil {
			return err
		}
		session, err := openSession()
		if err != nil {
			return err
		}

		authorizer := auth.NewAuthorizer(cfg)
		out := cmd.OutOrStdout()
		authorizer.Prompt = func(u string) {
			fmt.Fprintln(out, "Open the following URL in your browser to authorize notecal:")
			fmt.Fprintln(out, mutedStyle.Render(u))
		}
		tok, err := authorizer.Authorize(cmd.Context())
		if err != nil {
			return fmt.Errorf("authorization failed: %w", err)
		}
		if err := session.Save(tok); err != nil {
			return err
		}
		fmt.Fprintln(out, successStyle.Render("✓ ")+"Authorized, token saved to "+store.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
}
