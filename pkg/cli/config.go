package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/notecal/pkg/config"
	"github.com/harrisonrobin/notecal/pkg/mapping"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(store.Get().Redacted())
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long:  configSetHelp(),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		probe := store.Get()
		if err := probe.Set(key, value); err != nil {
			return err
		}
		if err := store.Update(func(s *config.Settings) { _ = s.Set(key, value) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %q\n", key, value)
		return nil
	},
}

func configSetHelp() string {
	roles := make([]string, len(mapping.Roles))
	for i, r := range mapping.Roles {
		roles[i] = string(r)
	}
	return fmt.Sprintf("Keys: %s\nField mappings: fieldMappings.<role>, role one of %s\nAn empty mapping value unmaps the role.",
		strings.Join(config.Keys, ", "), strings.Join(roles, ", "))
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
