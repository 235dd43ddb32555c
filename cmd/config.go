package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/renvik/mangarr/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [label]",
	Short: "Manage configuration profiles",
	Long: "Without arguments, prints the active profile with defaults and flag\n" +
		"overrides applied. With a label, prints that profile as stored on disk.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			path, err := config.ConfigPathByLabel(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.LoadFile(path)
			if err != nil {
				return fmt.Errorf("config %q does not parse: %w", args[0], err)
			}
			fmt.Printf("Profile %q (%s):\n", args[0], path)
			cfg.Print()
			return nil
		}

		cfg, used, err := config.LoadMerged(config.Options{
			IgnoreConfig: flagIgnoreConfig,
			Debug:        flagDebug,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Loaded config from:\n  %s\n\n", used)
		cfg.Print()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
