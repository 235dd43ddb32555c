package cmd

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/renvik/mangarr/internal/config"
)

var (
	flagAddFromActive bool
	flagAddSwitch     bool
)

var configAddCmd = &cobra.Command{
	Use:   "add [label]",
	Short: "Create a new configuration profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var label string
		if len(args) == 1 {
			label = args[0]
		} else {
			prompt := promptui.Prompt{
				Label: "Label for the new profile",
				Validate: func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("label cannot be empty")
					}
					return nil
				},
			}
			entered, err := prompt.Run()
			if err != nil {
				return fmt.Errorf("cancelled")
			}
			label = strings.TrimSpace(entered)
		}

		var path string
		if flagAddFromActive {
			activePath, err := config.ActiveConfigPath()
			if err != nil {
				return fmt.Errorf("no active profile to copy: %w", err)
			}
			if err := config.AddConfig(label, activePath); err != nil {
				return err
			}
			path, _ = config.ConfigPathByLabel(label)
			fmt.Printf("Created profile %q from the active profile: %s\n", label, path)
		} else {
			var err error
			path, err = config.CreateEmptyConfig(label)
			if err != nil {
				return err
			}
			fmt.Printf("Created profile %q with defaults: %s\n", label, path)
		}

		if flagAddSwitch {
			if err := config.SwitchConfig(label); err != nil {
				return err
			}
			fmt.Println("Switched to:", label)
		}
		return nil
	},
}

func init() {
	configAddCmd.Flags().BoolVar(&flagAddFromActive, "from-active", false, "copy the active profile instead of starting from defaults")
	configAddCmd.Flags().BoolVar(&flagAddSwitch, "switch", false, "make the new profile active")
	configCmd.AddCommand(configAddCmd)
}
