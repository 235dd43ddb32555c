package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/renvik/mangarr/internal/config"
)

var configEditCmd = &cobra.Command{
	Use:   "edit [label]",
	Short: "Edit the active or a named profile in $EDITOR",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var label string
		if len(args) == 1 {
			label = args[0]
		} else {
			var err error
			label, err = config.CurrentLabel()
			if err != nil {
				return fmt.Errorf("failed to get current config label: %w", err)
			}
		}

		path, err := config.ConfigPathByLabel(label)
		if err != nil {
			return err
		}

		editor := os.Getenv("VISUAL")
		if editor == "" {
			editor = os.Getenv("EDITOR")
		}
		if editor == "" {
			editor = "vi"
		}

		cmdExec := exec.Command(editor, path)
		cmdExec.Stdin = os.Stdin
		cmdExec.Stdout = os.Stdout
		cmdExec.Stderr = os.Stderr

		if err := cmdExec.Run(); err != nil {
			return fmt.Errorf("failed to open editor %q: %w", editor, err)
		}

		// Catch broken YAML right away rather than at the next run.
		if _, err := config.LoadFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s does not parse: %v\n", path, err)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configEditCmd)
}
