package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/renvik/mangarr/internal/config"
)

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := config.ListConfigs()
		if err != nil {
			return fmt.Errorf("cannot read configs directory: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
		_, _ = fmt.Fprintln(w, "LABEL\tACTIVE\tOUTPUT\tWORKERS\tBREAKER\tAPI")

		for _, c := range list {
			active := ""
			if c.Active {
				active = "yes"
			}

			if c.Config == nil {
				_, _ = fmt.Fprintf(w, "%s\t%s\t(broken yaml)\t\t\t\n", c.Label, active)
				continue
			}

			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\t%d/%s\t%s\n",
				c.Label, active,
				c.Config.Output,
				c.Config.GlobalWorkers, c.Config.PageWorkers,
				c.Config.Breaker.FailureThreshold, c.Config.Breaker.Cooldown,
				c.Config.APIAddr)
		}

		if err := w.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to flush table output: %v\n", err)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configListCmd)
}
