package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List configured providers and their health",
		RunE:  runProviders,
	}

	rootCmd.AddCommand(providersCmd)
}

func runProviders(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	records := a.reg.HealthAll()
	if len(records) == 0 {
		return fmt.Errorf("no providers configured in %s", cfg.ProvidersDir)
	}

	fmt.Printf("%-20s %-10s %-10s %s\n", "PROVIDER", "STATE", "FAILURES", "NOTE")
	for _, rec := range records {
		note := ""
		if rec.Disabled {
			note = "disabled (bypass unavailable)"
		} else if !rec.OpenedAt.IsZero() {
			note = "opened at " + rec.OpenedAt.Format("15:04:05")
		}
		fmt.Printf("%-20s %-10s %-10d %s\n", rec.ProviderID, rec.CircuitState, rec.ConsecutiveFailures, note)
	}
	return nil
}
