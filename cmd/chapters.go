package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/renvik/mangarr/internal/normalize"
	"github.com/renvik/mangarr/internal/provider"
)

var (
	flagChaptersProvider string
	flagChaptersAll      bool
)

func init() {
	chaptersCmd := &cobra.Command{
		Use:   "chapters <manga-id>",
		Short: "List the normalized chapters of a series",
		Args:  cobra.ExactArgs(1),
		RunE:  runChapters,
	}

	chaptersCmd.Flags().StringVar(&flagChaptersProvider, "provider", "", "provider id the manga id belongs to")
	chaptersCmd.Flags().BoolVar(&flagChaptersAll, "all-providers", false, "merge chapter lists from every healthy provider")

	rootCmd.AddCommand(chaptersCmd)
}

func runChapters(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	mangaID := args[0]

	var ids []string
	if flagChaptersAll {
		for _, p := range a.reg.Healthy() {
			ids = append(ids, p.ID())
		}
	} else {
		if flagChaptersProvider == "" {
			return fmt.Errorf("missing --provider (or use --all-providers)")
		}
		ids = []string{flagChaptersProvider}
	}
	if len(ids) == 0 {
		return fmt.Errorf("no healthy providers available")
	}

	var candidates []provider.Chapter
	for _, id := range ids {
		var chs []provider.Chapter
		err := a.reg.Call(ctx, id, func(ctx context.Context, p provider.Provider) error {
			found, err := p.ListChapters(ctx, mangaID)
			chs = found
			return err
		})
		if err != nil {
			if !flagChaptersAll {
				return err
			}
			fmt.Printf("%s: %v\n", id, err)
			continue
		}
		candidates = append(candidates, chs...)
	}

	merged := normalize.Chapters(candidates, cfg.Weights, cfg.Order())
	if len(merged) == 0 {
		return fmt.Errorf("no chapters found")
	}

	fmt.Printf("%d chapters:\n\n", len(merged))
	for i, c := range merged {
		line := fmt.Sprintf("%3d) Ch.%s", i+1, c.Label)
		if c.Title != "" {
			line += "  " + c.Title
		}
		if c.PageCount > 0 {
			line += fmt.Sprintf("  (%d pages)", c.PageCount)
		}
		if c.Source != "" {
			line += "  [" + c.Source + "]"
		}
		fmt.Println(line)
	}
	return nil
}
