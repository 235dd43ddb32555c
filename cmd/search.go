package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/renvik/mangarr/internal/provider"
)

var (
	flagSearchProvider string
	flagSearchPage     int
)

func init() {
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search for a series across providers",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}

	searchCmd.Flags().StringVar(&flagSearchProvider, "provider", "", "search only this provider id")
	searchCmd.Flags().IntVar(&flagSearchPage, "page", 1, "result page")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
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
	query := args[0]

	var ids []string
	if flagSearchProvider != "" {
		ids = []string{flagSearchProvider}
	} else {
		for _, p := range a.reg.Healthy() {
			ids = append(ids, p.ID())
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("no healthy providers available")
	}

	found := 0
	for _, id := range ids {
		var results []provider.Manga
		err := a.reg.Call(ctx, id, func(ctx context.Context, p provider.Provider) error {
			r, err := p.Search(ctx, query, flagSearchPage)
			results = r
			return err
		})
		if err != nil {
			fmt.Printf("%s: %v\n", id, err)
			continue
		}

		for _, m := range results {
			found++
			fmt.Printf("%3d) [%s] %s\n", found, m.Provider, m.Title)
			fmt.Printf("     id: %s\n", m.ExternalID)
			if m.Author != "" {
				fmt.Printf("     author: %s\n", m.Author)
			}
			if len(m.Genres) > 0 {
				fmt.Printf("     genres: %s\n", strings.Join(m.Genres, ", "))
			}
		}
	}

	if found == 0 {
		fmt.Printf("No results for %q.\n", query)
	}
	return nil
}
