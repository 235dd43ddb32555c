package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/renvik/mangarr/internal/config"
	"github.com/renvik/mangarr/internal/download"
	"github.com/renvik/mangarr/internal/normalize"
	"github.com/renvik/mangarr/internal/progress"
	"github.com/renvik/mangarr/internal/provider"
	"github.com/renvik/mangarr/internal/util"
)

var (
	// selection
	flagProvider string
	flagManga    string
	flagQuery    string
	flagChapter  string
	flagRange    string
	flagList     string

	// runtime
	flagOutput      string
	flagWorkers     int
	flagPageWorkers int
	flagKeepPages   bool
	flagDryRun      bool

	// headers/auth
	flagCookie     string
	flagCookieFile string
	flagUserAgent  string
)

func init() {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download manga chapters and produce CBZ files. Uses the defaults from the selected config, overwritten by CLI flags",
		RunE:  runDownload,
	}

	// selection
	downloadCmd.Flags().StringVar(&flagProvider, "provider", "", "provider id (interactive pick when omitted)")
	downloadCmd.Flags().StringVar(&flagManga, "manga", "", "manga id on the provider")
	downloadCmd.Flags().StringVar(&flagQuery, "query", "", "search query used to find the manga interactively")
	downloadCmd.Flags().StringVar(&flagChapter, "chapter", "", "download single chapter by index or label (e.g. 5 or 28.5)")
	downloadCmd.Flags().StringVar(&flagRange, "range", "", "download range of chapters by index (e.g. 5-12)")
	downloadCmd.Flags().StringVar(&flagList, "list", "", "download specific chapter indices (e.g. 1,3,5)")

	// runtime
	downloadCmd.Flags().StringVar(&flagOutput, "output", "", "output folder for CBZ files")
	downloadCmd.Flags().IntVar(&flagWorkers, "workers", 0, "parallel chapter downloads")
	downloadCmd.Flags().IntVar(&flagPageWorkers, "page-workers", 0, "parallel page downloads per chapter")
	downloadCmd.Flags().BoolVar(&flagKeepPages, "keep-pages", false, "keep loose page files next to the CBZ")
	downloadCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show what would be downloaded, don’t download")

	// headers/auth
	downloadCmd.Flags().StringVar(&flagCookie, "cookie", "", "cookie string, e.g. \"key=value; other=123\"")
	downloadCmd.Flags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file with cookies (one header line)")
	downloadCmd.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(func(o *config.Options) {
		o.Output = flagOutput
		o.GlobalWorkers = flagWorkers
		o.PageWorkers = flagPageWorkers
		o.KeepPages = flagKeepPages
		o.DefaultRange = flagRange
		o.DefaultList = flagList
		o.Cookie = flagCookie
		o.CookieFile = flagCookieFile
		o.UserAgent = flagUserAgent
	})
	if err != nil {
		return err
	}

	fmt.Println("Full config:")
	cfg.Print()
	fmt.Println()

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	providerID, err := pickProviderID(a, flagProvider)
	if err != nil {
		return err
	}

	manga, err := pickManga(ctx, a, providerID)
	if err != nil {
		return err
	}

	var chapters []provider.Chapter
	err = a.reg.Call(ctx, providerID, func(ctx context.Context, p provider.Provider) error {
		chs, err := p.ListChapters(ctx, manga.ExternalID)
		chapters = chs
		return err
	})
	if err != nil {
		return fmt.Errorf("list chapters: %w", err)
	}

	chapters = normalize.Chapters(chapters, cfg.Weights, cfg.Order())

	if flagChapter == "" && flagRange == "" && flagList == "" &&
		cfg.DefaultRange == "" && cfg.DefaultList == "" {
		fmt.Printf("Found %d chapters on the site.\n\n", len(chapters))
	}

	finalRange := flagRange
	if finalRange == "" {
		finalRange = cfg.DefaultRange
	}
	finalList := flagList
	if finalList == "" {
		finalList = cfg.DefaultList
	}

	selected := provider.FilterChapters(chapters, flagChapter, finalRange, finalList)
	if len(selected) == 0 {
		return fmt.Errorf("no chapters selected")
	}

	if flagDryRun {
		fmt.Printf("Dry-run: %d chapters selected.\n\n", len(selected))
		for i, ch := range selected {
			fmt.Printf("%3d) %s  [%s]\n    %s\n", i+1, ch.Title, ch.Label, ch.URL)
		}
		return nil
	}

	util.SetupInterruptHandler(a.log, func() {
		a.orch.Shutdown()
		a.pub.Close()
	})

	events, cancelSub := a.pub.Subscribe(1024)
	defer cancelSub()

	console := progress.NewConsole()
	go console.Run(events)

	a.orch.Start(ctx)

	start := time.Now()
	groupID, tasks, err := a.orch.Enqueue(*manga, selected)
	if err != nil {
		return err
	}

	final := waitForGroup(a.orch, groupID, len(tasks))
	console.Wait()

	printSummary(final, time.Since(start))
	return nil
}

// waitForGroup polls the repository until every task in the group is
// terminal; the streamed events update the bars in the meantime.
func waitForGroup(orch *download.Orchestrator, groupID string, total int) []*download.Task {
	for {
		tasks, err := orch.ListTasks(groupID)
		if err == nil && len(tasks) >= total {
			done := 0
			for _, t := range tasks {
				if t.IsTerminal() {
					done++
				}
			}
			if done == len(tasks) {
				return tasks
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
}

func printSummary(tasks []*download.Task, took time.Duration) {
	var completed, failed, cancelled int
	var pages int
	var bytes int64

	for _, t := range tasks {
		switch t.Status {
		case download.StatusCompleted:
			completed++
		case download.StatusFailed:
			failed++
		case download.StatusCancelled:
			cancelled++
		}
		pages += t.PagesDone
		bytes += t.DownloadedBytes
	}

	fmt.Println()
	fmt.Println("Download Summary:")
	fmt.Printf("Chapters: %d completed", completed)
	if failed > 0 {
		fmt.Printf(", %d failed", failed)
	}
	if cancelled > 0 {
		fmt.Printf(", %d cancelled", cancelled)
	}
	fmt.Println()
	fmt.Printf("Pages:    %d\n", pages)
	fmt.Printf("Data:     %s\n", util.Human(bytes))
	if took > 0 && bytes > 0 {
		fmt.Printf("Speed:    %s\n", util.HumanRate(float64(bytes)/took.Seconds()))
	}
	fmt.Printf("Time:     %s\n", took.Round(time.Second))
	fmt.Println("\nAll done.")
}

func pickProviderID(a *app, flagged string) (string, error) {
	if flagged != "" {
		if _, ok := a.reg.Get(flagged); !ok {
			return "", fmt.Errorf("provider %q not configured", flagged)
		}
		return flagged, nil
	}

	healthy := a.reg.Healthy()
	if len(healthy) == 0 {
		return "", fmt.Errorf("no healthy providers available")
	}
	if len(healthy) == 1 {
		return healthy[0].ID(), nil
	}

	names := make([]string, len(healthy))
	for i, p := range healthy {
		names[i] = fmt.Sprintf("%s (%s)", p.Name(), p.ID())
	}

	sel := promptui.Select{
		Label: "Pick a provider",
		Items: names,
	}
	idx, _, err := sel.Run()
	if err != nil {
		return "", err
	}
	return healthy[idx].ID(), nil
}

func pickManga(ctx context.Context, a *app, providerID string) (*provider.Manga, error) {
	if flagManga != "" {
		var m *provider.Manga
		err := a.reg.Call(ctx, providerID, func(ctx context.Context, p provider.Provider) error {
			found, err := p.FetchDetails(ctx, flagManga)
			m = found
			return err
		})
		return m, err
	}

	if flagQuery == "" {
		return nil, fmt.Errorf("missing --manga or --query")
	}

	var results []provider.Manga
	err := a.reg.Call(ctx, providerID, func(ctx context.Context, p provider.Provider) error {
		found, err := p.Search(ctx, flagQuery, 1)
		results = found
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no results for %q", flagQuery)
	}
	if len(results) == 1 {
		return &results[0], nil
	}

	titles := make([]string, len(results))
	for i, m := range results {
		titles[i] = m.Title
	}

	sel := promptui.Select{
		Label: "Pick a series",
		Items: titles,
		Size:  10,
	}
	idx, _, err := sel.Run()
	if err != nil {
		return nil, err
	}
	return &results[idx], nil
}
