package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/renvik/mangarr/internal/bypass"
	"github.com/renvik/mangarr/internal/config"
	"github.com/renvik/mangarr/internal/download"
	"github.com/renvik/mangarr/internal/progress"
	"github.com/renvik/mangarr/internal/provider/registry"
	"github.com/renvik/mangarr/internal/storage"
	"github.com/renvik/mangarr/internal/util"
)

// app holds the wired collaborators every command works against.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	reg   *registry.Registry
	repo  *download.SQLiteRepository
	store *storage.Dir
	pub   *progress.Publisher
	orch  *download.Orchestrator
}

func buildApp(cfg *config.Config) (*app, error) {
	log := util.NewLogger(cfg.Debug)

	client, err := util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:    30 * time.Second,
		UserAgent:  util.PickUserAgent(cfg.UserAgent),
		Cookie:     cfg.Cookie,
		CookieFile: cfg.CookieFile,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}

	bp := bypass.New(cfg.BypassURL, log)
	if bp != nil && !bp.Available(context.Background()) {
		log.Warn("bypass service not reachable, providers that need it will be disabled",
			zap.String("url", cfg.BypassURL))
		bp = nil
	}

	reg, err := registry.Load(cfg.ProvidersDir, registry.Deps{
		Client:  client,
		Bypass:  bp,
		Breaker: cfg.Breaker.Options(),
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}

	repo, err := download.NewSQLiteRepository(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open task db: %w", err)
	}

	store, err := storage.NewDir(cfg.Output)
	if err != nil {
		return nil, err
	}

	pub := progress.NewPublisher()

	orch := download.New(
		repo,
		reg,
		download.NewHTTPFetcher(client),
		store,
		pub,
		log,
		download.Options{
			GlobalWorkers: cfg.GlobalWorkers,
			PageWorkers:   cfg.PageWorkers,
			MaxRetries:    cfg.MaxRetries,
			RetryBackoff:  cfg.RetryBackoff,
			ArchiveCBZ:    cfg.Archive,
			KeepPages:     cfg.KeepPages,
		},
	)

	return &app{
		cfg:   cfg,
		log:   log,
		reg:   reg,
		repo:  repo,
		store: store,
		pub:   pub,
		orch:  orch,
	}, nil
}

func (a *app) Close() {
	a.orch.Shutdown()
	a.pub.Close()
	a.reg.Shutdown()
	_ = a.log.Sync()
}

func loadConfig(extra func(*config.Options)) (*config.Config, error) {
	opts := config.Options{
		IgnoreConfig: flagIgnoreConfig,
		Debug:        flagDebug,
	}
	if extra != nil {
		extra(&opts)
	}

	cfg, usedPath, err := config.LoadMerged(opts)
	if err != nil {
		return nil, err
	}
	if usedPath != "" {
		fmt.Printf("Config file: %s\n", usedPath)
	}
	return cfg, nil
}
