package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/renvik/mangarr/internal/api"
	"github.com/renvik/mangarr/internal/config"
	"github.com/renvik/mangarr/internal/util"
)

var flagServeAddr string

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and WebSocket event stream",
		RunE:  runServe,
	}

	serveCmd.Flags().StringVar(&flagServeAddr, "addr", "", "listen address (e.g. :8080)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(func(o *config.Options) {
		o.APIAddr = flagServeAddr
	})
	if err != nil {
		return err
	}

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	a.orch.Start(context.Background())

	srv := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: api.NewRouter(a.orch, a.reg, a.pub, a.log, api.Options{
			Weights: cfg.Weights,
			Order:   cfg.Order(),
		}),
	}

	util.SetupInterruptHandler(a.log, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		a.orch.Shutdown()
		a.pub.Close()
	})

	a.log.Info("serving API", zap.String("addr", cfg.APIAddr))
	fmt.Printf("Listening on %s\n", cfg.APIAddr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
