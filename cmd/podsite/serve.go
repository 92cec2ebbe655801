package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/podsite/internal/api"
	"github.com/dgallion1/podsite/internal/pipeline"
	"github.com/dgallion1/podsite/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Render once, then serve the site and its symbol API",
	Long: `Renders the site, then serves the output directory together with
GET /health, /api/symbols, /api/symbols/{name} and /api/report.
With --watch the site is rebuilt when sources change.`,
	RunE: runServe,
}

func init() {
	addBuildFlags(serveCmd)
	serveCmd.Flags().StringVar(&opts.addr, "addr", ":8090", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := pipeline.NewBuilder(cfg, log)
	if err != nil {
		return err
	}
	srv := api.NewServer(b, log, cfg)
	res, err := srv.Rebuild(ctx)
	if err != nil {
		return err
	}
	res.Report.Print(cmd.ErrOrStderr())

	if opts.watch {
		w, err := watch.New(cfg.Input, cfg.Extensions, cfg.Debounce, log)
		if err != nil {
			return err
		}
		defer w.Close()
		go func() {
			err := w.Run(ctx, func(ctx context.Context, changed []string) {
				if res, err := srv.Rebuild(ctx); err == nil {
					res.Report.Print(cmd.ErrOrStderr())
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("watcher stopped", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		<-ctx.Done()
		log.Info("shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting podsite", "addr", cfg.Addr, "output", cfg.Output)
	cmd.Printf("Serving %s on %s\n", cfg.Output, cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
