package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/podsite/internal/pipeline"
	"github.com/dgallion1/podsite/internal/watch"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render sources to the output directory",
	Long: `Renders every source under --input to --output and writes the
symbol index. Files that fail to parse are reported and skipped.
The exit code is 1 if any file failed, or with --strict if any
link could not be resolved.`,
	RunE: runRender,
}

func init() {
	addBuildFlags(renderCmd)
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, _ []string) error {
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
	res, err := b.Build(ctx)
	if err != nil {
		return err
	}
	res.Report.Print(cmd.ErrOrStderr())
	cmd.Printf("Rendered %s to %s\n", cfg.Input, cfg.Output)

	if !opts.watch {
		if code := res.Report.ExitCode(cfg.Strict); code != 0 {
			return &exitError{code: code}
		}
		return nil
	}

	w, err := watch.New(cfg.Input, cfg.Extensions, cfg.Debounce, log)
	if err != nil {
		return err
	}
	defer w.Close()

	cmd.Printf("Watching %s for changes (Ctrl-C to stop)\n", cfg.Input)
	err = w.Run(ctx, func(ctx context.Context, changed []string) {
		res, err := b.Build(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("rebuild failed", "error", err)
			}
			return
		}
		res.Report.Print(cmd.ErrOrStderr())
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
