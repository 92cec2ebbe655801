package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dgallion1/podsite/internal/config"
)

var version = "dev"

var (
	configFile string
	logLevel   string
	logFormat  string
)

// buildOptions holds the flags shared by render and serve. Only changed
// flags override the environment and config file.
type buildOptions struct {
	input      string
	output     string
	format     string
	workers    int
	strict     bool
	noExamples bool
	watch      bool
	addr       string
}

var opts buildOptions

var rootCmd = &cobra.Command{
	Use:   "podsite",
	Short: "Render Pod documentation sources into a cross-linked site",
	Long: `podsite loads a tree of Pod6 (and Markdown) documentation sources,
checks their embedded examples, resolves cross-references between the
documented symbols and renders every page to an output directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "TOML config file layered over PODSITE_* environment variables")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&logFormat, "log-format", "", "log format: text or json")
}

func addBuildFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&opts.input, "input", "", "input directory of documentation sources")
	f.StringVar(&opts.output, "output", "", "output directory for the rendered site")
	f.StringVar(&opts.format, "format", "html", "output format: html or text")
	f.IntVar(&opts.workers, "workers", 0, "parallel workers (default: number of CPUs)")
	f.BoolVar(&opts.strict, "strict", false, "exit non-zero when any link is unresolved")
	f.BoolVar(&opts.noExamples, "no-examples", false, "skip example validation")
	f.BoolVar(&opts.watch, "watch", false, "rebuild when sources change")
}

// loadConfig layers environment, config file and changed flags, then
// validates the result.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Load()
	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return cfg, err
		}
	}

	f := cmd.Flags()
	if f.Changed("input") {
		cfg.Input = opts.input
	}
	if f.Changed("output") {
		cfg.Output = opts.output
	}
	if f.Changed("format") {
		cfg.Format = opts.format
	}
	if f.Changed("workers") && opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if f.Changed("strict") {
		cfg.Strict = opts.strict
	}
	if f.Changed("no-examples") {
		cfg.ValidateExamples = !opts.noExamples
	}
	if f.Changed("addr") {
		cfg.Addr = opts.addr
	}
	if f.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if f.Changed("log-format") {
		cfg.LogFormat = logFormat
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level, _ := config.ParseLevel(cfg.LogLevel)
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// exitError carries a non-zero exit code for a run that completed but
// must report failure.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}
