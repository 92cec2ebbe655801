package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	// Source and output trees
	Input      string
	Output     string
	Extensions []string

	// Rendering
	Format           string
	Strict           bool
	ValidateExamples bool

	// Worker pool
	Workers int

	// Preview server
	Addr           string
	APIKey         string // guards the rebuild and preview endpoints when set
	MaxUploadBytes int64

	// Watch mode
	Debounce time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// Formats accepted by Validate.
var Formats = []string{"html", "text"}

func Load() Config {
	cfg := Config{
		Input:      os.Getenv("PODSITE_INPUT"),
		Output:     os.Getenv("PODSITE_OUTPUT"),
		Extensions: envList("PODSITE_EXTENSIONS"),

		Format:           envOr("PODSITE_FORMAT", "html"),
		Strict:           envBool("PODSITE_STRICT", false),
		ValidateExamples: envBool("PODSITE_VALIDATE_EXAMPLES", true),

		Workers: envInt("PODSITE_WORKERS", runtime.NumCPU()),

		Addr:           envOr("PODSITE_ADDR", ":8090"),
		APIKey:         os.Getenv("PODSITE_API_KEY"),
		MaxUploadBytes: envInt64("PODSITE_MAX_UPLOAD_BYTES", 5<<20), // 5MB

		Debounce: envDuration("PODSITE_DEBOUNCE", 200*time.Millisecond),

		LogLevel:  envOr("PODSITE_LOG_LEVEL", "info"),
		LogFormat: envOr("PODSITE_LOG_FORMAT", "text"),
	}
	cfg.normalize()
	return cfg
}

func (c *Config) normalize() {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Debounce <= 0 {
		c.Debounce = 200 * time.Millisecond
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 5 << 20
	}
	c.Format = strings.ToLower(c.Format)
}

// fileConfig mirrors Config for the TOML file. Pointer fields distinguish
// "absent" from the zero value so a file only overrides what it sets.
type fileConfig struct {
	Input            *string  `toml:"input"`
	Output           *string  `toml:"output"`
	Extensions       []string `toml:"extensions"`
	Format           *string  `toml:"format"`
	Strict           *bool    `toml:"strict"`
	ValidateExamples *bool    `toml:"validate_examples"`
	Workers          *int     `toml:"workers"`
	Addr             *string  `toml:"addr"`
	Debounce         *string  `toml:"debounce"`
	LogLevel         *string  `toml:"log_level"`
	LogFormat        *string  `toml:"log_format"`
}

// LoadFile layers the TOML file at path over c. Relative input and output
// paths in the file are resolved against the file's directory.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	base := filepath.Dir(path)
	rel := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	if fc.Input != nil {
		c.Input = rel(*fc.Input)
	}
	if fc.Output != nil {
		c.Output = rel(*fc.Output)
	}
	if fc.Extensions != nil {
		c.Extensions = fc.Extensions
	}
	if fc.Format != nil {
		c.Format = *fc.Format
	}
	if fc.Strict != nil {
		c.Strict = *fc.Strict
	}
	if fc.ValidateExamples != nil {
		c.ValidateExamples = *fc.ValidateExamples
	}
	if fc.Workers != nil {
		c.Workers = *fc.Workers
	}
	if fc.Addr != nil {
		c.Addr = *fc.Addr
	}
	if fc.Debounce != nil {
		d, err := time.ParseDuration(*fc.Debounce)
		if err != nil {
			return fmt.Errorf("parsing config file %s: debounce: %w", path, err)
		}
		c.Debounce = d
	}
	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
	}
	if fc.LogFormat != nil {
		c.LogFormat = *fc.LogFormat
	}
	c.normalize()
	return nil
}

func (c Config) Validate() error {
	if c.Input == "" {
		return errors.New("input directory is required (--input or PODSITE_INPUT)")
	}
	if c.Output == "" {
		return errors.New("output directory is required (--output or PODSITE_OUTPUT)")
	}
	known := false
	for _, f := range Formats {
		if c.Format == f {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("unknown format %q (want one of %s)", c.Format, strings.Join(Formats, ", "))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	in, err := filepath.Abs(c.Input)
	if err != nil {
		return fmt.Errorf("resolving input: %w", err)
	}
	out, err := filepath.Abs(c.Output)
	if err != nil {
		return fmt.Errorf("resolving output: %w", err)
	}
	if r, err := filepath.Rel(in, out); err == nil && (r == "." || !strings.HasPrefix(r, "..")) {
		return fmt.Errorf("output directory %s must not be inside input directory %s", c.Output, c.Input)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated variable, dropping empty elements.
func envList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
