// Package config loads mcexplore configuration.
//
// Configuration comes from a single YAML file named by the --config flag or
// the MCREGION_CONFIG environment variable. There is no discovery; without
// either, Default applies. Command-line flags override file values.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mvaleed/mcregion/internal/region"
)

const EnvVar = "MCREGION_CONFIG"

// Output formats for per-region results.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputCBOR = "cbor"
)

var outputFormats = []string{OutputText, OutputJSON, OutputCBOR}

type Config struct {
	// World is the directory holding r.<X>.<Z>.mca files.
	World string `yaml:"world"`

	// Replacements is an optional block replacement definitions file.
	Replacements string `yaml:"replacements"`

	// EagerHeaders reads every chunk header when a region is opened.
	EagerHeaders bool `yaml:"eager_headers"`

	// LoadDocuments decodes every present chunk document.
	LoadDocuments bool `yaml:"load_documents"`

	// Digest hashes each loaded document. Implies LoadDocuments.
	Digest bool `yaml:"digest"`

	// Compression limits document decoding to chunks stored with these
	// kinds (gzip, zlib, none, lz4). Empty decodes every chunk.
	Compression []string `yaml:"compression"`

	// Mapped reads regions through a memory map instead of a file handle.
	Mapped bool `yaml:"mapped"`

	// Workers is the number of regions processed concurrently.
	Workers int `yaml:"workers"`

	// Dump prints per-chunk detail; DumpHead limits it per region (0 = all).
	Dump     bool `yaml:"dump"`
	DumpHead int  `yaml:"dump_head"`

	Output string `yaml:"output"`

	Log LogConfig `yaml:"log"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		Workers: 4,
		Output:  OutputText,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the file named by MCREGION_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of a config file, or use --config", EnvVar)
	}
	return LoadFile(path)
}

// Resolve picks the config source for a command: the flag value, then
// MCREGION_CONFIG, then Default.
func Resolve(flagPath string) (*Config, error) {
	if flagPath != "" {
		return LoadFile(flagPath)
	}
	if os.Getenv(EnvVar) != "" {
		return Load()
	}
	return Default(), nil
}

// LoadFile loads configuration from path over Default. ${HOME} and other
// environment references in paths are expanded.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.World = expandVars(cfg.World)
	cfg.Replacements = expandVars(cfg.Replacements)
	return cfg, nil
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.World == "" {
		errs = append(errs, errors.New("world is required"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.DumpHead < 0 {
		errs = append(errs, fmt.Errorf("dump_head must not be negative, got %d", c.DumpHead))
	}
	if !slices.Contains(outputFormats, c.Output) {
		errs = append(errs, fmt.Errorf("output must be one of: %v", outputFormats))
	}
	if _, err := c.Compressions(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// WantDocuments reports whether chunk documents must be decoded.
func (c *Config) WantDocuments() bool {
	return c.LoadDocuments || c.Digest
}

// Compressions parses the Compression filter.
func (c *Config) Compressions() ([]region.Compression, error) {
	kinds := make([]region.Compression, 0, len(c.Compression))
	for _, name := range c.Compression {
		kind, err := region.ParseCompression(name)
		if err != nil {
			return nil, fmt.Errorf("compression: %w", err)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Logger builds the logger described by l, writing to w.
func (l LogConfig) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch l.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log.format: unknown format %q", l.Format)
	}
}
