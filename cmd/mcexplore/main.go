// mcexplore examines the region files of a world directory: per-region chunk
// counts, compression kinds and timestamps, with optional per-chunk dumps,
// document decoding, digests and replacement matching.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/mvaleed/mcregion/internal/config"
	"github.com/mvaleed/mcregion/internal/explore"
	"github.com/mvaleed/mcregion/internal/replace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string

	flagSet := pflag.NewFlagSet("mcexplore", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to YAML config file (default: $"+config.EnvVar+")")
	workers := flagSet.IntP("workers", "j", 0, "regions processed concurrently")
	eager := flagSet.Bool("eager", false, "read every chunk header when a region is opened")
	documents := flagSet.Bool("documents", false, "decode every chunk document")
	digest := flagSet.Bool("digest", false, "print a BLAKE3 digest per chunk document (implies --documents)")
	compression := flagSet.StringSlice("compression", nil, "only decode chunks stored with these kinds: gzip, zlib, none, lz4")
	mapped := flagSet.Bool("mmap", false, "read regions through a memory map")
	dump := flagSet.Bool("dump", false, "print per-chunk detail")
	head := flagSet.Int("head", 0, "limit --dump to the first N chunks per region")
	output := flagSet.StringP("output", "o", "", "output format: text, json or cbor")
	logLevel := flagSet.String("log-level", "", "debug, info, warn or error")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	args := flagSet.Args()
	if len(args) > 2 {
		return fmt.Errorf("unexpected argument: %s", args[2])
	}
	if len(args) > 0 {
		cfg.World = args[0]
	}
	if len(args) > 1 {
		cfg.Replacements = args[1]
	}

	changed := flagSet.Changed
	if changed("workers") {
		cfg.Workers = *workers
	}
	if changed("eager") {
		cfg.EagerHeaders = *eager
	}
	if changed("documents") {
		cfg.LoadDocuments = *documents
	}
	if changed("digest") {
		cfg.Digest = *digest
	}
	if changed("compression") {
		cfg.Compression = *compression
	}
	if changed("mmap") {
		cfg.Mapped = *mapped
	}
	if changed("dump") {
		cfg.Dump = *dump
	}
	if changed("head") {
		cfg.DumpHead = *head
	}
	if changed("output") {
		cfg.Output = *output
	}
	if changed("log-level") {
		cfg.Log.Level = *logLevel
	} else if os.Getenv("MCREGION_DEBUG") != "" {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Log.Logger(os.Stderr)
	if err != nil {
		return err
	}

	e := &explore.Explorer{Config: cfg, Logger: logger}
	if cfg.Replacements != "" {
		reps, err := replace.Load(cfg.Replacements)
		if err != nil {
			return err
		}
		logger.Info("loaded replacements", "path", cfg.Replacements, "entries", reps.Len())
		e.Replacements = reps
		// Matching needs the documents.
		cfg.LoadDocuments = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reports, err := e.Run(ctx)
	if err != nil {
		return err
	}
	return explore.Write(os.Stdout, cfg.Output, reports)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `mcexplore examines the region files of a world.

Usage:
  mcexplore [flags] <world-region-dir> [replacements.json]

Every r.<X>.<Z>.mca file directly inside the directory is opened and
summarised. Regions whose header is truncated are reported and skipped.

Examples:
  # Summaries for every region
  mcexplore ~/.minecraft/saves/World/region

  # Digest every chunk document, as JSON
  mcexplore --digest -o json ~/.minecraft/saves/World/region

  # Decode only the zlib chunks
  mcexplore --documents --compression zlib ~/.minecraft/saves/World/region

  # Count blocks covered by a replacement table
  mcexplore ~/.minecraft/saves/World/region replacements.json

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
