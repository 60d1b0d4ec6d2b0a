// mcconfconvert converts hand-written block replacement definitions into the
// strict form read by mcexplore.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/mvaleed/mcregion/internal/replace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("mcconfconvert", pflag.ContinueOnError)
	indent := flagSet.Bool("indent", false, "indent the output")
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

	args := flagSet.Args()
	if len(args) != 2 {
		printHelp(flagSet)
		return fmt.Errorf("expected <input> <output>, got %d arguments", len(args))
	}
	return convert(args[0], args[1], *indent)
}

func convert(inputPath, outputPath string, indent bool) error {
	input, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	reps, err := replace.ConvertLoose(input)
	if err != nil {
		return fmt.Errorf("%s: %w", inputPath, err)
	}

	var out []byte
	if indent {
		out, err = json.MarshalIndent(reps, "", "  ")
	} else {
		out, err = json.Marshal(reps)
	}
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}

	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `mcconfconvert converts loose replacement definitions to the strict format.

Usage:
  mcconfconvert [flags] <input> <output>

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
