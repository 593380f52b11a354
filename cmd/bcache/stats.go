package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ddofborg/blob-cache/pkg/bcache"
	natomic "github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"
)

// runStats implements the non-interactive "bcache stats <path>" subcommand
// (modeled on ls.go's pflag.FlagSet + --help handling): it opens the cache,
// prints GetStats(), durably writes the same report as JSON to
// <path>.stats.json, and closes.
func runStats(args []string) error {
	flagSet := flag.NewFlagSet("stats", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	noVacuum := flagSet.Bool("no-vacuum", false, "disable auto-vacuum-on-close for this run")

	if hasHelpFlag(args) {
		printStatsHelp()

		return nil
	}

	if err := flagSet.Parse(args); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	if flagSet.NArg() < 1 {
		printStatsHelp()

		return fmt.Errorf("missing cache path")
	}

	basePath := flagSet.Arg(0)

	threshold := 0.0
	if *noVacuum {
		threshold = 1.0
	}

	cache, err := bcache.Open(bcache.Options{BasePath: basePath, AutoVacuumThreshold: threshold})
	if err != nil {
		return fmt.Errorf("opening cache at %s: %w", basePath, err)
	}

	stats, statsErr := cache.GetStats()

	closeErr := cache.Close()

	if statsErr != nil {
		return fmt.Errorf("reading stats: %w", statsErr)
	}

	if closeErr != nil {
		return fmt.Errorf("closing cache: %w", closeErr)
	}

	printStats(os.Stdout, stats)

	return writeStatsReport(basePath+".stats.json", stats)
}

func printStatsHelp() {
	fmt.Fprintln(os.Stderr, "Usage: bcache stats [options] <path>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Open a cache, print its stats, write <path>.stats.json, and close.")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "  --no-vacuum    Disable auto-vacuum-on-close for this run")
}

func hasHelpFlag(args []string) bool {
	for _, a := range args {
		if a == "-h" || a == "--help" {
			return true
		}
	}

	return false
}

// writeStatsReport durably writes stats as JSON to path via
// github.com/natefinch/atomic, the same temp-file-then-rename library the
// teacher's own CLI layer uses (its core pkg/fs rolls its own instead — see
// DESIGN.md).
func writeStatsReport(path string, stats bcache.Stats) error {
	encoded, err := json.MarshalIndent(statsReport{
		Hits:               stats.Hits,
		Misses:             stats.Misses,
		Sets:               stats.Sets,
		Deletes:            stats.Deletes,
		Refreshes:          stats.Refreshes,
		FragmentationRatio: stats.FragmentationRatio,
		TotalKeys:          stats.TotalKeys,
		DataFileSizeBytes:  stats.DataFileSizeBytes,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding stats report: %w", err)
	}

	return natomic.WriteFile(path, bytes.NewReader(encoded))
}

// statsReport is the JSON shape written to <path>.stats.json.
type statsReport struct {
	Hits               uint64  `json:"hits"`
	Misses             uint64  `json:"misses"`
	Sets               uint64  `json:"sets"`
	Deletes            uint64  `json:"deletes"`
	Refreshes          uint64  `json:"refreshes"`
	FragmentationRatio float64 `json:"fragmentation_ratio"`
	TotalKeys          int     `json:"total_keys"`
	DataFileSizeBytes  int64   `json:"data_file_size_bytes"`
}
