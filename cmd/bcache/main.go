// bcache is a demo CLI for the pkg/bcache embedded cache engine.
//
// Usage:
//
//	bcache <path>          Open (creating if absent) a cache and start a REPL
//	bcache stats <path>    Open, print GetStats(), write <path>.stats.json, close
//
// REPL commands:
//
//	set <key> <value> [ttl_seconds]   Store a raw-bytes value
//	setjson <key> <json> [ttl_seconds] Store a structured (JSON-decoded) value
//	get <key>                          Fetch and print a value
//	has <key>                          Report whether key is live
//	del <key>                          Delete a key
//	delprefix <prefix>                 Delete every key starting with prefix
//	keys                               List all keys
//	ttl <key>                          Show seconds until expiry (0 = never)
//	stats                              Show accumulated counters
//	vacuum                             Compact the blob file
//	help                                Show this help
//	exit / quit / q                    Close the cache and exit
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ddofborg/blob-cache/pkg/bcache"
	"github.com/peterh/liner"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()

		return fmt.Errorf("missing command or cache path")
	}

	if os.Args[1] == "stats" {
		return runStats(os.Args[2:])
	}

	return runRepl(os.Args[1:])
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  bcache <path>          Open (creating if absent) a cache and start a REPL")
	fmt.Fprintln(os.Stderr, "  bcache stats <path>    Open, print stats, write <path>.stats.json, close")
}

func runRepl(args []string) error {
	if len(args) < 1 {
		printUsage()

		return fmt.Errorf("missing cache path")
	}

	basePath := args[0]

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	cfg, err := LoadConfig(workDir)
	if err != nil {
		return err
	}

	cache, err := bcache.Open(bcache.Options{
		BasePath:            basePath,
		DecodeAsMapping:     cfg.DecodeAsMapping,
		AutoVacuumThreshold: cfg.AutoVacuumThreshold,
	})
	if err != nil {
		return fmt.Errorf("opening cache at %s: %w", basePath, err)
	}

	repl := &REPL{cache: cache, basePath: basePath}

	return repl.Run()
}

// REPL is the interactive command loop, styled after
// calvinalkan-agent-task/cmd/sloty/main.go's liner-backed loop.
type REPL struct {
	cache    *bcache.Cache
	basePath string
	liner    *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".bcache_history")
}

func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("bcache - embedded blob cache CLI (%s)\n", r.basePath)
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("bcache> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		if r.dispatch(line) {
			break
		}
	}

	if f, err := os.Create(historyFile()); err == nil {
		r.liner.WriteHistory(f)
		f.Close()
	}

	return r.cache.Close()
}

// dispatch runs one command line, returning true when the REPL should exit.
func (r *REPL) dispatch(line string) bool {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "exit", "quit", "q":
		return true
	case "help":
		printReplHelp()
	case "set":
		r.cmdSet(args, false)
	case "setjson":
		r.cmdSet(args, true)
	case "get":
		r.cmdGet(args)
	case "has":
		r.cmdHas(args)
	case "del", "delete":
		r.cmdDel(args)
	case "delprefix":
		r.cmdDelPrefix(args)
	case "keys":
		r.cmdKeys()
	case "ttl":
		r.cmdTTL(args)
	case "stats":
		r.cmdStats()
	case "vacuum":
		r.cmdVacuum()
	default:
		fmt.Printf("unknown command: %s (type 'help')\n", cmd)
	}

	return false
}

func printReplHelp() {
	fmt.Println("Commands:")
	fmt.Println("  set <key> <value> [ttl_seconds]        Store a raw-bytes value")
	fmt.Println("  setjson <key> <json> [ttl_seconds]     Store a structured (JSON) value")
	fmt.Println("  get <key>                               Fetch and print a value")
	fmt.Println("  has <key>                                Report whether key is live")
	fmt.Println("  del <key>                                Delete a key")
	fmt.Println("  delprefix <prefix>                       Delete every key starting with prefix")
	fmt.Println("  keys                                     List all keys")
	fmt.Println("  ttl <key>                                Show seconds until expiry (0 = never)")
	fmt.Println("  stats                                    Show accumulated counters")
	fmt.Println("  vacuum                                   Compact the blob file")
	fmt.Println("  exit / quit / q                          Close the cache and exit")
}

func (r *REPL) cmdSet(args []string, asJSON bool) {
	if len(args) < 2 {
		fmt.Println("usage: set <key> <value> [ttl_seconds]")

		return
	}

	key := args[0]
	raw := args[1]

	var ttl time.Duration
	if len(args) >= 3 {
		seconds, err := strconv.Atoi(args[2])
		if err != nil {
			fmt.Printf("invalid ttl_seconds: %v\n", err)

			return
		}

		ttl = time.Duration(seconds) * time.Second
	}

	value := bcache.BytesValue([]byte(raw))

	if asJSON {
		v, err := jsonToValue(raw)
		if err != nil {
			fmt.Printf("invalid JSON value: %v\n", err)

			return
		}

		value = v
	}

	if err := r.cache.Set(key, value, ttl); err != nil {
		fmt.Printf("set failed: %v\n", err)

		return
	}

	fmt.Println("OK")
}

func (r *REPL) cmdGet(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: get <key>")

		return
	}

	v, err := r.cache.Get(args[0])
	if err != nil {
		fmt.Printf("get failed: %v\n", err)

		return
	}

	fmt.Println(formatValue(v))
}

func (r *REPL) cmdHas(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: has <key>")

		return
	}

	ok, err := r.cache.Has(args[0])
	if err != nil {
		fmt.Printf("has failed: %v\n", err)

		return
	}

	fmt.Println(ok)
}

func (r *REPL) cmdDel(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: del <key>")

		return
	}

	if err := r.cache.Delete(args[0]); err != nil {
		fmt.Printf("delete failed: %v\n", err)

		return
	}

	fmt.Println("OK")
}

func (r *REPL) cmdDelPrefix(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: delprefix <prefix>")

		return
	}

	if err := r.cache.DeleteStartsWith(args[0]); err != nil {
		fmt.Printf("delprefix failed: %v\n", err)

		return
	}

	fmt.Println("OK")
}

func (r *REPL) cmdKeys() {
	keys, err := r.cache.Keys()
	if err != nil {
		fmt.Printf("keys failed: %v\n", err)

		return
	}

	for _, k := range keys {
		fmt.Println(k)
	}
}

func (r *REPL) cmdTTL(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: ttl <key>")

		return
	}

	expires, err := r.cache.WhenExpired(args[0], true)
	if err != nil {
		fmt.Printf("ttl failed: %v\n", err)

		return
	}

	// A live entry has expires >= now, so only a never-expiring entry
	// (reported as -now) gives a negative relative value.
	if expires < 0 {
		expires = 0
	}

	fmt.Println(expires)
}

func (r *REPL) cmdStats() {
	stats, err := r.cache.GetStats()
	if err != nil {
		fmt.Printf("stats failed: %v\n", err)

		return
	}

	printStats(os.Stdout, stats)
}

func (r *REPL) cmdVacuum() {
	if err := r.cache.Vacuum(); err != nil {
		fmt.Printf("vacuum failed: %v\n", err)

		return
	}

	fmt.Println("OK")
}

func printStats(w io.Writer, stats bcache.Stats) {
	fmt.Fprintf(w, "hits:                %d\n", stats.Hits)
	fmt.Fprintf(w, "misses:              %d\n", stats.Misses)
	fmt.Fprintf(w, "sets:                %d\n", stats.Sets)
	fmt.Fprintf(w, "deletes:             %d\n", stats.Deletes)
	fmt.Fprintf(w, "refreshes:           %d\n", stats.Refreshes)
	fmt.Fprintf(w, "fragmentation_ratio: %.4f\n", stats.FragmentationRatio)
	fmt.Fprintf(w, "total_keys:          %d\n", stats.TotalKeys)
	fmt.Fprintf(w, "data_file_size_bytes: %d\n", stats.DataFileSizeBytes)
}

func formatValue(v bcache.Value) string {
	switch v.Kind() {
	case bcache.KindBytes:
		b, _ := v.Bytes()

		return string(b)
	case bcache.KindString:
		s, _ := v.String()

		return s
	case bcache.KindBool:
		b, _ := v.Bool()

		return strconv.FormatBool(b)
	case bcache.KindInt:
		i, _ := v.Int()

		return strconv.FormatInt(i, 10)
	case bcache.KindFloat:
		f, _ := v.Float()

		return strconv.FormatFloat(f, 'g', -1, 64)
	default:
		return valueToJSON(v)
	}
}
