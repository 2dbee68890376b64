package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/crtreco/internal/config"
	"github.com/banshee-data/crtreco/internal/db"
	"github.com/banshee-data/crtreco/internal/monitoring"
	"github.com/banshee-data/crtreco/internal/version"
)

var (
	showVersion = flag.Bool("version", false, "Print version and exit")
	verbose     = flag.Bool("verbose", false, "Enable debug logging")
)

// errUsage marks errors caused by bad arguments; usage has already been printed.
var errUsage = errors.New("usage error")

func main() {
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	if *showVersion {
		printVersion(os.Stdout)
		return
	}
	monitoring.SetVerbose(*verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flag.Args(), os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "crtreco: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

// run dispatches a subcommand.
func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 1 {
		printUsage(out)
		return errUsage
	}

	command, rest := args[0], args[1:]
	switch command {
	case "process":
		return handleProcess(ctx, rest, out)
	case "serve":
		return handleServe(ctx, rest, out)
	case "convert":
		return handleConvert(rest, out)
	case "migrate":
		return handleMigrate(rest, out)
	case "version":
		printVersion(out)
		return nil
	case "help":
		printUsage(out)
		return nil
	default:
		fmt.Fprintf(out, "Unknown command: %s\n\n", command)
		printUsage(out)
		return errUsage
	}
}

func printVersion(out io.Writer) {
	fmt.Fprintf(out, "crtreco version %s\n", version.String())
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, `crtreco - CRT strip-hit clustering and truth matching

Usage: crtreco [-verbose] <command> [options]

Commands:
  process    Cluster and truth-match event files into the results database
  serve      Serve stored results over the JSON API
  convert    Re-encode event files between .json, .cbor and .zst forms
  migrate    Manage the results database schema
  version    Show crtreco version
  help       Show this help message

Run 'crtreco <command> -h' for command options.`)
}

// loadConfig reads the configuration file, or returns the built-in
// defaults when path is empty.
func loadConfig(path string) (*config.RecoConfig, error) {
	if path == "" {
		return config.DefaultRecoConfig(), nil
	}
	return config.LoadRecoConfig(path)
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func handleMigrate(args []string, out io.Writer) error {
	fs := newFlagSet("migrate", out)
	configPath := fs.String("config", "", "Configuration file (JSON)")
	dbPath := fs.String("db", "", "Results database (overrides config)")
	devMigrations := fs.Bool("dev-migrations", false, "Read migrations from "+db.DevMigrationsDir+" instead of the binary")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	path := cfg.GetDBPath()
	if *dbPath != "" {
		path = *dbPath
	}
	db.DevMode = *devMigrations
	return db.RunMigrateCommand(fs.Args(), path, out)
}
