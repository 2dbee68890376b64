package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/crtreco/internal/crt/event"
	"github.com/banshee-data/crtreco/internal/crt/geometry"
	"github.com/banshee-data/crtreco/internal/crt/pipeline"
	"github.com/banshee-data/crtreco/internal/crt/storage/sqlite"
	"github.com/banshee-data/crtreco/internal/db"
	"github.com/banshee-data/crtreco/internal/monitoring"
)

func handleProcess(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("process", out)
	configPath := fs.String("config", "", "Configuration file (JSON)")
	dbPath := fs.String("db", "", "Results database (overrides config)")
	listen := fs.String("listen", "", "Serve /debug/ routes on this address while processing")
	workers := fs.Int("workers", 0, "Events processed concurrently (overrides config)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(out, "Usage: crtreco process [options] <events.json|.cbor[.zst]>...")
		fs.PrintDefaults()
		return errUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *workers < 0 {
		return fmt.Errorf("workers must be at least 1, got %d", *workers)
	}
	nWorkers := cfg.GetWorkers()
	if *workers > 0 {
		nWorkers = *workers
	}
	path := cfg.GetDBPath()
	if *dbPath != "" {
		path = *dbPath
	}

	geo, err := geometry.LoadTable(cfg.GetGeometryPath())
	if err != nil {
		return err
	}

	var events []*event.Event
	for _, f := range files {
		evs, err := event.ReadFile(f)
		if err != nil {
			return err
		}
		monitoring.Debugf("read %d events from %s", len(evs), f)
		events = append(events, evs...)
	}

	database, err := db.NewDB(path)
	if err != nil {
		return fmt.Errorf("failed to open results database: %w", err)
	}
	defer database.Close()
	store := sqlite.NewResultStore(database.DB)

	proc := pipeline.NewProcessor(geo, pipeline.Options{
		Labels:             cfg.GetLabels(),
		Clustering:         cfg.GetClusteringParams(),
		MatchInputClusters: cfg.GetMatchInputClusters(),
	})

	run, err := store.BeginRun(strings.Join(files, ","), cfg)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, finished := context.WithCancel(gctx)
	defer finished()

	if *listen != "" {
		mux := http.NewServeMux()
		if err := database.AttachAdminRoutes(mux); err != nil {
			return err
		}
		server := &http.Server{Addr: *listen, Handler: mux}
		g.Go(func() error {
			return serveHTTP(runCtx, server, cfg.GetShutdownTimeout())
		})
	}

	var stats pipeline.RunStats
	g.Go(func() error {
		defer finished()
		var err error
		stats, err = pipeline.NewRunner(proc, nWorkers).Run(runCtx, events, store.Sink(run.RunID))
		return err
	})
	runErr := g.Wait()

	status := sqlite.RunStatusComplete
	if runErr != nil {
		status = sqlite.RunStatusFailed
	}
	if err := store.FinishRun(run.RunID, status); err != nil {
		return errors.Join(runErr, err)
	}
	if runErr != nil {
		return fmt.Errorf("run %s failed: %w", run.RunID, runErr)
	}

	fmt.Fprintf(out, "run %s: %d events, %d hits, %d clusters -> %s\n",
		run.RunID, stats.Events, stats.Hits, stats.Clusters, path)
	return nil
}

func handleConvert(args []string, out io.Writer) error {
	fs := newFlagSet("convert", out)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 2 {
		fmt.Fprintln(out, "Usage: crtreco convert <input>... <output>")
		return errUsage
	}

	inputs, output := fs.Args()[:fs.NArg()-1], fs.Arg(fs.NArg()-1)
	var events []*event.Event
	for _, f := range inputs {
		evs, err := event.ReadFile(f)
		if err != nil {
			return err
		}
		events = append(events, evs...)
	}
	if err := event.WriteFile(output, events); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d events to %s\n", len(events), output)
	return nil
}
