package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/banshee-data/crtreco/internal/api"
	"github.com/banshee-data/crtreco/internal/crt/storage/sqlite"
	"github.com/banshee-data/crtreco/internal/db"
	"github.com/banshee-data/crtreco/internal/monitoring"
)

func handleServe(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("serve", out)
	configPath := fs.String("config", "", "Configuration file (JSON)")
	dbPath := fs.String("db", "", "Results database (overrides config)")
	listen := fs.String("listen", "", "Listen address (overrides config)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	path, addr := cfg.GetDBPath(), cfg.GetListenAddr()
	if *dbPath != "" {
		path = *dbPath
	}
	if *listen != "" {
		addr = *listen
	}

	database, err := db.NewDB(path)
	if err != nil {
		return fmt.Errorf("failed to open results database: %w", err)
	}
	defer database.Close()

	handler, err := newServeHandler(database)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "serving %s on http://%s/api/runs\n", path, addr)
	return serveHTTP(ctx, &http.Server{Addr: addr, Handler: handler}, cfg.GetShutdownTimeout())
}

// newServeHandler mounts the results API and the admin debug routes.
func newServeHandler(database *db.DB) (http.Handler, error) {
	mux := api.NewServer(sqlite.NewResultStore(database.DB)).ServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}
	return api.LoggingMiddleware(mux), nil
}

// serveHTTP runs server until ctx is cancelled, then shuts it down within
// timeout, forcing the close if the graceful shutdown fails.
func serveHTTP(ctx context.Context, server *http.Server, timeout time.Duration) error {
	errc := make(chan error, 1)
	go func() {
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server on %s...", server.Addr)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	monitoring.Logf("HTTP server stopped")
	return nil
}
