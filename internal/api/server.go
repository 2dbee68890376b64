// Package api serves stored reconstruction results over a read-only JSON API.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/crtreco/internal/crt/pipeline"
	"github.com/banshee-data/crtreco/internal/crt/storage/sqlite"
	"github.com/banshee-data/crtreco/internal/httputil"
	"github.com/banshee-data/crtreco/internal/monitoring"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	store *sqlite.ResultStore
}

func NewServer(store *sqlite.ResultStore) *Server {
	return &Server{store: store}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{run}", s.getRun)
	mux.HandleFunc("DELETE /api/runs/{run}", s.deleteRun)
	mux.HandleFunc("GET /api/runs/{run}/events", s.listEvents)
	mux.HandleFunc("GET /api/events/{event}/clusters", s.listClusters)
	mux.HandleFunc("GET /api/events/{event}/matches", s.listMatches)
	return mux
}

// writeStoreError maps store lookups that found nothing to 404.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, sqlite.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.InternalServerError(w, err)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if runs == nil {
		runs = []*sqlite.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.PathValue("run"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, run)
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteRun(r.PathValue("run")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListEvents(r.PathValue("run"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if events == nil {
		events = []*sqlite.EventRecord{}
	}
	httputil.WriteJSONOK(w, events)
}

func (s *Server) listClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := s.store.ClustersForEvent(r.PathValue("event"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if clusters == nil {
		clusters = []*sqlite.ClusterRecord{}
	}
	httputil.WriteJSONOK(w, clusters)
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	kind := pipeline.MatchKind(r.URL.Query().Get("kind"))
	switch kind {
	case "", pipeline.KindHit, pipeline.KindCluster, pipeline.KindInputCluster:
	default:
		httputil.BadRequest(w, "invalid 'kind' parameter")
		return
	}

	matches, err := s.store.MatchesForEvent(r.PathValue("event"), kind)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if matches == nil {
		matches = []sqlite.MatchRecord{}
	}
	httputil.WriteJSONOK(w, matches)
}
