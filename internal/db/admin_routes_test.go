package db

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestAttachAdminRoutes tests that the debug routes are mounted
func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	httpMux := http.NewServeMux()
	if err := db.AttachAdminRoutes(httpMux); err != nil {
		t.Fatalf("AttachAdminRoutes failed: %v", err)
	}

	for _, path := range []string{"/debug/tailsql/", "/debug/metrics", "/debug/backup"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.RemoteAddr = "127.0.0.1:4242"
			w := httptest.NewRecorder()

			httpMux.ServeHTTP(w, req)

			// Registered routes answer 200, or 403 when debug access is refused.
			if w.Code == http.StatusNotFound {
				t.Errorf("Route %s should be registered, got 404", path)
			}
		})
	}
}

// TestBackupRoute checks the backup is a gzipped SQLite file
func TestBackupRoute(t *testing.T) {
	db := newTestDB(t)
	httpMux := http.NewServeMux()
	if err := db.AttachAdminRoutes(httpMux); err != nil {
		t.Fatalf("AttachAdminRoutes failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:4242"
	w := httptest.NewRecorder()
	httpMux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Skipf("debug access refused (status %d)", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Expected attachment disposition, got %q", cd)
	}

	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("Backup is not gzip: %v", err)
	}
	header := make([]byte, 16)
	if _, err := io.ReadFull(zr, header); err != nil {
		t.Fatalf("Failed to read backup: %v", err)
	}
	if string(header) != "SQLite format 3\x00" {
		t.Errorf("Backup does not start with the SQLite header: %q", header)
	}
}
