// Package testutil locates the shared test fixtures from any package's tests.
package testutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

// RepoRoot returns the module root directory.
func RepoRoot(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot locate testutil source file")
	}
	return filepath.Join(filepath.Dir(file), "..", "..")
}

// GeometryPath returns the path of the checked-in CRT geometry table.
func GeometryPath(t testing.TB) string {
	t.Helper()
	return filepath.Join(RepoRoot(t), "config", "crt_geometry.yaml")
}

// EventFixture returns the path of a file under the event package's testdata.
func EventFixture(t testing.TB, name string) string {
	t.Helper()
	return filepath.Join(RepoRoot(t), "internal", "crt", "event", "testdata", name)
}

// TempDBPath returns a fresh database path inside the test's temp directory.
func TempDBPath(t testing.TB) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "results.db")
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}
