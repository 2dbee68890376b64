package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/crtreco/internal/crt/storage/sqlite"
	"github.com/banshee-data/crtreco/internal/db"
	"github.com/banshee-data/crtreco/internal/testutil"
)

// writeTestConfig writes a config whose paths resolve from this directory.
func writeTestConfig(t *testing.T, extra map[string]any) (cfgPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "results.db")
	cfg := map[string]any{
		"geometry_path":        testutil.GeometryPath(t),
		"db_path":              dbPath,
		"match_input_clusters": true,
	}
	for k, v := range extra {
		cfg[k] = v
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	cfgPath = filepath.Join(dir, "crtreco.json")
	require.NoError(t, os.WriteFile(cfgPath, data, 0o600))
	return cfgPath, dbPath
}

func listRuns(t *testing.T, dbPath string) []*sqlite.Run {
	t.Helper()
	database, err := db.NewDB(dbPath)
	require.NoError(t, err)
	defer database.Close()
	runs, err := sqlite.NewResultStore(database.DB).ListRuns()
	require.NoError(t, err)
	return runs
}

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), nil, &out)
	assert.True(t, errors.Is(err, errUsage))
	assert.Contains(t, out.String(), "Commands:")

	out.Reset()
	err = run(context.Background(), []string{"frobnicate"}, &out)
	assert.True(t, errors.Is(err, errUsage))
	assert.Contains(t, out.String(), "Unknown command: frobnicate")

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"help"}, &out))
	assert.Contains(t, out.String(), "process")
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"version"}, &out))
	assert.True(t, strings.HasPrefix(out.String(), "crtreco version "))
}

func TestProcess(t *testing.T) {
	fixtureEvents := testutil.EventFixture(t, "two_events.json")
	cfgPath, dbPath := writeTestConfig(t, map[string]any{"workers": 2})

	var out bytes.Buffer
	err := run(context.Background(), []string{"process", "-config", cfgPath, fixtureEvents}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "2 events, 6 hits, 4 clusters")

	runs := listRuns(t, dbPath)
	require.Len(t, runs, 1)
	assert.Equal(t, sqlite.RunStatusComplete, runs[0].Status)
	assert.Equal(t, 2, runs[0].EventCount)
	assert.Equal(t, fixtureEvents, runs[0].Source)
}

func TestProcess_DBFlagOverridesConfig(t *testing.T) {
	fixtureEvents := testutil.EventFixture(t, "two_events.json")
	cfgPath, cfgDB := writeTestConfig(t, nil)
	other := filepath.Join(t.TempDir(), "other.db")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"process", "-config", cfgPath, "-db", other, fixtureEvents}, &out))

	assert.Len(t, listRuns(t, other), 1)
	_, err := os.Stat(cfgDB)
	assert.True(t, os.IsNotExist(err), "config db_path should not be created")
}

func TestProcess_Errors(t *testing.T) {
	fixtureEvents := testutil.EventFixture(t, "two_events.json")
	cfgPath, _ := writeTestConfig(t, nil)

	tests := []struct {
		name string
		args []string
	}{
		{"no files", []string{"process", "-config", cfgPath}},
		{"missing file", []string{"process", "-config", cfgPath, "missing.json"}},
		{"bad extension", []string{"process", "-config", cfgPath, "events.txt"}},
		{"missing config", []string{"process", "-config", "missing.json", fixtureEvents}},
		{"negative workers", []string{"process", "-config", cfgPath, "-workers", "-1", fixtureEvents}},
		{"bad flag", []string{"process", "-nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Error(t, run(context.Background(), tt.args, &out))
		})
	}
}

func TestProcess_CancelledMarksRunFailed(t *testing.T) {
	fixtureEvents := testutil.EventFixture(t, "two_events.json")
	cfgPath, dbPath := writeTestConfig(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := run(ctx, []string{"process", "-config", cfgPath, fixtureEvents}, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	runs := listRuns(t, dbPath)
	require.Len(t, runs, 1)
	assert.Equal(t, sqlite.RunStatusFailed, runs[0].Status)
}

func TestConvertRoundTrip(t *testing.T) {
	fixtureEvents := testutil.EventFixture(t, "two_events.json")
	cfgPath, dbPath := writeTestConfig(t, nil)
	archive := filepath.Join(t.TempDir(), "events.cbor.zst")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"convert", fixtureEvents, archive}, &out))
	assert.Contains(t, out.String(), "wrote 2 events")

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"process", "-config", cfgPath, archive}, &out))
	assert.Contains(t, out.String(), "2 events, 6 hits, 4 clusters")
	assert.Len(t, listRuns(t, dbPath), 1)

	err := run(context.Background(), []string{"convert", fixtureEvents}, &out)
	assert.True(t, errors.Is(err, errUsage))
}

func TestMigrateStatus(t *testing.T) {
	dbPath := testutil.TempDBPath(t)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"migrate", "-db", dbPath, "up"}, &out))
	assert.Contains(t, out.String(), "Database is up to date!")

	out.Reset()
	err := run(context.Background(), []string{"migrate", "-db", dbPath}, &out)
	assert.Error(t, err)
	assert.Contains(t, out.String(), "Database Migration Commands")
}

func TestServeHandler(t *testing.T) {
	database, err := db.NewDB(testutil.TempDBPath(t))
	require.NoError(t, err)
	defer database.Close()

	handler, err := newServeHandler(database)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}
