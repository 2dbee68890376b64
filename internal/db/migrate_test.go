package db

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

var crtTables = []string{"crt_runs", "crt_events", "crt_clusters", "crt_cluster_hits", "crt_truth_matches"}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n); err != nil {
		t.Fatalf("Failed to query sqlite_master: %v", err)
	}
	return n == 1
}

func TestNewDBAppliesMigrations(t *testing.T) {
	db := newTestDB(t)
	migFS, err := MigrationsFS()
	if err != nil {
		t.Fatalf("MigrationsFS failed: %v", err)
	}

	status, err := db.GetMigrationStatus(migFS)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status.CurrentVersion != status.LatestVersion || status.Dirty {
		t.Errorf("Expected fully migrated clean database, got %+v", status)
	}
	if status.Pending() != 0 {
		t.Errorf("Expected no pending migrations, got %d", status.Pending())
	}

	for _, table := range crtTables {
		if !tableExists(t, db, table) {
			t.Errorf("Table %s missing after migrations", table)
		}
	}

	// Reopening is a no-op.
	db2, err := NewDB(db.Path())
	if err != nil {
		t.Fatalf("Reopening migrated database failed: %v", err)
	}
	db2.Close()
}

func TestMigrateDownAndUp(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()
	migFS, _ := MigrationsFS()

	version, dirty, err := db.MigrateVersion(migFS)
	if err != nil || version != 0 || dirty {
		t.Fatalf("Fresh database: version=%d dirty=%v err=%v", version, dirty, err)
	}

	if err := db.MigrateTo(migFS, 1); err != nil {
		t.Fatalf("MigrateTo(1) failed: %v", err)
	}
	var hasStatus int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('crt_runs') WHERE name='status'`).Scan(&hasStatus); err != nil {
		t.Fatalf("table_info failed: %v", err)
	}
	if hasStatus != 0 {
		t.Error("status column should not exist at version 1")
	}

	if err := db.MigrateUp(migFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('crt_runs') WHERE name='status'`).Scan(&hasStatus); err != nil {
		t.Fatalf("table_info failed: %v", err)
	}
	if hasStatus != 1 {
		t.Error("status column should exist after migrating up")
	}

	if err := db.MigrateDown(migFS); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	version, _, _ = db.MigrateVersion(migFS)
	if version != 1 {
		t.Errorf("Expected version 1 after down, got %d", version)
	}

	if err := db.MigrateDown(migFS); err != nil {
		t.Fatalf("Second MigrateDown failed: %v", err)
	}
	for _, table := range crtTables {
		if tableExists(t, db, table) {
			t.Errorf("Table %s should be dropped", table)
		}
	}
}

func TestMigrateForce(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "force.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()
	migFS, _ := MigrationsFS()

	if err := db.MigrateForce(migFS, 1); err != nil {
		t.Fatalf("MigrateForce failed: %v", err)
	}
	version, dirty, err := db.MigrateVersion(migFS)
	if err != nil || version != 1 || dirty {
		t.Errorf("After force: version=%d dirty=%v err=%v", version, dirty, err)
	}
}

func TestRunMigrateCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "status on empty database", args: []string{"status"}, want: "Database is 2 version(s) behind"},
		{name: "up", args: []string{"up"}, want: "Database is up to date!"},
		{name: "down", args: []string{"down"}, want: "Current version: 1"},
		{name: "version", args: []string{"version", "2"}, want: "Migrated to version 2"},
		{name: "bad version", args: []string{"version", "two"}, wantErr: true},
		{name: "missing version", args: []string{"force"}, wantErr: true},
		{name: "unknown action", args: []string{"sideways"}, wantErr: true},
		{name: "no action", args: nil, wantErr: true},
		{name: "help", args: []string{"help"}, want: "Database Migration Commands"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := RunMigrateCommand(tt.args, dbPath, &out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RunMigrateCommand(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if tt.want != "" && !strings.Contains(out.String(), tt.want) {
				t.Errorf("Output missing %q:\n%s", tt.want, out.String())
			}
		})
	}
}

func TestGetLatestMigrationVersion(t *testing.T) {
	migFS, _ := MigrationsFS()
	latest, err := GetLatestMigrationVersion(migFS)
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion failed: %v", err)
	}
	if latest != 2 {
		t.Errorf("Expected latest version 2, got %d", latest)
	}
}
