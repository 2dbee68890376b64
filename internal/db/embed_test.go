package db

import (
	"io/fs"
	"strings"
	"testing"
)

// TestEmbeddedMigrationsFS verifies every up migration has a matching down
func TestEmbeddedMigrationsFS(t *testing.T) {
	origDevMode := DevMode
	DevMode = false
	defer func() { DevMode = origDevMode }()

	migFS, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS() failed: %v", err)
	}

	ups, err := fs.Glob(migFS, "*.up.sql")
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(ups) == 0 {
		t.Fatal("No embedded up migrations")
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(migFS, down); err != nil {
			t.Errorf("Migration %s has no %s", up, down)
		}
	}
}

// TestDevModeMigrationsFS reads migrations from disk
func TestDevModeMigrationsFS(t *testing.T) {
	origDevMode, origDir := DevMode, DevMigrationsDir
	defer func() { DevMode, DevMigrationsDir = origDevMode, origDir }()

	DevMode = true
	DevMigrationsDir = "migrations"
	migFS, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS() in dev mode failed: %v", err)
	}
	latest, err := GetLatestMigrationVersion(migFS)
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion failed: %v", err)
	}
	DevMigrationsDir = "does-not-exist"
	if _, err := getMigrationsFS(); err == nil {
		t.Error("Expected error for missing dev migrations directory")
	}
	if latest != 2 {
		t.Errorf("Expected latest version 2 on disk, got %d", latest)
	}
}
