package db

import (
	"path/filepath"
	"testing"
)

const migrationsDir = "../../db/migrations"

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestNewDBAppliesPragmas(t *testing.T) {
	database := openTestDB(t)

	var fk int
	if err := database.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys pragma: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys pragma = %d, want 1", fk)
	}
}

func TestMigrateUpCreatesSchema(t *testing.T) {
	database := openTestDB(t)

	if err := database.MigrateUp(migrationsDir); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}

	for _, table := range []string{"sessions", "tracks", "track_obs"} {
		var count int
		err := database.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s missing after migration", table)
		}
	}

	// Running again is a no-op.
	if err := database.MigrateUp(migrationsDir); err != nil {
		t.Errorf("second MigrateUp should be a no-op: %v", err)
	}
}

func TestMigrateVersionLifecycle(t *testing.T) {
	database := openTestDB(t)

	version, dirty, err := database.MigrateVersion(migrationsDir)
	if err != nil {
		t.Fatalf("MigrateVersion on fresh db: %v", err)
	}
	if version != 0 || dirty {
		t.Errorf("fresh db: version %d dirty %v, want 0 clean", version, dirty)
	}

	if err := database.MigrateUp(migrationsDir); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	version, dirty, err = database.MigrateVersion(migrationsDir)
	if err != nil {
		t.Fatalf("MigrateVersion: %v", err)
	}
	if version == 0 || dirty {
		t.Errorf("after up: version %d dirty %v", version, dirty)
	}

	if err := database.MigrateDown(migrationsDir); err != nil {
		t.Fatalf("MigrateDown: %v", err)
	}
	var count int
	err = database.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='tracks'",
	).Scan(&count)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Error("tracks table should be gone after MigrateDown")
	}
}

func TestLatestMigrationVersion(t *testing.T) {
	version, err := LatestMigrationVersion(migrationsDir)
	if err != nil {
		t.Fatalf("LatestMigrationVersion: %v", err)
	}
	if version < 1 {
		t.Errorf("latest version = %d, want >= 1", version)
	}

	if _, err := LatestMigrationVersion(t.TempDir()); err == nil {
		t.Error("empty migrations dir should be an error")
	}
}
