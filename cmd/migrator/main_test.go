package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_outbox.up.sql", "0001_reminders.up.sql", "0001_reminders.down.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "archive.up.sql"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := migrationFiles(dir)
	if err != nil {
		t.Fatalf("migrationFiles() error = %v", err)
	}
	want := []string{"0001_reminders.up.sql", "0002_outbox.up.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("migrationFiles() = %v, want %v", got, want)
	}
}

func TestMigrationFiles_MissingDir(t *testing.T) {
	if _, err := migrationFiles(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestRepositoryMigrations(t *testing.T) {
	got, err := migrationFiles(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("migrationFiles() error = %v", err)
	}
	if len(got) == 0 || got[0] != "0001_reminders.up.sql" {
		t.Errorf("repository migrations = %v", got)
	}
}
