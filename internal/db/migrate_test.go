package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}

	var ups, downs int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	if ups == 0 {
		t.Fatal("no up migrations embedded")
	}
	if ups != downs {
		t.Errorf("up migrations = %d, down migrations = %d", ups, downs)
	}
}

func TestInitMigrationCreatesTables(t *testing.T) {
	data, err := fs.ReadFile(migrationsFS, "migrations/000001_init.up.sql")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	sql := string(data)
	for _, table := range []string{
		"users", "tags", "ingredients", "recipes", "recipe_tags",
		"recipe_ingredients", "follows", "favorites", "purchases",
	} {
		if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("init migration does not create %s", table)
		}
	}
}

func TestMigrate_UnknownDirection(t *testing.T) {
	err := Migrate("postgres://localhost:1/none?sslmode=disable", "sideways")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
