package migrations_test

import (
	"context"
	"testing"

	"github.com/nanashi-games/turingden/internal/database"
	"github.com/nanashi-games/turingden/internal/migrations"
)

func TestMigrations(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	// Running again is a no-op.
	if err := migrations.Run(db); err != nil {
		t.Fatalf("rerun migrations: %v", err)
	}

	for _, table := range []string{"rooms", "posts"} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}
