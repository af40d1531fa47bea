package shared

import (
	"database/sql"
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func memoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoadMigrations(t *testing.T) {
	t.Run("embedded", func(t *testing.T) {
		migrations, err := embeddedMigrations()
		if err != nil {
			t.Fatalf("embeddedMigrations() error = %v", err)
		}
		if len(migrations) == 0 || migrations[0].Name != "create_import_history" {
			t.Fatalf("unexpected migrations %+v", migrations)
		}
	})

	t.Run("pairs and orders scripts", func(t *testing.T) {
		fsys := fstest.MapFS{
			"0002_add_notes_up.sql":   {Data: []byte("ALTER TABLE t ADD notes TEXT")},
			"0002_add_notes_down.sql": {Data: []byte("SELECT 1")},
			"0001_base_up.sql":        {Data: []byte("CREATE TABLE t (id INTEGER)")},
			"0001_base_down.sql":      {Data: []byte("DROP TABLE t")},
			"README.md":               {Data: []byte("ignored")},
		}
		migrations, err := loadMigrations(fsys)
		if err != nil {
			t.Fatalf("loadMigrations() error = %v", err)
		}
		if len(migrations) != 2 {
			t.Fatalf("expected 2 migrations, got %d", len(migrations))
		}
		if migrations[0].Version != 1 || migrations[0].Name != "base" || migrations[1].Name != "add_notes" {
			t.Errorf("unexpected order %+v", migrations)
		}
		if migrations[0].Down != "DROP TABLE t" {
			t.Errorf("Down = %q", migrations[0].Down)
		}
	})

	t.Run("missing down script", func(t *testing.T) {
		fsys := fstest.MapFS{"0003_orphan_up.sql": {Data: []byte("SELECT 1")}}
		if _, err := loadMigrations(fsys); err == nil || !strings.Contains(err.Error(), "version 3") {
			t.Errorf("expected incomplete migration error, got %v", err)
		}
	})
}

func TestMigrations(t *testing.T) {
	t.Run("apply and roll back", func(t *testing.T) {
		db := memoryDB(t)
		if err := RunMigrations(db); err != nil {
			t.Fatalf("RunMigrations() error = %v", err)
		}

		applied, err := AppliedMigrations(db)
		if err != nil || len(applied) == 0 {
			t.Fatalf("AppliedMigrations() = %v, %v", applied, err)
		}
		for _, table := range []string{"import_runs", "import_runs_sequence", "import_outcomes", "missing_items"} {
			if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
				t.Errorf("%s should exist: %v", table, err)
			}
		}

		var name string
		if err := db.QueryRow("SELECT name FROM schema_migrations WHERE version = 0").Scan(&name); err != nil || name != "create_import_history" {
			t.Errorf("recorded name = %q, %v", name, err)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("RollbackMigration() error = %v", err)
		}
		if after, _ := AppliedMigrations(db); len(after) != len(applied)-1 {
			t.Errorf("expected one fewer migration, got %v", after)
		}
		if _, err := db.Exec("SELECT 1 FROM import_runs LIMIT 1"); err == nil {
			t.Error("import_runs should be dropped after rollback")
		}
	})

	t.Run("nothing to roll back", func(t *testing.T) {
		if err := RollbackMigration(memoryDB(t)); !errors.Is(err, ErrNoMigrations) {
			t.Errorf("expected ErrNoMigrations, got %v", err)
		}
	})

	t.Run("rerun is a no-op", func(t *testing.T) {
		db := memoryDB(t)
		for range 2 {
			if err := RunMigrations(db); err != nil {
				t.Fatalf("RunMigrations() error = %v", err)
			}
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatal(err)
		}
		migrations, _ := embeddedMigrations()
		if count != len(migrations) {
			t.Errorf("expected %d applied, got %d", len(migrations), count)
		}

		var seq int
		db.QueryRow("SELECT value FROM import_runs_sequence WHERE id = 1").Scan(&seq)
		if seq != 0 {
			t.Errorf("sequence reset to %d", seq)
		}
	})
}

func TestOpenDatabase(t *testing.T) {
	db, err := OpenDatabase(DatabaseConfig{Path: ":memory:", MaxOpenConns: 4, MaxIdleConns: 2})
	if err != nil {
		t.Fatalf("OpenDatabase() error = %v", err)
	}
	defer db.Close()

	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("in-memory pool should stay at one connection, got %d", got)
	}
	if _, err := db.Exec("SELECT 1 FROM import_runs"); err != nil {
		t.Errorf("expected migrated schema: %v", err)
	}
}
