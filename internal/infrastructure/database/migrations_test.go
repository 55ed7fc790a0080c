package database

import (
	"context"
	"embed"
	"testing"
)

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

// withTestMigrations points the package-level embed variables at the
// test fixtures for the duration of one test.
func withTestMigrations(t *testing.T) {
	t.Helper()

	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})

	MigrationsFS = testMigrationsFS
	MigrationsDir = "testdata"
}

func TestMigrateAppliesAllInOrder(t *testing.T) {
	withTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// The second fixture alters the table the first creates, so both
	// columns existing proves order held.
	if _, err := db.ExecContext(ctx,
		"INSERT INTO scene_labels (label, color) VALUES (?, ?)", "Kitchen", "amber",
	); err != nil {
		t.Fatalf("schema incomplete after Migrate: %v", err)
	}

	versions, err := db.appliedVersions(ctx)
	if err != nil {
		t.Fatalf("appliedVersions() error = %v", err)
	}
	want := []string{"20260301_100000", "20260302_083000"}
	if len(versions) != len(want) {
		t.Fatalf("applied %d migrations, want %d", len(versions), len(want))
	}
	for i := range want {
		if versions[i] != want[i] {
			t.Errorf("versions[%d] = %q, want %q", i, versions[i], want[i])
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	withTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("first Migrate() error = %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	versions, err := db.appliedVersions(ctx)
	if err != nil {
		t.Fatalf("appliedVersions() error = %v", err)
	}
	if len(versions) != 2 {
		t.Errorf("applied %d migrations after re-run, want 2", len(versions))
	}
}

func TestMigrateDownRollsBackLatestOnly(t *testing.T) {
	withTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	// The color column from the second migration is gone, the table
	// from the first remains.
	if _, err := db.ExecContext(ctx,
		"INSERT INTO scene_labels (label) VALUES (?)", "Hall",
	); err != nil {
		t.Fatalf("first migration should survive rollback: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO scene_labels (label, color) VALUES (?, ?)", "Hall", "blue",
	); err == nil {
		t.Error("color column should be dropped after MigrateDown")
	}

	versions, err := db.appliedVersions(ctx)
	if err != nil {
		t.Fatalf("appliedVersions() error = %v", err)
	}
	if len(versions) != 1 || versions[0] != "20260301_100000" {
		t.Errorf("applied versions after rollback = %v, want [20260301_100000]", versions)
	}
}

func TestMigrateDownOnEmptyDatabase(t *testing.T) {
	withTestMigrations(t)
	db := openTestDB(t)

	if err := db.MigrateDown(context.Background()); err != nil {
		t.Errorf("MigrateDown() with nothing applied error = %v", err)
	}
}

func TestMigrateWithoutEmbeddedFS(t *testing.T) {
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})
	MigrationsFS = embed.FS{}
	MigrationsDir = "."

	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() with no embedded FS error = %v", err)
	}
}

func TestReadMigrationsPairsFiles(t *testing.T) {
	withTestMigrations(t)

	migrations, err := readMigrations()
	if err != nil {
		t.Fatalf("readMigrations() error = %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("read %d migrations, want 2", len(migrations))
	}

	first := migrations[0]
	if first.Version != "20260301_100000" {
		t.Errorf("first version = %q, want 20260301_100000", first.Version)
	}
	if first.Name != "scene_labels" {
		t.Errorf("first name = %q, want scene_labels", first.Name)
	}
	if first.UpSQL == "" || first.DownSQL == "" {
		t.Error("first migration should have both up and down SQL")
	}
}

func TestSplitMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"20260210_120000_initial_schema.up.sql", "20260210_120000", "initial_schema", true, true},
		{"20260210_120000_initial_schema.down.sql", "20260210_120000", "initial_schema", false, true},
		{"20260415_093000_energy_totals.up.sql", "20260415_093000", "energy_totals", true, true},
		{"notes.txt", "", "", false, false},
		{"20260210_120000_initial_schema.sql", "", "", false, false},
		{"orphan.up.sql", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, up, ok := splitMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if up != tt.wantUp {
				t.Errorf("up = %v, want %v", up, tt.wantUp)
			}
		})
	}
}
