package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func TestCreateSQLMigrationWritesValidFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	path, err := createSQLMigration(dir, " Add Order Index! ", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20260301120000_add_order_index.sql" {
		t.Fatalf("unexpected filename %q", filepath.Base(path))
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}

	if _, err := createSQLMigration(dir, "again", now); err == nil {
		t.Fatal("expected a version not after the latest to be rejected")
	}
	if _, err := createSQLMigration(dir, "!!!", now.Add(time.Second)); err == nil {
		t.Fatal("expected empty sanitized name to fail")
	}
}

func TestValidateFSRejectsBadMigrations(t *testing.T) {
	good := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose StatementEnd\n-- +goose Down\nSELECT 1;\n"
	cases := map[string]fstest.MapFS{
		"bad name": {"m/1_x.sql": {Data: []byte(good)}},
		"duplicate version": {
			"m/20260101000000_a.sql": {Data: []byte(good)},
			"m/20260101000000_b.sql": {Data: []byte(good)},
		},
		"missing down":  {"m/20260101000000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")}},
		"down first":    {"m/20260101000000_a.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")}},
		"unbalanced":    {"m/20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n")}},
	}
	for name, fsys := range cases {
		if err := ValidateFS(fsys, "m"); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	ok := fstest.MapFS{
		"m/20260101000000_a.sql": {Data: []byte(good)},
		"m/README.md":            {Data: []byte("notes")},
	}
	if err := ValidateFS(ok, "m"); err != nil {
		t.Fatalf("expected valid fs, got %v", err)
	}
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	if err := ValidateEmbedded(); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("on-disk migrations invalid: %v", err)
	}
	entries, err := os.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".sql") {
			t.Fatalf("unexpected file %q in migrations", e.Name())
		}
	}
}

func TestSQLiteSchemaDeclaresMoneyAsText(t *testing.T) {
	fsys, dir := schemaFS(Embedded, embeddedDir, "sqlite3")
	if dir != embeddedDir {
		t.Fatalf("expected dir %q, got %q", embeddedDir, dir)
	}
	matches, err := fs.Glob(fsys, dir+"/*_create_line_items.sql")
	if err != nil || len(matches) != 1 {
		t.Fatalf("glob line items migration: %v %v", matches, err)
	}

	f, err := fsys.Open(matches[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	data, err := fs.ReadFile(fsys, matches[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	content := string(data)
	if strings.Contains(content, moneyColumnType) {
		t.Fatalf("sqlite schema still declares %s:\n%s", moneyColumnType, content)
	}
	for _, want := range []string{"unit_price TEXT,", "amount TEXT,", "CHECK (quantity > 0)"} {
		if !strings.Contains(content, want) {
			t.Errorf("missing %q in sqlite schema", want)
		}
	}
	if info.Size() != int64(len(data)) {
		t.Fatalf("stat size %d does not match content length %d", info.Size(), len(data))
	}
}

func TestPostgresSchemaIsServedUnchanged(t *testing.T) {
	fsys, dir := schemaFS(Embedded, embeddedDir, "postgres")
	if dir != embeddedDir {
		t.Fatalf("expected dir %q, got %q", embeddedDir, dir)
	}
	matches, err := fs.Glob(fsys, dir+"/*_create_customers.sql")
	if err != nil || len(matches) != 1 {
		t.Fatalf("glob customers migration: %v %v", matches, err)
	}
	data, err := fs.ReadFile(fsys, matches[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "balance NUMERIC(19,4) NOT NULL DEFAULT 0") {
		t.Fatalf("postgres schema must keep NUMERIC money columns:\n%s", data)
	}

	if _, dir := schemaFS(nil, "pkg/migrate/migrations", "SQLite"); dir != "." {
		t.Fatalf("on-disk sqlite schema should be rooted at the migrations dir, got %q", dir)
	}
}
