package db

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/orderledger/pkg/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	if err := conn.Where("1 = 1").Delete(&testModel{}).Error; err != nil {
		t.Fatalf("failed to reset sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestNewOpensSQLite(t *testing.T) {
	cfg := config.DBConfig{Driver: config.DriverSQLite, DSN: "file:client_new?mode=memory&cache=shared"}
	client, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer client.Close()

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if got := Dialect(cfg); got != "sqlite3" {
		t.Fatalf("expected sqlite3 dialect, got %q", got)
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{Driver: config.DriverPostgres}, nil); err == nil {
		t.Fatal("expected missing DSN to fail")
	}
}

func TestDialectDefaultsToPostgres(t *testing.T) {
	if got := Dialect(config.DBConfig{}); got != "postgres" {
		t.Fatalf("expected postgres dialect, got %q", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"nil", nil, "", false},
		{"postgres", errors.New(`ERROR: duplicate key value violates unique constraint "products_name_key"`), "", true},
		{"sqlite", errors.New("UNIQUE constraint failed: products.name"), "", true},
		{"named", errors.New("UNIQUE constraint failed: products.name"), "products.name", true},
		{"other", errors.New("FOREIGN KEY constraint failed"), "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUniqueViolation(tc.err, tc.constraint); got != tc.want {
				t.Fatalf("IsUniqueViolation() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestConstraintViolationClassifiers(t *testing.T) {
	fk := errors.New(`ERROR: insert or update on table "line_items" violates foreign key constraint "line_items_order_id_fkey"`)
	check := errors.New(`ERROR: new row for relation "line_items" violates check constraint "line_items_quantity_check"`)
	liteFK := errors.New("FOREIGN KEY constraint failed")
	liteCheck := errors.New("CHECK constraint failed: quantity > 0")

	if !IsForeignKeyViolation(fk, "") || !IsForeignKeyViolation(liteFK, "") {
		t.Fatal("expected foreign key violations to be detected")
	}
	if !IsForeignKeyViolation(fk, "line_items_order_id_fkey") || IsForeignKeyViolation(fk, "line_items_product_id_fkey") {
		t.Fatal("expected named foreign key matching")
	}
	if IsForeignKeyViolation(check, "") || IsForeignKeyViolation(nil, "") {
		t.Fatal("unexpected foreign key match")
	}
	if !IsCheckViolation(check, "") || !IsCheckViolation(liteCheck, "") {
		t.Fatal("expected check violations to be detected")
	}
	if IsCheckViolation(fk, "") || IsUniqueViolation(check, "") {
		t.Fatal("classifiers must not overlap")
	}
}
